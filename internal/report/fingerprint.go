package report

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/spaolacci/murmur3"

	"github.com/graphnet-team/datainspect/pkg/types"
)

// Fingerprint returns a murmur3 128-bit digest of the report's content.
// Two inspections of an unmodified store produce the same fingerprint; the
// store path is left out so a staged copy matches its source.
func Fingerprint(r *types.Report) string {
	h := murmur3.New128()

	field := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}

	field("tables")
	for _, t := range r.Tables {
		field(t)
	}
	field("indexes")
	for _, idx := range r.Indexes {
		field(idx.Name)
		field(idx.Table)
	}
	field("columns")
	for _, c := range r.Columns {
		field(c.Table)
		for _, col := range c.Columns {
			field(col)
		}
	}
	field("events")
	for _, g := range r.Events.GroupBy {
		field(g)
	}
	field(strconv.FormatInt(r.Events.Total, 10))
	for _, g := range r.Events.Groups {
		for _, k := range g.Key {
			field(k)
		}
		for _, k := range g.Kinds {
			field(k)
		}
		field(strconv.FormatInt(g.Count, 10))
	}
	field("plan")
	field(string(r.Plan))

	h1, h2 := h.Sum128()
	var sum [16]byte
	binary.BigEndian.PutUint64(sum[:8], h1)
	binary.BigEndian.PutUint64(sum[8:], h2)
	return hex.EncodeToString(sum[:])
}
