// Package report renders inspection reports for the console.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/graphnet-team/datainspect/pkg/types"
)

const (
	bold  = "\033[1m"
	reset = "\033[0m"
)

// TextRenderer writes human-readable reports. The layout is meant for
// people and may change between releases.
type TextRenderer struct {
	// Color wraps profile names in ANSI bold
	Color bool
}

// Render writes one report block to w.
func (tr *TextRenderer) Render(w io.Writer, r *types.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nInspecting %s dataset:\n", strings.Repeat("-", 40), tr.name(r.Profile.Name))
	fmt.Fprintf(&b, "   store: %s\n", r.StorePath)

	if r.Tables != nil {
		fmt.Fprintf(&b, "\n * Available tables: [%s]\n", strings.Join(r.Tables, ", "))
	}

	if r.Indexes != nil {
		pairs := make([]string, len(r.Indexes))
		for n, idx := range r.Indexes {
			pairs[n] = fmt.Sprintf("(%s, %s)", idx.Name, idx.Table)
		}
		fmt.Fprintf(&b, "\n * Available indexes: [%s]\n", strings.Join(pairs, ", "))
	}

	if r.Columns != nil {
		b.WriteString("\n * Available columns:\n")
		for _, c := range r.Columns {
			fmt.Fprintf(&b, "    > %s: [%s]\n", c.Table, strings.Join(c.Columns, ", "))
		}
	}

	if r.Counted {
		b.WriteString("\n * Number of events in dataset:\n")
		writeCounts(&b, r.Profile.IndexColumn, r.Events)
	}

	if r.Plan != "" {
		fmt.Fprintf(&b, "\n * Query plan (%s.%s lookup): %s\n", r.Profile.PulseTable, r.Profile.IndexColumn, r.Plan)
	}

	if r.Failed() {
		fmt.Fprintf(&b, "\n ! Inspection failed: %v\n", r.Err)
	} else if r.Fingerprint != "" {
		fmt.Fprintf(&b, "\n * Fingerprint: %s\n", r.Fingerprint)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (tr *TextRenderer) name(name string) string {
	if tr.Color {
		return bold + name + reset
	}
	return name
}

// writeCounts prints the count as an aligned table, one row per group.
func writeCounts(b *strings.Builder, indexColumn string, events types.CountResult) {
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	header := append(append([]string(nil), events.GroupBy...), fmt.Sprintf("COUNT(%s)", indexColumn))
	fmt.Fprintf(tw, "   %s\n", strings.Join(header, "\t"))

	if !events.Grouped() {
		fmt.Fprintf(tw, "   %d\n", events.Total)
		tw.Flush()
		return
	}

	for _, g := range events.Groups {
		fmt.Fprintf(tw, "   %s\t%d\n", strings.Join(g.Key, "\t"), g.Count)
	}
	tw.Flush()
	fmt.Fprintf(b, "   total: %d\n", events.Total)
}
