package types

// GroupCount is the event count for one distinct combination of grouping values.
type GroupCount struct {
	// Key holds the grouping values in GroupBy order; NULL renders as "<NULL>"
	Key []string `json:"key"`

	// Kinds holds the SQLite storage class of each Key value (null, integer,
	// real, text or blob), so 1 and '1' remain distinct keys
	Kinds []string `json:"kinds"`

	// Count is the number of events sharing Key
	Count int64 `json:"count"`
}

// CountResult is either a scalar event count or one count per group.
type CountResult struct {
	// GroupBy lists the grouping columns; empty for a scalar count
	GroupBy []string `json:"group_by,omitempty"`

	// Total is the scalar count, or the sum of all group counts when grouped
	Total int64 `json:"total"`

	// Groups holds one row per distinct key, ordered by key
	Groups []GroupCount `json:"groups,omitempty"`
}

// Grouped reports whether the count was split by grouping columns.
func (c CountResult) Grouped() bool {
	return len(c.GroupBy) > 0
}

// Sum returns the sum of all group counts.
func (c CountResult) Sum() int64 {
	var sum int64
	for _, g := range c.Groups {
		sum += g.Count
	}
	return sum
}

// Report is the complete inspection result for one profile.
type Report struct {
	Profile     Profile            `json:"profile"`
	StorePath   string             `json:"store_path"`
	Tables      []string           `json:"tables"`
	Indexes     []IndexDescriptor  `json:"indexes"`
	Columns     []ColumnDescriptor `json:"columns"`
	Events      CountResult        `json:"events"`
	Counted     bool               `json:"counted"`
	Plan        QueryPlanStep      `json:"plan"`
	Fingerprint string             `json:"fingerprint,omitempty"`

	// Err is set when the inspection of this profile failed; the fields
	// above then hold whatever was collected before the failure. Counted
	// reports whether Events holds a result; Plan stays empty until explained.
	Err error `json:"-"`
}

// Failed reports whether the inspection ended with an error.
func (r *Report) Failed() bool {
	return r.Err != nil
}
