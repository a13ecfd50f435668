// Package types provides the core data types shared by the inspector packages.
package types

// Profile describes where one experimental dataset lives and which of its
// tables and columns the inspector should look at.
type Profile struct {
	// Name is the human-readable dataset name (e.g., "IceCube Upgrade")
	Name string `json:"name" yaml:"name"`

	// Key is the selector used on the command line (e.g., "icecube-upgrade")
	Key string `json:"key" yaml:"key"`

	// Location is the store path or URI, relative paths resolve against the data dir
	Location string `json:"location" yaml:"location"`

	// IndexColumn uniquely identifies one event within the truth and pulse tables
	IndexColumn string `json:"index_column" yaml:"index_column"`

	// TruthTable holds one row per event with truth/metadata columns
	TruthTable string `json:"truth_table" yaml:"truth_table"`

	// PulseTable holds the per-pulse detector readout, keyed by IndexColumn
	PulseTable string `json:"pulse_table" yaml:"pulse_table"`

	// GroupBy lists the truth columns used to split the event count; empty means no grouping
	GroupBy []string `json:"group_by,omitempty" yaml:"group_by,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	cp := p
	if p.GroupBy != nil {
		cp.GroupBy = append([]string(nil), p.GroupBy...)
	}
	return cp
}
