// Package profile holds the built-in dataset profiles and the logic that
// selects which of them an invocation inspects.
package profile

import (
	"fmt"

	ierrors "github.com/graphnet-team/datainspect/internal/errors"
	"github.com/graphnet-team/datainspect/pkg/types"
)

// Builtin preset keys, in reporting order.
const (
	KeyKaggle                = "kaggle"
	KeyPrometheusOrca        = "prometheus-orca"
	KeyIceCubeNorthernTracks = "icecube-northern-tracks"
	KeyIceCubeOscNext        = "icecube-oscnext"
	KeyIceCubeUpgrade        = "icecube-upgrade"
)

var builtins = []types.Profile{
	{
		Name:        "Kaggle",
		Key:         KeyKaggle,
		Location:    "generic/kaggle.db",
		IndexColumn: "event_id",
		TruthTable:  "meta_table",
		PulseTable:  "pulse_table",
	},
	{
		Name:        "Prometheus",
		Key:         KeyPrometheusOrca,
		Location:    "generic/prometheus-orca.db",
		IndexColumn: "event_no",
		TruthTable:  "mc_truth",
		PulseTable:  "total",
		GroupBy:     []string{"injection_type", "injection_interaction_type"},
	},
	{
		Name:        "IceCube Northern Tracks",
		Key:         KeyIceCubeNorthernTracks,
		Location:    "icecube/northern_tracks.db",
		IndexColumn: "event_no",
		TruthTable:  "truth",
		PulseTable:  "HVInIcePulses",
		GroupBy:     []string{"pid"},
	},
	{
		Name:        "IceCube OscNext Level-7",
		Key:         KeyIceCubeOscNext,
		Location:    "icecube/oscnext.db",
		IndexColumn: "event_no",
		TruthTable:  "truth",
		PulseTable:  "SRTTWOfflinePulsesDC",
		GroupBy:     []string{"pid"},
	},
	{
		Name:        "IceCube Upgrade",
		Key:         KeyIceCubeUpgrade,
		Location:    "icecube/upgrade.db",
		IndexColumn: "event_no",
		TruthTable:  "truth",
		PulseTable:  "SplitInIcePulses_dynedge_v2_Pulses",
		GroupBy:     []string{"pid"},
	},
}

// Registry is an ordered set of profiles keyed by their CLI key.
// The zero value is empty and ready to use.
type Registry struct {
	order    []string
	profiles map[string]types.Profile
}

// Builtin returns a registry with the five built-in dataset presets.
func Builtin() *Registry {
	r := &Registry{}
	for _, p := range builtins {
		r.put(p)
	}
	return r
}

// NewRegistry creates a registry from profiles, validating each of them.
// Later profiles replace earlier ones with the same key.
func NewRegistry(profiles ...types.Profile) (*Registry, error) {
	r := &Registry{}
	if err := r.Merge(profiles); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) put(p types.Profile) {
	if r.profiles == nil {
		r.profiles = make(map[string]types.Profile)
	}
	if _, exists := r.profiles[p.Key]; !exists {
		r.order = append(r.order, p.Key)
	}
	r.profiles[p.Key] = p.Clone()
}

// Merge validates overrides and adds them to the registry. A profile whose
// key already exists replaces it in place; new keys are appended.
func (r *Registry) Merge(overrides []types.Profile) error {
	for _, p := range overrides {
		if err := Validate(p); err != nil {
			return err
		}
	}
	for _, p := range overrides {
		r.put(p)
	}
	return nil
}

// Keys returns the profile keys in registry order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// All returns copies of every profile in registry order.
func (r *Registry) All() []types.Profile {
	all := make([]types.Profile, 0, len(r.order))
	for _, key := range r.order {
		all = append(all, r.profiles[key].Clone())
	}
	return all
}

// Get returns a copy of the profile registered under key.
func (r *Registry) Get(key string) (types.Profile, bool) {
	p, ok := r.profiles[key]
	if !ok {
		return types.Profile{}, false
	}
	return p.Clone(), true
}

// Select returns the profiles to inspect, in registry order. With all set
// every profile is selected; otherwise only keys marked true in selected.
// Nothing selected yields an empty result, not an error.
func (r *Registry) Select(all bool, selected map[string]bool) []types.Profile {
	out := []types.Profile{}
	for _, key := range r.order {
		if all || selected[key] {
			out = append(out, r.profiles[key].Clone())
		}
	}
	return out
}

// Validate checks that every attribute the inspector relies on is set.
func Validate(p types.Profile) error {
	missing := ""
	switch {
	case p.Key == "":
		missing = "key"
	case p.Name == "":
		missing = "name"
	case p.Location == "":
		missing = "location"
	case p.IndexColumn == "":
		missing = "index_column"
	case p.TruthTable == "":
		missing = "truth_table"
	case p.PulseTable == "":
		missing = "pulse_table"
	}
	if missing != "" {
		return ierrors.NewValidationError(ierrors.CodeInvalidProfile,
			fmt.Sprintf("profile %q: %s is required", p.Key, missing))
	}
	for _, g := range p.GroupBy {
		if g == "" {
			return ierrors.NewValidationError(ierrors.CodeInvalidProfile,
				fmt.Sprintf("profile %q: group_by contains an empty column", p.Key))
		}
	}
	return nil
}
