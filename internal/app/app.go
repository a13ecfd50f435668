// Package app runs inspections for a selection of dataset profiles.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/graphnet-team/datainspect/internal/inspector"
	"github.com/graphnet-team/datainspect/internal/observability"
	"github.com/graphnet-team/datainspect/internal/report"
	"github.com/graphnet-team/datainspect/pkg/types"
)

// Stager turns a store location into a local SQLite file path.
type Stager interface {
	Stage(ctx context.Context, location string) (string, error)
}

// Renderer writes one report.
type Renderer interface {
	Render(w io.Writer, r *types.Report) error
}

// Runner inspects profiles and renders their reports.
type Runner struct {
	Stager   Stager
	Renderer Renderer
	Stats    *observability.OpStats

	// FailFast stops the run at the first failed profile. Profiles are then
	// inspected one at a time regardless of Parallel.
	FailFast bool

	// Parallel bounds the number of profiles inspected at once
	Parallel int

	// Lookup is the value bound in the query plan lookup; nil uses the default
	Lookup interface{}
}

// Summary lists the profile keys a run attempted.
type Summary struct {
	RunID     string
	Inspected []string
	Failed    []string
}

// OK reports whether every attempted profile succeeded.
func (s Summary) OK() bool {
	return len(s.Failed) == 0
}

// Run inspects profiles and writes their reports to w in the given order.
// A failed profile is reported and the remaining ones still run unless
// FailFast is set. The returned error is non-nil when any profile failed.
func (r *Runner) Run(ctx context.Context, profiles []types.Profile, w io.Writer) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		Inspected: []string{},
		Failed:    []string{},
	}
	if len(profiles) == 0 {
		return summary, nil
	}

	log.Printf("app: run %s: inspecting %d profile(s)", summary.RunID, len(profiles))

	var err error
	if r.FailFast || r.Parallel <= 1 {
		err = r.runSequential(ctx, profiles, w, &summary)
	} else {
		err = r.runParallel(ctx, profiles, w, &summary)
	}
	if err != nil {
		return summary, err
	}

	if !summary.OK() {
		return summary, fmt.Errorf("%d of %d profile(s) failed: %s",
			len(summary.Failed), len(summary.Inspected), strings.Join(summary.Failed, ", "))
	}
	return summary, nil
}

func (r *Runner) runSequential(ctx context.Context, profiles []types.Profile, w io.Writer, summary *Summary) error {
	for _, p := range profiles {
		rep := r.inspect(ctx, summary.RunID, p)
		if err := r.record(w, rep, summary); err != nil {
			return err
		}
		if rep.Failed() && r.FailFast {
			log.Printf("app: run %s: stopping after %s (fail-fast)", summary.RunID, p.Key)
			break
		}
	}
	return nil
}

func (r *Runner) runParallel(ctx context.Context, profiles []types.Profile, w io.Writer, summary *Summary) error {
	reports := make([]*types.Report, len(profiles))

	var g errgroup.Group
	g.SetLimit(r.Parallel)
	for n, p := range profiles {
		n, p := n, p
		g.Go(func() error {
			reports[n] = r.inspect(ctx, summary.RunID, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, rep := range reports {
		if err := r.record(w, rep, summary); err != nil {
			return err
		}
	}
	return nil
}

// inspect stages and inspects one profile. Failures are carried in the
// returned report.
func (r *Runner) inspect(ctx context.Context, runID string, p types.Profile) *types.Report {
	path, err := r.Stager.Stage(ctx, p.Location)
	if err != nil {
		log.Printf("app: run %s: profile %s: %v", runID, p.Key, err)
		return &types.Report{Profile: p.Clone(), StorePath: p.Location, Err: err}
	}

	rep, err := inspector.New(path, r.Stats).Inspect(ctx, p, r.Lookup)
	if err != nil {
		log.Printf("app: run %s: profile %s: %v", runID, p.Key, err)
		return rep
	}

	rep.Fingerprint = report.Fingerprint(rep)
	return rep
}

func (r *Runner) record(w io.Writer, rep *types.Report, summary *Summary) error {
	summary.Inspected = append(summary.Inspected, rep.Profile.Key)
	if rep.Failed() {
		summary.Failed = append(summary.Failed, rep.Profile.Key)
	}
	if err := r.Renderer.Render(w, rep); err != nil {
		return fmt.Errorf("render %s: %w", rep.Profile.Key, err)
	}
	return nil
}
