// Package observability provides per-operation statistics for inspector runs.
package observability

import (
	"sort"
	"sync"
	"time"
)

// OpStats tracks call counts, latency and failures per inspector operation.
type OpStats struct {
	mu  sync.RWMutex
	ops map[string]*OperationStats
}

// OperationStats holds statistics for a single operation name.
type OperationStats struct {
	Operation string
	Calls     int64
	Failures  int64
	Total     time.Duration
	Max       time.Duration
	LastError string
}

// Mean returns the average latency per call.
func (s OperationStats) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// NewOpStats creates a new operation statistics tracker.
func NewOpStats() *OpStats {
	return &OpStats{
		ops: make(map[string]*OperationStats),
	}
}

// Record records one completed call of op that took d and ended with err.
// A nil receiver is a no-op so callers need not check whether stats are enabled.
func (o *OpStats) Record(op string, d time.Duration, err error) {
	if o == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	stats, exists := o.ops[op]
	if !exists {
		stats = &OperationStats{Operation: op}
		o.ops[op] = stats
	}

	stats.Calls++
	stats.Total += d
	if d > stats.Max {
		stats.Max = d
	}
	if err != nil {
		stats.Failures++
		stats.LastError = err.Error()
	}
}

// Track starts timing op and returns a function that records the call.
//
//	defer stats.Track("count_events")(&err)
func (o *OpStats) Track(op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		o.Record(op, time.Since(start), err)
	}
}

// Snapshot returns a copy of all operation stats sorted by operation name.
func (o *OpStats) Snapshot() []OperationStats {
	if o == nil {
		return []OperationStats{}
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := make([]OperationStats, 0, len(o.ops))
	for _, s := range o.ops {
		stats = append(stats, *s)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Operation < stats[j].Operation
	})
	return stats
}
