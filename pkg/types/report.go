package types

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is one file observed during an eviction sweep.
type CacheEntry struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

// Age returns how long ago the entry was last accessed.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastAccess)
}

// EvictionError records a single file the sweep failed to reclaim. Failures
// never abort the sweep; they are carried in the report instead.
type EvictionError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// EvictionReport summarizes one sweep of the local cache.
type EvictionReport struct {
	Root          string          `json:"root"`
	StartedAt     time.Time       `json:"started_at"`
	Duration      time.Duration   `json:"duration"`
	Scanned       int             `json:"scanned"`
	Evicted       int             `json:"evicted"`
	EvictedBytes  int64           `json:"evicted_bytes"`
	SkippedInUse  int             `json:"skipped_in_use"`
	SkippedFresh  int             `json:"skipped_fresh"`
	PrunedDirs    int             `json:"pruned_dirs"`
	Errors        []EvictionError `json:"errors,omitempty"`
	AlreadyActive bool            `json:"already_active,omitempty"`
}

// MountOutcome is the per-target result of an orchestrator cycle.
type MountOutcome struct {
	Target   string        `json:"target"`
	State    MountState    `json:"state"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the target could not be brought to ready.
func (o MountOutcome) Failed() bool {
	return o.Err != nil
}

// CycleReport aggregates one orchestrator pass over all targets plus the
// sweep that follows.
type CycleReport struct {
	CycleID   uuid.UUID       `json:"cycle_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Mounts    []MountOutcome  `json:"mounts"`
	Sweep     *EvictionReport `json:"sweep,omitempty"`
	SweepErr  string          `json:"sweep_error,omitempty"`
}

// Failed returns the outcomes of targets that did not reach ready.
func (r CycleReport) Failed() []MountOutcome {
	var failed []MountOutcome
	for _, o := range r.Mounts {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// AllFailed reports whether no target became ready this cycle.
func (r CycleReport) AllFailed() bool {
	return len(r.Mounts) > 0 && len(r.Failed()) == len(r.Mounts)
}

// Ok reports whether every target reached ready and the sweep ran clean.
func (r CycleReport) Ok() bool {
	return len(r.Failed()) == 0 && r.SweepErr == ""
}
