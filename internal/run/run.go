// Package run holds the in-memory bookkeeping for an asynchronous solver
// run: the HTTP layer starts one in a goroutine and polls its status while
// the persist worker flushes its latest snapshot to the cache.
package run

import (
	"sync"

	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/result"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record tracks one in-flight or finished run. Latest is updated by the
// solver goroutine as steps complete; Result is only set once the run
// finishes.
type Record struct {
	mu sync.RWMutex

	RunID    uuid.UUID
	Building *bim.Building
	Status   Status
	Err      error

	latest *result.DistributionState
	Result *result.EvacuationModelingResult
}

// NewRecord starts a fresh running record for runID against b.
func NewRecord(runID uuid.UUID, b *bim.Building) *Record {
	return &Record{RunID: runID, Building: b, Status: StatusRunning}
}

// SetLatest records the most recent step snapshot, called from the solver
// goroutine.
func (r *Record) SetLatest(state result.DistributionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = &state
}

// Latest returns the most recent snapshot recorded, if any.
func (r *Record) Latest() (result.DistributionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return result.DistributionState{}, false
	}
	return *r.latest, true
}

// Finish marks the record completed or failed, storing the final result or
// error accordingly.
func (r *Record) Finish(res *result.EvacuationModelingResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.Status = StatusFailed
		r.Err = err
		return
	}
	r.Status = StatusCompleted
	r.Result = res
}
