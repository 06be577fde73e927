// Package orchestrator runs post-extraction enrichment in the background and
// tracks each run through an in-memory job handle that API clients can poll.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// Handle statuses.
const (
	StatusIdle      = "idle"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TraceEntry is one line of a job's progress log.
type TraceEntry struct {
	Role    string    `json:"role"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Handle is the observable state of one enrichment run. All methods are safe
// for concurrent use.
type Handle struct {
	mu       sync.Mutex
	id       string
	sourceID string
	status   string
	trace    []TraceEntry
	err      string
	started  time.Time
}

// HandleID returns the job id for a source. One source has at most one live
// handle; re-dispatching replaces it.
func HandleID(sourceID string) string {
	return "processing-" + sourceID
}

func newHandle(sourceID string) *Handle {
	return &Handle{
		id:       HandleID(sourceID),
		sourceID: sourceID,
		status:   StatusIdle,
		started:  time.Now(),
	}
}

// Log appends a trace entry.
func (h *Handle) Log(role, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = append(h.trace, TraceEntry{Role: role, Message: message, At: time.Now()})
}

func (h *Handle) setStatus(status, errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.err = errMsg
}

// Snapshot is a point-in-time copy of a handle for serialization.
type Snapshot struct {
	ID       string       `json:"id"`
	SourceID string       `json:"source_id"`
	Status   string       `json:"status"`
	Trace    []TraceEntry `json:"trace"`
	Error    string       `json:"error,omitempty"`
	Started  time.Time    `json:"started_at"`
}

// Snapshot returns a copy of the handle's current state.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	trace := make([]TraceEntry, len(h.trace))
	copy(trace, h.trace)
	return Snapshot{
		ID:       h.id,
		SourceID: h.sourceID,
		Status:   h.status,
		Trace:    trace,
		Error:    h.err,
		Started:  h.started,
	}
}

// HandleStore holds live job handles. The in-memory implementation is the
// default; the interface exists so a shared store can be swapped in behind a
// load balancer.
type HandleStore interface {
	Put(h *Handle)
	Get(id string) (*Handle, bool)
	All() []*Handle
	Delete(id string)
}

// MemoryHandleStore is a mutex-guarded map of handles. Handles do not
// survive a restart; the source rows in the database are the durable record.
type MemoryHandleStore struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewMemoryHandleStore creates an empty in-memory handle store.
func NewMemoryHandleStore() *MemoryHandleStore {
	return &MemoryHandleStore{handles: make(map[string]*Handle)}
}

func (s *MemoryHandleStore) Put(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.id] = h
}

func (s *MemoryHandleStore) Get(id string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[id]
	return h, ok
}

func (s *MemoryHandleStore) All() []*Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	return out
}

func (s *MemoryHandleStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, id)
}

// RunFunc does the actual enrichment work for one source. It logs progress
// through the handle and returns an error to mark the job failed.
type RunFunc func(ctx context.Context, h *Handle) error

// Orchestrator dispatches enrichment runs and exposes their handles.
type Orchestrator struct {
	store HandleStore
	wg    sync.WaitGroup
}

// New creates an orchestrator over the given handle store.
func New(store HandleStore) *Orchestrator {
	return &Orchestrator{store: store}
}

// Dispatch starts an enrichment run for the source in a new goroutine and
// returns its handle immediately. Dispatching a source that already has a
// handle replaces it, so a refresh shows a fresh trace. Panics in the run
// function are contained and mark the job failed.
func (o *Orchestrator) Dispatch(ctx context.Context, sourceID string, run RunFunc) *Handle {
	h := newHandle(sourceID)
	o.store.Put(h)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("enrichment panicked", "source_id", sourceID, "panic", r,
					"stack", string(debug.Stack()))
				h.Log("error", fmt.Sprintf("internal error: %v", r))
				h.setStatus(StatusFailed, fmt.Sprintf("panic: %v", r))
			}
		}()

		h.setStatus(StatusRunning, "")
		h.Log("system", "Processing started.")

		if err := run(ctx, h); err != nil {
			slog.Warn("enrichment failed", "source_id", sourceID, "error", err)
			h.Log("error", err.Error())
			h.setStatus(StatusFailed, err.Error())
			return
		}

		h.Log("system", "Processing complete.")
		h.setStatus(StatusCompleted, "")
	}()

	return h
}

// Get returns the snapshot of a job handle by id.
func (o *Orchestrator) Get(id string) (Snapshot, bool) {
	h, ok := o.store.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return h.Snapshot(), true
}

// List returns snapshots of all live handles, newest first.
func (o *Orchestrator) List() []Snapshot {
	handles := o.store.All()
	out := make([]Snapshot, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out
}

// ClearCompleted drops handles in a terminal state and returns how many were
// removed. Running jobs are untouched.
func (o *Orchestrator) ClearCompleted() int {
	removed := 0
	for _, h := range o.store.All() {
		snap := h.Snapshot()
		if snap.Status == StatusCompleted || snap.Status == StatusFailed {
			o.store.Delete(snap.ID)
			removed++
		}
	}
	return removed
}

// Wait blocks until all dispatched runs have finished. Used on shutdown and
// in tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
