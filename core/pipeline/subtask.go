package pipeline

import (
	"sync"
	"time"

	"coordinator-core/core"
)

const (
	// ProgressInterval is how often an agent working a subtask must report.
	ProgressInterval = 15 * time.Second
	// StaleAfterMisses is how many missed progress reports mark a subtask
	// stale (3 misses * 15s = 45s silence).
	StaleAfterMisses = 3
	staleSilence     = ProgressInterval * StaleAfterMisses
	// MaxAttempts is the cap on re-enqueue attempts before a task fails or
	// escalates.
	MaxAttempts = 3
	// CancelGrace is the window an in-flight worker has to stop after a
	// signed cancel message.
	CancelGrace = 10 * time.Second
)

// InFlightTracker tracks subtasks currently assigned to a worker and detects
// staleness / attempt exhaustion, per §4.D heartbeat & reassignment.
type InFlightTracker struct {
	mu      sync.Mutex
	running map[string]*runningEntry
}

type runningEntry struct {
	subtask        core.Subtask
	lastProgressAt time.Time
}

// NewInFlightTracker constructs an empty tracker.
func NewInFlightTracker() *InFlightTracker {
	return &InFlightTracker{running: make(map[string]*runningEntry)}
}

// Start records a subtask as running on its assigned agent.
func (t *InFlightTracker) Start(st core.Subtask, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st.Status = core.SubtaskRunning
	t.running[st.ID] = &runningEntry{subtask: st, lastProgressAt: now}
}

// Progress records a heartbeat from the worker executing a subtask.
func (t *InFlightTracker) Progress(subtaskID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.running[subtaskID]
	if !ok {
		return false
	}
	e.lastProgressAt = now
	return true
}

// Finish removes a subtask from the in-flight set (success, failure, or
// cancellation terminal states are recorded elsewhere).
func (t *InFlightTracker) Finish(subtaskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, subtaskID)
}

// SweepStale scans for subtasks silent for more than 45s and returns those
// that should be re-enqueued (attempt < MaxAttempts) versus failed
// (attempt >= MaxAttempts).
func (t *InFlightTracker) SweepStale(now time.Time) (reenqueue, exhausted []core.Subtask) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, e := range t.running {
		if now.Sub(e.lastProgressAt) <= staleSilence {
			continue
		}
		st := e.subtask
		st.Status = core.SubtaskStale
		st.Attempt++
		delete(t.running, id)
		if st.Attempt >= MaxAttempts {
			exhausted = append(exhausted, st)
		} else {
			reenqueue = append(reenqueue, st)
		}
	}
	return reenqueue, exhausted
}
