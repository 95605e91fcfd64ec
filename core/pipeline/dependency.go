package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"coordinator-core/core"
)

// DependencyTracker holds subtasks with unsatisfied dependencies and releases
// them as their dependencies complete, per §4.D.
type DependencyTracker struct {
	mu        sync.Mutex
	pending   map[string]core.Subtask   // subtaskId -> subtask, deps not all done
	outputs   map[string]string         // subtaskId -> completed output
	order     map[string][]string       // taskId -> ordered subtask ids (for numbering in context)
}

// NewDependencyTracker constructs an empty tracker.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		pending: make(map[string]core.Subtask),
		outputs: make(map[string]string),
		order:   make(map[string][]string),
	}
}

// Admit registers a task's subtask set after CheckAcyclic has passed. Subtasks
// with no dependencies are returned as immediately ready; the rest are held
// pending.
func (t *DependencyTracker) Admit(taskID string, subtasks []core.Subtask) (ready []core.Subtask) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(subtasks))
	for _, st := range subtasks {
		ids = append(ids, st.ID)
	}
	sort.Strings(ids)
	t.order[taskID] = ids

	for _, st := range subtasks {
		if len(st.DependsOn) == 0 {
			st.Status = core.SubtaskReady
			ready = append(ready, st)
			continue
		}
		st.Status = core.SubtaskPending
		t.pending[st.ID] = st
	}
	return ready
}

// Complete records subtaskId's output and releases any pending subtasks whose
// entire dependsOn set is now satisfied, rewriting their input to prepend the
// context block. Releases proceed transitively in a single pass, per §4.D,
// and are returned sorted by subtask id for deterministic ordering per §5.
func (t *DependencyTracker) Complete(subtaskID, output string) (released []core.Subtask) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.outputs[subtaskID] = output

	changed := true
	for changed {
		changed = false
		var newlyReady []string
		for id, st := range t.pending {
			if t.allDepsSatisfied(st) {
				newlyReady = append(newlyReady, id)
			}
		}
		sort.Strings(newlyReady)
		for _, id := range newlyReady {
			st := t.pending[id]
			st.Input = t.withContext(st)
			st.Status = core.SubtaskReady
			released = append(released, st)
			delete(t.pending, id)
			changed = true
		}
	}
	return released
}

func (t *DependencyTracker) allDepsSatisfied(st core.Subtask) bool {
	for _, dep := range st.DependsOn {
		if _, ok := t.outputs[dep]; !ok {
			return false
		}
	}
	return true
}

// withContext rewrites a subtask's input to prepend prior results, per §4.D's
// exact format.
func (t *DependencyTracker) withContext(st core.Subtask) string {
	var b strings.Builder
	b.WriteString("[Context from previous subtasks]\n")
	for i, dep := range st.DependsOn {
		fmt.Fprintf(&b, "Subtask %d result: %s\n", i+1, t.outputs[dep])
	}
	b.WriteString("\n[Your task]\n")
	b.WriteString(st.Input)
	return b.String()
}

// Cancel removes all pending subtasks for a task and returns their ids.
// Subtasks already released as ready are not held here and are not affected.
func (t *DependencyTracker) Cancel(taskID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cancelled []string
	for _, id := range t.order[taskID] {
		if _, ok := t.pending[id]; ok {
			delete(t.pending, id)
			cancelled = append(cancelled, id)
		}
	}
	return cancelled
}
