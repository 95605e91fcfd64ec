package pipeline

import "coordinator-core/core"

type color int

const (
	white color = iota
	gray
	black
)

// CheckAcyclic runs DFS with three-colour marking over the dependsOn edges of
// subtasks, per §4.D. A reference to a subtask id not present in subtasks is
// also treated as invalid_subtask_graph per §9's open-question resolution.
func CheckAcyclic(subtasks []core.Subtask) *core.CoordError {
	byID := make(map[string]core.Subtask, len(subtasks))
	for _, st := range subtasks {
		byID[st.ID] = st
	}

	colors := make(map[string]color, len(subtasks))
	var visit func(id string) *core.CoordError
	visit = func(id string) *core.CoordError {
		switch colors[id] {
		case gray:
			return core.Fail(core.ErrInvalidSubtaskGraph, "cycle detected at "+id)
		case black:
			return nil
		}
		colors[id] = gray
		st, ok := byID[id]
		if !ok {
			return core.Fail(core.ErrInvalidSubtaskGraph, "missing subtask id "+id)
		}
		for _, dep := range st.DependsOn {
			if _, ok := byID[dep]; !ok {
				return core.Fail(core.ErrInvalidSubtaskGraph, "dependency references missing subtask "+dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[id] = black
		return nil
	}

	for _, st := range subtasks {
		if colors[st.ID] == white {
			if err := visit(st.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
