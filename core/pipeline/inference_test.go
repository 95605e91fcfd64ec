package pipeline

import (
	"context"
	"errors"
	"testing"

	"coordinator-core/core"
)

func TestToSubtasksRemapsIDsAndDependencies(t *testing.T) {
	decomposed := []DecomposedSubtask{
		{LocalID: "1", Kind: core.SubtaskSingleStep, Input: "step one"},
		{LocalID: "2", Kind: core.SubtaskSingleStep, Input: "step two", DependsOn: []string{"1"}},
	}
	out, err := ToSubtasks("task-1", decomposed)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if out[0].ID != "task-1:1" || out[1].ID != "task-1:2" {
		t.Fatalf("expected ids remapped with taskID prefix, got %+v", out)
	}
	if len(out[1].DependsOn) != 1 || out[1].DependsOn[0] != "task-1:1" {
		t.Fatalf("expected dependency remapped too, got %+v", out[1].DependsOn)
	}
}

func TestToSubtasksRejectsMissingDependency(t *testing.T) {
	decomposed := []DecomposedSubtask{
		{LocalID: "1", DependsOn: []string{"ghost"}},
	}
	_, err := ToSubtasks("task-1", decomposed)
	if err == nil || err.Code != core.ErrInvalidSubtaskGraph {
		t.Fatalf("expected invalid_subtask_graph, got %+v", err)
	}
}

func TestToSubtasksRejectsCycle(t *testing.T) {
	decomposed := []DecomposedSubtask{
		{LocalID: "1", DependsOn: []string{"2"}},
		{LocalID: "2", DependsOn: []string{"1"}},
	}
	_, err := ToSubtasks("task-1", decomposed)
	if err == nil || err.Code != core.ErrInvalidSubtaskGraph {
		t.Fatalf("expected invalid_subtask_graph for cycle, got %+v", err)
	}
}

func TestStaticInferenceReturnsConfiguredSubtasks(t *testing.T) {
	si := &StaticInference{Subtasks: []DecomposedSubtask{{LocalID: "1", Input: "x"}}}
	out, err := si.Decompose(context.Background(), core.Task{})
	if err != nil || len(out) != 1 {
		t.Fatalf("expected one configured subtask, got %+v / %v", out, err)
	}
}

func TestStaticInferencePropagatesError(t *testing.T) {
	want := errors.New("boom")
	si := &StaticInference{Err: want}
	_, err := si.Decompose(context.Background(), core.Task{})
	if err != want {
		t.Fatalf("expected configured error, got %v", err)
	}
}
