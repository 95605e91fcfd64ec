package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coordinator-core/core"
)

// DecomposedSubtask is one subtask as returned by the inference service,
// prior to being assigned a coordinator-local id.
type DecomposedSubtask struct {
	LocalID       string              `json:"id"`
	Kind          core.SubtaskKind    `json:"kind"`
	Input         string              `json:"input"`
	TimeoutMs     int64               `json:"timeoutMs"`
	DependsOn     []string            `json:"dependsOn"`
	ResourceClass core.ResourceClass  `json:"resourceClass"`
	Priority      int                 `json:"priority"`
}

// Inference is the external collaborator that decomposes a task prompt into
// subtasks. It is out of scope per spec §1 and reached only through this
// interface, per §9's redesign guidance ("dynamic dispatch over handler
// objects -> explicit interface for each collaborator").
type Inference interface {
	Decompose(ctx context.Context, task core.Task) ([]DecomposedSubtask, error)
}

// HTTPInference calls a remote inference service over HTTP.
type HTTPInference struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPInference constructs an HTTPInference client with a bounded
// deadline-aware http.Client, matching §5's "every outbound RPC carries an
// explicit deadline" requirement.
func NewHTTPInference(endpoint string) *HTTPInference {
	return &HTTPInference{Endpoint: endpoint, Client: &http.Client{Timeout: 30 * time.Second}}
}

type decomposeRequest struct {
	Prompt      string `json:"prompt"`
	Language    string `json:"language"`
	SnapshotRef string `json:"snapshotRef"`
}

type decomposeResponse struct {
	Subtasks []DecomposedSubtask `json:"subtasks"`
}

// Decompose implements Inference.
func (h *HTTPInference) Decompose(ctx context.Context, task core.Task) ([]DecomposedSubtask, error) {
	body, err := json.Marshal(decomposeRequest{Prompt: task.Prompt, Language: task.Language, SnapshotRef: task.SnapshotRef})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	var out decomposeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	return out.Subtasks, nil
}

// StaticInference is a test/mock implementation returning a fixed response.
type StaticInference struct {
	Subtasks []DecomposedSubtask
	Err      error
}

// Decompose implements Inference.
func (s *StaticInference) Decompose(ctx context.Context, task core.Task) ([]DecomposedSubtask, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Subtasks, nil
}

// ToSubtasks assigns coordinator-local ids (taskID:localID) and validates
// the graph before returning materialized Subtask rows.
func ToSubtasks(taskID string, decomposed []DecomposedSubtask) ([]core.Subtask, *core.CoordError) {
	out := make([]core.Subtask, 0, len(decomposed))
	remap := make(map[string]string, len(decomposed))
	for _, d := range decomposed {
		remap[d.LocalID] = taskID + ":" + d.LocalID
	}
	for _, d := range decomposed {
		deps := make([]string, 0, len(d.DependsOn))
		for _, dep := range d.DependsOn {
			mapped, ok := remap[dep]
			if !ok {
				return nil, core.Fail(core.ErrInvalidSubtaskGraph, "dependency references missing subtask "+dep)
			}
			deps = append(deps, mapped)
		}
		out = append(out, core.Subtask{
			ID:            remap[d.LocalID],
			TaskID:        taskID,
			Kind:          d.Kind,
			Input:         d.Input,
			TimeoutMs:     d.TimeoutMs,
			DependsOn:     deps,
			ResourceClass: d.ResourceClass,
			Priority:      d.Priority,
			Status:        core.SubtaskPending,
		})
	}
	if err := CheckAcyclic(out); err != nil {
		return nil, err
	}
	return out, nil
}
