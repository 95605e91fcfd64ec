package api

import (
	"context"
	"net/http"
	"sort"

	"coordinator-core/core"
	"coordinator-core/core/pipeline"
)

type submitRequest struct {
	Account       string              `json:"account"`
	Prompt        string              `json:"prompt"`
	Language      string              `json:"language"`
	SnapshotRef   string              `json:"snapshotRef"`
	ResourceClass core.ResourceClass  `json:"resourceClass"`
	Priority      int                 `json:"priority"`
	TimeoutMs     int64               `json:"timeoutMs"`
}

type submitResponse struct {
	TaskID       string `json:"taskId"`
	Status       core.TaskStatus `json:"status"`
	SubtaskCount int    `json:"subtaskCount"`
}

// handleSubmit implements POST /submit: validates the request, decomposes it
// via the inference collaborator, checks the resulting subtask graph for
// cycles, and admits the ready subset to the dependency tracker, per §4.D.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	sr := pipeline.SubmitRequest{
		Account: req.Account, Prompt: req.Prompt, Language: req.Language,
		SnapshotRef: req.SnapshotRef, ResourceClass: req.ResourceClass,
		Priority: req.Priority, TimeoutMs: req.TimeoutMs,
	}
	if cErr := sr.Validate(); cErr != nil {
		writeError(w, cErr)
		return
	}

	taskID := s.nextTaskID()
	task := pipeline.NewTask(taskID, sr, s.Now().UnixMilli())
	task.Status = core.TaskDecomposing
	s.putTask(&task)

	if s.Inference == nil {
		writeError(w, core.Fail(core.ErrValidationFailed, "inference collaborator not configured"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), sr.TimeoutOrDefault())
	defer cancel()
	decomposed, err := s.Inference.Decompose(ctx, task)
	if err != nil {
		task.Status = core.TaskFailed
		s.putTask(&task)
		writeError(w, core.WrapErr(core.ErrValidationFailed, err))
		return
	}

	subtasks, cErr := pipeline.ToSubtasks(taskID, decomposed)
	if cErr != nil {
		task.Status = core.TaskFailed
		s.putTask(&task)
		writeError(w, cErr)
		return
	}

	ready := s.Deps.Admit(taskID, subtasks)
	all := append([]core.Subtask{}, subtasks...)
	for i, st := range all {
		for _, rd := range ready {
			if rd.ID == st.ID {
				all[i] = rd
			}
		}
	}
	s.putSubtasks(all)

	task.Status = core.TaskQueued
	s.putTask(&task)

	tasksSubmitted.Inc()
	writeJSON(w, http.StatusCreated, submitResponse{TaskID: taskID, Status: task.Status, SubtaskCount: len(subtasks)})
}

type pullRequest struct {
	MaxItems int `json:"maxItems"`
}

type pullResponse struct {
	Offers []pipeline.AssignmentOffer `json:"offers"`
}

// handlePull implements POST /pull: ready subtasks are walked in descending
// priority, and each one for which the calling agent passes eligibility and
// power policy is offered to it, up to maxItems and its free slots.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	agentID := signedSourceFrom(r)
	var req pullRequest
	_ = decodeBody(r, &req)
	if req.MaxItems <= 0 {
		req.MaxItems = 1
	}

	if s.Blacklist != nil && s.Blacklist.IsBlacklisted(agentID) {
		writeError(w, core.Fail(core.ErrAgentSuspended, agentID))
		return
	}

	agent, ok := s.Registry.Get(agentID)
	if !ok {
		writeError(w, core.Fail(core.ErrAgentNotRegistered, agentID))
		return
	}

	now := s.Now()
	var ready []core.Subtask
	s.mu.RLock()
	for _, st := range s.subtasks {
		if st.Status == core.SubtaskReady {
			ready = append(ready, *st)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].Priority > ready[j].Priority })

	var offers []pipeline.AssignmentOffer
	for _, st := range ready {
		if len(offers) >= req.MaxItems || agent.FreeSlots <= 0 {
			break
		}
		fit := false
		for _, c := range s.candidatesForSubtask(st, now) {
			if c.Agent.AgentID == agentID {
				fit = true
				break
			}
		}
		if !fit {
			continue
		}
		offer := pipeline.MakeOffer(s.Signer, st, agentID, now)
		offers = append(offers, offer)

		st.Status = core.SubtaskOffered
		st.AssignedAgent = agentID
		st.OfferedAtMs = now.UnixMilli()
		s.updateSubtask(st)
		_ = s.Registry.Assign(agentID)
		agent.FreeSlots--
	}
	subtasksOffered.Add(float64(len(offers)))
	writeJSON(w, http.StatusOK, pullResponse{Offers: offers})
}

type resultRequest struct {
	SubtaskID string `json:"subtaskId"`
	Output    string `json:"output"`
	Envelope  *core.Envelope `json:"envelope,omitempty"`
	Progress  bool   `json:"progress"`
}

// handleResult implements POST /result: either a progress heartbeat for an
// in-flight subtask, or its final output, which releases dependent subtasks
// via the dependency tracker per §4.D.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	agentID := signedSourceFrom(r)
	if s.Blacklist != nil && s.Blacklist.IsBlacklisted(agentID) {
		writeError(w, core.Fail(core.ErrAgentSuspended, agentID))
		return
	}
	var req resultRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	st, ok := s.getSubtask(req.SubtaskID)
	if !ok {
		writeError(w, core.Fail(core.ErrTaskNotFound, req.SubtaskID))
		return
	}
	if st.AssignedAgent != agentID {
		writeError(w, core.Fail(core.ErrValidationFailed, "subtask not assigned to caller"))
		return
	}

	now := s.Now()
	if req.Progress {
		if st.Status != core.SubtaskRunning {
			st.Status = core.SubtaskRunning
		}
		s.InFlight.Progress(req.SubtaskID, now)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	output := req.Output
	if req.Envelope != nil {
		output = "<sealed>"
	}
	st.Status = core.SubtaskSucceeded
	st.Output = output
	s.updateSubtask(*st)
	s.InFlight.Finish(req.SubtaskID)
	_ = s.Registry.Release(agentID)

	released := s.Deps.Complete(req.SubtaskID, output)
	s.putSubtasks(released)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "released": len(released)})
}

type statusResponse struct {
	Task     core.Task      `json:"task"`
	Subtasks []core.Subtask `json:"subtasks"`
}

// handleStatus implements GET /status?taskId=...
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("taskId")
	task, ok := s.getTask(taskID)
	if !ok {
		writeError(w, core.Fail(core.ErrTaskNotFound, taskID))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Task: *task, Subtasks: s.taskSubtasks(taskID)})
}
