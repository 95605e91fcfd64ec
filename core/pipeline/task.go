package pipeline

import (
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"coordinator-core/core"
)

// defaultDecomposeTimeout bounds how long Decompose may run when a request
// didn't specify one.
const defaultDecomposeTimeout = 30 * time.Second

// TimeoutOrDefault returns r.TimeoutMs as a duration, or defaultDecomposeTimeout
// if unset.
func (r SubmitRequest) TimeoutOrDefault() time.Duration {
	if r.TimeoutMs <= 0 {
		return defaultDecomposeTimeout
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// ValidateSnapshotRef enforces the frozen-snapshot invariant: a 40-char hex
// commit hash or an HTTPS tarball URL.
func ValidateSnapshotRef(ref string) *core.CoordError {
	if len(ref) == 40 {
		if _, err := hex.DecodeString(ref); err == nil {
			return nil
		}
	}
	u, err := url.Parse(ref)
	if err == nil && u.Scheme == "https" && u.Host != "" {
		return nil
	}
	return core.Fail(core.ErrBadSnapshotRef, ref)
}

// SubmitRequest is the validated input to Submit.
type SubmitRequest struct {
	Account       string
	Prompt        string
	Language      string
	SnapshotRef   string
	ResourceClass core.ResourceClass
	Priority      int
	TimeoutMs     int64
}

// Validate runs schema validation on a submit request, per §4.D ingestion.
func (r SubmitRequest) Validate() *core.CoordError {
	if strings.TrimSpace(r.Prompt) == "" {
		return core.Fail(core.ErrValidationFailed, "prompt is required")
	}
	if r.ResourceClass != core.ResourceCPU && r.ResourceClass != core.ResourceGPU {
		return core.Fail(core.ErrValidationFailed, "resourceClass must be cpu or gpu")
	}
	if r.Priority < 0 || r.Priority > 100 {
		return core.Fail(core.ErrValidationFailed, "priority must be 0-100")
	}
	if err := ValidateSnapshotRef(r.SnapshotRef); err != nil {
		return err
	}
	return nil
}

// NewTask builds a Task row from a validated submit request.
func NewTask(taskID string, r SubmitRequest, submittedAtMs int64) core.Task {
	return core.Task{
		TaskID:        taskID,
		Account:       r.Account,
		Prompt:        r.Prompt,
		Language:      r.Language,
		SnapshotRef:   r.SnapshotRef,
		ResourceClass: r.ResourceClass,
		Priority:      r.Priority,
		TimeoutMs:     r.TimeoutMs,
		SubmittedAtMs: submittedAtMs,
		Status:        core.TaskSubmitted,
		Fingerprint:   core.Fingerprint(r.Prompt, r.SnapshotRef, r.Language),
	}
}
