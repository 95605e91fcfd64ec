package pipeline

import (
	"crypto/ed25519"
	"testing"
	"time"

	"coordinator-core/core"
)

func approvedHealthyAgent(id string, freeSlots int) Candidate {
	return Candidate{
		Agent: core.Agent{
			AgentID:    id,
			Approval:   core.ApprovalApproved,
			FreeSlots:  freeSlots,
			Capability: core.Capability{Languages: []string{"go"}},
			OS:         core.OSLinux,
			Power:      core.PowerTelemetry{DeviceClass: core.DeviceDesktop, OnExternalPower: true},
		},
		Health: core.HealthHealthy,
	}
}

func TestEligibleFiltersApprovalAndHealth(t *testing.T) {
	candidates := []Candidate{
		approvedHealthyAgent("a", 1),
		{Agent: core.Agent{AgentID: "b", Approval: core.ApprovalPending}, Health: core.HealthHealthy},
		{Agent: core.Agent{AgentID: "c", Approval: core.ApprovalApproved}, Health: core.HealthOffline},
	}
	out := Eligible(candidates, core.Subtask{}, ProjectPolicy{})
	if len(out) != 1 || out[0].Agent.AgentID != "a" {
		t.Fatalf("expected only approved+healthy agent a, got %+v", out)
	}
}

func TestEligibleFiltersSandboxPolicy(t *testing.T) {
	c := approvedHealthyAgent("a", 1)
	c.Agent.Capability.Sandbox = core.SandboxNone
	out := Eligible([]Candidate{c}, core.Subtask{}, ProjectPolicy{AllowedSandboxModes: map[core.SandboxMode]bool{core.SandboxContainer: true}})
	if len(out) != 0 {
		t.Fatalf("expected sandbox mode mismatch to be excluded, got %+v", out)
	}
}

func TestApplyPowerPolicyExcludesThrottledAgents(t *testing.T) {
	now := time.Now()
	blocked := approvedHealthyAgent("blocked", 1)
	blocked.Agent.Power = core.PowerTelemetry{DeviceClass: core.DeviceLaptop, Thermal: core.ThermalCritical}
	allowed := approvedHealthyAgent("allowed", 1)

	out := ApplyPowerPolicy([]Candidate{blocked, allowed}, now)
	if len(out) != 1 || out[0].Agent.AgentID != "allowed" {
		t.Fatalf("expected only the allowed agent to survive power policy, got %+v", out)
	}
}

func TestRankOrdersByFreeSlotsThenScoreThenLastAssignedThenID(t *testing.T) {
	a := core.Agent{AgentID: "a", FreeSlots: 1, Score: 5, LastAssignedAtMs: 100}
	b := core.Agent{AgentID: "b", FreeSlots: 2, Score: 1, LastAssignedAtMs: 200}
	c := core.Agent{AgentID: "c", FreeSlots: 2, Score: 1, LastAssignedAtMs: 50}
	d := core.Agent{AgentID: "d", FreeSlots: 2, Score: 9, LastAssignedAtMs: 50}

	out := Rank([]Candidate{{Agent: a}, {Agent: b}, {Agent: c}, {Agent: d}})
	order := []string{out[0].Agent.AgentID, out[1].Agent.AgentID, out[2].Agent.AgentID, out[3].Agent.AgentID}
	want := []string{"d", "c", "b", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected rank order %v, got %v", want, order)
		}
	}
}

func TestMakeOfferAndVerifyOfferRoundTrip(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	st := core.Subtask{ID: "t:a", Input: "do it", TimeoutMs: 1000}
	now := time.Now()

	offer := MakeOffer(priv, st, "agent-1", now)
	if !VerifyOffer(pub, offer) {
		t.Fatal("expected offer signature to verify")
	}

	tampered := offer
	tampered.Input = "do something else"
	if VerifyOffer(pub, tampered) {
		t.Fatal("expected tampered offer to fail verification")
	}
}

func TestLapsedBoundary(t *testing.T) {
	now := time.Now()
	atLimit := AssignmentOffer{OfferedAtMs: now.Add(-OfferAckWindow).UnixMilli()}
	if Lapsed(atLimit, now) {
		t.Fatal("expected offer exactly at OfferAckWindow to not be lapsed")
	}
	over := AssignmentOffer{OfferedAtMs: now.Add(-OfferAckWindow - time.Millisecond).UnixMilli()}
	if !Lapsed(over, now) {
		t.Fatal("expected offer past OfferAckWindow to be lapsed")
	}
}
