package planner

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"truthengine/internal/capability"
	"truthengine/internal/registry"
	"truthengine/internal/types"
)

type fakeSource struct {
	desc types.VerificationSource
}

func (s fakeSource) Descriptor() types.VerificationSource { return s.desc }

func (s fakeSource) Check(context.Context, types.ClaimContext, map[string]string) (*types.TaskResult, error) {
	return &types.TaskResult{SourceName: s.desc.Name, Status: types.TaskCompleted}, nil
}

type fakeCapProvider struct {
	fakeSource
	kind types.CapabilityKind
}

func (p fakeCapProvider) Kind() types.CapabilityKind { return p.kind }

func newFixture(t *testing.T) *Planner {
	t.Helper()
	reg := registry.New()

	sources := []fakeSource{
		{desc: types.VerificationSource{
			Name: "regulatory_check", Tier: types.TierRegulatory, Reliability: 1.0,
			ExpectedDuration: 2 * time.Second, Kind: types.SourceTraditional,
		}},
		{desc: types.VerificationSource{
			Name: "complaint_db", Tier: types.TierComplaintDB, Reliability: 0.9,
			ExpectedDuration: 3 * time.Second, Kind: types.SourceTraditional,
		}},
		{desc: types.VerificationSource{
			Name: "pattern_analysis", Tier: types.TierPattern, Reliability: 0.85,
			ExpectedDuration: time.Second, Kind: types.SourceTraditional,
		}},
		{desc: types.VerificationSource{
			Name: "behavioral_heuristics", Tier: types.TierBehavioral, Reliability: 0.6,
			ExpectedDuration: time.Second, Kind: types.SourceTraditional,
		}},
	}
	for _, s := range sources {
		if err := reg.Register(s); err != nil {
			t.Fatalf("Register(%s): %v", s.desc.Name, err)
		}
	}

	providers := []fakeCapProvider{
		{fakeSource{types.VerificationSource{
			Name: "domain_lookup", Tier: types.TierPattern, Reliability: 0.8,
			ExpectedDuration: 4 * time.Second, Kind: types.SourceCapability,
			Capability: types.CapabilityDomainIntel,
		}}, types.CapabilityDomainIntel},
		{fakeSource{types.VerificationSource{
			Name: "web_fetcher", Tier: types.TierPattern, Reliability: 0.75,
			ExpectedDuration: 5 * time.Second, Kind: types.SourceCapability,
			Capability: types.CapabilityWebFetch,
		}}, types.CapabilityWebFetch},
	}
	for _, p := range providers {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", p.desc.Name, err)
		}
	}
	reg.Seal()

	return New(reg, capability.NewRouter(reg))
}

func TestClassify(t *testing.T) {
	claim := Classify("IRS refund email from gmail.com with urgent deadline", "", 1.0)

	wantTypes := []string{"financial-lure", "impersonation", "urgency"}
	if diff := cmp.Diff(wantTypes, claim.ClaimTypes); diff != "" {
		t.Fatalf("ClaimTypes mismatch (-want +got):\n%s", diff)
	}

	if claim.Provenance != "direct_text" {
		t.Fatalf("Provenance = %q", claim.Provenance)
	}
	if len(claim.Entities) == 0 {
		t.Fatal("expected IRS and gmail.com entities")
	}
	foundAgency, foundDomain := false, false
	for _, e := range claim.Entities {
		if e == "IRS" {
			foundAgency = true
		}
		if e == "gmail.com" {
			foundDomain = true
		}
	}
	if !foundAgency || !foundDomain {
		t.Fatalf("Entities = %v, want IRS and gmail.com", claim.Entities)
	}
	if len(claim.TemporalHints) == 0 {
		t.Fatalf("TemporalHints empty, want deadline hint")
	}
	if claim.DetectionStrategy != "keyword" {
		t.Fatalf("DetectionStrategy = %q", claim.DetectionStrategy)
	}
}

func TestClassifyAttachmentLure(t *testing.T) {
	claim := Classify("Please see attached invoice and enable macros to view it.", "", 1.0)

	found := false
	for _, ct := range claim.ClaimTypes {
		if ct == "document-fraud" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ClaimTypes = %v, want document-fraud", claim.ClaimTypes)
	}
}

func TestClassifyCleanText(t *testing.T) {
	claim := Classify("Lunch at noon on Friday?", "", 1.0)
	if len(claim.ClaimTypes) != 0 {
		t.Fatalf("ClaimTypes = %v, want none", claim.ClaimTypes)
	}
}

func TestPlanOrdering(t *testing.T) {
	p := newFixture(t)
	claim := Classify("IRS refund email from gmail.com with urgent deadline", "", 1.0)

	plan := p.Plan(claim)
	if len(plan) == 0 {
		t.Fatal("empty plan")
	}

	// Ascending tier; ties broken by ascending expected duration.
	for i := 1; i < len(plan); i++ {
		prev, cur := plan[i-1].Source, plan[i].Source
		if prev.Tier > cur.Tier {
			t.Fatalf("tier order violated at %d: %s(t%d) before %s(t%d)",
				i, prev.Name, prev.Tier, cur.Name, cur.Tier)
		}
		if prev.Tier == cur.Tier && prev.ExpectedDuration > cur.ExpectedDuration {
			t.Fatalf("duration tiebreak violated at %d: %s before %s", i, prev.Name, cur.Name)
		}
	}

	if plan[0].Source.Name != "regulatory_check" {
		t.Fatalf("plan[0] = %s, want regulatory_check", plan[0].Source.Name)
	}
}

func TestPlanIncludesAllTraditionalSources(t *testing.T) {
	p := newFixture(t)
	plan := p.Plan(Classify("completely benign note", "", 1.0))

	names := make(map[string]bool)
	for _, task := range plan {
		names[task.Source.Name] = true
	}
	for _, want := range []string{"regulatory_check", "complaint_db", "pattern_analysis", "behavioral_heuristics"} {
		if !names[want] {
			t.Fatalf("traditional source %s missing from plan", want)
		}
	}
}

func TestPlanSkipsCapabilitiesWhenRouterReturnsNothing(t *testing.T) {
	p := newFixture(t)
	plan := p.Plan(Classify("completely benign note", "", 1.0))

	for _, task := range plan {
		if task.Source.Kind == types.SourceCapability {
			t.Fatalf("unexpected capability task %s for unroutable claim", task.Source.Name)
		}
	}
}

func TestPlanAddsCapabilityTasksForRoutedKinds(t *testing.T) {
	p := newFixture(t)
	claim := Classify("IRS refund email from gmail.com with urgent deadline", "", 1.0)

	plan := p.Plan(claim)
	var capTasks []string
	for _, task := range plan {
		if task.Source.Kind == types.SourceCapability {
			capTasks = append(capTasks, task.Source.Name)
			if task.Params["capability"] == "" {
				t.Fatalf("capability task %s missing capability param", task.Source.Name)
			}
		}
	}
	if len(capTasks) != 2 {
		t.Fatalf("capability tasks = %v, want domain_lookup and web_fetcher", capTasks)
	}
}

func TestPlanDeterministic(t *testing.T) {
	p := newFixture(t)
	claim := Classify("IRS refund email from gmail.com with urgent deadline", "", 1.0)

	first := p.Plan(claim)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, p.Plan(claim)); diff != "" {
			t.Fatalf("plan not deterministic (-first +again):\n%s", diff)
		}
	}
}
