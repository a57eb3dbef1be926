package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"truthengine/internal/types"
)

type stubSource struct {
	desc types.VerificationSource
}

func (s stubSource) Descriptor() types.VerificationSource { return s.desc }

func (s stubSource) Check(context.Context, types.ClaimContext, map[string]string) (*types.TaskResult, error) {
	return &types.TaskResult{SourceName: s.desc.Name, Status: types.TaskCompleted}, nil
}

type stubProvider struct {
	stubSource
	kind types.CapabilityKind
}

func (p stubProvider) Kind() types.CapabilityKind { return p.kind }

func traditional(name string, tier types.TrustTier) stubSource {
	return stubSource{desc: types.VerificationSource{
		Name:             name,
		Tier:             tier,
		Reliability:      0.8,
		ExpectedDuration: time.Second,
		Kind:             types.SourceTraditional,
	}}
}

func provider(name string, kind types.CapabilityKind) stubProvider {
	return stubProvider{
		stubSource: stubSource{desc: types.VerificationSource{
			Name:             name,
			Tier:             types.TierPattern,
			Reliability:      0.7,
			ExpectedDuration: 2 * time.Second,
			Kind:             types.SourceCapability,
			Capability:       kind,
		}},
		kind: kind,
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	if err := r.Register(traditional("regulatory_check", types.TierRegulatory)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	src, err := r.Get("regulatory_check")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if src.Descriptor().Tier != types.TierRegulatory {
		t.Fatalf("unexpected descriptor: %#v", src.Descriptor())
	}
}

func TestGetUnregistered(t *testing.T) {
	r := New()
	_, err := r.Get("missing")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := New()

	if err := r.Register(stubSource{}); err == nil {
		t.Fatal("nameless source should be rejected")
	}
	if err := r.Register(traditional("bad_tier", types.TrustTier(7))); err == nil {
		t.Fatal("invalid tier should be rejected")
	}

	if err := r.Register(traditional("dup", types.TierPattern)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(traditional("dup", types.TierPattern)); err == nil {
		t.Fatal("duplicate name should be rejected")
	}
}

func TestSealBlocksRegistration(t *testing.T) {
	r := New()
	r.Seal()
	if err := r.Register(traditional("late", types.TierPattern)); err == nil {
		t.Fatal("registration after Seal should fail")
	}
}

func TestCapabilityFanOutIndexing(t *testing.T) {
	r := New()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	must(r.Register(provider("fetcher_a", types.CapabilityWebFetch)))
	must(r.Register(provider("fetcher_b", types.CapabilityWebFetch)))
	must(r.Register(provider("repo_search", types.CapabilityRepoSearch)))
	must(r.Register(traditional("patterns", types.TierPattern)))

	caps := r.Capabilities()
	if caps[types.CapabilityWebFetch] != 2 {
		t.Fatalf("web_fetch providers = %d, want 2", caps[types.CapabilityWebFetch])
	}
	if caps[types.CapabilityRepoSearch] != 1 {
		t.Fatalf("repo_search providers = %d, want 1", caps[types.CapabilityRepoSearch])
	}

	// All providers of a kind are surfaced, not just the first.
	if got := len(r.Providers(types.CapabilityWebFetch)); got != 2 {
		t.Fatalf("Providers(web_fetch) = %d, want 2", got)
	}

	// Traditional listing excludes providers and is name-sorted.
	trad := r.Traditional()
	if len(trad) != 1 || trad[0].Descriptor().Name != "patterns" {
		t.Fatalf("Traditional() unexpected: %d entries", len(trad))
	}

	list := r.List()
	if len(list) != 4 {
		t.Fatalf("List() = %d entries, want 4", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("List() not sorted: %s > %s", list[i-1].Name, list[i].Name)
		}
	}
}
