package capability

import (
	"context"
	"testing"
	"time"

	"truthengine/internal/registry"
	"truthengine/internal/types"
)

type fakeProvider struct {
	name string
	kind types.CapabilityKind
}

func (p fakeProvider) Descriptor() types.VerificationSource {
	return types.VerificationSource{
		Name:             p.name,
		Tier:             types.TierPattern,
		Reliability:      0.7,
		ExpectedDuration: time.Second,
		Kind:             types.SourceCapability,
		Capability:       p.kind,
	}
}

func (p fakeProvider) Check(context.Context, types.ClaimContext, map[string]string) (*types.TaskResult, error) {
	return &types.TaskResult{SourceName: p.name, Status: types.TaskCompleted}, nil
}

func (p fakeProvider) Kind() types.CapabilityKind { return p.kind }

func newTestRouter(t *testing.T, kinds ...types.CapabilityKind) *Router {
	t.Helper()
	reg := registry.New()
	for i, kind := range kinds {
		p := fakeProvider{name: string(kind) + "_" + string(rune('a'+i)), kind: kind}
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	reg.Seal()
	return NewRouter(reg)
}

func TestRouteByClaimType(t *testing.T) {
	router := newTestRouter(t, types.CapabilityDomainIntel, types.CapabilityWebFetch)

	kinds := router.Route("", types.ClaimContext{ClaimTypes: []string{"impersonation"}})

	if len(kinds) != 2 {
		t.Fatalf("Route() = %v, want 2 kinds", kinds)
	}
	want := map[types.CapabilityKind]bool{
		types.CapabilityDomainIntel: true,
		types.CapabilityWebFetch:    true,
	}
	for _, k := range kinds {
		if !want[k] {
			t.Fatalf("unexpected kind %s", k)
		}
	}
}

func TestRouteByIntentKeywords(t *testing.T) {
	router := newTestRouter(t, types.CapabilityRepoSearch)

	cases := []struct {
		intent string
		want   int
	}{
		{"check the repository for this package", 1},
		{"inspect repo history", 1},
		{"verify this claim", 0},
	}
	for _, tc := range cases {
		t.Run(tc.intent, func(t *testing.T) {
			if got := router.Route(tc.intent, types.ClaimContext{}); len(got) != tc.want {
				t.Fatalf("Route(%q) = %v, want %d kinds", tc.intent, got, tc.want)
			}
		})
	}
}

func TestRouteUnmatchedReturnsEmptySet(t *testing.T) {
	router := newTestRouter(t, types.CapabilityWebFetch)

	kinds := router.Route("nothing relevant", types.ClaimContext{ClaimTypes: []string{"unknown-type"}})
	if len(kinds) != 0 {
		t.Fatalf("Route() = %v, want empty set (not an error)", kinds)
	}
}

func TestRouteFiltersUnbackedKinds(t *testing.T) {
	// Only a repo_search provider is registered; domain/web matches must drop out.
	router := newTestRouter(t, types.CapabilityRepoSearch)

	kinds := router.Route("check sender domain and website", types.ClaimContext{
		ClaimTypes: []string{"impersonation"},
	})
	if len(kinds) != 0 {
		t.Fatalf("Route() = %v, want empty: matched kinds have no providers", kinds)
	}
}

func TestRouteExtractedDocumentAddsFileAccess(t *testing.T) {
	router := newTestRouter(t, types.CapabilityFileAccess)

	kinds := router.Route("", types.ClaimContext{Provenance: "invoice.png"})
	if len(kinds) != 1 || kinds[0] != types.CapabilityFileAccess {
		t.Fatalf("Route() = %v, want [file_access]", kinds)
	}

	kinds = router.Route("", types.ClaimContext{Provenance: "direct_text"})
	if len(kinds) != 0 {
		t.Fatalf("Route() = %v, want empty for direct text", kinds)
	}
}

func TestRouteDeterministicOrder(t *testing.T) {
	router := newTestRouter(t,
		types.CapabilityWebFetch, types.CapabilityDomainIntel, types.CapabilityFileAccess)

	claim := types.ClaimContext{
		ClaimTypes: []string{"impersonation", "document-fraud"},
	}

	first := router.Route("", claim)
	for i := 0; i < 10; i++ {
		again := router.Route("", claim)
		if len(again) != len(first) {
			t.Fatalf("nondeterministic length: %v vs %v", again, first)
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("nondeterministic order: %v vs %v", again, first)
			}
		}
	}
}
