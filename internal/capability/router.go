// Package capability routes free-form verification intents to capability
// providers. Matching is a declarative table over the closed CapabilityKind
// enum so fan-out decisions stay deterministic and statically testable.
package capability

import (
	"sort"
	"strings"

	"truthengine/internal/logging"
	"truthengine/internal/registry"
	"truthengine/internal/types"
)

// claimTypeTable maps detected claim types to the capability kinds that
// can help verify them.
var claimTypeTable = map[string][]types.CapabilityKind{
	"impersonation":       {types.CapabilityDomainIntel, types.CapabilityWebFetch},
	"credential-phishing": {types.CapabilityDomainIntel, types.CapabilityWebFetch},
	"lottery":             {types.CapabilityWebFetch},
	"financial-lure":      {types.CapabilityWebFetch},
	"payment-oddity":      {types.CapabilityWebFetch},
	"software-scam":       {types.CapabilityRepoSearch},
	"document-fraud":      {types.CapabilityFileAccess},
}

// intentTable maps intent keywords to capability kinds. Intents are
// free-form strings like "verify sender domain" or "check repository".
var intentTable = map[string]types.CapabilityKind{
	"domain":     types.CapabilityDomainIntel,
	"sender":     types.CapabilityDomainIntel,
	"website":    types.CapabilityWebFetch,
	"url":        types.CapabilityWebFetch,
	"link":       types.CapabilityWebFetch,
	"repository": types.CapabilityRepoSearch,
	"repo":       types.CapabilityRepoSearch,
	"code":       types.CapabilityRepoSearch,
	"file":       types.CapabilityFileAccess,
	"document":   types.CapabilityFileAccess,
	"attachment": types.CapabilityFileAccess,
}

// Router resolves intents and claim contexts to capability kinds backed
// by at least one registered provider.
type Router struct {
	registry *registry.Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(reg *registry.Registry) *Router {
	return &Router{registry: reg}
}

// Route returns the capability kinds matching the intent and context, in
// stable order. Only kinds with at least one registered provider are
// returned. An empty result is not an error: the planner simply skips
// capability tasks for the session.
func (r *Router) Route(intent string, claim types.ClaimContext) []types.CapabilityKind {
	matched := make(map[types.CapabilityKind]bool)

	for _, word := range strings.Fields(strings.ToLower(intent)) {
		if kind, ok := intentTable[strings.Trim(word, ".,:;")]; ok {
			matched[kind] = true
		}
	}

	for _, claimType := range claim.ClaimTypes {
		for _, kind := range claimTypeTable[claimType] {
			matched[kind] = true
		}
	}

	// Extracted documents always qualify for file inspection.
	if claim.Provenance != "" && claim.Provenance != "direct_text" {
		matched[types.CapabilityFileAccess] = true
	}

	available := r.registry.Capabilities()
	out := make([]types.CapabilityKind, 0, len(matched))
	for _, kind := range types.AllCapabilityKinds() {
		if matched[kind] && available[kind] > 0 {
			out = append(out, kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	logging.CapabilityDebug("routed intent %q to %d kinds", intent, len(out))
	return out
}
