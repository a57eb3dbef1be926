package types

import (
	"context"
)

// Source is the uniform interface every verification source implements,
// traditional checks and capability providers alike. Concrete external
// integrations (scrapers, registries, databases) plug in behind it.
type Source interface {
	// Descriptor returns the static registry entry for this source.
	Descriptor() VerificationSource

	// Check verifies the claim and returns a terminal result. A non-nil
	// error marks the task failed; it never aborts sibling tasks.
	Check(ctx context.Context, claim ClaimContext, params map[string]string) (*TaskResult, error)
}

// CapabilityProvider is an external integration offering one named
// capability. A provider may fan out to multiple backing services and
// surface each as a SubResult on its TaskResult.
type CapabilityProvider interface {
	Source

	// Kind returns the capability tag this provider serves.
	Kind() CapabilityKind
}
