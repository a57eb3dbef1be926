package sources

import (
	"fmt"

	"golang.org/x/time/rate"

	"truthengine/internal/config"
	"truthengine/internal/registry"
	"truthengine/internal/types"
)

// RegisterDefaults registers every built-in source and capability
// provider into the registry. The registry stays open so deployments can
// add their own sources before sealing.
func RegisterDefaults(reg *registry.Registry, cfg *config.Config) error {
	limit := rate.Limit(cfg.Capability.ProviderRate)
	burst := cfg.Capability.ProviderBurst

	for _, s := range []types.Source{
		NewRegulatoryCheck(),
		NewFTCComplaints(),
		NewScamTracker(),
		NewPatternAnalysis(),
		NewBehavioralHeuristics(),
		NewDomainIntelProvider(limit, burst),
		NewWebFetchProvider(limit, burst),
		NewRepoSearchProvider(limit, burst),
		NewFileAccessProvider(limit, burst),
	} {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("register %s: %w", s.Descriptor().Name, err)
		}
	}
	return nil
}
