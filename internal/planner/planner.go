// Package planner classifies incoming claims and turns them into ordered
// verification plans over the source registry and capability router.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"truthengine/internal/capability"
	"truthengine/internal/logging"
	"truthengine/internal/registry"
	"truthengine/internal/types"
)

// Planner builds verification plans. Plans are deterministic given the
// same claim context and registry state, and are frozen before execution:
// the engine never mutates task ordering.
type Planner struct {
	registry *registry.Registry
	router   *capability.Router
}

// New creates a planner over the given registry and router.
func New(reg *registry.Registry, router *capability.Router) *Planner {
	return &Planner{registry: reg, router: router}
}

// Plan produces the ordered task list for a claim: every applicable
// traditional source, plus one task per capability provider for each
// routed kind. Ordering is ascending trust tier (higher trust first),
// ties broken by ascending expected duration (cheapest first).
func (p *Planner) Plan(claim types.ClaimContext) []types.PlannedTask {
	var tasks []types.PlannedTask

	for _, src := range p.registry.Traditional() {
		desc := src.Descriptor()
		tasks = append(tasks, types.PlannedTask{
			Source:   desc,
			Priority: priorityFor(desc.Tier),
		})
	}

	intent := routingIntent(claim)
	for _, kind := range p.router.Route(intent, claim) {
		for _, provider := range p.registry.Providers(kind) {
			desc := provider.Descriptor()
			tasks = append(tasks, types.PlannedTask{
				Source:   desc,
				Priority: priorityFor(desc.Tier),
				Params: map[string]string{
					"capability": string(kind),
					"intent":     intent,
				},
			})
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Source.Tier != tasks[j].Source.Tier {
			return tasks[i].Source.Tier < tasks[j].Source.Tier
		}
		return tasks[i].Source.ExpectedDuration < tasks[j].Source.ExpectedDuration
	})

	// IDs are positional so identical contexts yield identical plans.
	for i := range tasks {
		tasks[i].ID = fmt.Sprintf("task-%02d-%s", i, tasks[i].Source.Name)
	}

	logging.Planner("planned %d tasks for claim (%d types, %d entities)",
		len(tasks), len(claim.ClaimTypes), len(claim.Entities))

	return tasks
}

// priorityFor maps tiers to descending priorities (tier 1 runs hottest).
func priorityFor(tier types.TrustTier) int {
	return int(types.TierBehavioral) - int(tier) + 1
}

// routingIntent condenses the claim into a free-form intent string for
// the capability router's keyword matching.
func routingIntent(claim types.ClaimContext) string {
	parts := append([]string{}, claim.ClaimTypes...)
	parts = append(parts, claim.Entities...)
	return strings.ToLower(strings.Join(parts, " "))
}
