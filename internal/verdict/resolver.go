// Package verdict resolves task results into a verdict record using the
// strict trust-tier hierarchy: Tier 1 > Tier 2 > Tier 3 > Tier 4. A
// higher tier's definitive signal always wins; lower-tier results stay
// visible in evidence but never override it.
package verdict

import (
	"fmt"
	"sort"

	"truthengine/internal/config"
	"truthengine/internal/logging"
	"truthengine/internal/types"
)

// Resolver applies the tier cascade to whatever results are available.
// It is re-invoked on every tier-relevant task completion until a
// definitive (Tier-1) record short-circuits further recomputation.
type Resolver struct {
	tier2MinAgreement  int
	tier3MinPatterns   int
	tier4MinIndicators int
	inconclusiveFloor  float64
	extractionFloor    float64
}

// New creates a resolver from the loaded configuration.
func New(cfg *config.Config) *Resolver {
	return &Resolver{
		tier2MinAgreement:  cfg.Verdict.Tier2MinAgreement,
		tier3MinPatterns:   cfg.Verdict.Tier3MinPatterns,
		tier4MinIndicators: cfg.Verdict.Tier4MinIndicators,
		inconclusiveFloor:  cfg.Verdict.InconclusiveFloor,
		extractionFloor:    cfg.Extraction.MinConfidence,
	}
}

// Resolve walks the tier cascade over the completed results. The final
// confidence is attenuated by the upstream extraction confidence (capped
// at 1.0): an unreliable extraction weakens every tier's output.
func (r *Resolver) Resolve(results []types.TaskResult, extractionConfidence float64) types.VerdictRecord {
	completed := make([]types.TaskResult, 0, len(results))
	for _, res := range results {
		if res.Status == types.TaskCompleted {
			completed = append(completed, res)
		}
	}

	record := r.cascade(completed, extractionConfidence)
	record.Confidence = scale(record.Confidence, extractionConfidence)

	logging.Verdict("resolved %s at %.2f (tier %d) from %d completed results",
		record.Tag, record.Confidence, record.Tier, len(completed))

	return record
}

func (r *Resolver) cascade(completed []types.TaskResult, extractionConfidence float64) types.VerdictRecord {
	// 1. Tier-1 definitive signal short-circuits everything below it.
	for _, res := range byTier(completed, types.TierRegulatory) {
		if res.Definitive && res.Verdict != "" {
			return types.VerdictRecord{
				Tag:        res.Verdict,
				Confidence: res.Confidence,
				Tier:       types.TierRegulatory,
				Summary:    fmt.Sprintf("authoritative signal from %s", res.SourceName),
				Sources:    []string{res.SourceName},
			}
		}
	}

	// 2. Tier-2 needs independently agreeing sources.
	if record, ok := r.tier2Agreement(byTier(completed, types.TierComplaintDB)); ok {
		return record
	}

	// 3. Tier-3 strong pattern match, gated on adequate extraction.
	if extractionConfidence >= r.extractionFloor {
		for _, res := range byTier(completed, types.TierPattern) {
			if len(res.PatternCategories) >= r.tier3MinPatterns {
				return types.VerdictRecord{
					Tag:        types.VerdictLikelyFraud,
					Confidence: res.Confidence,
					Tier:       types.TierPattern,
					Summary: fmt.Sprintf("%d independent scam patterns matched by %s",
						len(res.PatternCategories), res.SourceName),
					Sources: []string{res.SourceName},
				}
			}
		}
	}

	// 4. Tier-4 needs independent risk indicators.
	for _, res := range byTier(completed, types.TierBehavioral) {
		if len(res.RiskIndicators) >= r.tier4MinIndicators {
			return types.VerdictRecord{
				Tag:        types.VerdictSuspicious,
				Confidence: res.Confidence,
				Tier:       types.TierBehavioral,
				Summary: fmt.Sprintf("%d behavioral risk indicators from %s",
					len(res.RiskIndicators), res.SourceName),
				Sources: []string{res.SourceName},
			}
		}
	}

	// 5. Nothing committed to a signal.
	return types.VerdictRecord{
		Tag:        types.VerdictInconclusive,
		Confidence: r.inconclusiveFloor,
		Summary:    "no tier produced a definitive signal",
	}
}

// tier2Agreement looks for a verdict shared by enough independent Tier-2
// sources. A result's AgreesWithSources names count toward the quorum as
// well: a corpus that cross-lists a peer database already carries that
// peer's reports. The agreeing set's best reliability carries the record.
func (r *Resolver) tier2Agreement(tier2 []types.TaskResult) (types.VerdictRecord, bool) {
	groups := make(map[types.VerdictTag][]types.TaskResult)
	for _, res := range tier2 {
		if res.Verdict != "" {
			groups[res.Verdict] = append(groups[res.Verdict], res)
		}
	}

	// Stable iteration: prefer fraud verdicts over legitimate on the
	// (pathological) chance both reach quorum.
	order := []types.VerdictTag{types.VerdictFraud, types.VerdictLikelyFraud, types.VerdictSuspicious, types.VerdictLegitimate}
	for _, tag := range order {
		group := groups[tag]
		if len(group) == 0 {
			continue
		}

		agreeing := make(map[string]bool)
		best := 0.0
		for _, res := range group {
			agreeing[res.SourceName] = true
			for _, peer := range res.AgreesWithSources {
				agreeing[peer] = true
			}
			if res.Confidence > best {
				best = res.Confidence
			}
		}
		if len(agreeing) < r.tier2MinAgreement {
			continue
		}

		names := make([]string, 0, len(agreeing))
		for name := range agreeing {
			names = append(names, name)
		}
		sort.Strings(names)

		return types.VerdictRecord{
			Tag:        tag,
			Confidence: best,
			Tier:       types.TierComplaintDB,
			Summary:    fmt.Sprintf("%d complaint databases agree", len(agreeing)),
			Sources:    names,
		}, true
	}

	return types.VerdictRecord{}, false
}

func byTier(results []types.TaskResult, tier types.TrustTier) []types.TaskResult {
	out := make([]types.TaskResult, 0, len(results))
	for _, res := range results {
		if res.Tier == tier {
			out = append(out, res)
		}
	}
	return out
}

// scale attenuates a confidence by the extraction multiplier, keeping the
// product inside [0,1].
func scale(confidence, multiplier float64) float64 {
	if multiplier > 1.0 {
		multiplier = 1.0
	}
	if multiplier < 0 {
		multiplier = 0
	}
	out := confidence * multiplier
	if out > 1.0 {
		out = 1.0
	}
	return out
}
