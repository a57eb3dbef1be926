package sources

import (
	"context"
	"strings"
	"time"
	"unicode"

	"truthengine/internal/types"
)

// BehavioralHeuristics is the Tier-4 source: weak, cheap signals about
// how the message behaves rather than what it claims.
type BehavioralHeuristics struct{}

// NewBehavioralHeuristics creates the Tier-4 source.
func NewBehavioralHeuristics() *BehavioralHeuristics { return &BehavioralHeuristics{} }

// Descriptor implements types.Source.
func (b *BehavioralHeuristics) Descriptor() types.VerificationSource {
	return types.VerificationSource{
		Name:             "behavioral_heuristics",
		Tier:             types.TierBehavioral,
		Reliability:      0.6,
		ExpectedDuration: time.Second,
		Kind:             types.SourceTraditional,
	}
}

// Check implements types.Source.
func (b *BehavioralHeuristics) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(claim.Text)
	var indicators []string

	for _, d := range freeMailDomains {
		if strings.Contains(lower, d) {
			indicators = append(indicators, "free_mail_sender")
			break
		}
	}

	for _, phrase := range []string{"urgent", "immediately", "act now", "24 hours", "final notice"} {
		if strings.Contains(lower, phrase) {
			indicators = append(indicators, "urgency_pressure")
			break
		}
	}

	for _, phrase := range []string{"dear customer", "dear user", "dear sir", "valued customer"} {
		if strings.Contains(lower, phrase) {
			indicators = append(indicators, "generic_greeting")
			break
		}
	}

	if upperRatio(claim.Text) > 0.3 {
		indicators = append(indicators, "excessive_capitalization")
	}

	if claim.Provenance != "" && claim.Provenance != "direct_text" {
		indicators = append(indicators, "unsolicited_document")
	}

	res := &types.TaskResult{RiskIndicators: indicators}
	if len(indicators) > 0 {
		res.Verdict = types.VerdictSuspicious
		res.Confidence = b.Descriptor().Reliability
		for _, ind := range indicators {
			res.Evidence = append(res.Evidence, "risk indicator: "+ind)
		}
	} else {
		res.Evidence = []string{"no behavioral risk indicators"}
	}

	return res, nil
}

// upperRatio returns the share of uppercase letters among all letters.
func upperRatio(s string) float64 {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
