package sources

import (
	"context"
	"sort"
	"strings"
	"time"

	"truthengine/internal/types"
)

// scamPatternCategories maps independent pattern categories to their
// trigger phrases. Each category counts at most once toward the
// resolver's strong-match threshold.
var scamPatternCategories = map[string][]string{
	"lottery":             {"lottery", "prize", "you have won", "jackpot", "sweepstakes"},
	"urgency":             {"urgent", "immediately", "act now", "24 hours", "deadline", "expires"},
	"financial-lure":      {"refund", "payout", "inheritance", "unclaimed funds", "guaranteed return"},
	"credential-phishing": {"verify your account", "password", "login", "confirm your identity"},
	"payment-oddity":      {"gift card", "wire transfer", "bitcoin", "western union", "prepaid card"},
	"impersonation":       {"irs", "social security", "fbi", "medicare", "tax authority"},
}

// PatternAnalysis is the Tier-3 source: scam-pattern recognition over
// independent categories.
type PatternAnalysis struct{}

// NewPatternAnalysis creates the Tier-3 source.
func NewPatternAnalysis() *PatternAnalysis { return &PatternAnalysis{} }

// Descriptor implements types.Source.
func (p *PatternAnalysis) Descriptor() types.VerificationSource {
	return types.VerificationSource{
		Name:             "pattern_analysis",
		Tier:             types.TierPattern,
		Reliability:      0.85,
		ExpectedDuration: time.Second,
		Kind:             types.SourceTraditional,
	}
}

// Check implements types.Source. The resolver decides whether the
// matched category count clears the strong-match threshold; this source
// only reports what it saw.
func (p *PatternAnalysis) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(claim.Text)

	var categories []string
	res := &types.TaskResult{}
	for category, phrases := range scamPatternCategories {
		for _, phrase := range phrases {
			if strings.Contains(lower, phrase) {
				categories = append(categories, category)
				res.Evidence = append(res.Evidence, category+": matched "+phrase)
				break
			}
		}
	}
	sort.Strings(categories)
	sort.Strings(res.Evidence)

	res.PatternCategories = categories
	if len(categories) > 0 {
		res.Verdict = types.VerdictLikelyFraud
		res.Confidence = p.Descriptor().Reliability
	} else {
		res.Evidence = []string{"no scam patterns matched"}
	}

	return res, nil
}
