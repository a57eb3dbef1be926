// Package sources provides the built-in verification sources and
// capability providers registered by default. Everything here implements
// the uniform Source interface; real external integrations plug in the
// same way.
package sources

import (
	"context"
	"strings"
	"time"

	"truthengine/internal/types"
)

// freeMailDomains are consumer mail providers no government agency sends
// from. An agency claim paired with one is a definitive impersonation
// signal.
var freeMailDomains = []string{
	"gmail.com", "yahoo.com", "outlook.com", "hotmail.com", "aol.com",
	"mail.ru", "protonmail.com",
}

// impersonatedAgencies is the authority list the regulatory check knows.
var impersonatedAgencies = []string{
	"irs", "internal revenue", "social security", "ssa", "medicare",
	"fbi", "hmrc", "customs",
}

// RegulatoryCheck is the Tier-1 authoritative source: it recognizes
// agency impersonation with certainty because agencies publish their
// real sending domains.
type RegulatoryCheck struct{}

// NewRegulatoryCheck creates the Tier-1 source.
func NewRegulatoryCheck() *RegulatoryCheck { return &RegulatoryCheck{} }

// Descriptor implements types.Source.
func (c *RegulatoryCheck) Descriptor() types.VerificationSource {
	return types.VerificationSource{
		Name:             "regulatory_check",
		Tier:             types.TierRegulatory,
		Reliability:      1.0,
		ExpectedDuration: 2 * time.Second,
		Kind:             types.SourceTraditional,
	}
}

// Check implements types.Source.
func (c *RegulatoryCheck) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(claim.Text)

	var agency string
	for _, a := range impersonatedAgencies {
		if strings.Contains(lower, a) {
			agency = a
			break
		}
	}

	var freeMail string
	for _, d := range freeMailDomains {
		if strings.Contains(lower, d) {
			freeMail = d
			break
		}
	}

	res := &types.TaskResult{}
	if agency != "" && freeMail != "" {
		res.Definitive = true
		res.Verdict = types.VerdictFraud
		res.Confidence = c.Descriptor().Reliability
		res.Evidence = []string{
			"claims authority of " + agency,
			"sent from consumer mail domain " + freeMail,
			"no government agency sends from " + freeMail,
		}
		return res, nil
	}

	res.Evidence = []string{"no authoritative impersonation match"}
	return res, nil
}
