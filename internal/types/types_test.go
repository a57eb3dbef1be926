package types

import (
	"strings"
	"testing"
)

func TestTrustTierString(t *testing.T) {
	cases := []struct {
		tier TrustTier
		want string
	}{
		{TierRegulatory, "regulatory"},
		{TierComplaintDB, "complaint_db"},
		{TierPattern, "pattern"},
		{TierBehavioral, "behavioral"},
		{TrustTier(9), "unknown"},
	}

	for _, tc := range cases {
		if got := tc.tier.String(); got != tc.want {
			t.Fatalf("TrustTier(%d).String() = %q, want %q", tc.tier, got, tc.want)
		}
	}
}

func TestTrustTierValid(t *testing.T) {
	for tier := TierRegulatory; tier <= TierBehavioral; tier++ {
		if !tier.Valid() {
			t.Fatalf("tier %d should be valid", tier)
		}
	}
	if TrustTier(0).Valid() || TrustTier(5).Valid() {
		t.Fatal("out-of-range tiers should be invalid")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if TaskPending.Terminal() || TaskRunning.Terminal() {
		t.Fatal("pending/running must not be terminal")
	}
	if !TaskCompleted.Terminal() || !TaskFailed.Terminal() {
		t.Fatal("completed/failed must be terminal")
	}
}

func TestMergeAnswers(t *testing.T) {
	orig := ClaimContext{
		Text:                 "IRS refund email",
		Provenance:           "direct_text",
		ExtractionConfidence: 1.0,
		DetectionStrategy:    "keyword",
	}

	merged := orig.MergeAnswers(map[string]string{
		"Did the sender ask for payment?": "yes, gift cards",
		"empty":                           "",
	})

	if !merged.Amended {
		t.Fatal("merged context must be marked amended")
	}
	if merged.DetectionStrategy != "merged_answers" {
		t.Fatalf("DetectionStrategy = %q", merged.DetectionStrategy)
	}
	if !strings.Contains(merged.Text, "gift cards") {
		t.Fatalf("answer not merged into text: %q", merged.Text)
	}
	if strings.Contains(merged.Text, "empty:") {
		t.Fatal("empty answers must be skipped")
	}

	// The original is untouched.
	if orig.Amended || strings.Contains(orig.Text, "gift cards") {
		t.Fatalf("original context mutated: %#v", orig)
	}
}
