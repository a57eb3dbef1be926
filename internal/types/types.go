// Package types defines the shared data model for the Truth Engine
// verification orchestration core: claim contexts, source descriptors,
// planned tasks, task results, and verdict records.
package types

import (
	"time"
)

// TrustTier ranks which verification signal wins. Lower is more trusted.
type TrustTier int

const (
	// TierRegulatory covers authoritative/regulatory sources.
	TierRegulatory TrustTier = 1

	// TierComplaintDB covers aggregated complaint databases.
	TierComplaintDB TrustTier = 2

	// TierPattern covers scam-pattern recognition.
	TierPattern TrustTier = 3

	// TierBehavioral covers behavioral heuristics.
	TierBehavioral TrustTier = 4
)

func (t TrustTier) String() string {
	switch t {
	case TierRegulatory:
		return "regulatory"
	case TierComplaintDB:
		return "complaint_db"
	case TierPattern:
		return "pattern"
	case TierBehavioral:
		return "behavioral"
	default:
		return "unknown"
	}
}

// Valid reports whether the tier is one of the four defined trust levels.
func (t TrustTier) Valid() bool {
	return t >= TierRegulatory && t <= TierBehavioral
}

// SourceKind distinguishes traditional checks from capability-provider tasks.
type SourceKind string

const (
	SourceTraditional SourceKind = "traditional"
	SourceCapability  SourceKind = "capability-provider"
)

// CapabilityKind is a closed tag for capability providers. Routing is a
// declarative table over these tags, never string/regex matching against
// provider names.
type CapabilityKind string

const (
	CapabilityWebFetch    CapabilityKind = "web_fetch"
	CapabilityRepoSearch  CapabilityKind = "repo_search"
	CapabilityFileAccess  CapabilityKind = "file_access"
	CapabilityDomainIntel CapabilityKind = "domain_intel"
)

// AllCapabilityKinds lists every defined capability kind in stable order.
func AllCapabilityKinds() []CapabilityKind {
	return []CapabilityKind{
		CapabilityWebFetch,
		CapabilityRepoSearch,
		CapabilityFileAccess,
		CapabilityDomainIntel,
	}
}

// ClaimContext is the normalized input for one verification session.
// It is immutable once created; MergeAnswers returns an amended copy and
// may be applied at most once per session (tracked by Amended).
type ClaimContext struct {
	// Text is the claim text under verification.
	Text string `json:"text"`

	// Provenance records where the text came from ("direct_text" or the
	// original filename for extracted documents).
	Provenance string `json:"provenance"`

	// ExtractionConfidence is the upstream extraction backend's confidence
	// in Text. Direct text input carries 1.0.
	ExtractionConfidence float64 `json:"extraction_confidence"`

	// ClaimTypes are the detected claim categories (e.g. "impersonation",
	// "lottery", "urgency").
	ClaimTypes []string `json:"claim_types,omitempty"`

	// Entities are named entities found in the text (agencies, domains,
	// monetary amounts).
	Entities []string `json:"entities,omitempty"`

	// TemporalHints are deadline/urgency phrases found in the text.
	TemporalHints []string `json:"temporal_hints,omitempty"`

	// DetectionStrategy labels how the context was classified.
	DetectionStrategy string `json:"detection_strategy"`

	// Amended is true after a follow-up-answers merge.
	Amended bool `json:"amended,omitempty"`
}

// MergeAnswers returns a copy of the context amended with user-supplied
// follow-up answers. The answers are appended to the text corpus so the
// classifier and sources see them on the next round.
func (c ClaimContext) MergeAnswers(answers map[string]string) ClaimContext {
	merged := c
	merged.Amended = true
	merged.DetectionStrategy = "merged_answers"
	for q, a := range answers {
		if a == "" {
			continue
		}
		merged.Text += "\n" + q + ": " + a
	}
	return merged
}

// VerificationSource describes one registered verification source.
// Registry entries are static and never mutated at run time.
type VerificationSource struct {
	Name             string         `json:"name"`
	Tier             TrustTier      `json:"tier"`
	Reliability      float64        `json:"reliability"` // in [0,1]
	ExpectedDuration time.Duration  `json:"expected_duration"`
	Kind             SourceKind     `json:"kind"`
	Capability       CapabilityKind `json:"capability,omitempty"` // set for capability providers
}

// PlannedTask binds a source to concrete invocation parameters and a
// priority. Created by the planner, owned by one session only, and never
// reordered after the plan is finalized.
type PlannedTask struct {
	ID       string             `json:"id"`
	Source   VerificationSource `json:"source"`
	Priority int                `json:"priority"`
	Params   map[string]string  `json:"params,omitempty"`
}

// TaskStatus is the lifecycle state of a planned task. Each task moves
// pending -> running -> {completed|failed} exactly once.
type TaskStatus int32

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is completed or failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// SubResult is one nested result from a capability provider that fanned
// out to multiple backing services.
type SubResult struct {
	Provider   string  `json:"provider"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// TaskResult carries the outcome of one task. The execution engine mutates
// it in place as the task advances through its lifecycle.
type TaskResult struct {
	TaskID     string     `json:"task_id"`
	SourceName string     `json:"source_name"`
	Tier       TrustTier  `json:"tier"`
	Status     TaskStatus `json:"status"`

	// Verdict is the source's verdict fragment; empty until the source
	// commits to one.
	Verdict    VerdictTag `json:"verdict,omitempty"`
	Confidence float64    `json:"confidence"`
	Evidence   []string   `json:"evidence,omitempty"`

	// Definitive marks a Tier-1 fraud/legitimate signal that short-circuits
	// lower tiers.
	Definitive bool `json:"definitive,omitempty"`

	// AgreesWithSources names other sources this result independently
	// agrees with (Tier-2 multi-source agreement).
	AgreesWithSources []string `json:"agrees_with_sources,omitempty"`

	// PatternCategories are the independent scam-pattern categories a
	// Tier-3 source matched.
	PatternCategories []string `json:"pattern_categories,omitempty"`

	// RiskIndicators are independent behavioral risk signals from a
	// Tier-4 source.
	RiskIndicators []string `json:"risk_indicators,omitempty"`

	// SubResults holds nested sub-results for capability tasks whose
	// provider fanned out to multiple backing services.
	SubResults []SubResult `json:"sub_results,omitempty"`

	// Err carries the failure description when Status is failed.
	Err string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// VerdictTag is the closed set of verdict labels a session can end with.
type VerdictTag string

const (
	VerdictFraud        VerdictTag = "definite-fraud"
	VerdictLegitimate   VerdictTag = "legitimate"
	VerdictLikelyFraud  VerdictTag = "likely-fraud"
	VerdictSuspicious   VerdictTag = "suspicious"
	VerdictInconclusive VerdictTag = "inconclusive"

	// VerdictCompleted is the non-committal tag used when the global
	// timeout forces completion before any tier yields a signal.
	VerdictCompleted VerdictTag = "completed"

	// VerdictManualReview routes low-confidence extractions to a human
	// instead of tiered verification.
	VerdictManualReview VerdictTag = "manual-review"
)

// VerdictRecord is the resolver's output: which tier won, at what
// confidence, and why.
type VerdictRecord struct {
	Tag        VerdictTag `json:"tag"`
	Confidence float64    `json:"confidence"`

	// Tier is the contributing trust tier, or 0 when no tier contributed
	// (inconclusive / timeout / manual review).
	Tier TrustTier `json:"tier,omitempty"`

	Summary string   `json:"summary"`
	Sources []string `json:"sources,omitempty"`
}

// Definitive reports whether the record came from a tier that
// short-circuits further recomputation.
func (v VerdictRecord) Definitive() bool {
	return v.Tier == TierRegulatory
}
