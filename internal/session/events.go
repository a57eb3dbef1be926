package session

import (
	"truthengine/internal/types"
)

// EventKind tags the lifecycle events a session emits to its
// subscribers, in the order they may occur within a session.
type EventKind string

const (
	EventVerificationStarted EventKind = "verification_started"
	EventStatusUpdate        EventKind = "status_update"
	EventContextDetected     EventKind = "context_detected"
	EventVerificationPlan    EventKind = "verification_plan"
	EventSourceStarted       EventKind = "source_started"
	EventSourceCompleted     EventKind = "source_completed"
	EventSourceFailed        EventKind = "source_failed"
	EventCapabilityStarted   EventKind = "capability_started"
	EventCapabilityCompleted EventKind = "capability_completed"
	EventCapabilityFailed    EventKind = "capability_failed"
	EventFollowUpQuestions   EventKind = "follow_up_questions"
	EventFollowUpProcessed   EventKind = "follow_up_processed"
	EventEnhancedResult      EventKind = "enhanced_result"
	EventFinalResult         EventKind = "final_result"
	EventVerificationError   EventKind = "verification_error"
)

// Event is one ordered session lifecycle notification. Seq is unique and
// ascending per session; Progress never decreases across events.
type Event struct {
	Seq       int       `json:"seq"`
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`

	Claim          *types.ClaimContext  `json:"claim,omitempty"`
	Plan           []types.PlannedTask  `json:"plan,omitempty"`
	Result         *types.TaskResult    `json:"result,omitempty"`
	LiveConfidence float64              `json:"live_confidence"`
	Questions      []string             `json:"questions,omitempty"`
	Verdict        *types.VerdictRecord `json:"verdict,omitempty"`
	Err            string               `json:"error,omitempty"`
}

// Snapshot is the state replayed to a resuming client before live events
// continue. It compresses history instead of re-sending every event.
type Snapshot struct {
	SessionID      string               `json:"session_id"`
	Stage          string               `json:"stage"`
	Progress       int                  `json:"progress"`
	Claim          *types.ClaimContext  `json:"claim,omitempty"`
	Plan           []types.PlannedTask  `json:"plan,omitempty"`
	Results        []*types.TaskResult  `json:"results,omitempty"`
	LiveConfidence float64              `json:"live_confidence"`
	Questions      []string             `json:"questions,omitempty"`
	Verdict        *types.VerdictRecord `json:"verdict,omitempty"`
	Err            string               `json:"error,omitempty"`
	Terminal       bool                 `json:"terminal"`
}
