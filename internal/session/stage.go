// Package session owns the per-client verification session lifecycle:
// stage machine, monotonic progress, event fan-out with snapshot resume,
// and the TTL-bound session store.
package session

// Stage is a session's position in the verification state machine.
type Stage int32

const (
	StageInitializing Stage = iota
	StageContextDetection
	StagePlanning
	StageVerification
	StageFinalizing
	StageQuestions
	StageProcessingAnswers
	StageCompleted
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageInitializing:
		return "initializing"
	case StageContextDetection:
		return "context_detection"
	case StagePlanning:
		return "planning"
	case StageVerification:
		return "verification"
	case StageFinalizing:
		return "finalizing"
	case StageQuestions:
		return "questions"
	case StageProcessingAnswers:
		return "processing_answers"
	case StageCompleted:
		return "completed"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the stage ends the session.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// stageTransitions is the closed transition table. The optional
// clarification branch re-enters verification through processing_answers.
var stageTransitions = map[Stage][]Stage{
	StageInitializing:     {StageContextDetection, StageCompleted, StageError},
	StageContextDetection: {StagePlanning, StageError},
	StagePlanning:         {StageVerification, StageError},
	StageVerification:     {StageFinalizing, StageError},
	StageFinalizing:       {StageQuestions, StageCompleted, StageError},
	StageQuestions:        {StageProcessingAnswers, StageCompleted, StageError},
	StageProcessingAnswers: {
		StagePlanning, StageCompleted, StageError,
	},
}

// CanTransition reports whether from -> to is a legal stage move.
func CanTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// stageProgress is the floor progress value a session reports on entering
// a stage. Verification advances between its floor and the finalizing
// floor as tasks reach terminal states.
func stageProgress(s Stage) int {
	switch s {
	case StageInitializing:
		return 5
	case StageContextDetection:
		return 15
	case StagePlanning:
		return 25
	case StageVerification:
		return 30
	case StageFinalizing:
		return 90
	case StageQuestions:
		return 92
	case StageProcessingAnswers:
		return 94
	case StageCompleted, StageError:
		return 100
	default:
		return 0
	}
}

// verificationProgress interpolates progress while tasks finish.
func verificationProgress(terminal, total int) int {
	if total == 0 {
		return stageProgress(StageVerification)
	}
	span := stageProgress(StageFinalizing) - stageProgress(StageVerification)
	return stageProgress(StageVerification) + span*terminal/total
}
