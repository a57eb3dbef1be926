package session

import "testing"

func TestStageTransitions(t *testing.T) {
	valid := [][2]Stage{
		{StageInitializing, StageContextDetection},
		{StageInitializing, StageCompleted}, // manual review
		{StageContextDetection, StagePlanning},
		{StagePlanning, StageVerification},
		{StageVerification, StageFinalizing},
		{StageFinalizing, StageCompleted},
		{StageFinalizing, StageQuestions},
		{StageQuestions, StageProcessingAnswers},
		{StageQuestions, StageCompleted}, // unanswered round
		{StageProcessingAnswers, StagePlanning},
	}
	for _, tr := range valid {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("transition %s -> %s should be legal", tr[0], tr[1])
		}
	}

	invalid := [][2]Stage{
		{StageInitializing, StageVerification},
		{StagePlanning, StageCompleted},
		{StageVerification, StageQuestions},
		{StageCompleted, StageVerification},
		{StageError, StageCompleted},
		{StageFinalizing, StageProcessingAnswers},
	}
	for _, tr := range invalid {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("transition %s -> %s should be illegal", tr[0], tr[1])
		}
	}
}

func TestStageTerminal(t *testing.T) {
	for _, s := range []Stage{StageCompleted, StageError} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Stage{StageInitializing, StageVerification, StageQuestions} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestVerificationProgressBounds(t *testing.T) {
	if got := verificationProgress(0, 4); got != 30 {
		t.Errorf("progress at start = %d, want 30", got)
	}
	if got := verificationProgress(4, 4); got != 90 {
		t.Errorf("progress at end = %d, want 90", got)
	}
	if got := verificationProgress(2, 4); got <= 30 || got >= 90 {
		t.Errorf("mid progress = %d, want inside (30,90)", got)
	}
	if got := verificationProgress(0, 0); got != 30 {
		t.Errorf("empty plan progress = %d, want 30", got)
	}
}

func TestBumpProgressMonotonic(t *testing.T) {
	s := newSession("test")
	s.bumpProgress(40)
	s.bumpProgress(25)
	if got := s.Progress(); got != 40 {
		t.Fatalf("progress = %d, want 40 (no regression)", got)
	}
	s.bumpProgress(90)
	if got := s.Progress(); got != 90 {
		t.Fatalf("progress = %d, want 90", got)
	}
}
