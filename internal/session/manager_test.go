package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthengine/internal/config"
	"truthengine/internal/extraction"
	"truthengine/internal/registry"
	"truthengine/internal/sources"
	"truthengine/internal/types"
)

const irsText = "URGENT: This is the IRS. Your refund is waiting. " +
	"Reply within 24 hours to irs.refunds@gmail.com or face arrest warrant."

type stubSource struct {
	desc  types.VerificationSource
	check func(ctx context.Context) (*types.TaskResult, error)
}

func (s *stubSource) Descriptor() types.VerificationSource { return s.desc }

func (s *stubSource) Check(ctx context.Context, _ types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	return s.check(ctx)
}

func stub(name string, tier types.TrustTier, check func(ctx context.Context) (*types.TaskResult, error)) *stubSource {
	return &stubSource{
		desc: types.VerificationSource{
			Name:             name,
			Tier:             tier,
			Reliability:      0.9,
			ExpectedDuration: time.Second,
			Kind:             types.SourceTraditional,
		},
		check: check,
	}
}

func stubRegistry(t *testing.T, srcs ...types.Source) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, s := range srcs {
		require.NoError(t, reg.Register(s))
	}
	reg.Seal()
	return reg
}

func defaultsRegistry(t *testing.T, cfg *config.Config) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, sources.RegisterDefaults(reg, cfg))
	reg.Seal()
	return reg
}

func waitTerminal(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if s.Stage().Terminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached a terminal stage (stuck in %s)", s.ID, s.Stage())
}

func TestIRSScenarioDefiniteFraud(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg, defaultsRegistry(t, cfg), nil)
	defer m.Close()

	s := m.StartText(irsText)
	waitTerminal(t, s)

	require.Equal(t, StageCompleted, s.Stage())
	assert.Equal(t, 100, s.Progress())

	v := s.Verdict()
	require.NotNil(t, v)
	assert.Equal(t, types.VerdictFraud, v.Tag)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Equal(t, types.TierRegulatory, v.Tier)

	// Lower-tier pattern matches stay visible in the accumulated results
	// without overriding the authoritative verdict.
	snap, _, cancel := mustSubscribe(t, m, s.ID)
	defer cancel()
	var patternCategories int
	for _, res := range snap.Results {
		if res.Tier == types.TierPattern && res.Status == types.TaskCompleted {
			patternCategories += len(res.PatternCategories)
		}
	}
	assert.Greater(t, patternCategories, 0, "pattern evidence should coexist with the Tier-1 verdict")
}

func TestManualReviewBelowExtractionFloor(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg, defaultsRegistry(t, cfg), extractorFunc(func(ctx context.Context, data []byte, filename string) (*extraction.Result, error) {
		return &extraction.Result{Text: "blurry scan", Confidence: 0.3}, nil
	}))
	defer m.Close()

	s := m.StartDocument([]byte("irrelevant"), "scan.png")
	waitTerminal(t, s)

	require.Equal(t, StageCompleted, s.Stage())
	v := s.Verdict()
	require.NotNil(t, v)
	assert.Equal(t, types.VerdictManualReview, v.Tag)

	// Tiered verification never ran.
	snap, _, cancel := mustSubscribe(t, m, s.ID)
	defer cancel()
	assert.Empty(t, snap.Plan)
	assert.Empty(t, snap.Results)
}

func TestExtractionFailureIsErrorTerminal(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg, defaultsRegistry(t, cfg), extractorFunc(func(ctx context.Context, data []byte, filename string) (*extraction.Result, error) {
		return &extraction.Result{FailureReason: "unreadable"}, extraction.ErrExtractionFailed
	}))
	defer m.Close()

	s := m.StartDocument([]byte{0xff, 0xfe}, "broken.bin")
	waitTerminal(t, s)

	require.Equal(t, StageError, s.Stage())
	snap, _, cancel := mustSubscribe(t, m, s.ID)
	defer cancel()
	assert.True(t, snap.Terminal)
	assert.Contains(t, snap.Err, "unreadable")
}

func TestOneFailedTaskOfFiveStillCompletes(t *testing.T) {
	ok := func(conf float64, verdict types.VerdictTag) func(ctx context.Context) (*types.TaskResult, error) {
		return func(ctx context.Context) (*types.TaskResult, error) {
			return &types.TaskResult{Verdict: verdict, Confidence: conf}, nil
		}
	}
	broken := func(ctx context.Context) (*types.TaskResult, error) {
		return nil, errors.New("provider 502")
	}

	cfg := config.DefaultConfig()
	cfg.Verdict.ClarificationThreshold = 0 // no follow-up round in this test

	reg := stubRegistry(t,
		stub("t1", types.TierRegulatory, ok(0.5, "")),
		stub("t2a", types.TierComplaintDB, ok(0.9, types.VerdictFraud)),
		stub("t2b", types.TierComplaintDB, ok(0.9, types.VerdictFraud)),
		stub("bad", types.TierPattern, broken),
		stub("t4", types.TierBehavioral, ok(0.4, "")),
	)
	m := NewManager(cfg, reg, nil)
	defer m.Close()

	s := m.StartText("anything")
	waitTerminal(t, s)

	require.Equal(t, StageCompleted, s.Stage())
	v := s.Verdict()
	require.NotNil(t, v)
	assert.Equal(t, types.VerdictFraud, v.Tag, "two agreeing Tier-2 sources should carry the verdict")
	assert.Equal(t, types.TierComplaintDB, v.Tier)

	snap, _, cancel := mustSubscribe(t, m, s.ID)
	defer cancel()
	var failed int
	for _, res := range snap.Results {
		if res.Status == types.TaskFailed {
			failed++
			assert.Equal(t, "bad", res.SourceName)
			assert.NotEmpty(t, res.Err)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestGlobalTimeoutYieldsCompletedAtFloor(t *testing.T) {
	slow := func(ctx context.Context) (*types.TaskResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cfg := config.DefaultConfig()
	cfg.Engine.GlobalTimeout = "50ms"
	cfg.Verdict.ClarificationThreshold = 0

	reg := stubRegistry(t,
		stub("slow1", types.TierComplaintDB, slow),
		stub("slow2", types.TierPattern, slow),
	)
	m := NewManager(cfg, reg, nil)
	defer m.Close()

	s := m.StartText("anything")
	waitTerminal(t, s)

	require.Equal(t, StageCompleted, s.Stage())
	v := s.Verdict()
	require.NotNil(t, v)
	assert.Equal(t, types.VerdictCompleted, v.Tag)
	assert.Equal(t, cfg.Engine.FallbackConfidenceFloor, v.Confidence)
}

func TestFollowUpRound(t *testing.T) {
	// A single weak Tier-4 signal stays under the clarification threshold.
	weak := func(ctx context.Context) (*types.TaskResult, error) {
		return &types.TaskResult{RiskIndicators: []string{"urgency_pressure"}, Confidence: 0.2}, nil
	}

	cfg := config.DefaultConfig()
	reg := stubRegistry(t, stub("t4", types.TierBehavioral, weak))
	m := NewManager(cfg, reg, nil)
	defer m.Close()

	s := m.StartText("please verify this message")

	// The session must pause in the questions stage.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && s.Stage() != StageQuestions {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, StageQuestions, s.Stage())

	require.NoError(t, m.SubmitAnswers(s.ID, map[string]string{
		"Did you initiate contact with this organization, or did they contact you first?": "they contacted me",
	}))
	waitTerminal(t, s)

	require.Equal(t, StageCompleted, s.Stage())
	snap, _, cancel := mustSubscribe(t, m, s.ID)
	defer cancel()
	require.NotNil(t, snap.Claim)
	assert.True(t, snap.Claim.Amended)
	assert.NotEmpty(t, snap.Questions)
	require.NotNil(t, snap.Verdict)
}

func TestSubmitAnswersOutsideQuestionsStage(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg, defaultsRegistry(t, cfg), nil)
	defer m.Close()

	s := m.StartText(irsText)
	waitTerminal(t, s)

	err := m.SubmitAnswers(s.ID, map[string]string{"q": "a"})
	require.ErrorIs(t, err, ErrNotAwaitingAnswers)
}

func TestResumeUnknownSession(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg, defaultsRegistry(t, cfg), nil)
	defer m.Close()

	_, err := m.Resume("nope")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResumeDeliversTerminalResult(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg, defaultsRegistry(t, cfg), nil)
	defer m.Close()

	s := m.StartText(irsText)
	waitTerminal(t, s)

	resumed, err := m.Resume(s.ID)
	require.NoError(t, err)
	snap, _, cancel := resumed.Subscribe()
	defer cancel()

	assert.True(t, snap.Terminal)
	require.NotNil(t, snap.Verdict)
	assert.Equal(t, types.VerdictFraud, snap.Verdict.Tag)
	assert.Equal(t, 100, snap.Progress)
}

func TestEveryStageIsClientVisible(t *testing.T) {
	// Gate the single source so the subscriber attaches before the
	// pipeline can reach the later stages.
	release := make(chan struct{})
	gated := func(ctx context.Context) (*types.TaskResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &types.TaskResult{Verdict: types.VerdictFraud, Confidence: 1.0, Definitive: true}, nil
	}

	cfg := config.DefaultConfig()
	cfg.Verdict.ClarificationThreshold = 0

	m := NewManager(cfg, stubRegistry(t, stub("t1", types.TierRegulatory, gated)), nil)
	defer m.Close()

	s := m.StartText("anything")
	_, ch, cancel := s.Subscribe()
	defer cancel()
	close(release)

	var sawStatusUpdate bool
	stages := make(map[string]bool)
	for ev := range ch {
		if ev.Kind == EventStatusUpdate {
			sawStatusUpdate = true
			stages[ev.Stage] = true
		}
	}
	waitTerminal(t, s)

	assert.True(t, sawStatusUpdate, "stage changes must emit status_update events")
	for _, want := range []string{StageFinalizing.String(), StageCompleted.String()} {
		assert.True(t, stages[want], "stage %s was never announced to the subscriber", want)
	}
}

func TestProgressMonotonicAcrossSubscribers(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewManager(cfg, defaultsRegistry(t, cfg), nil)
	defer m.Close()

	s := m.StartText(irsText)
	snap, ch, cancel := s.Subscribe()
	defer cancel()

	last := snap.Progress
	for ev := range ch {
		if ev.Progress < last {
			t.Fatalf("progress regressed from %d to %d at %s", last, ev.Progress, ev.Kind)
		}
		last = ev.Progress
	}
	waitTerminal(t, s)

	// A fresh subscriber (a reconnect) starts at or above the last
	// delivered progress.
	snap2, _, cancel2 := s.Subscribe()
	defer cancel2()
	assert.GreaterOrEqual(t, snap2.Progress, last)
}

type extractorFunc func(ctx context.Context, data []byte, filename string) (*extraction.Result, error)

func (f extractorFunc) Extract(ctx context.Context, data []byte, filename string) (*extraction.Result, error) {
	return f(ctx, data, filename)
}

func mustSubscribe(t *testing.T, m *Manager, id string) (Snapshot, <-chan Event, func()) {
	t.Helper()
	s, err := m.Resume(id)
	require.NoError(t, err)
	snap, ch, cancel := s.Subscribe()
	return snap, ch, cancel
}
