package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"truthengine/internal/capability"
	"truthengine/internal/config"
	"truthengine/internal/engine"
	"truthengine/internal/extraction"
	"truthengine/internal/logging"
	"truthengine/internal/planner"
	"truthengine/internal/registry"
	"truthengine/internal/types"
	"truthengine/internal/verdict"
)

// ErrSessionNotFound is returned when a session id cannot be resumed.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotAwaitingAnswers is returned when follow-up answers arrive for a
// session that never asked questions or already consumed its one round.
var ErrNotAwaitingAnswers = errors.New("session is not awaiting answers")

// Manager owns the session table and drives every session through the
// verification pipeline. Client disconnects never cancel a running
// pipeline; only the session's own lifetime bounds it.
type Manager struct {
	cfg       *config.Config
	store     *CacheStore
	planner   *planner.Planner
	engine    *engine.Engine
	resolver  *verdict.Resolver
	extractor extraction.Extractor

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the pipeline over a sealed registry.
func NewManager(cfg *config.Config, reg *registry.Registry, extractor extraction.Extractor) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if extractor == nil {
		extractor = extraction.PlainText{}
	}
	return &Manager{
		cfg:       cfg,
		store:     NewCacheStore(cfg.SessionMaxLifetime(), cfg.SessionRetainAfterTerminal(), cfg.SessionCleanupInterval()),
		planner:   planner.New(reg, capability.NewRouter(reg)),
		engine:    engine.New(reg, cfg),
		resolver:  verdict.New(cfg),
		extractor: extractor,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// StartText begins a verification session for direct text input.
func (m *Manager) StartText(text string) *Session {
	s := m.begin()
	m.spawn(s, func(ctx context.Context) {
		m.run(ctx, s, text, "direct_text", 1.0)
	})
	return s
}

// StartDocument begins a session for a submitted document or image. The
// extraction backend runs first; a low-confidence extraction routes the
// session straight to manual review without invoking the engine.
func (m *Manager) StartDocument(data []byte, filename string) *Session {
	s := m.begin()
	m.spawn(s, func(ctx context.Context) {
		res, err := m.extractor.Extract(ctx, data, filename)
		if err != nil {
			reason := err.Error()
			if res != nil && res.FailureReason != "" {
				reason = res.FailureReason
			}
			m.fail(s, fmt.Errorf("%w: %s", extraction.ErrExtractionFailed, reason))
			return
		}
		if extraction.BelowFloor(res, m.cfg.Extraction.MinConfidence) {
			m.manualReview(s, res)
			return
		}
		m.run(ctx, s, res.Text, filename, res.Confidence)
	})
	return s
}

// Resume looks up a session by id for a reconnecting client. Terminal
// sessions stay resumable for the retention window so a late reconnect
// still collects the final result.
func (m *Manager) Resume(id string) (*Session, error) {
	s, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// SubmitAnswers delivers one round of follow-up answers to a session in
// the questions stage.
func (m *Manager) SubmitAnswers(id string, answers map[string]string) error {
	s, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.Stage() != StageQuestions {
		return fmt.Errorf("%w: session %s in stage %s", ErrNotAwaitingAnswers, id, s.Stage())
	}
	select {
	case s.answers <- answers:
		return nil
	default:
		return fmt.Errorf("%w: answers already submitted for %s", ErrNotAwaitingAnswers, id)
	}
}

// Close stops all pipelines and waits for them to drain.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) begin() *Session {
	s := newSession(uuid.NewString())
	m.store.Put(s)
	s.emit(EventVerificationStarted, nil)
	logging.Session("session %s started", s.ID)
	return s
}

func (m *Manager) spawn(s *Session, fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.baseCtx, m.cfg.SessionMaxLifetime())
		defer cancel()
		fn(ctx)
	}()
}

// run is the pipeline: classify, plan, execute, resolve, and optionally
// one clarification round before finalizing.
func (m *Manager) run(ctx context.Context, s *Session, text, provenance string, extractionConfidence float64) {
	if err := s.transition(StageContextDetection); err != nil {
		m.fail(s, err)
		return
	}
	claim := planner.Classify(text, provenance, extractionConfidence)
	s.mu.Lock()
	s.claim = claim
	s.mu.Unlock()
	s.emit(EventContextDetected, func(ev *Event) { ev.Claim = cloneClaim(claim) })

	record, outcome, err := m.verify(ctx, s, claim)
	if err != nil {
		m.fail(s, err)
		return
	}

	// One clarification round when the resolver is unsure and there is
	// still budget to act on the answers.
	if m.needsClarification(record, outcome) {
		answered, amended := m.askFollowUp(ctx, s, claim)
		if answered {
			s.mu.Lock()
			s.claim = amended
			s.mu.Unlock()
			record, outcome, err = m.verify(ctx, s, amended)
			if err != nil {
				m.fail(s, err)
				return
			}
			s.emit(EventFollowUpProcessed, nil)
			s.emit(EventEnhancedResult, func(ev *Event) { ev.Verdict = &record })
		}
	}

	m.complete(s, record)
}

// verify runs one classify-plan-execute-resolve round over the claim.
func (m *Manager) verify(ctx context.Context, s *Session, claim types.ClaimContext) (types.VerdictRecord, *engine.Outcome, error) {
	if err := s.transition(StagePlanning); err != nil {
		return types.VerdictRecord{}, nil, err
	}
	plan := m.planner.Plan(claim)
	s.mu.Lock()
	s.plan = plan
	s.mu.Unlock()
	s.emit(EventVerificationPlan, func(ev *Event) { ev.Plan = plan })

	if err := s.transition(StageVerification); err != nil {
		return types.VerdictRecord{}, nil, err
	}

	// The engine serializes sink calls, so the accumulator needs no lock.
	var provisional types.VerdictRecord
	var terminalSoFar []types.TaskResult
	settled := false

	outcome := m.engine.Execute(ctx, plan, claim, func(ev engine.Event) {
		s.bumpProgress(verificationProgress(ev.Terminal, ev.Total))
		s.mu.Lock()
		if ev.LiveConfidence > s.liveConfidence {
			s.liveConfidence = ev.LiveConfidence
		}
		s.mu.Unlock()

		// Recompute the provisional verdict on each completion until a
		// definitive tier locks it in.
		if ev.Result.Status.Terminal() {
			terminalSoFar = append(terminalSoFar, *ev.Result)
		}
		if ev.Type == engine.EventTaskCompleted && !settled {
			provisional = m.resolver.Resolve(terminalSoFar, claim.ExtractionConfidence)
			settled = provisional.Definitive()
		}

		// Copy before publishing; the engine still owns the original
		// result until the task is terminal.
		result := *ev.Result
		s.emit(eventKindFor(ev), func(out *Event) {
			out.Result = &result
			if provisional.Tag != "" {
				v := provisional
				out.Verdict = &v
			}
		})
	})

	s.mu.Lock()
	s.results = outcome.Results
	s.mu.Unlock()

	if err := s.transition(StageFinalizing); err != nil {
		return types.VerdictRecord{}, nil, err
	}

	record := m.resolver.Resolve(deref(outcome.Results), claim.ExtractionConfidence)
	if outcome.TimedOut && record.Tag == types.VerdictInconclusive {
		// Graceful degradation, not an error.
		record = types.VerdictRecord{
			Tag:        types.VerdictCompleted,
			Confidence: outcome.FinalConfidence,
			Summary:    "verification window elapsed before any tier produced a signal",
		}
	}
	return record, outcome, nil
}

// needsClarification gates the follow-up branch: only unamended,
// non-definitive, non-timed-out sessions below the threshold qualify.
func (m *Manager) needsClarification(record types.VerdictRecord, outcome *engine.Outcome) bool {
	if record.Definitive() || outcome == nil || outcome.TimedOut {
		return false
	}
	return record.Confidence < m.cfg.Verdict.ClarificationThreshold
}

// askFollowUp emits questions and waits for one answer set. The wait is
// bounded by the session context; an unanswered round finalizes with the
// verdict already in hand.
func (m *Manager) askFollowUp(ctx context.Context, s *Session, claim types.ClaimContext) (bool, types.ClaimContext) {
	if err := s.transition(StageQuestions); err != nil {
		return false, claim
	}
	questions := followUpQuestions(claim)
	s.mu.Lock()
	s.questions = questions
	s.mu.Unlock()
	s.emit(EventFollowUpQuestions, func(ev *Event) { ev.Questions = questions })

	select {
	case answers := <-s.answers:
		if err := s.transition(StageProcessingAnswers); err != nil {
			return false, claim
		}
		return true, claim.MergeAnswers(answers)
	case <-ctx.Done():
		logging.Session("session %s: clarification window elapsed unanswered", s.ID)
		return false, claim
	}
}

// complete finalizes the session with its terminal verdict.
func (m *Manager) complete(s *Session, record types.VerdictRecord) {
	s.mu.Lock()
	s.verdict = &record
	s.mu.Unlock()

	if err := s.transition(StageCompleted); err != nil {
		m.fail(s, err)
		return
	}
	s.emit(EventFinalResult, func(ev *Event) { ev.Verdict = &record })
	s.closeSubscribers()
	m.store.Retire(s)
	logging.Session("session %s completed: %s at %.2f", s.ID, record.Tag, record.Confidence)
}

// manualReview terminates the session before tiered verification when
// extraction confidence is under the floor.
func (m *Manager) manualReview(s *Session, res *extraction.Result) {
	record := types.VerdictRecord{
		Tag:        types.VerdictManualReview,
		Confidence: res.Confidence,
		Summary:    fmt.Sprintf("extraction confidence %.2f is below the verification floor", res.Confidence),
	}
	m.complete(s, record)
}

// fail moves the session to the error terminal state.
func (m *Manager) fail(s *Session, err error) {
	s.mu.Lock()
	s.errText = err.Error()
	s.mu.Unlock()

	s.stage.Store(int32(StageError))
	s.bumpProgress(stageProgress(StageError))
	s.emit(EventStatusUpdate, nil)
	s.emit(EventVerificationError, func(ev *Event) { ev.Err = err.Error() })
	s.closeSubscribers()
	m.store.Retire(s)
	logging.Session("session %s errored: %v", s.ID, err)
}

// followUpQuestions derives one clarification round from the claim.
func followUpQuestions(claim types.ClaimContext) []string {
	questions := []string{
		"Did you initiate contact with this organization, or did they contact you first?",
	}
	for _, ct := range claim.ClaimTypes {
		switch ct {
		case "impersonation":
			questions = append(questions, "What email address or phone number did the message come from?")
		case "payment-oddity":
			questions = append(questions, "What payment method were you asked to use?")
		case "lottery", "financial-lure":
			questions = append(questions, "Did you enter the contest or request the payment they reference?")
		}
	}
	if len(claim.Entities) > 0 {
		questions = append(questions,
			"Have you dealt with "+strings.Join(claim.Entities, ", ")+" before?")
	}
	return questions
}

func eventKindFor(ev engine.Event) EventKind {
	capTask := ev.Task.Source.Kind == types.SourceCapability
	switch ev.Type {
	case engine.EventTaskStarted:
		if capTask {
			return EventCapabilityStarted
		}
		return EventSourceStarted
	case engine.EventTaskCompleted:
		if capTask {
			return EventCapabilityCompleted
		}
		return EventSourceCompleted
	default:
		if capTask {
			return EventCapabilityFailed
		}
		return EventSourceFailed
	}
}

// deref converts the engine's result pointers for the resolver.
func deref(in []*types.TaskResult) []types.TaskResult {
	out := make([]types.TaskResult, 0, len(in))
	for _, r := range in {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Uptime reports how long the session has been alive. Used by status
// reporting.
func (s *Session) Uptime() time.Duration { return time.Since(s.CreatedAt) }
