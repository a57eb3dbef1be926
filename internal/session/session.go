package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"truthengine/internal/logging"
	"truthengine/internal/types"
)

// subscriberBuffer bounds the per-subscriber event queue. A subscriber
// that falls this far behind is dropped rather than allowed to stall the
// session.
const subscriberBuffer = 64

// Session is one end-to-end verification lifecycle. All mutation happens
// through the manager goroutine that owns the session; subscribers only
// ever see copies.
type Session struct {
	ID        string
	CreatedAt time.Time

	stage    atomic.Int32
	progress atomic.Int32
	seq      atomic.Int32

	mu             sync.RWMutex
	claim          types.ClaimContext
	plan           []types.PlannedTask
	results        []*types.TaskResult
	liveConfidence float64
	questions      []string
	verdict        *types.VerdictRecord
	errText        string
	subscribers    map[int]chan Event
	nextSub        int

	// answers delivers one follow-up answer set to the waiting pipeline.
	answers chan map[string]string
}

func newSession(id string) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		subscribers: make(map[int]chan Event),
		answers:     make(chan map[string]string, 1),
	}
}

// Stage returns the session's current stage.
func (s *Session) Stage() Stage { return Stage(s.stage.Load()) }

// Progress returns the monotonic progress value in [0,100].
func (s *Session) Progress() int { return int(s.progress.Load()) }

// Verdict returns the terminal verdict record, or nil while active.
func (s *Session) Verdict() *types.VerdictRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verdict
}

// transition moves the session to the next stage. Illegal moves are
// programming errors and are rejected.
func (s *Session) transition(to Stage) error {
	from := s.Stage()
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}
	s.stage.Store(int32(to))
	s.bumpProgress(stageProgress(to))
	s.emit(EventStatusUpdate, nil)
	logging.Session("session %s: %s -> %s (progress %d)", s.ID, from, to, s.Progress())
	return nil
}

// bumpProgress raises progress to p if p is higher. Progress never
// regresses, including across the re-verification branch.
func (s *Session) bumpProgress(p int) {
	for {
		cur := s.progress.Load()
		if int32(p) <= cur {
			return
		}
		if s.progress.CompareAndSwap(cur, int32(p)) {
			return
		}
	}
}

// Subscribe attaches a listener. The returned snapshot reflects all state
// up to the attach point; the channel carries only events after it.
// Cancel detaches and closes the channel.
func (s *Session) Subscribe() (Snapshot, <-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	ch := make(chan Event, subscriberBuffer)

	// Terminal sessions emit nothing further; the snapshot already
	// carries the terminal result.
	if s.Stage().Terminal() {
		close(ch)
		return snap, ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return snap, ch, cancel
}

func (s *Session) snapshotLocked() Snapshot {
	results := make([]*types.TaskResult, len(s.results))
	copy(results, s.results)
	return Snapshot{
		SessionID:      s.ID,
		Stage:          s.Stage().String(),
		Progress:       s.Progress(),
		Claim:          cloneClaim(s.claim),
		Plan:           s.plan,
		Results:        results,
		LiveConfidence: s.liveConfidence,
		Questions:      s.questions,
		Verdict:        s.verdict,
		Err:            s.errText,
		Terminal:       s.Stage().Terminal(),
	}
}

// emit delivers an event to every subscriber in FIFO order. A subscriber
// whose buffer is full is detached; resume replays the snapshot anyway.
func (s *Session) emit(kind EventKind, fill func(*Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := Event{
		Seq:            int(s.seq.Add(1)),
		Kind:           kind,
		SessionID:      s.ID,
		Stage:          s.Stage().String(),
		Progress:       s.Progress(),
		LiveConfidence: s.liveConfidence,
	}
	if fill != nil {
		fill(&ev)
	}

	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			delete(s.subscribers, id)
			close(ch)
			logging.Session("session %s: dropped slow subscriber %d", s.ID, id)
		}
	}
}

// closeSubscribers detaches every listener, ending their event streams.
func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

func cloneClaim(c types.ClaimContext) *types.ClaimContext {
	if c.Text == "" && c.DetectionStrategy == "" {
		return nil
	}
	cc := c
	return &cc
}
