// Package engine executes a finalized verification plan concurrently.
// Tasks run independently; one task's failure never aborts its siblings,
// and the live confidence reported while tasks complete only ever rises.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"truthengine/internal/config"
	"truthengine/internal/logging"
	"truthengine/internal/registry"
	"truthengine/internal/types"
)

// EventType labels the execution events emitted while a plan runs.
type EventType string

const (
	EventTaskStarted   EventType = "task_started"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
)

// Event is one execution progress notification. Events for a single run
// are delivered serially to the sink.
type Event struct {
	Type   EventType
	Task   types.PlannedTask
	Result *types.TaskResult

	// LiveConfidence is the running maximum confidence across completed
	// tasks at the time of the event. Monotonically non-decreasing.
	LiveConfidence float64

	Terminal int // tasks in a terminal state so far
	Total    int
}

// Sink receives execution events. A nil sink is allowed.
type Sink func(Event)

// Outcome is the end state of one plan execution.
type Outcome struct {
	// Results holds one entry per planned task, in plan order. Every
	// entry is terminal.
	Results []*types.TaskResult

	// LiveConfidence is the raw maximum confidence across completed tasks.
	LiveConfidence float64

	// FinalConfidence equals LiveConfidence unless the run timed out with
	// LiveConfidence below the fallback floor.
	FinalConfidence float64

	Completed int
	Failed    int
	TimedOut  bool
}

// Engine runs plans against the source registry.
type Engine struct {
	reg *registry.Registry

	globalTimeout    time.Duration
	budgetMultiplier float64
	fallbackFloor    float64
}

// New creates an engine from the registry and engine configuration.
func New(reg *registry.Registry, cfg *config.Config) *Engine {
	return &Engine{
		reg:              reg,
		globalTimeout:    cfg.GlobalTimeout(),
		budgetMultiplier: cfg.Engine.TaskBudgetMultiplier,
		fallbackFloor:    cfg.Engine.FallbackConfidenceFloor,
	}
}

// Execute runs every task in the plan concurrently and blocks until all
// tasks reach a terminal state or the global timeout forces completion.
// The plan is treated as frozen: results come back in plan order and the
// plan slice is never mutated.
func (e *Engine) Execute(ctx context.Context, plan []types.PlannedTask, claim types.ClaimContext, sink Sink) *Outcome {
	runCtx, cancel := context.WithTimeout(ctx, e.globalTimeout)
	defer cancel()

	out := &Outcome{Results: make([]*types.TaskResult, len(plan))}

	var mu sync.Mutex // guards out counters, live confidence, sink calls
	terminal := 0

	emit := func(ev Event) {
		if sink != nil {
			sink(ev)
		}
	}

	var g errgroup.Group
	for i, task := range plan {
		task := task
		res := &types.TaskResult{
			TaskID:     task.ID,
			SourceName: task.Source.Name,
			Tier:       task.Source.Tier,
			Status:     types.TaskPending,
		}
		out.Results[i] = res

		g.Go(func() error {
			mu.Lock()
			emit(Event{Type: EventTaskStarted, Task: task, Result: res,
				LiveConfidence: out.LiveConfidence, Terminal: terminal, Total: len(plan)})
			mu.Unlock()

			e.runTask(runCtx, task, claim, res)

			mu.Lock()
			defer mu.Unlock()
			terminal++
			ev := Event{Task: task, Result: res, Terminal: terminal, Total: len(plan)}
			switch res.Status {
			case types.TaskCompleted:
				out.Completed++
				if res.Confidence > out.LiveConfidence {
					out.LiveConfidence = res.Confidence
				}
				ev.Type = EventTaskCompleted
			default:
				out.Failed++
				ev.Type = EventTaskFailed
			}
			ev.LiveConfidence = out.LiveConfidence
			emit(ev)
			return nil
		})
	}
	g.Wait()

	out.FinalConfidence = out.LiveConfidence
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
		if out.FinalConfidence < e.fallbackFloor {
			out.FinalConfidence = e.fallbackFloor
		}
		logging.Engine("plan timed out after %s: %d/%d tasks terminal, confidence %.2f",
			e.globalTimeout, out.Completed+out.Failed, len(plan), out.FinalConfidence)
	}

	logging.Engine("plan finished: %d completed, %d failed, confidence %.2f",
		out.Completed, out.Failed, out.FinalConfidence)
	return out
}

// runTask drives one task through its lifecycle. The result is only
// touched by this goroutine until the task is terminal.
func (e *Engine) runTask(ctx context.Context, task types.PlannedTask, claim types.ClaimContext, res *types.TaskResult) {
	res.Status = types.TaskRunning
	res.StartedAt = time.Now()
	logging.EngineDebug("task %s started (source %s, tier %d)", task.ID, task.Source.Name, task.Source.Tier)

	src, err := e.reg.Get(task.Source.Name)
	if err != nil {
		e.fail(res, err)
		return
	}

	budget := time.Duration(float64(task.Source.ExpectedDuration) * e.budgetMultiplier)
	taskCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	partial, err := src.Check(taskCtx, claim, task.Params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = errors.New("task budget of " + budget.String() + " exceeded")
		}
		e.fail(res, err)
		return
	}

	mergeResult(res, partial)
	res.Status = types.TaskCompleted
	res.FinishedAt = time.Now()
	logging.EngineDebug("task %s completed (verdict %q, confidence %.2f)", task.ID, res.Verdict, res.Confidence)
}

func (e *Engine) fail(res *types.TaskResult, err error) {
	res.Status = types.TaskFailed
	res.Err = err.Error()
	res.FinishedAt = time.Now()
	logging.Engine("task %s failed: %v", res.TaskID, err)
}

// mergeResult overlays the source-owned fields of partial onto the
// engine-owned result. Identity and lifecycle fields stay with dst.
func mergeResult(dst, partial *types.TaskResult) {
	if partial == nil {
		return
	}
	dst.Verdict = partial.Verdict
	dst.Confidence = partial.Confidence
	dst.Evidence = partial.Evidence
	dst.Definitive = partial.Definitive
	dst.AgreesWithSources = partial.AgreesWithSources
	dst.PatternCategories = partial.PatternCategories
	dst.RiskIndicators = partial.RiskIndicators
	dst.SubResults = partial.SubResults
}
