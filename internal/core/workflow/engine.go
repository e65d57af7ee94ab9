package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StepRunner executes one action. *ActionExecutor is the production runner.
type StepRunner interface {
	Execute(ctx context.Context, in StepInput) StepResult
}

// SweepResult summarizes one resume or recovery sweep
type SweepResult struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Parked    int `json:"parked"`
	Errors    int `json:"errors"`
}

func (r *SweepResult) add(exec *Execution, err error) {
	if err != nil {
		r.Errors++
		return
	}
	switch {
	case exec.State == StateCompleted:
		r.Completed++
	case exec.State == StateFailed:
		r.Failed++
	case exec.IsParked():
		r.Parked++
	}
}

const internalErrorDetail = "internal error while executing step"

// Engine drives executions through their automation's action list and
// checkpoints after every step
type Engine struct {
	executions  ExecutionStore
	automations AutomationStore
	runner      StepRunner
	audit       AuditSink
	clock       Clock
}

// NewEngine creates a new execution engine
func NewEngine(executions ExecutionStore, automations AutomationStore, runner StepRunner, audit AuditSink) *Engine {
	return &Engine{
		executions:  executions,
		automations: automations,
		runner:      runner,
		audit:       audit,
		clock:       systemClock,
	}
}

// SetClock replaces the time source
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
}

// Run starts automation a for the customer in c. If a non-terminal execution
// already exists for the pair it is resumed when parked and due, otherwise Run
// returns it untouched.
func (e *Engine) Run(ctx context.Context, a Automation, c Context) (*Execution, error) {
	now := e.clock()
	exec := &Execution{
		ID:           uuid.New(),
		AutomationID: a.ID,
		CustomerID:   c.CustomerID,
		TriggerEvent: a.TriggerEvent,
		State:        StateRunning,
		CurrentStep:  0,
		StepsLog:     []StepResult{},
		Context:      c,
		StartedAt:    now,
		UpdatedAt:    now,
	}

	stored, created, err := e.executions.CreateIfAbsent(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	if created {
		log.Info().
			Str("execution_id", stored.ID.String()).
			Str("automation_id", a.ID.String()).
			Str("customer_id", c.CustomerID.String()).
			Msg("🚀 Execution started")
		return e.drive(ctx, &a, stored, 0)
	}

	if !stored.IsDue(now) {
		log.Debug().
			Str("execution_id", stored.ID.String()).
			Msg("⏭️ Execution already in flight for this customer")
		return stored, nil
	}

	claimed, ok, err := e.executions.Claim(ctx, stored.ID, now)
	if err != nil {
		return stored, fmt.Errorf("claim execution %s: %w", stored.ID, err)
	}
	if !ok {
		return stored, nil
	}
	return e.continueRun(ctx, &a, claimed)
}

// Resume continues one parked execution if it is due. Anything else, including
// losing the claim to a concurrent sweep, is a no-op.
func (e *Engine) Resume(ctx context.Context, id uuid.UUID) (*Execution, error) {
	now := e.clock()
	exec, err := e.executions.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load execution %s: %w", id, err)
	}
	if !exec.IsDue(now) {
		return exec, nil
	}

	claimed, ok, err := e.executions.Claim(ctx, id, now)
	if err != nil {
		return exec, fmt.Errorf("claim execution %s: %w", id, err)
	}
	if !ok {
		return exec, nil
	}

	a, err := e.loadAutomation(ctx, claimed)
	if err != nil || a == nil {
		return claimed, err
	}
	return e.continueRun(ctx, a, claimed)
}

// ResumeDue claims up to limit parked executions whose time has come and
// continues each of them. One failing execution never stops the sweep.
func (e *Engine) ResumeDue(ctx context.Context, limit int) (SweepResult, error) {
	claimed, err := e.executions.ClaimDue(ctx, e.clock(), limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("claim due executions: %w", err)
	}
	return e.continueAll(ctx, claimed), nil
}

// RecoverStalled re-runs executions that stopped mid-step, e.g. because the
// process died, and were not touched for at least olderThan
func (e *Engine) RecoverStalled(ctx context.Context, olderThan time.Duration, limit int) (SweepResult, error) {
	claimed, err := e.executions.ClaimStalled(ctx, e.clock().Add(-olderThan), limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("claim stalled executions: %w", err)
	}
	if len(claimed) > 0 {
		log.Warn().Int("count", len(claimed)).Msg("♻️ Recovering stalled executions")
	}
	return e.continueAll(ctx, claimed), nil
}

func (e *Engine) continueAll(ctx context.Context, claimed []*Execution) SweepResult {
	result := SweepResult{Claimed: len(claimed)}
	for _, exec := range claimed {
		if ctx.Err() != nil {
			// claimed but not run; stalled recovery picks these up
			result.Errors++
			continue
		}

		a, err := e.loadAutomation(ctx, exec)
		if err != nil {
			log.Error().Err(err).Str("execution_id", exec.ID.String()).Msg("❌ Failed to load automation for execution")
			result.add(exec, err)
			continue
		}
		if a == nil {
			result.add(exec, nil)
			continue
		}

		out, err := e.continueRun(ctx, a, exec)
		if err != nil {
			log.Error().Err(err).Str("execution_id", exec.ID.String()).Msg("❌ Failed to resume execution")
		}
		result.add(out, err)
	}
	return result
}

// loadAutomation returns nil without error when the automation is gone; the
// execution is then closed as FAILED.
func (e *Engine) loadAutomation(ctx context.Context, exec *Execution) (*Automation, error) {
	a, err := e.automations.Get(ctx, exec.AutomationID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load automation %s: %w", exec.AutomationID, err)
	}

	now := e.clock()
	exec.State = StateFailed
	exec.NextActionAt = nil
	exec.CompletedAt = &now
	exec.ErrorMessage = "automation not found"
	if err := e.executions.Save(ctx, exec); err != nil {
		return nil, fmt.Errorf("save execution %s: %w", exec.ID, err)
	}
	e.appendFailure(ctx, exec)
	return nil, nil
}

// continueRun picks the step to run after a claim. A delayed send_template
// that parked runs its send now; any other deferred step is complete and the
// run moves past it. Without a deferred entry for the current step, the step
// itself never reported and runs again.
func (e *Engine) continueRun(ctx context.Context, a *Automation, exec *Execution) (*Execution, error) {
	return e.drive(ctx, a, exec, resumeIndex(exec, a.Actions))
}

func resumeIndex(exec *Execution, actions Actions) int {
	k := exec.CurrentStep
	if !deferredAt(exec, k) {
		return k
	}
	if k < len(actions) {
		if send, ok := actions[k].(SendTemplate); ok && send.DelayMinutes > 0 {
			return k
		}
	}
	return k + 1
}

func deferredAt(exec *Execution, step int) bool {
	last := exec.lastStep()
	return last != nil && last.Outcome == OutcomeDeferred && last.Step == step
}

func (e *Engine) drive(ctx context.Context, a *Automation, exec *Execution, start int) (*Execution, error) {
	waited := deferredAt(exec, start)

	// Checkpoints record side effects that already happened, so they are
	// written even when the caller's deadline passed during the step.
	store := context.WithoutCancel(ctx)

	for i := start; i < len(a.Actions); i++ {
		if err := ctx.Err(); err != nil {
			// left RUNNING without next_action_at; stalled recovery runs step i
			return exec, fmt.Errorf("stopped before step %d: %w", i, err)
		}
		if exec.CurrentStep != i {
			exec.CurrentStep = i
			if err := e.executions.Save(store, exec); err != nil {
				return exec, fmt.Errorf("checkpoint step %d: %w", i, err)
			}
		}

		action := a.Actions[i]
		res := e.executeStep(ctx, StepInput{
			Execution: exec,
			Index:     i,
			Action:    action,
			Context:   exec.Context,
			Waited:    waited && i == start,
		})
		now := e.clock()
		res.At = now
		exec.StepsLog = append(exec.StepsLog, res)

		switch res.Outcome {
		case OutcomeError:
			exec.State = StateFailed
			exec.ErrorMessage = firstNonEmpty(res.Detail, "step failed")
			exec.CompletedAt = &now
			return e.finish(ctx, a, exec)

		case OutcomeDeferred:
			next := now.Add(DelayOf(action))
			exec.NextActionAt = &next
			if err := e.executions.Save(store, exec); err != nil {
				return exec, fmt.Errorf("park execution: %w", err)
			}
			log.Info().
				Str("execution_id", exec.ID.String()).
				Int("step", i).
				Time("next_action_at", next).
				Msg("⏸️ Execution parked")
			return exec, nil
		}

		if i+1 < len(a.Actions) {
			exec.CurrentStep = i + 1
			if err := e.executions.Save(store, exec); err != nil {
				return exec, fmt.Errorf("checkpoint step %d: %w", i, err)
			}
		}
	}

	now := e.clock()
	exec.CurrentStep = len(a.Actions)
	exec.State = StateCompleted
	exec.CompletedAt = &now
	return e.finish(ctx, a, exec)
}

// executeStep turns a handler panic into an error outcome
func (e *Engine) executeStep(ctx context.Context, in StepInput) (res StepResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("execution_id", in.Execution.ID.String()).
				Int("step", in.Index).
				Msg("💥 Action handler panicked")
			res = StepResult{
				Step:       in.Index,
				ActionType: in.Action.Type(),
				Outcome:    OutcomeError,
				Detail:     internalErrorDetail,
			}
		}
	}()
	return e.runner.Execute(ctx, in)
}

// finish persists a terminal state and bumps the automation counters. The
// counters move only when this call wrote the terminal transition.
func (e *Engine) finish(ctx context.Context, a *Automation, exec *Execution) (*Execution, error) {
	ctx = context.WithoutCancel(ctx)
	exec.NextActionAt = nil
	if err := e.executions.Save(ctx, exec); err != nil {
		return exec, fmt.Errorf("finish execution: %w", err)
	}

	completed := exec.State == StateCompleted
	if err := e.automations.IncrementCounters(ctx, a.ID, completed); err != nil {
		log.Warn().Err(err).Str("automation_id", a.ID.String()).Msg("⚠️ Failed to increment automation counters")
	}

	if completed {
		log.Info().Str("execution_id", exec.ID.String()).Int("steps", len(exec.StepsLog)).Msg("✅ Execution completed")
		e.appendAudit(ctx, exec, EventExecutionDone, ResultSuccess)
	} else {
		log.Warn().Str("execution_id", exec.ID.String()).Str("error", exec.ErrorMessage).Msg("❌ Execution failed")
		e.appendFailure(ctx, exec)
	}
	return exec, nil
}

func (e *Engine) appendFailure(ctx context.Context, exec *Execution) {
	e.appendAudit(ctx, exec, EventExecutionFailed, ResultError)
}

func (e *Engine) appendAudit(ctx context.Context, exec *Execution, event, result string) {
	if e.audit == nil {
		return
	}
	automationID, executionID, customerID := exec.AutomationID, exec.ID, exec.CustomerID
	e.audit.Append(context.WithoutCancel(ctx), AuditRecord{
		EventType:    event,
		AutomationID: &automationID,
		ExecutionID:  &executionID,
		CustomerID:   &customerID,
		Result:       result,
		ErrorMessage: exec.ErrorMessage,
		Payload: map[string]interface{}{
			"trigger_event": exec.TriggerEvent,
			"current_step":  exec.CurrentStep,
			"steps":         len(exec.StepsLog),
		},
	})
}
