package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelguard/guardian/internal/memory"
	"github.com/modelguard/guardian/pkg/api"
	"github.com/modelguard/guardian/pkg/log"
)

type (
	// Handler executes one action kind against an adapter
	Handler func(
		ctx context.Context, cid api.CorrelationID, act *api.Action,
	) (any, error)

	// Executor drives a plan's actions in declared order, applying the
	// retry policy around every handler call and recording each outcome
	// to the audit store
	Executor struct {
		handlers map[api.ActionKind]Handler
		retry    *RetryPolicy
		store    *memory.Store

		mu      sync.Mutex
		running map[api.CorrelationID]context.CancelCauseFunc
	}

	// Result aggregates one plan execution
	Result struct {
		Status api.FlowStatus
		State  *api.FlowState
		Logs   []string
		Failed *api.Action
	}
)

var ErrNoHandler = errors.New("no handler registered for action")

// NewExecutor creates an executor over the given retry policy and audit
// store
func NewExecutor(retry *RetryPolicy, store *memory.Store) *Executor {
	return &Executor{
		handlers: map[api.ActionKind]Handler{},
		retry:    retry,
		store:    store,
		running:  map[api.CorrelationID]context.CancelCauseFunc{},
	}
}

// Register installs the handler for an action kind
func (e *Executor) Register(kind api.ActionKind, h Handler) {
	e.handlers[kind] = h
}

// Cancel abandons a running flow by correlation ID. In-flight adapter
// calls stop at their next suspension point; remaining actions are
// marked cancelled, not failed
func (e *Executor) Cancel(cid api.CorrelationID) bool {
	e.mu.Lock()
	cancel, ok := e.running[cid]
	e.mu.Unlock()
	if ok {
		cancel(api.ErrCancelled)
	}
	return ok
}

// Run executes the plan's actions in declared order. A failed action
// short-circuits the remainder unless a later action is marked
// independent. Handler coverage is checked before anything runs so a
// misconfigured plan has no side effects
func (e *Executor) Run(
	ctx context.Context, plan *api.Plan, state *api.FlowState,
) (*Result, error) {
	for _, act := range plan.Actions {
		if _, ok := e.handlers[act.Kind]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoHandler, act.Kind)
		}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	e.mu.Lock()
	e.running[plan.CorrelationID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, plan.CorrelationID)
		e.mu.Unlock()
	}()

	res := &Result{Status: api.FlowCompleted, State: state}
	for _, act := range plan.Actions {
		if ctx.Err() != nil {
			e.finish(plan, act, api.ActionCancelled, nil)
			res.Status = api.FlowCancelled
			res.log("%s: cancelled", act.Kind)
			continue
		}
		if res.Failed != nil && !act.Independent {
			e.finish(plan, act, api.ActionSkipped, nil)
			res.log("%s: skipped", act.Kind)
			continue
		}

		state.Advance(api.FlowStateName(act.Kind))
		err := e.runAction(ctx, plan.CorrelationID, act)
		switch {
		case err == nil:
			e.finish(plan, act, api.ActionSucceeded, nil)
			res.log("%s: succeeded (attempts=%d)", act.Kind, act.Attempts)

		case errors.Is(context.Cause(ctx), api.ErrCancelled):
			e.finish(plan, act, api.ActionCancelled, err)
			res.Status = api.FlowCancelled
			res.log("%s: cancelled", act.Kind)

		default:
			e.finish(plan, act, api.ActionFailed, err)
			res.Failed = act
			res.log("%s: failed after %d attempts: %v",
				act.Kind, act.Attempts, err)
		}
	}

	if res.Failed != nil && res.Status != api.FlowCancelled {
		res.Status = api.FlowFailed
		state.Advance(api.FailedAt(state.Current))
	}

	e.store.Append(&api.MemoryEntry{
		EventType:     api.EventFlow,
		CorrelationID: plan.CorrelationID,
		Payload:       state.Snapshot(),
	})
	slog.Info("Plan executed",
		log.CorrelationID(plan.CorrelationID),
		log.Flow(plan.Flow),
		log.Status(res.Status))
	return res, nil
}

func (e *Executor) runAction(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) error {
	handler := e.handlers[act.Kind]
	act.Status = api.ActionRunning
	act.StartedAt = time.Now()

	retryCount := 0
	for {
		act.Attempts++
		result, err := handler(ctx, cid, act)
		if err == nil {
			act.Result = result
			return nil
		}
		if !api.IsTransient(err) || ctx.Err() != nil {
			return err
		}
		if !e.retry.Allows(retryCount) {
			return err
		}

		slog.Warn("Retrying action",
			log.CorrelationID(cid),
			log.Action(act.Kind),
			slog.Int("retry_count", retryCount+1),
			log.Error(err))
		if werr := e.retry.Wait(ctx, retryCount); werr != nil {
			return err
		}
		retryCount++
	}
}

// finish stamps the action's terminal status and appends the audit
// record
func (e *Executor) finish(
	plan *api.Plan, act *api.Action, status api.ActionStatus, err error,
) {
	act.Status = status
	act.CompletedAt = time.Now()
	if err != nil {
		act.Error = err.Error()
	}

	e.store.Append(&api.MemoryEntry{
		EventType:     api.EventAction,
		CorrelationID: plan.CorrelationID,
		Payload:       act.Snapshot(),
	})
}

func (r *Result) log(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}
