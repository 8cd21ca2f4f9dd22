// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bulk runs one action over a list of items, strictly one item
// at a time, recording per-item failures without stopping the run.
//
// Homeservers rate-limit aggressively, so items are never processed
// concurrently, and a [rate.Limiter] can pace the loop further. Progress
// is observable while the run is in flight through [Runner.Subscribe].
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/matrix-console/lib/clock"
	"github.com/bureau-foundation/matrix-console/lib/notify"
	"github.com/bureau-foundation/matrix-console/messaging"
)

// ErrRunning is returned by Run when the runner is already processing a
// list. The in-flight run is not disturbed.
var ErrRunning = errors.New("bulk: a run is already in progress")

// Action processes one item.
type Action[T any] func(ctx context.Context, item T) error

// PanicError is recorded for an item whose action panicked. The run
// moves on to the next item.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("bulk: action panicked: %v", e.Value)
}

// ItemError records one failed item.
type ItemError[T any] struct {
	// ID identifies the failure, for UIs that list and dismiss errors.
	ID uuid.UUID
	// Index is the item's position in the list.
	Index int
	// Item is the item whose action failed.
	Item T
	// Message is the Matrix errcode when the failure carried one, and
	// the error text otherwise.
	Message string
	// Err is the error the action returned.
	Err error
}

// State is a runner's observable state.
type State[T any] struct {
	// Current is the item in flight. Meaningful only when HasCurrent.
	Current    T
	HasCurrent bool
	// Progress counts items attempted so far, whatever their outcome.
	Progress int
	// Total is the length of the list being processed.
	Total int
	// Errors lists failed items in the order they were attempted.
	Errors []ItemError[T]
	// Running is true between the start and the end of a run.
	Running bool
}

// Done reports whether every item was attempted.
func (s State[T]) Done() bool {
	return !s.Running && !s.HasCurrent && s.Progress == s.Total
}

// Config holds configuration for creating a Runner.
type Config struct {
	// Limiter paces the loop: each item waits for a token before its
	// action runs. If nil, items run back to back.
	Limiter *rate.Limiter
	// Clock drives the limiter waits. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Runner executes bulk actions. One Runner processes one list at a
// time. Safe for concurrent use.
type Runner[T any] struct {
	limiter *rate.Limiter
	clock   clock.Clock
	logger  *slog.Logger
	updates notify.Bus[State[T]]

	mu    sync.Mutex
	state State[T]
}

// NewRunner creates a Runner.
func NewRunner[T any](config Config) *Runner[T] {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner[T]{
		limiter: config.Limiter,
		clock:   clock.OrReal(config.Clock),
		logger:  logger,
	}
}

// Subscribe registers function to receive a copy of the state after
// every change. Delivery is synchronous on the goroutine calling Run.
func (r *Runner[T]) Subscribe(function func(State[T])) (unsubscribe func()) {
	return r.updates.Subscribe(function)
}

// State returns a copy of the current state.
func (r *Runner[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Run applies action to each item in order. A failing item is recorded
// and the loop moves on; nothing is retried. An action that panics is
// recorded with a *PanicError. When ctx ends, the run stops before the
// next item and returns the partial state with ctx.Err(). Otherwise the
// error is nil and the state has Progress equal to len(items) and no
// current item.
func (r *Runner[T]) Run(ctx context.Context, items []T, action Action[T]) (State[T], error) {
	r.mu.Lock()
	if r.state.Running {
		r.mu.Unlock()
		return State[T]{}, ErrRunning
	}
	r.state = State[T]{Total: len(items), Running: true}
	r.mu.Unlock()

	// A panic escaping the loop (from a subscriber) must not leave the
	// runner marked busy.
	defer r.release()
	r.publish()

	logger := r.logger.With("items", len(items))
	logger.Info("bulk run started")

	var stopErr error
	for index, item := range items {
		if err := r.wait(ctx); err != nil {
			stopErr = err
			break
		}

		r.update(func(state *State[T]) {
			state.Current = item
			state.HasCurrent = true
		})

		err := apply(ctx, action, item)

		r.update(func(state *State[T]) {
			state.Progress++
			if err != nil {
				state.Errors = append(state.Errors, ItemError[T]{
					ID:      uuid.New(),
					Index:   index,
					Item:    item,
					Message: message(err),
					Err:     err,
				})
			}
			var zero T
			state.Current = zero
			state.HasCurrent = false
		})
		if err != nil {
			logger.Warn("bulk item failed", "index", index, "error", err)
		}
	}

	final := r.update(func(state *State[T]) {
		state.Running = false
	})
	logger.Info("bulk run finished",
		"attempted", final.Progress,
		"failed", len(final.Errors),
		"stopped", stopErr != nil,
	)
	return final, stopErr
}

// apply runs action on item, turning a panic into a *PanicError.
func apply[T any](ctx context.Context, action Action[T], item T) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Value: recovered}
		}
	}()
	return action(ctx, item)
}

// release clears the running flag and the current item if Run is left
// without reaching its normal end.
func (r *Runner[T]) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	r.state.Running = false
	r.state.Current = zero
	r.state.HasCurrent = false
}

// wait blocks for the limiter, if any, and reports a context that
// already ended. The delay is measured on the runner's clock.
func (r *Runner[T]) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.limiter == nil {
		return nil
	}
	now := r.clock.Now()
	reservation := r.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return fmt.Errorf("bulk: pacing: limiter burst %d admits no items", r.limiter.Burst())
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	select {
	case <-r.clock.After(delay):
		return nil
	case <-ctx.Done():
		reservation.CancelAt(r.clock.Now())
		return ctx.Err()
	}
}

// update applies mutate under the lock, then publishes the new state
// and returns it. Only the goroutine inside Run calls update, so
// subscribers see states in order.
func (r *Runner[T]) update(mutate func(*State[T])) State[T] {
	r.mu.Lock()
	mutate(&r.state)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.updates.Publish(snapshot)
	return snapshot
}

func (r *Runner[T]) publish() {
	r.updates.Publish(r.State())
}

func (r *Runner[T]) snapshotLocked() State[T] {
	snapshot := r.state
	snapshot.Errors = append([]ItemError[T](nil), r.state.Errors...)
	return snapshot
}

// message prefers the Matrix errcode, falling back to the error text.
func message(err error) string {
	if code, ok := messaging.ErrorCode(err); ok {
		return code
	}
	return err.Error()
}
