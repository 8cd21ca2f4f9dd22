// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bulk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/matrix-console/lib/clock"
	"github.com/bureau-foundation/matrix-console/messaging"
)

func TestRunIsolatesFailures(t *testing.T) {
	items := []string{"@a:x", "@b:x", "@c:x", "@d:x", "@e:x"}
	runner := NewRunner[string](Config{})

	var attempted []string
	state, err := runner.Run(context.Background(), items, func(_ context.Context, item string) error {
		attempted = append(attempted, item)
		if item == items[2] {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(state.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(state.Errors))
	}
	if state.Progress != 5 {
		t.Errorf("progress = %d, want 5", state.Progress)
	}
	if state.Errors[0].Item != items[2] || state.Errors[0].Index != 2 {
		t.Errorf("error item = %q at %d, want %q at 2", state.Errors[0].Item, state.Errors[0].Index, items[2])
	}
	if state.Errors[0].Message != "boom" {
		t.Errorf("message = %q, want boom", state.Errors[0].Message)
	}
	if state.Errors[0].ID == uuid.Nil {
		t.Error("error has no ID")
	}
	if state.HasCurrent || state.Running || !state.Done() {
		t.Errorf("final state = %+v, want done", state)
	}
	if len(attempted) != 5 {
		t.Errorf("attempted %v, want all five", attempted)
	}
}

func TestRunPrefersErrcode(t *testing.T) {
	runner := NewRunner[int](Config{})
	state, _ := runner.Run(context.Background(), []int{1, 2}, func(_ context.Context, item int) error {
		if item == 1 {
			return &messaging.MatrixError{Code: messaging.ErrCodeLimitExceeded, Message: "slow down", StatusCode: 429}
		}
		return errors.New("plain failure")
	})
	if len(state.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(state.Errors))
	}
	if state.Errors[0].Message != "M_LIMIT_EXCEEDED" {
		t.Errorf("first message = %q", state.Errors[0].Message)
	}
	if state.Errors[1].Message != "plain failure" {
		t.Errorf("second message = %q", state.Errors[1].Message)
	}
	if state.Errors[0].ID == state.Errors[1].ID {
		t.Error("error IDs collide")
	}
}

func TestRunIsSequential(t *testing.T) {
	runner := NewRunner[int](Config{})
	var mu sync.Mutex
	active, maxActive := 0, 0
	runner.Run(context.Background(), []int{1, 2, 3, 4}, func(context.Context, int) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})
	if maxActive != 1 {
		t.Errorf("max concurrent actions = %d, want 1", maxActive)
	}
}

func TestRunObservation(t *testing.T) {
	runner := NewRunner[string](Config{})
	var states []State[string]
	unsubscribe := runner.Subscribe(func(state State[string]) {
		states = append(states, state)
	})
	defer unsubscribe()

	runner.Run(context.Background(), []string{"x", "y"}, func(_ context.Context, item string) error {
		current := runner.State()
		if !current.HasCurrent || current.Current != item {
			t.Errorf("during %q, state = %+v", item, current)
		}
		return nil
	})

	// start, (current, attempted) per item, end
	if len(states) != 6 {
		t.Fatalf("got %d updates, want 6", len(states))
	}
	last := -1
	for _, state := range states {
		if state.Progress < last {
			t.Errorf("progress went backwards: %d after %d", state.Progress, last)
		}
		last = state.Progress
	}
	if !states[0].Running || states[0].Total != 2 {
		t.Errorf("first update = %+v", states[0])
	}
	if final := states[len(states)-1]; final.Running || final.Progress != 2 {
		t.Errorf("last update = %+v", final)
	}
}

func TestRunRejectsReentry(t *testing.T) {
	runner := NewRunner[int](Config{})
	entered := make(chan struct{})
	release := make(chan struct{})

	done := make(chan State[int])
	go func() {
		state, _ := runner.Run(context.Background(), []int{1, 2, 3}, func(_ context.Context, item int) error {
			if item == 1 {
				close(entered)
				<-release
			}
			return nil
		})
		done <- state
	}()

	<-entered
	if _, err := runner.Run(context.Background(), []int{9, 9}, func(context.Context, int) error { return nil }); !errors.Is(err, ErrRunning) {
		t.Errorf("second Run error = %v, want ErrRunning", err)
	}
	close(release)

	state := <-done
	if state.Total != 3 || state.Progress != 3 {
		t.Errorf("in-flight run disturbed: %+v", state)
	}

	// A finished runner accepts a new list.
	if _, err := runner.Run(context.Background(), []int{4}, func(context.Context, int) error { return nil }); err != nil {
		t.Errorf("Run after completion: %v", err)
	}
}

func TestRunCancellation(t *testing.T) {
	runner := NewRunner[int](Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := runner.Run(ctx, []int{1, 2, 3, 4}, func(_ context.Context, item int) error {
		if item == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if state.Progress != 2 || state.HasCurrent || state.Running {
		t.Errorf("partial state = %+v, want two attempted and stopped", state)
	}
}

func TestRunPacing(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	limiter := rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	runner := NewRunner[int](Config{Limiter: limiter, Clock: fake})

	attempted := make(chan int, 3)
	type result struct {
		state State[int]
		err   error
	}
	results := make(chan result, 1)
	go func() {
		state, err := runner.Run(context.Background(), []int{1, 2, 3}, func(_ context.Context, item int) error {
			attempted <- item
			return nil
		})
		results <- result{state, err}
	}()

	// The burst token lets the first item through at once.
	if item := <-attempted; item != 1 {
		t.Fatalf("first item = %d", item)
	}
	for _, want := range []int{2, 3} {
		fake.WaitForTimers(1)
		select {
		case item := <-attempted:
			t.Fatalf("item %d ran before its token was due", item)
		default:
		}
		fake.Advance(20 * time.Millisecond)
		if item := <-attempted; item != want {
			t.Fatalf("item = %d, want %d", item, want)
		}
	}

	outcome := <-results
	if outcome.err != nil {
		t.Fatalf("Run: %v", outcome.err)
	}
	if outcome.state.Progress != 3 {
		t.Errorf("progress = %d", outcome.state.Progress)
	}
}

func TestRunPacingCanceledWhileWaiting(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	limiter := rate.NewLimiter(rate.Every(time.Minute), 1)
	runner := NewRunner[int](Config{Limiter: limiter, Clock: fake})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		fake.WaitForTimers(1)
		cancel()
	}()
	state, err := runner.Run(ctx, []int{1, 2}, func(context.Context, int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if state.Progress != 1 || state.Running {
		t.Errorf("state = %+v, want one attempted and stopped", state)
	}
}

func TestRunRecoversPanickingAction(t *testing.T) {
	runner := NewRunner[string](Config{})

	state, err := runner.Run(context.Background(), []string{"@a:x", "@b:x", "@c:x"}, func(_ context.Context, item string) error {
		if item == "@b:x" {
			panic("bad item")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Progress != 3 || !state.Done() {
		t.Errorf("state = %+v, want every item attempted", state)
	}
	if len(state.Errors) != 1 {
		t.Fatalf("errors = %+v, want one", state.Errors)
	}
	var panicErr *PanicError
	if !errors.As(state.Errors[0].Err, &panicErr) || panicErr.Value != "bad item" {
		t.Errorf("error = %v, want a *PanicError for the panic value", state.Errors[0].Err)
	}
	if state.Errors[0].Item != "@b:x" || state.Errors[0].Message != "bulk: action panicked: bad item" {
		t.Errorf("item error = %+v", state.Errors[0])
	}

	// The runner is free for the next list.
	if _, err := runner.Run(context.Background(), []string{"@d:x"}, func(context.Context, string) error { return nil }); err != nil {
		t.Errorf("second Run: %v", err)
	}
}

func TestRunReleasedAfterEscapingPanic(t *testing.T) {
	runner := NewRunner[int](Config{})
	unsubscribe := runner.Subscribe(func(state State[int]) {
		if state.HasCurrent {
			panic("subscriber failed")
		}
	})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("subscriber panic did not reach the caller")
			}
		}()
		runner.Run(context.Background(), []int{1}, func(context.Context, int) error { return nil })
	}()
	unsubscribe()

	if state := runner.State(); state.Running || state.HasCurrent {
		t.Fatalf("state after panic = %+v, want released", state)
	}
	if _, err := runner.Run(context.Background(), []int{1}, func(context.Context, int) error { return nil }); err != nil {
		t.Errorf("Run after panic: %v", err)
	}
}

func TestRunEmpty(t *testing.T) {
	runner := NewRunner[int](Config{})
	state, err := runner.Run(context.Background(), nil, func(context.Context, int) error {
		t.Error("action called for empty list")
		return nil
	})
	if err != nil || !state.Done() || state.Progress != 0 {
		t.Errorf("state = %+v, err = %v", state, err)
	}
}
