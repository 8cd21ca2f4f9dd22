// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/matrix-console/lib/clock"
	"github.com/bureau-foundation/matrix-console/lib/identity"
	"github.com/bureau-foundation/matrix-console/lib/notify"
)

// alertLog collects alerts.
type alertLog struct {
	mu       sync.Mutex
	messages []string
}

func (a *alertLog) Alert(_ context.Context, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
}

func (a *alertLog) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

func newTestInvoker(t *testing.T, config InvokerConfig) *Invoker {
	t.Helper()
	if config.Dispatcher == nil {
		config.Dispatcher = NewDispatcher(DispatcherConfig{Bus: &notify.Bus[Notification]{}})
	}
	invoker, err := NewInvoker(config)
	if err != nil {
		t.Fatalf("NewInvoker failed: %v", err)
	}
	return invoker
}

func TestNewInvokerRequiresDispatcher(t *testing.T) {
	if _, err := NewInvoker(InvokerConfig{}); err == nil {
		t.Fatal("expected error without a dispatcher")
	}
}

func TestPrepare(t *testing.T) {
	who := identity.Identity{Name: "admin", ServerAddress: "https://x", AccessToken: "tok"}

	tests := []struct {
		name            string
		body            any
		header          http.Header
		wantBody        string
		wantContentType string
	}{
		{name: "no body", body: nil, wantBody: "", wantContentType: ""},
		{name: "string body", body: "hello", wantBody: "hello", wantContentType: "text/plain"},
		{name: "bytes body", body: []byte("raw"), wantBody: "raw", wantContentType: "text/plain"},
		{name: "raw JSON body", body: json.RawMessage(`{"a":1}`), wantBody: `{"a":1}`, wantContentType: "application/json"},
		{name: "structured body", body: map[string]any{"user_id": "@u:x"}, wantBody: `{"user_id":"@u:x"}`, wantContentType: "application/json"},
		{
			name:            "explicit content type wins",
			body:            map[string]any{},
			header:          http.Header{"Content-Type": {"application/x-custom"}},
			wantBody:        `{}`,
			wantContentType: "application/x-custom",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resource, request, err := Prepare(InvokeRequest{
				Identity:  who,
				Method:    http.MethodPost,
				URL:       "/_matrix/client/v3/rooms/!{roomId}/invite",
				Variables: map[string]string{"roomId": "!r:x"},
				Body:      test.body,
				Header:    test.header,
			})
			if err != nil {
				t.Fatalf("Prepare failed: %v", err)
			}
			if resource != "https://x/_matrix/client/v3/rooms/!r%3Ax/invite" {
				t.Errorf("resource = %q", resource)
			}
			if string(request.Body) != test.wantBody {
				t.Errorf("body = %q, want %q", request.Body, test.wantBody)
			}
			if got := request.Header.Get("Content-Type"); got != test.wantContentType {
				t.Errorf("Content-Type = %q, want %q", got, test.wantContentType)
			}
			if got := request.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("Authorization = %q", got)
			}
		})
	}
}

func TestPrepareUnresolvedVariable(t *testing.T) {
	_, _, err := Prepare(InvokeRequest{URL: "/rooms/!{roomId}"})
	var unresolved *UnresolvedVariableError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected *UnresolvedVariableError, got %v", err)
	}
}

func TestInvokeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		if string(body) != `{"user_id":"@u:x"}` {
			t.Errorf("server got body %q", body)
		}
		writeJSON(writer, http.StatusOK, map[string]any{})
	}))
	defer server.Close()

	alerts := &alertLog{}
	invoker := newTestInvoker(t, InvokerConfig{Alerter: alerts})
	body, outcome := invoker.Invoke(context.Background(), InvokeRequest{
		Identity:  identity.Identity{Name: "admin", ServerAddress: server.URL},
		Method:    http.MethodPost,
		URL:       "/_matrix/client/v3/rooms/!{roomId}/invite",
		Variables: map[string]string{"roomId": "!r:x"},
		Body:      map[string]string{"user_id": "@u:x"},
	})
	if outcome != InvokeCompleted {
		t.Fatalf("outcome = %v, alerts: %v", outcome, alerts.all())
	}
	if string(body) != "{}\n" && string(body) != "{}" {
		t.Errorf("body = %q", body)
	}
	if len(alerts.all()) != 0 {
		t.Errorf("unexpected alerts: %v", alerts.all())
	}
}

func TestInvokeAlertsOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusForbidden, map[string]string{"errcode": "M_FORBIDDEN", "error": "nope"})
	}))
	defer server.Close()

	alerts := &alertLog{}
	invoker := newTestInvoker(t, InvokerConfig{Alerter: alerts})
	_, outcome := invoker.Invoke(context.Background(), InvokeRequest{
		Identity: identity.Identity{Name: "admin", ServerAddress: server.URL},
		URL:      "/_matrix/client/v3/joined_rooms",
	})
	if outcome != InvokeFailed {
		t.Fatalf("outcome = %v for a 403, want failed", outcome)
	}
	messages := alerts.all()
	if len(messages) != 1 || !strings.Contains(messages[0], "M_FORBIDDEN") {
		t.Errorf("alerts = %v, want one mentioning M_FORBIDDEN", messages)
	}
}

func TestCallPropagatesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusNotFound, map[string]string{"errcode": "M_NOT_FOUND"})
	}))
	defer server.Close()

	alerts := &alertLog{}
	invoker := newTestInvoker(t, InvokerConfig{Alerter: alerts})
	_, err := invoker.Call(context.Background(), InvokeRequest{
		Identity: identity.Identity{Name: "admin", ServerAddress: server.URL},
		URL:      "/x",
	})
	if !IsMatrixError(err, ErrCodeNotFound) {
		t.Errorf("Call error = %v, want M_NOT_FOUND", err)
	}
	if len(alerts.all()) != 0 {
		t.Error("Call must not alert")
	}
}

func TestInvokeConfirmation(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
		writeJSON(writer, http.StatusOK, map[string]any{})
	}))
	defer server.Close()

	request := InvokeRequest{
		Identity:             identity.Identity{Name: "admin", ServerAddress: server.URL},
		Method:               http.MethodPost,
		URL:                  "/_matrix/client/v3/rooms/!{roomId}/ban",
		Variables:            map[string]string{"roomId": "!r:x"},
		Body:                 map[string]string{"user_id": "@spam:x"},
		RequiresConfirmation: true,
	}

	t.Run("approved", func(t *testing.T) {
		hits.Store(0)
		var prompt string
		invoker := newTestInvoker(t, InvokerConfig{
			Confirmer: ConfirmFunc(func(_ context.Context, p string) (bool, error) {
				prompt = p
				return true, nil
			}),
		})
		if _, outcome := invoker.Invoke(context.Background(), request); outcome != InvokeCompleted {
			t.Fatalf("approved invocation outcome = %v", outcome)
		}
		if hits.Load() != 1 {
			t.Errorf("server hits = %d, want 1", hits.Load())
		}
		if prompt != "Send POST /_matrix/client/v3/rooms/!{roomId}/ban as admin?" {
			t.Errorf("prompt = %q", prompt)
		}
	})

	t.Run("declined", func(t *testing.T) {
		hits.Store(0)
		alerts := &alertLog{}
		invoker := newTestInvoker(t, InvokerConfig{
			Alerter:   alerts,
			Confirmer: ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil }),
		})
		if _, outcome := invoker.Invoke(context.Background(), request); outcome != InvokeDeclined {
			t.Fatalf("declined invocation outcome = %v", outcome)
		}
		if hits.Load() != 0 {
			t.Errorf("declined invocation reached the server")
		}
		if len(alerts.all()) != 0 {
			t.Errorf("a plain decline must not alert: %v", alerts.all())
		}
	})

	t.Run("no confirmer", func(t *testing.T) {
		hits.Store(0)
		alerts := &alertLog{}
		invoker := newTestInvoker(t, InvokerConfig{Alerter: alerts})
		if _, outcome := invoker.Invoke(context.Background(), request); outcome != InvokeFailed {
			t.Fatalf("invocation without a confirmer outcome = %v", outcome)
		}
		if hits.Load() != 0 || len(alerts.all()) != 1 {
			t.Errorf("hits = %d, alerts = %v", hits.Load(), alerts.all())
		}
	})

	t.Run("timeout fails without sending", func(t *testing.T) {
		hits.Store(0)
		alerts := &alertLog{}
		fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		release := make(chan struct{})
		defer close(release)
		invoker := newTestInvoker(t, InvokerConfig{
			Alerter:        alerts,
			Clock:          fake,
			ConfirmTimeout: 5 * time.Minute,
			// Ignores ctx on purpose: the invoker must not wait for it.
			Confirmer: ConfirmFunc(func(context.Context, string) (bool, error) {
				<-release
				return true, nil
			}),
		})

		outcomes := make(chan InvokeOutcome, 1)
		go func() {
			_, outcome := invoker.Invoke(context.Background(), request)
			outcomes <- outcome
		}()
		fake.WaitForTimers(1)
		select {
		case outcome := <-outcomes:
			t.Fatalf("Invoke returned %v before the timeout", outcome)
		default:
		}
		fake.Advance(5 * time.Minute)

		if outcome := <-outcomes; outcome != InvokeFailed {
			t.Fatalf("timed-out confirmation outcome = %v, want failed", outcome)
		}
		if hits.Load() != 0 {
			t.Error("timed-out confirmation reached the server")
		}
		messages := alerts.all()
		if len(messages) != 1 || !strings.Contains(messages[0], "deadline exceeded") {
			t.Errorf("alerts = %v, want a deadline alert", messages)
		}
	})

	t.Run("confirmer context canceled on return", func(t *testing.T) {
		fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		canceled := make(chan struct{})
		invoker := newTestInvoker(t, InvokerConfig{
			Clock:          fake,
			ConfirmTimeout: time.Second,
			Confirmer: ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
				<-ctx.Done()
				close(canceled)
				return false, ctx.Err()
			}),
		})
		go func() {
			fake.WaitForTimers(1)
			fake.Advance(time.Second)
		}()
		if approved, err := invoker.Confirm(context.Background(), "Ban?"); approved || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Confirm = %v, %v; want a deadline error", approved, err)
		}
		<-canceled
	})

	t.Run("custom prompt", func(t *testing.T) {
		var prompt string
		invoker := newTestInvoker(t, InvokerConfig{
			Confirmer: ConfirmFunc(func(_ context.Context, p string) (bool, error) {
				prompt = p
				return false, nil
			}),
		})
		custom := request
		custom.Prompt = "Ban @spam:x?"
		invoker.Invoke(context.Background(), custom)
		if prompt != "Ban @spam:x?" {
			t.Errorf("prompt = %q", prompt)
		}
	})
}
