// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bureau-foundation/matrix-console/lib/clock"
	"github.com/bureau-foundation/matrix-console/lib/identity"
)

// Confirmer asks the operator to approve an action. Confirm blocks until
// the operator answers or ctx ends.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Alerter shows a message to the operator. It is the channel through
// which Invoke reports failures instead of returning them.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// AlertFunc adapts a function to the Alerter interface.
type AlertFunc func(ctx context.Context, message string)

// Alert calls f.
func (f AlertFunc) Alert(ctx context.Context, message string) {
	f(ctx, message)
}

// InvokeOutcome is how an Invoke ended.
type InvokeOutcome int

const (
	// InvokeCompleted means the call was sent and succeeded.
	InvokeCompleted InvokeOutcome = iota
	// InvokeDeclined means the operator answered no. Nothing was sent
	// and nothing was alerted.
	InvokeDeclined
	// InvokeFailed means the confirmation or the call failed. The
	// failure was shown through the Alerter.
	InvokeFailed
)

func (o InvokeOutcome) String() string {
	switch o {
	case InvokeCompleted:
		return "completed"
	case InvokeDeclined:
		return "declined"
	case InvokeFailed:
		return "failed"
	}
	return fmt.Sprintf("InvokeOutcome(%d)", int(o))
}

// InvokeRequest describes one templated call.
type InvokeRequest struct {
	// Identity supplies the server address and credentials.
	Identity identity.Identity
	// Method is the HTTP method. Empty means GET.
	Method string
	// URL is the path template appended to Identity.ServerAddress, with
	// !{key} placeholders filled from Variables.
	URL string
	// Variables holds placeholder values. Values are percent-encoded.
	Variables map[string]string
	// Body is sent as-is when it is a string or []byte (text/plain),
	// and JSON-encoded otherwise (application/json). Nil sends no body.
	// An explicit Content-Type in Header always wins.
	Body any
	// Header holds extra request headers.
	Header http.Header
	// RequiresConfirmation makes Invoke ask the Confirmer first.
	RequiresConfirmation bool
	// Prompt is the confirmation question. Empty uses a generated one.
	Prompt string
}

// InvokerConfig holds configuration for creating an Invoker.
type InvokerConfig struct {
	// Dispatcher performs the calls. Required.
	Dispatcher *Dispatcher
	// Confirmer approves calls with RequiresConfirmation. If nil, such
	// calls fail without being sent.
	Confirmer Confirmer
	// Alerter receives Invoke failures. If nil, failures are logged at
	// warn level only.
	Alerter Alerter
	// ConfirmTimeout bounds how long Invoke waits for an answer. Zero
	// waits until the caller's context ends. An expired wait fails the
	// invocation without sending it.
	ConfirmTimeout time.Duration
	// Clock times the confirmation wait. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Invoker turns templated requests into dispatched calls. It is the
// primitive named endpoints, forms, and bulk actions are built on.
type Invoker struct {
	dispatcher     *Dispatcher
	confirmer      Confirmer
	alerter        Alerter
	confirmTimeout time.Duration
	clock          clock.Clock
	logger         *slog.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(config InvokerConfig) (*Invoker, error) {
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("messaging: InvokerConfig.Dispatcher is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		dispatcher:     config.Dispatcher,
		confirmer:      config.Confirmer,
		alerter:        config.Alerter,
		confirmTimeout: config.ConfirmTimeout,
		clock:          clock.OrReal(config.Clock),
		logger:         logger,
	}, nil
}

// Prepare resolves an InvokeRequest into the final URL and
// authenticated Request: fills the template, joins it to the server
// address, serializes the body, and applies credentials. Nothing is
// sent, so Prepare also backs the curl export.
func Prepare(request InvokeRequest) (string, Request, error) {
	path, err := FillInVariables(request.URL, request.Variables)
	if err != nil {
		return "", Request{}, err
	}
	resource := request.Identity.ServerAddress + path

	bare := Request{Method: request.Method}
	if request.Header != nil {
		bare.Header = request.Header.Clone()
	} else {
		bare.Header = make(http.Header)
	}

	var contentType string
	switch body := request.Body.(type) {
	case nil:
	case string:
		bare.Body = []byte(body)
		contentType = "text/plain"
	case []byte:
		bare.Body = append([]byte(nil), body...)
		contentType = "text/plain"
	case json.RawMessage:
		bare.Body = append([]byte(nil), body...)
		contentType = "application/json"
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return "", Request{}, fmt.Errorf("messaging: encoding request body: %w", err)
		}
		bare.Body = encoded
		contentType = "application/json"
	}
	if contentType != "" && bare.Header.Get("Content-Type") == "" {
		bare.Header.Set("Content-Type", contentType)
	}

	resource, final := Authenticate(request.Identity, resource, bare)
	return resource, final, nil
}

// Call performs request and returns the response body. Errors are
// returned to the caller; no confirmation is asked. Bulk actions and
// typed endpoint wrappers use Call.
func (i *Invoker) Call(ctx context.Context, request InvokeRequest) (json.RawMessage, error) {
	resource, prepared, err := Prepare(request)
	if err != nil {
		return nil, err
	}
	return i.dispatcher.Dispatch(ctx, resource, prepared)
}

// Invoke is the operator-facing form of Call. When the request requires
// confirmation it asks first: a plain "no" resolves with InvokeDeclined
// and no effect, and a confirmation that errors or times out ends with
// InvokeFailed, also without effect. Any error is shown through the
// Alerter and not returned, so the caller only branches on the outcome.
func (i *Invoker) Invoke(ctx context.Context, request InvokeRequest) (json.RawMessage, InvokeOutcome) {
	if request.RequiresConfirmation {
		approved, err := i.Confirm(ctx, confirmPrompt(request))
		if err != nil {
			i.alert(ctx, fmt.Sprintf("Confirmation failed: %v", err))
			return nil, InvokeFailed
		}
		if !approved {
			i.logger.Info("invocation declined", "url", request.URL, "method", request.Method)
			return nil, InvokeDeclined
		}
	}

	body, err := i.Call(ctx, request)
	if err != nil {
		i.alert(ctx, Describe(err))
		return nil, InvokeFailed
	}
	return body, InvokeCompleted
}

// Confirm asks the Confirmer, bounded by the configured timeout. The
// Confirmer's context is canceled once Confirm returns, so a prompt
// still reading input is told to stop.
func (i *Invoker) Confirm(ctx context.Context, prompt string) (bool, error) {
	if i.confirmer == nil {
		return false, errors.New("no confirmer available for an action that requires confirmation")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type answer struct {
		approved bool
		err      error
	}
	answers := make(chan answer, 1)
	go func() {
		approved, err := i.confirmer.Confirm(ctx, prompt)
		answers <- answer{approved, err}
	}()

	// Nil when unbounded: a nil channel never fires.
	var expired <-chan time.Time
	if i.confirmTimeout > 0 {
		expired = i.clock.After(i.confirmTimeout)
	}

	// A Confirmer that ignores ctx must not hold the invocation past
	// the timeout; its eventual answer is dropped.
	select {
	case result := <-answers:
		return result.approved, result.err
	case <-expired:
		return false, fmt.Errorf("no answer within %v: %w", i.confirmTimeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return false, fmt.Errorf("no answer: %w", ctx.Err())
	}
}

// confirmPrompt is the request's prompt, or a generated one naming the
// method, template, and identity.
func confirmPrompt(request InvokeRequest) string {
	if request.Prompt != "" {
		return request.Prompt
	}
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	return fmt.Sprintf("Send %s %s as %s?", method, request.URL, request.Identity.Name)
}

func (i *Invoker) alert(ctx context.Context, message string) {
	i.logger.Warn("invocation failed", "message", message)
	if i.alerter != nil {
		i.alerter.Alert(ctx, message)
	}
}
