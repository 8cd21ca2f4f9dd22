// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bureau-foundation/matrix-console/lib/clock"
	"github.com/bureau-foundation/matrix-console/lib/netutil"
	"github.com/bureau-foundation/matrix-console/lib/notify"
)

// snippetLimit bounds the body excerpt carried by NotJSONError.
const snippetLimit = 200

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Sequence allocates request IDs. If nil, the dispatcher owns a
	// private sequence starting at 1.
	Sequence *Sequence
	// Bus receives a RequestStarted and a RequestFinished for every
	// call. If nil, nothing is published.
	Bus *notify.Bus[Notification]
	// DryRun short-circuits every call before the network: the
	// notifications are still published and the result is {}.
	DryRun bool
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Clock stamps SentAt and ReceivedAt. If nil, clock.Real() is used.
	Clock clock.Clock
}

// Dispatcher performs HTTP calls against a homeserver and classifies
// their outcomes. It is the only component that touches the network.
// Safe for concurrent use; concurrent calls are told apart by request
// ID.
type Dispatcher struct {
	httpClient *http.Client
	sequence   *Sequence
	bus        *notify.Bus[Notification]
	dryRun     bool
	logger     *slog.Logger
	clock      clock.Clock

	// startMu makes ID allocation and the started notification one
	// step, so subscribers see RequestStarted in ID order.
	startMu sync.Mutex
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	sequence := config.Sequence
	if sequence == nil {
		sequence = NewSequence()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		httpClient: httpClient,
		sequence:   sequence,
		bus:        config.Bus,
		dryRun:     config.DryRun,
		logger:     logger,
		clock:      clock.OrReal(config.Clock),
	}
}

// DryRun reports whether the dispatcher short-circuits calls.
func (d *Dispatcher) DryRun() bool {
	return d.dryRun
}

// Dispatch sends request to resource and returns the parsed JSON body.
//
// Errors fall into three kinds:
//   - transport failures from the HTTP client (including a context that
//     ends before the body is read) are returned unchanged;
//   - a body that is not valid JSON returns *NotJSONError, whatever the
//     status;
//   - a JSON body with a non-2xx status returns *MatrixError.
//
// Exactly one RequestStarted and one RequestFinished are published per
// call. RequestStarted is published before the network call begins.
func (d *Dispatcher) Dispatch(ctx context.Context, resource string, request Request) (json.RawMessage, error) {
	requestID := d.start(resource, request)

	logger := d.logger.With(
		"request_id", requestID,
		"method", request.method(),
		"summary", Summarize(resource, request),
	)

	if d.dryRun {
		d.finish(RequestFinished{RequestID: requestID, DryRun: true})
		logger.Debug("dry run, request not sent")
		return json.RawMessage("{}"), nil
	}

	var body io.Reader
	if request.Body != nil {
		body = bytes.NewReader(request.Body)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, request.method(), resource, body)
	if err != nil {
		// An unusable URL or method fails before anything is sent, the
		// way a fetch primitive throws: finish without a status.
		d.finish(RequestFinished{RequestID: requestID})
		return nil, fmt.Errorf("messaging: building request for %s: %w", resource, err)
	}
	for key, values := range request.Header {
		httpRequest.Header[key] = append([]string(nil), values...)
	}

	response, err := d.httpClient.Do(httpRequest)
	if err != nil {
		d.finish(RequestFinished{RequestID: requestID})
		logger.Debug("request failed in transport",
			"class", netutil.ClassifyTransportError(err),
			"error", err,
		)
		return nil, err
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		// The status line arrived but the body did not: still a
		// network-level failure from the caller's point of view.
		d.finish(RequestFinished{RequestID: requestID})
		logger.Debug("reading response body failed",
			"status", response.StatusCode,
			"error", err,
		)
		return nil, err
	}

	if !json.Valid(responseBody) {
		d.finish(RequestFinished{
			RequestID: requestID,
			Status:    response.StatusCode,
			NotJSON:   true,
		})
		logger.Debug("response is not JSON", "status", response.StatusCode)
		return nil, &NotJSONError{
			Resource:   resource,
			StatusCode: response.StatusCode,
			Snippet:    netutil.Snippet(responseBody, snippetLimit),
		}
	}

	// All Matrix error responses use the same JSON shape. The fields are
	// read from any JSON object body, success or not, for the log.
	var envelope struct {
		Errcode string `json:"errcode"`
		Error   string `json:"error"`
	}
	var content map[string]any
	if isJSONObject(responseBody) {
		if err := json.Unmarshal(responseBody, &content); err == nil {
			envelope.Errcode, _ = content["errcode"].(string)
			envelope.Error, _ = content["error"].(string)
		}
	}

	d.finish(RequestFinished{
		RequestID: requestID,
		Status:    response.StatusCode,
		Errcode:   envelope.Errcode,
		Error:     envelope.Error,
	})

	if response.StatusCode < 200 || response.StatusCode > 299 {
		logger.Debug("homeserver returned an error",
			"status", response.StatusCode,
			"errcode", envelope.Errcode,
		)
		return nil, &MatrixError{
			Code:       envelope.Errcode,
			Message:    envelope.Error,
			StatusCode: response.StatusCode,
			Content:    content,
		}
	}

	logger.Debug("request succeeded", "status", response.StatusCode)
	return json.RawMessage(responseBody), nil
}

// start allocates an ID and publishes RequestStarted as one step.
func (d *Dispatcher) start(resource string, request Request) uint64 {
	d.startMu.Lock()
	defer d.startMu.Unlock()

	recorded := request.Clone()
	recorded.Method = request.method()

	requestID := d.sequence.Next()
	d.bus.Publish(RequestStarted{
		RequestID: requestID,
		Resource:  resource,
		Request:   recorded,
		SentAt:    d.clock.Now(),
	})
	return requestID
}

func (d *Dispatcher) finish(finished RequestFinished) {
	finished.ReceivedAt = d.clock.Now()
	d.bus.Publish(finished)
}

// isJSONObject reports whether a valid JSON document is an object.
func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}
