// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netlog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bureau-foundation/matrix-console/messaging"
)

// Status labels for records that have no HTTP status to show.
const (
	LabelTransport = "NET"
	LabelNotJSON   = "JSON?"
	LabelDryRun    = "DRY"
	LabelPending   = "..."
)

// Record is one request as the network log saw it: the request fields
// from RequestStarted, and once Finished is set, the outcome fields
// from RequestFinished.
type Record struct {
	ID       uint64      `json:"id"`
	Resource string      `json:"resource"`
	Method   string      `json:"method"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	SentAt   time.Time   `json:"sent_at"`

	Finished   bool      `json:"finished"`
	ReceivedAt time.Time `json:"received_at,omitzero"`
	Status     int       `json:"status,omitempty"`
	Errcode    string    `json:"errcode,omitempty"`
	Error      string    `json:"error,omitempty"`
	NotJSON    bool      `json:"not_json,omitempty"`
	DryRun     bool      `json:"dry_run,omitempty"`
}

// StatusLabel renders the record's outcome in a few characters: the
// HTTP status, or NET for a transport failure, JSON? for a non-JSON
// body, DRY for a dry run, and "..." while the request is in flight.
func (r Record) StatusLabel() string {
	switch {
	case !r.Finished:
		return LabelPending
	case r.DryRun:
		return LabelDryRun
	case r.NotJSON:
		return LabelNotJSON
	case r.Status == 0:
		return LabelTransport
	default:
		return strconv.Itoa(r.Status)
	}
}

// Duration is the time between send and receipt. Zero while pending.
func (r Record) Duration() time.Duration {
	if !r.Finished || r.ReceivedAt.IsZero() {
		return 0
	}
	return r.ReceivedAt.Sub(r.SentAt)
}

// Summary is the one-line method-and-path form of the request.
func (r Record) Summary() string {
	return messaging.Summarize(r.Resource, r.request())
}

// Curl renders the request as a curl command. With mask, the access
// token is replaced by a placeholder.
func (r Record) Curl(mask bool) string {
	return messaging.ToCurlCommand(r.Resource, r.request(), mask)
}

// Redacted returns a copy safe to write to disk: the Authorization
// header carries a placeholder instead of the access token.
func (r Record) Redacted() Record {
	redacted := r
	redacted.Header = r.Header.Clone()
	if redacted.Header.Get("Authorization") != "" {
		redacted.Header.Set("Authorization", "Bearer your_access_token")
	}
	if r.Body != nil {
		redacted.Body = append([]byte(nil), r.Body...)
	}
	return redacted
}

func (r Record) request() messaging.Request {
	return messaging.Request{Method: r.Method, Header: r.Header, Body: r.Body}
}

// clone deep-copies the mutable fields so callers of Records cannot
// reach into the log.
func (r Record) clone() Record {
	copied := r
	if r.Header != nil {
		copied.Header = r.Header.Clone()
	}
	if r.Body != nil {
		copied.Body = append([]byte(nil), r.Body...)
	}
	return copied
}
