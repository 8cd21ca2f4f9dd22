// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"net/http"
	"sync/atomic"
	"time"
)

// Request is everything about an outbound call except its URL: the
// method, headers, and raw body. Functions that augment a Request return
// a new one and never modify the caller's.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// Clone returns a deep copy of r. The header map in the copy is never
// nil.
func (r Request) Clone() Request {
	clone := Request{Method: r.Method}
	if r.Header != nil {
		clone.Header = r.Header.Clone()
	} else {
		clone.Header = make(http.Header)
	}
	if r.Body != nil {
		clone.Body = append([]byte(nil), r.Body...)
	}
	return clone
}

// method returns the HTTP method, defaulting to GET.
func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Sequence hands out request IDs. IDs start at 1, increase by one per
// call, and are never reused for the lifetime of the Sequence. The
// zero value is ready to use. Safe for concurrent use.
type Sequence struct {
	last atomic.Uint64
}

// NewSequence returns a sequence whose first ID is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next ID.
func (s *Sequence) Next() uint64 {
	return s.last.Add(1)
}

// Notification is published on a dispatcher's bus for every request. It
// is one of [RequestStarted] or [RequestFinished].
type Notification interface {
	// ID returns the request ID the notification belongs to.
	ID() uint64

	notification()
}

// RequestStarted is published before the network call begins.
type RequestStarted struct {
	RequestID uint64
	Resource  string
	Request   Request
	SentAt    time.Time
}

// ID implements Notification.
func (n RequestStarted) ID() uint64 { return n.RequestID }

func (RequestStarted) notification() {}

// RequestFinished is published exactly once per started request, when
// the outcome is known. Which fields are set depends on the outcome:
//
//   - transport failure: only RequestID and ReceivedAt (Status is 0)
//   - dry run: RequestID, ReceivedAt, DryRun
//   - non-JSON body: Status and NotJSON
//   - JSON body: Status, plus Errcode and Error when the body carried them
type RequestFinished struct {
	RequestID  uint64
	ReceivedAt time.Time
	Status     int
	Errcode    string
	Error      string
	NotJSON    bool
	DryRun     bool
}

// ID implements Notification.
func (n RequestFinished) ID() uint64 { return n.RequestID }

func (RequestFinished) notification() {}

// HasStatus reports whether an HTTP response was received.
func (n RequestFinished) HasStatus() bool {
	return n.Status != 0
}
