// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Transport failure classes returned by ClassifyTransportError.
const (
	TransportCanceled = "canceled"
	TransportTimeout  = "timeout"
	TransportDNS      = "dns"
	TransportRefused  = "connection refused"
	TransportReset    = "connection reset"
	TransportEOF      = "unexpected eof"
	TransportOther    = "network"
)

// ClassifyTransportError returns a short label for an error produced by
// the HTTP transport before or while reading a response. Returns "" for
// nil. Errors that match no known class are labelled TransportOther.
func ClassifyTransportError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return TransportCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return TransportRefused
		case syscall.ECONNRESET, syscall.EPIPE:
			return TransportReset
		}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return TransportEOF
	}
	return TransportOther
}
