// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netlog keeps the console's network log: a bounded, ordered
// record of every request the dispatcher sent, built purely from the
// dispatcher's started and finished notifications.
//
// A [Log] attaches to a dispatcher bus with [Log.Attach]. Records appear
// when a request starts and are completed in place when it finishes, so
// pending requests are visible. When the log is full the oldest record
// is evicted and [Log.Truncated] stays true from then on.
//
// Snapshots export the log (with access tokens masked) as JSON or CBOR,
// optionally zstd-compressed, and [Render] prints records as styled
// terminal lines.
package netlog
