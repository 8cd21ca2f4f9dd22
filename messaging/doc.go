// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is the request pipeline of the Matrix admin console:
// everything between "call this endpoint as this identity" and a parsed
// response or a classified error.
//
// [Dispatcher] is the only component that touches the network. Every
// call gets an ID from a [Sequence] and produces exactly one
// [RequestStarted] and one [RequestFinished] on a notify.Bus, which is
// how the network log and the metrics collector observe traffic without
// the dispatcher knowing about either. Outcomes fall into three error
// kinds: transport failures (returned unchanged from net/http),
// [*NotJSONError] for unparsable bodies, and [*MatrixError] for JSON
// bodies with a non-2xx status. [ErrorCode] and [IsMatrixError] match by
// errcode capability rather than concrete type.
//
// [Authenticate] is a pure function that applies an identity's access
// token and Application Service masquerade parameter to a bare request.
// [ToCurlCommand] renders the result as a shell command, optionally
// with the token masked.
//
// [Invoker] fills !{key} URL templates ([FillInVariables]), serializes
// bodies, asks a [Confirmer] before destructive calls, and reports
// failures through an [Alerter]. The named [Endpoint] catalog and the
// typed [Session] wrappers are built on it, with responses checked
// against their schemas by [DecodeResponse].
//
// URLs are built by string concatenation rather than url.URL to avoid
// double-encoding path segments that are already percent-encoded.
package messaging
