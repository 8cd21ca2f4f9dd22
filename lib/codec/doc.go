// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the console's binary encoding configuration:
// CBOR with Core Deterministic Encoding (RFC 8949 §4.2) and zstd stream
// compression.
//
// JSON remains the format of everything that crosses the Matrix API and
// of CLI output. CBOR is used for saved artifacts such as network-log
// snapshots, where compact size and byte-for-byte reproducible output
// matter more than human readability.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Stream helpers wrap an io.Writer or io.Reader:
//
//	writer, err := codec.NewZstdWriter(file)
//	defer writer.Close()
//	err = codec.NewEncoder(writer).Encode(value)
package codec
