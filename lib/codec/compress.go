// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdSuffix is the file suffix that selects zstd compression for saved
// artifacts.
const ZstdSuffix = ".zst"

// NewZstdWriter returns a writer that zstd-compresses into w at the
// default level. The caller must Close it to flush the final frame; Close
// does not close w.
func NewZstdWriter(w io.Writer) (io.WriteCloser, error) {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("codec: creating zstd writer: %w", err)
	}
	return encoder, nil
}

// NewZstdReader returns a reader that decompresses zstd data from r.
// The caller must Close it to release decoder goroutines.
func NewZstdReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("codec: creating zstd reader: %w", err)
	}
	return decoder.IOReadCloser(), nil
}
