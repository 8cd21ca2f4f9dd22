// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bureau-foundation/matrix-console/lib/codec"
)

// SnapshotVersion is the current snapshot layout version.
const SnapshotVersion = 1

// Snapshot is an exported copy of a network log. Access tokens are
// replaced by a placeholder before a snapshot is taken.
type Snapshot struct {
	Version    int       `json:"version"`
	SavedAt    time.Time `json:"saved_at,omitzero"`
	MaxRecords int       `json:"max_records"`
	Truncated  bool      `json:"truncated"`
	Records    []Record  `json:"records"`
}

// Format names a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// FormatForPath picks the encoding from a file name: ".json" or
// ".cbor", optionally followed by ".zst" for zstd compression.
func FormatForPath(path string) (format Format, compressed bool, err error) {
	name := filepath.Base(path)
	if trimmed, ok := strings.CutSuffix(name, codec.ZstdSuffix); ok {
		name = trimmed
		compressed = true
	}
	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, compressed, nil
	case ".cbor":
		return FormatCBOR, compressed, nil
	default:
		return "", false, fmt.Errorf("netlog: cannot infer snapshot format from %q (want .json, .cbor, optionally with %s)", path, codec.ZstdSuffix)
	}
}

// WriteSnapshot encodes snapshot to w.
func WriteSnapshot(w io.Writer, format Format, snapshot Snapshot) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(snapshot); err != nil {
			return fmt.Errorf("netlog: encoding JSON snapshot: %w", err)
		}
	case FormatCBOR:
		if err := codec.NewEncoder(w).Encode(snapshot); err != nil {
			return fmt.Errorf("netlog: encoding CBOR snapshot: %w", err)
		}
	default:
		return fmt.Errorf("netlog: unknown snapshot format %q", format)
	}
	return nil
}

// ReadSnapshot decodes a snapshot from r.
func ReadSnapshot(r io.Reader, format Format) (Snapshot, error) {
	var snapshot Snapshot
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
			return Snapshot{}, fmt.Errorf("netlog: decoding JSON snapshot: %w", err)
		}
	case FormatCBOR:
		if err := codec.NewDecoder(r).Decode(&snapshot); err != nil {
			return Snapshot{}, fmt.Errorf("netlog: decoding CBOR snapshot: %w", err)
		}
	default:
		return Snapshot{}, fmt.Errorf("netlog: unknown snapshot format %q", format)
	}
	if snapshot.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("netlog: unsupported snapshot version %d (want %d)", snapshot.Version, SnapshotVersion)
	}
	return snapshot, nil
}

// SaveFile writes snapshot to path in the format its name selects. The
// file is written to a temporary name and renamed into place.
func SaveFile(path string, snapshot Snapshot) (err error) {
	format, compressed, err := FormatForPath(path)
	if err != nil {
		return err
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("netlog: creating snapshot file: %w", err)
	}
	defer func() {
		if err != nil {
			temporary.Close()
			os.Remove(temporary.Name())
		}
	}()

	var writer io.Writer = temporary
	var compressor io.WriteCloser
	if compressed {
		compressor, err = codec.NewZstdWriter(temporary)
		if err != nil {
			return err
		}
		writer = compressor
	}
	if err = WriteSnapshot(writer, format, snapshot); err != nil {
		return err
	}
	if compressor != nil {
		if err = compressor.Close(); err != nil {
			return fmt.Errorf("netlog: flushing compressed snapshot: %w", err)
		}
	}
	if err = temporary.Close(); err != nil {
		return fmt.Errorf("netlog: closing snapshot file: %w", err)
	}
	if err = os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("netlog: renaming snapshot into place: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot saved by SaveFile.
func LoadFile(path string) (Snapshot, error) {
	format, reader, closeFile, err := openSnapshot(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer closeFile()

	snapshot, err := ReadSnapshot(reader, format)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return snapshot, nil
}

// DiagnoseFile returns the CBOR diagnostic notation of a CBOR snapshot
// without decoding it into a Snapshot, so files written by other
// snapshot versions can still be read.
func DiagnoseFile(path string) (string, error) {
	format, reader, closeFile, err := openSnapshot(path)
	if err != nil {
		return "", err
	}
	defer closeFile()

	if format != FormatCBOR {
		return "", fmt.Errorf("netlog: %s is not a CBOR snapshot", path)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("netlog: reading %s: %w", path, err)
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		return "", fmt.Errorf("netlog: diagnosing %s: %w", path, err)
	}
	return diagnostic, nil
}

// openSnapshot opens path and returns a reader over its decompressed
// contents. closeFile releases the file and any decompressor.
func openSnapshot(path string) (format Format, reader io.Reader, closeFile func(), err error) {
	format, compressed, err := FormatForPath(path)
	if err != nil {
		return "", nil, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("netlog: opening snapshot: %w", err)
	}
	if !compressed {
		return format, file, func() { file.Close() }, nil
	}

	decompressor, err := codec.NewZstdReader(file)
	if err != nil {
		file.Close()
		return "", nil, nil, err
	}
	return format, decompressor, func() {
		decompressor.Close()
		file.Close()
	}, nil
}
