// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
	"github.com/bureau-foundation/matrix-console/lib/netlog"
	"github.com/bureau-foundation/matrix-console/lib/tui"
)

func logCommand(streams cli.Streams) *cli.Command {
	return &cli.Command{
		Name:    "log",
		Summary: "Inspect saved network logs",
		Description: `Inspect network log snapshots saved with --network-log or the
network_log.export config setting. Snapshots are JSON or CBOR,
optionally zstd-compressed (.json, .cbor, .json.zst, .cbor.zst).`,
		Subcommands: []*cli.Command{
			logShowCommand(streams),
			logConvertCommand(streams),
			logDumpCommand(streams),
		},
	}
}

type logShowParams struct {
	cli.JSONOutput
	Width      int    `json:"width"       flag:"width"       desc:"truncate lines to this many columns (default: terminal width)"`
	Timing     bool   `json:"timing"      flag:"timing"      desc:"show round-trip times"`
	FailedOnly bool   `json:"failed_only" flag:"failed-only" desc:"show only requests that did not succeed"`
	Curl       int    `json:"curl"        flag:"curl"        desc:"print the curl command for this request ID instead of the list"`
	Color      string `json:"color"       flag:"color"       desc:"color output: auto, always, or never" default:"auto"`
}

func logShowCommand(streams cli.Streams) *cli.Command {
	var params logShowParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print a saved network log",
		Usage:   "matrix-console log show <snapshot> [flags]",
		Examples: []cli.Example{
			{
				Description: "Show the failures from last night's bulk run",
				Command:     "matrix-console log show /var/tmp/bulk-kick.cbor.zst --failed-only",
			},
			{
				Description: "Reproduce request #12 with curl",
				Command:     "matrix-console log show session.json --curl 12",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: matrix-console log show <snapshot> [flags]")
			}
			snapshot, err := loadSnapshot(args[0])
			if err != nil {
				return err
			}

			if params.Curl != 0 {
				for _, record := range snapshot.Records {
					if record.ID == uint64(params.Curl) {
						// Snapshots are redacted already.
						_, err := fmt.Fprintln(streams.Out, record.Curl(false))
						return err
					}
				}
				return cli.NotFound("request #%d is not in %s", params.Curl, args[0])
			}

			records := snapshot.Records
			if params.FailedOnly {
				records = failedRecords(records)
			}
			if done, err := params.EmitJSON(streams.Out, records); done {
				return err
			}

			renderer, err := logRenderer(params.Color, streams)
			if err != nil {
				return err
			}
			width := params.Width
			if width == 0 {
				width = cli.TerminalWidth(streams.Out)
			}
			fmt.Fprintf(streams.Out, "%d of %d requests, saved %s\n", len(records), len(snapshot.Records), savedAt(snapshot))
			theme := tui.DefaultTheme
			return netlog.Render(streams.Out, records, netlog.RenderOptions{
				Renderer:   renderer,
				Theme:      &theme,
				Width:      width,
				Truncated:  snapshot.Truncated,
				ShowTiming: params.Timing,
			})
		},
	}
}

func logConvertCommand(streams cli.Streams) *cli.Command {
	return &cli.Command{
		Name:    "convert",
		Summary: "Re-encode a saved network log",
		Description: `Read a snapshot and write it in the format the output file name
selects, e.g. to compress a JSON log or to make a CBOR log readable.`,
		Usage: "matrix-console log convert <input> <output>",
		Examples: []cli.Example{
			{
				Command: "matrix-console log convert session.cbor.zst session.json",
			},
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) != 2 {
				return cli.Validation("usage: matrix-console log convert <input> <output>")
			}
			if _, _, err := netlog.FormatForPath(args[1]); err != nil {
				return cli.Validation("%w", err)
			}
			snapshot, err := loadSnapshot(args[0])
			if err != nil {
				return err
			}
			if err := netlog.SaveFile(args[1], snapshot); err != nil {
				return cli.Internal("%w", err)
			}
			_, err = fmt.Fprintf(streams.Out, "wrote %d records to %s\n", len(snapshot.Records), args[1])
			return err
		},
	}
}

func logDumpCommand(streams cli.Streams) *cli.Command {
	return &cli.Command{
		Name:    "dump",
		Summary: "Print a CBOR snapshot in diagnostic notation",
		Description: `Print a CBOR snapshot as CBOR diagnostic notation (RFC 8949)
without decoding it into records. Useful for snapshots written by a
different version of the console.`,
		Usage: "matrix-console log dump <snapshot.cbor[.zst]>",
		Run: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: matrix-console log dump <snapshot>")
			}
			format, _, err := netlog.FormatForPath(args[0])
			if err != nil {
				return cli.Validation("%w", err)
			}
			if format != netlog.FormatCBOR {
				return cli.Validation("%s is not a CBOR snapshot; use 'log show --json' for JSON snapshots", args[0])
			}
			diagnostic, err := netlog.DiagnoseFile(args[0])
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return cli.NotFound("snapshot %s does not exist", args[0])
				}
				return cli.Validation("%w", err)
			}
			_, err = fmt.Fprintln(streams.Out, diagnostic)
			return err
		},
	}
}

func loadSnapshot(path string) (netlog.Snapshot, error) {
	if _, _, err := netlog.FormatForPath(path); err != nil {
		return netlog.Snapshot{}, cli.Validation("%w", err)
	}
	snapshot, err := netlog.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return netlog.Snapshot{}, cli.NotFound("snapshot %s does not exist", path)
		}
		return netlog.Snapshot{}, cli.Validation("%w", err)
	}
	return snapshot, nil
}

// failedRecords keeps the records whose request did not succeed:
// transport failures, non-JSON bodies, and non-2xx statuses. Pending
// and dry-run records are dropped.
func failedRecords(records []netlog.Record) []netlog.Record {
	var failed []netlog.Record
	for _, record := range records {
		if !record.Finished || record.DryRun {
			continue
		}
		if record.NotJSON || record.Status < 200 || record.Status >= 300 {
			failed = append(failed, record)
		}
	}
	return failed
}

// logRenderer builds the renderer for --color. "always" forces 256
// colors even when the output is not a terminal.
func logRenderer(mode string, streams cli.Streams) (*lipgloss.Renderer, error) {
	switch mode {
	case "auto":
		return tui.NewRenderer(streams.Out, cli.IsTerminal(streams.Out)), nil
	case "always":
		renderer := tui.NewRenderer(streams.Out, true)
		renderer.SetColorProfile(termenv.ANSI256)
		return renderer, nil
	case "never":
		return tui.NewRenderer(streams.Out, false), nil
	}
	return nil, cli.Validation("--color must be auto, always, or never (got %q)", mode)
}

// savedAt is how snapshot times are shown.
func savedAt(snapshot netlog.Snapshot) string {
	if snapshot.SavedAt.IsZero() {
		return "unknown"
	}
	return snapshot.SavedAt.Local().Format(time.DateTime)
}
