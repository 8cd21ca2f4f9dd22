// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
	"github.com/bureau-foundation/matrix-console/lib/bulk"
	"github.com/bureau-foundation/matrix-console/lib/config"
	"github.com/bureau-foundation/matrix-console/lib/tui"
	"github.com/bureau-foundation/matrix-console/messaging"
)

type bulkParams struct {
	cli.ConsoleFlags
	cli.JSONOutput
	Room      string `json:"room"       flag:"room,r"     desc:"room ID the action applies to"`
	Reason    string `json:"reason"     flag:"reason"     desc:"reason recorded with kicks and bans"`
	ItemsFile string `json:"items_file" flag:"items-file" desc:"read items from this file, one per line (# comments allowed)"`
	Progress  bool   `json:"progress"   flag:"progress"   desc:"show a live progress bar on the terminal"`
}

// bulkAction describes one bulk subcommand.
type bulkAction struct {
	name        string
	summary     string
	itemKind    string
	needsRoom   bool
	destructive bool
	verb        string
	apply       func(ctx context.Context, session *messaging.Session, params *bulkParams, item string) error
}

var bulkActions = []bulkAction{
	{
		name: "invite", summary: "Invite users to a room", itemKind: "user", needsRoom: true, verb: "Invite",
		apply: func(ctx context.Context, session *messaging.Session, params *bulkParams, item string) error {
			return session.Invite(ctx, params.Room, item)
		},
	},
	{
		name: "kick", summary: "Kick users from a room", itemKind: "user", needsRoom: true, destructive: true, verb: "Kick",
		apply: func(ctx context.Context, session *messaging.Session, params *bulkParams, item string) error {
			return session.Kick(ctx, params.Room, item, params.Reason)
		},
	},
	{
		name: "ban", summary: "Ban users from a room", itemKind: "user", needsRoom: true, destructive: true, verb: "Ban",
		apply: func(ctx context.Context, session *messaging.Session, params *bulkParams, item string) error {
			return session.Ban(ctx, params.Room, item, params.Reason)
		},
	},
	{
		name: "join", summary: "Join rooms by ID or alias", itemKind: "room", verb: "Join",
		apply: func(ctx context.Context, session *messaging.Session, _ *bulkParams, item string) error {
			_, err := session.Join(ctx, item)
			return err
		},
	},
}

func bulkCommand(streams cli.Streams) *cli.Command {
	command := &cli.Command{
		Name:    "bulk",
		Summary: "Apply one action to many users or rooms",
		Description: `Apply one action to a list of items, one item at a time. A failed
item is recorded and the run moves on; the failures are listed at the
end and the command exits 1 if there were any.

Items come from the arguments and from --items-file. Bulk kicks and bans
ask for one confirmation for the whole list. Pacing follows the bulk
section of the console config.`,
	}
	for _, action := range bulkActions {
		command.Subcommands = append(command.Subcommands, bulkActionCommand(streams, action))
	}
	return command
}

func bulkActionCommand(streams cli.Streams, action bulkAction) *cli.Command {
	var params bulkParams

	usage := fmt.Sprintf("matrix-console bulk %s [--items-file FILE] <%s>... [flags]", action.name, action.itemKind)
	if action.needsRoom {
		usage = fmt.Sprintf("matrix-console bulk %s --room ROOM [--items-file FILE] <%s>... [flags]", action.name, action.itemKind)
	}

	return &cli.Command{
		Name:    action.name,
		Summary: action.summary,
		Usage:   usage,
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if action.needsRoom && params.Room == "" {
				return cli.Validation("--room is required")
			}
			items, err := readItems(args, params.ItemsFile)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return cli.Validation("no %ss given", action.itemKind)
			}
			return params.Run(streams, func(console *cli.Console) error {
				return runBulk(ctx, console, action, &params, items)
			})
		},
	}
}

func runBulk(ctx context.Context, console *cli.Console, action bulkAction, params *bulkParams, items []string) error {
	session, err := console.Session()
	if err != nil {
		return err
	}
	logger := console.Logger.With(
		"command", "bulk/"+action.name,
		"identity", session.Identity().Name,
	)

	if action.destructive {
		prompt := fmt.Sprintf("%s %d %ss as %s?", action.verb, len(items), action.itemKind, session.Identity().Name)
		if action.needsRoom {
			prompt = fmt.Sprintf("%s %d %ss from %s as %s?", action.verb, len(items), action.itemKind, params.Room, session.Identity().Name)
		}
		approved, err := console.Invoker.Confirm(ctx, prompt)
		if err != nil {
			console.Prompter.Alert(ctx, fmt.Sprintf("Confirmation failed: %v", err))
			return &cli.ExitError{Code: 1}
		}
		if !approved {
			logger.Info("bulk run declined")
			return nil
		}
	}

	runner := bulk.NewRunner[string](bulk.Config{
		Limiter: newLimiter(console.Config.Bulk),
		Logger:  logger,
	})
	apply := func(ctx context.Context, item string) error {
		return action.apply(ctx, session, params, item)
	}

	var final bulk.State[string]
	var runErr error
	if params.Progress && cli.IsTerminal(console.Streams.Err) {
		title := fmt.Sprintf("%s %d %ss", action.verb, len(items), action.itemKind)
		model := newBulkProgressModel(title, len(items), tui.DefaultTheme, console.Renderer)
		final, runErr = runWithProgress(ctx, runner, items, apply, model, console.Streams.Err, logger)
	} else {
		unsubscribe := runner.Subscribe(textProgress(console.Streams.Err))
		final, runErr = runner.Run(ctx, items, apply)
		unsubscribe()
	}

	if done, err := params.EmitJSON(console.Streams.Out, bulkReport(final, runErr)); done {
		if err != nil {
			return err
		}
	} else {
		writeBulkSummary(console.Streams.Out, final, runErr)
	}

	if runErr != nil || len(final.Errors) > 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// newLimiter paces bulk runs. A zero rate means unpaced.
func newLimiter(pacing config.BulkConfig) *rate.Limiter {
	if pacing.RatePerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(pacing.RatePerSecond), max(1, pacing.Burst))
}

// textProgress prints one line per finished item.
func textProgress(w io.Writer) func(bulk.State[string]) {
	reported := 0
	failed := 0
	var current string
	return func(state bulk.State[string]) {
		if state.HasCurrent {
			current = state.Current
		}
		if state.Progress == reported {
			return
		}
		reported = state.Progress
		outcome := "ok"
		if len(state.Errors) > failed {
			failed = len(state.Errors)
			outcome = "failed: " + state.Errors[failed-1].Message
		}
		fmt.Fprintf(w, "[%d/%d] %s %s\n", state.Progress, state.Total, current, outcome)
	}
}

// bulkReportOutput is the JSON form of a finished run.
type bulkReportOutput struct {
	Attempted int                   `json:"attempted"`
	Total     int                   `json:"total"`
	Stopped   string                `json:"stopped,omitempty"`
	Errors    []bulkItemErrorOutput `json:"errors"`
}

type bulkItemErrorOutput struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	Item    string `json:"item"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func bulkReport(state bulk.State[string], runErr error) bulkReportOutput {
	report := bulkReportOutput{
		Attempted: state.Progress,
		Total:     state.Total,
		Errors:    make([]bulkItemErrorOutput, 0, len(state.Errors)),
	}
	if runErr != nil {
		report.Stopped = runErr.Error()
	}
	for _, itemError := range state.Errors {
		report.Errors = append(report.Errors, bulkItemErrorOutput{
			ID:      itemError.ID.String(),
			Index:   itemError.Index,
			Item:    itemError.Item,
			Message: itemError.Message,
			Detail:  messaging.Describe(itemError.Err),
		})
	}
	return report
}

func writeBulkSummary(w io.Writer, state bulk.State[string], runErr error) {
	succeeded := state.Progress - len(state.Errors)
	fmt.Fprintf(w, "%d of %d succeeded", succeeded, state.Total)
	if runErr != nil {
		fmt.Fprintf(w, " (stopped after %d: %v)", state.Progress, runErr)
	}
	fmt.Fprintln(w)
	if len(state.Errors) == 0 {
		return
	}
	fmt.Fprintln(w, "Failures:")
	for _, itemError := range state.Errors {
		fmt.Fprintf(w, "  #%d %s: %s\n", itemError.Index+1, itemError.Item, messaging.Describe(itemError.Err))
	}
}
