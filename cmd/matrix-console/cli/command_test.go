// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "matrix-console",
		Subcommands: []*Command{
			{
				Name: "whoami",
				Run: func(_ context.Context, args []string) error {
					called = "whoami"
					return nil
				},
			},
			{
				Name: "call",
				Run: func(_ context.Context, args []string) error {
					called = "call"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"call"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "call" {
		t.Errorf("dispatched to %q, want %q", called, "call")
	}
}

func TestCommand_Execute_NestedSubcommandsReceiveArgs(t *testing.T) {
	var received []string

	root := &Command{
		Name: "matrix-console",
		Subcommands: []*Command{
			{
				Name: "log",
				Subcommands: []*Command{
					{
						Name: "show",
						Run: func(_ context.Context, args []string) error {
							received = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"log", "show", "snapshot.json"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(received) != 1 || received[0] != "snapshot.json" {
		t.Errorf("args = %v, want [snapshot.json]", received)
	}
}

func TestCommand_Execute_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	var got any
	root := &Command{
		Name: "matrix-console",
		Subcommands: []*Command{{
			Name: "whoami",
			Run: func(ctx context.Context, _ []string) error {
				got = ctx.Value(key{})
				return nil
			},
		}},
	}
	if err := root.Execute(ctx, []string{"whoami"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got != "marker" {
		t.Errorf("context value = %v, want marker", got)
	}
}

func TestCommand_Execute_UnknownSubcommandSuggests(t *testing.T) {
	root := &Command{
		Name:       "matrix-console",
		HelpOutput: &bytes.Buffer{},
		Subcommands: []*Command{
			{Name: "whoami", Run: func(context.Context, []string) error { return nil }},
			{Name: "endpoints", Run: func(context.Context, []string) error { return nil }},
		},
	}

	err := root.Execute(context.Background(), []string{"whoamii"})
	if err == nil {
		t.Fatal("Execute() succeeded for an unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "whoami"?`) {
		t.Errorf("error = %q, want a suggestion for whoami", err)
	}
	if Categorize(err) != CategoryValidation {
		t.Errorf("category = %q, want validation", Categorize(err))
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:       "matrix-console",
		HelpOutput: &help,
		Subcommands: []*Command{
			{Name: "bulk", Summary: "Apply one action to many items"},
		},
	}

	err := root.Execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Fatalf("Execute() error = %v, want subcommand required", err)
	}
	if !strings.Contains(help.String(), "Apply one action to many items") {
		t.Errorf("help output missing the subcommand summary:\n%s", help.String())
	}
}

func TestCommand_Execute_ParamsBindFlags(t *testing.T) {
	type params struct {
		Room  string   `flag:"room,r" desc:"room ID"`
		Vars  []string `flag:"var" desc:"variables"`
		Force bool     `flag:"force" desc:"skip checks"`
	}
	var bound params
	var received []string

	command := &Command{
		Name:   "kick",
		Params: func() any { return &bound },
		Run: func(_ context.Context, args []string) error {
			received = args
			return nil
		},
	}

	args := []string{"-r", "!r:x", "--var", "a=1,2", "--var", "b=3", "--force", "@bob:x"}
	if err := command.Execute(context.Background(), args); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if bound.Room != "!r:x" {
		t.Errorf("Room = %q, want !r:x", bound.Room)
	}
	if len(bound.Vars) != 2 || bound.Vars[0] != "a=1,2" || bound.Vars[1] != "b=3" {
		t.Errorf("Vars = %q, want [a=1,2 b=3]", bound.Vars)
	}
	if !bound.Force {
		t.Error("Force = false, want true")
	}
	if len(received) != 1 || received[0] != "@bob:x" {
		t.Errorf("args = %v, want [@bob:x]", received)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	command := &Command{
		Name: "call",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("call", pflag.ContinueOnError)
			flagSet.String("identity", "", "identity")
			flagSet.Bool("dry-run", false, "dry run")
			return flagSet
		},
		Run: func(context.Context, []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--dryrun"})
	if err == nil {
		t.Fatal("Execute() succeeded with an unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --dry-run?") {
		t.Errorf("error = %q, want a --dry-run suggestion", err)
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	var help bytes.Buffer
	ran := false
	command := &Command{
		Name:        "curl",
		Description: "Print the curl command for an endpoint call.",
		HelpOutput:  &help,
		Examples: []Example{
			{Description: "Masked", Command: "matrix-console curl whoami --mask"},
		},
		Run: func(context.Context, []string) error {
			ran = true
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("Execute(--help) error: %v", err)
	}
	if ran {
		t.Error("Run was called for --help")
	}
	for _, want := range []string{"Print the curl command", "Usage:", "# Masked", "matrix-console curl whoami --mask"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("help output missing %q:\n%s", want, help.String())
		}
	}
}

func TestCommand_Execute_RunErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("boom")
	command := &Command{
		Name: "whoami",
		Run:  func(context.Context, []string) error { return sentinel },
	}
	if err := command.Execute(context.Background(), nil); !errors.Is(err, sentinel) {
		t.Errorf("Execute() error = %v, want %v", err, sentinel)
	}
}
