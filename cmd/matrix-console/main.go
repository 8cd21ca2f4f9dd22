// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Root(cli.StandardStreams()).Execute(ctx, os.Args[1:])
	code, report := cli.ExitStatus(err)
	if report {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return code
}
