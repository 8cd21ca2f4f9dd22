// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the matrix-console command tree.
package commands

import (
	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
)

// Root builds and returns the complete command tree. Commands read and
// write through streams.
func Root(streams cli.Streams) *cli.Command {
	return &cli.Command{
		Name: "matrix-console",
		Description: `matrix-console: an operator console for Matrix homeservers.

Send Client-Server and Synapse admin API requests as named identities,
run bulk membership actions, and inspect the network log of what was
sent.`,
		HelpOutput: streams.Err,
		Subcommands: []*cli.Command{
			callCommand(streams),
			requestCommand(streams),
			curlCommand(streams),
			endpointsCommand(streams),
			bulkCommand(streams),
			identityCommand(streams),
			whoamiCommand(streams),
			loginCommand(streams),
			logCommand(streams),
		},
	}
}
