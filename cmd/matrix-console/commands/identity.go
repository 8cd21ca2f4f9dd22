// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
)

type identityListParams struct {
	cli.ConsoleFlags
	cli.JSONOutput
}

// identityOutput describes an identity without its token.
type identityOutput struct {
	Name          string `json:"name"`
	ServerAddress string `json:"server_address"`
	MasqueradeAs  string `json:"masquerade_as,omitempty"`
	Anonymous     bool   `json:"anonymous"`
	Default       bool   `json:"default"`
}

func identityCommand(streams cli.Streams) *cli.Command {
	return &cli.Command{
		Name:    "identity",
		Summary: "Inspect configured identities",
		Subcommands: []*cli.Command{
			identityListCommand(streams),
		},
	}
}

func identityListCommand(streams cli.Streams) *cli.Command {
	var params identityListParams

	return &cli.Command{
		Name:    "list",
		Summary: "List identities from the identities file",
		Description: `List the identities in the identities file. Access tokens are
never printed; ANONYMOUS marks identities without one.`,
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return params.Run(streams, func(console *cli.Console) error {
				selected, selectErr := console.Identity()

				var output []identityOutput
				for _, entry := range console.Identities.List() {
					output = append(output, identityOutput{
						Name:          entry.Name,
						ServerAddress: entry.ServerAddress,
						MasqueradeAs:  entry.MasqueradeAs,
						Anonymous:     entry.Anonymous(),
						Default:       selectErr == nil && entry.Name == selected.Name,
					})
				}
				if done, err := params.EmitJSON(streams.Out, output); done {
					return err
				}

				writer := tabwriter.NewWriter(streams.Out, 2, 0, 3, ' ', 0)
				fmt.Fprintln(writer, "\tNAME\tSERVER\tACTS AS")
				for _, entry := range output {
					marker := ""
					if entry.Default {
						marker = "*"
					}
					actsAs := entry.MasqueradeAs
					if entry.Anonymous {
						actsAs = "ANONYMOUS"
					}
					fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", marker, entry.Name, entry.ServerAddress, actsAs)
				}
				return writer.Flush()
			})
		},
	}
}
