// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
	"github.com/bureau-foundation/matrix-console/messaging"
)

type callParams struct {
	cli.ConsoleFlags
	RequestFlags
}

func callCommand(streams cli.Streams) *cli.Command {
	var params callParams

	return &cli.Command{
		Name:    "call",
		Summary: "Call a named endpoint",
		Description: `Call an endpoint from the catalog as the selected identity.

Template variables are given with --var and are percent-encoded into the
path. Destructive endpoints (kick, ban, set-state, ...) ask for
confirmation first; --yes approves without asking. Failures are printed
as alerts and the command exits 1.`,
		Usage: "matrix-console call <endpoint> [--var key=value ...] [--body JSON | --body-file FILE] [flags]",
		Examples: []cli.Example{
			{
				Description: "Show who the admin identity is",
				Command:     "matrix-console call whoami -i admin",
			},
			{
				Description: "Set a room topic",
				Command:     `matrix-console call set-state --var roomId='!abc:example.org' --var eventType=m.room.topic --var stateKey= --body '{"topic": "Maintenance tonight"}'`,
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: matrix-console call <endpoint> [flags]")
			}
			request, err := endpointRequest(args[0], params.RequestFlags)
			if err != nil {
				return err
			}
			return params.Run(streams, func(console *cli.Console) error {
				return invoke(ctx, console, request)
			})
		},
	}
}

type requestParams struct {
	cli.ConsoleFlags
	RequestFlags
	Method  string `json:"method"  flag:"method,X" desc:"HTTP method" default:"GET"`
	Confirm bool   `json:"confirm" flag:"confirm"  desc:"ask for confirmation before sending"`
	Prompt  string `json:"prompt"  flag:"prompt"   desc:"confirmation question (implies --confirm)"`
}

func requestCommand(streams cli.Streams) *cli.Command {
	var params requestParams

	return &cli.Command{
		Name:    "request",
		Summary: "Send a raw templated request",
		Description: `Send any request to the selected identity's homeserver.

The path template is appended to the identity's server address. !{key}
placeholders are filled from --var values, percent-encoded.`,
		Usage: "matrix-console request <path-template> [--method M] [--var key=value ...] [--body JSON] [flags]",
		Examples: []cli.Example{
			{
				Description: "List a room's aliases",
				Command:     `matrix-console request '/_matrix/client/v3/rooms/!{roomId}/aliases' --var roomId='!abc:example.org'`,
			},
			{
				Description: "Purge a room's history through the Synapse admin API",
				Command:     `matrix-console request -X POST '/_synapse/admin/v1/purge_history/!{roomId}' --var roomId='!abc:example.org' --body '{"purge_up_to_ts": 1700000000000}' --confirm`,
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: matrix-console request <path-template> [flags]")
			}
			if !strings.HasPrefix(args[0], "/") {
				return cli.Validation("path template %q must start with /", args[0])
			}
			method := strings.ToUpper(params.Method)
			variables, err := params.variables()
			if err != nil {
				return err
			}
			body, err := params.body(method)
			if err != nil {
				return err
			}
			request := messaging.InvokeRequest{
				Method:               method,
				URL:                  args[0],
				Variables:            variables,
				Body:                 body,
				RequiresConfirmation: params.Confirm || params.Prompt != "",
				Prompt:               params.Prompt,
			}
			return params.Run(streams, func(console *cli.Console) error {
				return invoke(ctx, console, request)
			})
		},
	}
}

// invoke sends request as the console's identity and prints the
// response. Failures were already alerted by the invoker. A declined
// confirmation is not a failure: nothing is printed and the exit code
// is 0.
func invoke(ctx context.Context, console *cli.Console, request messaging.InvokeRequest) error {
	who, err := console.Identity()
	if err != nil {
		return err
	}
	request.Identity = who

	body, outcome := console.Invoker.Invoke(ctx, request)
	switch outcome {
	case messaging.InvokeDeclined:
		return nil
	case messaging.InvokeFailed:
		return &cli.ExitError{Code: 1}
	}
	return writeResponse(console.Streams, body)
}

type curlParams struct {
	cli.ConsoleFlags
	RequestFlags
	Mask bool `json:"mask" flag:"mask" desc:"replace the access token with a placeholder"`
}

func curlCommand(streams cli.Streams) *cli.Command {
	var params curlParams

	return &cli.Command{
		Name:    "curl",
		Summary: "Print the curl command for an endpoint call",
		Description: `Print the curl command line that performs the same call as
"matrix-console call", without sending anything.

The output contains the identity's access token unless --mask is given.`,
		Usage: "matrix-console curl <endpoint> [--var key=value ...] [--body JSON] [--mask] [flags]",
		Examples: []cli.Example{
			{
				Description: "Share a reproducible invite request",
				Command:     `matrix-console curl invite --var roomId='!abc:example.org' --body '{"user_id": "@bob:example.org"}' --mask`,
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: matrix-console curl <endpoint> [flags]")
			}
			request, err := endpointRequest(args[0], params.RequestFlags)
			if err != nil {
				return err
			}
			return params.Run(streams, func(console *cli.Console) error {
				who, err := console.Identity()
				if err != nil {
					return err
				}
				request.Identity = who
				resource, prepared, err := messaging.Prepare(request)
				if err != nil {
					return cli.Validation("%w", err)
				}
				_, err = fmt.Fprintln(streams.Out, messaging.ToCurlCommand(resource, prepared, params.Mask))
				return err
			})
		},
	}
}

type endpointsParams struct {
	cli.JSONOutput
}

type endpointOutput struct {
	Name        string   `json:"name"`
	Method      string   `json:"method"`
	Template    string   `json:"template"`
	Variables   []string `json:"variables"`
	Destructive bool     `json:"destructive"`
	Summary     string   `json:"summary"`
}

func endpointsCommand(streams cli.Streams) *cli.Command {
	var params endpointsParams

	return &cli.Command{
		Name:    "endpoints",
		Summary: "List the endpoint catalog",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			catalog := messaging.Endpoints()
			output := make([]endpointOutput, len(catalog))
			for i, endpoint := range catalog {
				output[i] = endpointOutput{
					Name:        endpoint.Name,
					Method:      endpoint.Method,
					Template:    endpoint.Template,
					Variables:   endpoint.Variables(),
					Destructive: endpoint.Destructive,
					Summary:     endpoint.Summary,
				}
			}
			if done, err := params.EmitJSON(streams.Out, output); done {
				return err
			}

			writer := tabwriter.NewWriter(streams.Out, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "NAME\tMETHOD\tSUMMARY")
			for _, endpoint := range output {
				name := endpoint.Name
				if endpoint.Destructive {
					name += " *"
				}
				method := endpoint.Method
				if method == "" {
					method = http.MethodGet
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", name, method, endpoint.Summary)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(streams.Out, "\n* asks for confirmation")
			return err
		},
	}
}
