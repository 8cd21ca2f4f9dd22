// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
)

type whoamiParams struct {
	cli.ConsoleFlags
	cli.JSONOutput
}

type whoamiOutput struct {
	Identity      string `json:"identity"`
	ServerAddress string `json:"server_address"`
	UserID        string `json:"user_id"`
	DeviceID      string `json:"device_id,omitempty"`
	IsGuest       bool   `json:"is_guest,omitempty"`
}

func whoamiCommand(streams cli.Streams) *cli.Command {
	var params whoamiParams

	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the user behind an identity's token",
		Description: `Ask the homeserver which user the selected identity's access token
belongs to. For an Application Service identity with masquerade_as set,
this is the masqueraded user.`,
		Usage: "matrix-console whoami [flags]",
		Examples: []cli.Example{
			{
				Description: "Check the bridge identity",
				Command:     "matrix-console whoami --identity bridge-bot",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return params.Run(streams, func(console *cli.Console) error {
				session, err := console.Session()
				if err != nil {
					return err
				}
				response, err := session.WhoAmI(ctx)
				if err != nil {
					return err
				}

				output := whoamiOutput{
					Identity:      session.Identity().Name,
					ServerAddress: session.Identity().ServerAddress,
					UserID:        response.UserID,
					DeviceID:      response.DeviceID,
					IsGuest:       response.IsGuest,
				}
				if done, err := params.EmitJSON(streams.Out, output); done {
					return err
				}
				fmt.Fprintf(streams.Out, "Identity: %s (%s)\n", output.Identity, output.ServerAddress)
				fmt.Fprintf(streams.Out, "User:     %s\n", output.UserID)
				if output.DeviceID != "" {
					fmt.Fprintf(streams.Out, "Device:   %s\n", output.DeviceID)
				}
				return nil
			})
		},
	}
}

type loginParams struct {
	cli.ConsoleFlags
	User      string `json:"user"       flag:"user,u"    desc:"user ID or localpart to log in as (required)"`
	TokenFile string `json:"token_file" flag:"token-file" desc:"write the access token to this file (mode 0600) instead of stdout"`
}

func loginCommand(streams cli.Streams) *cli.Command {
	var params loginParams

	return &cli.Command{
		Name:    "login",
		Summary: "Obtain an access token with a password",
		Description: `Log in to the selected identity's homeserver with a password and
print the new access token. The password is read from the terminal
without echo, or from the first line of stdin when it is not a terminal.

With --token-file the token is written to a file that an identity can
reference as access_token_file.`,
		Usage: "matrix-console login --user USER [--token-file PATH] [flags]",
		Examples: []cli.Example{
			{
				Description: "Create a token file for the admin identity",
				Command:     "matrix-console login -i admin --user @admin:example.org --token-file ~/.config/matrix-console/admin.token",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.User == "" {
				return cli.Validation("--user is required")
			}
			return params.Run(streams, func(console *cli.Console) error {
				session, err := console.Session()
				if err != nil {
					return err
				}
				password, err := console.Prompter.ReadPassword(ctx, "Password for "+params.User+": ")
				if err != nil {
					return err
				}
				if password == "" {
					return cli.Validation("empty password")
				}

				response, err := session.Login(ctx, params.User, password)
				if err != nil {
					return err
				}
				console.Logger.Info("logged in",
					"identity", session.Identity().Name,
					"user_id", response.UserID,
					"device_id", response.DeviceID,
				)

				if params.TokenFile == "" {
					_, err := fmt.Fprintln(streams.Out, response.AccessToken)
					return err
				}
				return writeTokenFile(params.TokenFile, response.AccessToken)
			})
		},
	}
}

// writeTokenFile writes token with owner-only permissions, creating the
// parent directory.
func writeTokenFile(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return cli.Internal("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return cli.Internal("writing token file: %w", err)
	}
	return nil
}
