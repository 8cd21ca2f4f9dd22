// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for matrix-console.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], flags bound from a tagged params
// struct, and a Run function. Commands are assembled into a tree by the
// commands package and dispatched via [Command.Execute], which handles
// flag parsing, subcommand routing, and structured help output with
// examples. Unknown subcommands and flags get a Levenshtein suggestion
// (distance <= 3).
//
// [ConsoleFlags] carries the flags every homeserver-facing command
// shares. [ConsoleFlags.Open] turns them into a [Console]: configuration,
// identities, the notification bus with the network log and metrics
// collector attached, the dispatcher, and an invoker whose confirmations
// and alerts go through a terminal [Prompter].
//
// Errors returned by commands are categorized with [ToolError] and
// [Categorize]; [ExitStatus] maps them to the process exit code.
package cli
