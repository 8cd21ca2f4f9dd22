// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
	"github.com/bureau-foundation/matrix-console/messaging"
)

// RequestFlags are the flags that shape a templated request. Exported
// because BindFlags can only reach the fields of exported embedded types.
type RequestFlags struct {
	Vars     []string `json:"vars"      flag:"var,v"     desc:"template variable as key=value (repeatable)"`
	Body     string   `json:"body"      flag:"body"      desc:"request body as JSON"`
	BodyFile string   `json:"body_file" flag:"body-file" desc:"read the request body from a JSON file (comments and trailing commas allowed)"`
}

// variables parses the --var flags.
func (in RequestFlags) variables() (map[string]string, error) {
	variables := make(map[string]string, len(in.Vars))
	for _, entry := range in.Vars {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, cli.Validation("--var %q: want key=value", entry)
		}
		if _, exists := variables[key]; exists {
			return nil, cli.Validation("--var %s given more than once", key)
		}
		variables[key] = value
	}
	return variables, nil
}

// body returns the request body, or nil when none was given. POST and
// PUT requests without a body send {}, which Matrix endpoints expect.
func (in RequestFlags) body(method string) (any, error) {
	if in.Body != "" && in.BodyFile != "" {
		return nil, cli.Validation("--body and --body-file are mutually exclusive")
	}

	var source []byte
	switch {
	case in.Body != "":
		source = []byte(in.Body)
	case in.BodyFile != "":
		data, err := os.ReadFile(in.BodyFile)
		if err != nil {
			return nil, cli.Validation("reading --body-file: %w", err)
		}
		source = data
	default:
		if method == http.MethodPost || method == http.MethodPut {
			return json.RawMessage("{}"), nil
		}
		return nil, nil
	}

	body := jsonc.ToJSON(source)
	if !json.Valid(body) {
		return nil, cli.Validation("request body is not valid JSON")
	}
	return json.RawMessage(body), nil
}

// endpointRequest builds the request for a catalog endpoint, checking
// that every template variable was given.
func endpointRequest(name string, in RequestFlags) (messaging.InvokeRequest, error) {
	endpoint, err := messaging.LookupEndpoint(name)
	if err != nil {
		var names []string
		for _, known := range messaging.Endpoints() {
			names = append(names, known.Name)
		}
		if suggestion := cli.SuggestName(name, names); suggestion != "" {
			return messaging.InvokeRequest{}, cli.NotFound("unknown endpoint %q (did you mean %q?)\n\nRun 'matrix-console endpoints' for the list.", name, suggestion)
		}
		return messaging.InvokeRequest{}, cli.NotFound("unknown endpoint %q\n\nRun 'matrix-console endpoints' for the list.", name)
	}

	variables, err := in.variables()
	if err != nil {
		return messaging.InvokeRequest{}, err
	}
	var missing []string
	for _, key := range endpoint.Variables() {
		if _, ok := variables[key]; !ok {
			missing = append(missing, "--var "+key+"=...")
		}
	}
	if len(missing) > 0 {
		return messaging.InvokeRequest{}, cli.Validation("endpoint %s needs %s", name, strings.Join(missing, " "))
	}

	body, err := in.body(endpoint.Method)
	if err != nil {
		return messaging.InvokeRequest{}, err
	}
	return endpoint.Request(variables, body), nil
}

// readItems collects bulk items from args and an optional file with one
// item per line. Blank lines and lines starting with # are skipped.
func readItems(args []string, path string) ([]string, error) {
	items := append([]string(nil), args...)
	if path == "" {
		return items, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, cli.Validation("reading --items-file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, cli.Validation("reading --items-file: %w", err)
	}
	return items, nil
}

// writeResponse pretty-prints a JSON response body.
func writeResponse(streams cli.Streams, body json.RawMessage) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, body, "", "  "); err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	indented.WriteByte('\n')
	_, err := indented.WriteTo(streams.Out)
	return err
}
