// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
)

// result is the outcome of one command execution.
type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the command tree with args, feeding stdin.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	streams := cli.Streams{In: strings.NewReader(stdin), Out: &stdout, Err: &stderr}
	err := Root(streams).Execute(context.Background(), args)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// exitCode is the process exit code main would use for r.
func (r result) exitCode() int {
	code, _ := cli.ExitStatus(r.err)
	return code
}

// seenRequest is what the fake homeserver received.
type seenRequest struct {
	Method        string
	RequestURI    string
	Authorization string
	Body          string
}

// homeserver is a fake Matrix homeserver that records every request
// before handing it to a route.
type homeserver struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []seenRequest
}

type route func(w http.ResponseWriter, r *http.Request, body []byte)

func newHomeserver(t *testing.T, handler route) *homeserver {
	t.Helper()
	fake := &homeserver{}
	fake.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.requests = append(fake.requests, seenRequest{
			Method:        r.Method,
			RequestURI:    r.RequestURI,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
		fake.mu.Unlock()
		handler(w, r, body)
	}))
	t.Cleanup(fake.server.Close)
	return fake
}

func (h *homeserver) seen() []seenRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]seenRequest(nil), h.requests...)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func matrixError(w http.ResponseWriter, status int, errcode, message string) {
	writeJSON(w, status, map[string]string{"errcode": errcode, "error": message})
}

// writeConfig writes an identities file with an "admin" identity
// (token admin_token) and an anonymous "guest" identity on serverURL,
// and a console config selecting admin by default. It returns the
// config path.
func writeConfig(t *testing.T, serverURL, extra string) string {
	t.Helper()
	directory := t.TempDir()

	identities := "identities:\n" +
		"  - name: admin\n" +
		"    server_address: " + serverURL + "\n" +
		"    access_token: admin_token\n" +
		"  - name: guest\n" +
		"    server_address: " + serverURL + "\n"
	if err := os.WriteFile(filepath.Join(directory, "identities.yaml"), []byte(identities), 0o600); err != nil {
		t.Fatal(err)
	}

	config := "identities_file: ${CONFIG_DIR}/identities.yaml\n" +
		"default_identity: admin\n" +
		"log_level: error\n" + extra
	path := filepath.Join(directory, "console.yaml")
	if err := os.WriteFile(path, []byte(config), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRoot_UnknownCommand(t *testing.T) {
	r := execute(t, "", "whomai")
	if cli.Categorize(r.err) != cli.CategoryValidation {
		t.Fatalf("error = %v, want validation", r.err)
	}
	if !strings.Contains(r.err.Error(), "whoami") {
		t.Errorf("error %q does not suggest whoami", r.err)
	}
	if r.exitCode() != 2 {
		t.Errorf("exit code = %d, want 2", r.exitCode())
	}
}

func TestEndpoints(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		r := execute(t, "", "endpoints")
		if r.err != nil {
			t.Fatalf("endpoints: %v", r.err)
		}
		for _, want := range []string{"NAME", "whoami", "kick *", "set-state *", "* asks for confirmation"} {
			if !strings.Contains(r.stdout, want) {
				t.Errorf("output missing %q:\n%s", want, r.stdout)
			}
		}
		if strings.Contains(r.stdout, "invite *") {
			t.Errorf("invite marked destructive:\n%s", r.stdout)
		}
	})

	t.Run("json", func(t *testing.T) {
		r := execute(t, "", "endpoints", "--json")
		if r.err != nil {
			t.Fatalf("endpoints --json: %v", r.err)
		}
		var catalog []endpointOutput
		if err := json.Unmarshal([]byte(r.stdout), &catalog); err != nil {
			t.Fatalf("decoding output: %v\n%s", err, r.stdout)
		}
		found := false
		for _, endpoint := range catalog {
			if endpoint.Name == "joined-members" {
				found = true
				if len(endpoint.Variables) != 1 || endpoint.Variables[0] != "roomId" {
					t.Errorf("joined-members variables = %v, want [roomId]", endpoint.Variables)
				}
			}
		}
		if !found {
			t.Error("joined-members missing from catalog")
		}
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
