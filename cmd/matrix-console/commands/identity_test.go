// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/matrix-console/cmd/matrix-console/cli"
)

func TestIdentityList(t *testing.T) {
	configPath := writeConfig(t, "https://matrix.example.org", "")

	t.Run("table", func(t *testing.T) {
		r := execute(t, "", "identity", "list", "--config", configPath)
		if r.err != nil {
			t.Fatalf("identity list: %v", r.err)
		}
		if strings.Contains(r.stdout, "admin_token") {
			t.Fatalf("access token printed:\n%s", r.stdout)
		}
		lines := strings.Split(strings.TrimRight(r.stdout, "\n"), "\n")
		if len(lines) != 3 {
			t.Fatalf("got %d lines, want header and 2 identities:\n%s", len(lines), r.stdout)
		}
		if !strings.HasPrefix(lines[1], "*") || !strings.Contains(lines[1], "admin") {
			t.Errorf("default identity not marked: %q", lines[1])
		}
		if !strings.Contains(lines[2], "guest") || !strings.Contains(lines[2], "ANONYMOUS") {
			t.Errorf("anonymous identity not marked: %q", lines[2])
		}
	})

	t.Run("json", func(t *testing.T) {
		r := execute(t, "", "identity", "list", "--config", configPath, "--json")
		if r.err != nil {
			t.Fatalf("identity list --json: %v", r.err)
		}
		var identities []identityOutput
		if err := json.Unmarshal([]byte(r.stdout), &identities); err != nil {
			t.Fatalf("decoding: %v\n%s", err, r.stdout)
		}
		if len(identities) != 2 {
			t.Fatalf("got %d identities, want 2", len(identities))
		}
		byName := map[string]identityOutput{}
		for _, entry := range identities {
			byName[entry.Name] = entry
		}
		if !byName["admin"].Default || byName["admin"].Anonymous {
			t.Errorf("admin = %+v", byName["admin"])
		}
		if byName["guest"].Default || !byName["guest"].Anonymous {
			t.Errorf("guest = %+v", byName["guest"])
		}
	})
}

func TestWhoami(t *testing.T) {
	server := newHomeserver(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		writeJSON(w, http.StatusOK, map[string]string{"user_id": "@admin:example.org", "device_id": "ABCDEF"})
	})
	configPath := writeConfig(t, server.server.URL, "")

	r := execute(t, "", "whoami", "--config", configPath)
	if r.err != nil {
		t.Fatalf("whoami: %v\n%s", r.err, r.stderr)
	}
	want := "Identity: admin (" + server.server.URL + ")\n" +
		"User:     @admin:example.org\n" +
		"Device:   ABCDEF\n"
	if r.stdout != want {
		t.Errorf("output:\n got %q\nwant %q", r.stdout, want)
	}
}

func TestWhoami_RejectedToken(t *testing.T) {
	server := newHomeserver(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		matrixError(w, http.StatusUnauthorized, "M_UNKNOWN_TOKEN", "Invalid access token passed.")
	})
	configPath := writeConfig(t, server.server.URL, "")

	r := execute(t, "", "whoami", "--config", configPath)
	if cli.Categorize(r.err) != cli.CategoryForbidden {
		t.Errorf("error = %v, want forbidden", r.err)
	}
	if r.exitCode() != 1 {
		t.Errorf("exit code = %d, want 1", r.exitCode())
	}
}

func TestLogin(t *testing.T) {
	server := newHomeserver(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		var request struct {
			Type       string            `json:"type"`
			Identifier map[string]string `json:"identifier"`
			Password   string            `json:"password"`
		}
		if err := json.Unmarshal(body, &request); err != nil || request.Password != "hunter2" {
			matrixError(w, http.StatusForbidden, "M_FORBIDDEN", "Invalid password")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"user_id":      "@" + request.Identifier["user"] + ":example.org",
			"access_token": "fresh_token",
			"device_id":    "NEWDEVICE",
		})
	})
	configPath := writeConfig(t, server.server.URL, "")

	t.Run("stdout", func(t *testing.T) {
		r := execute(t, "hunter2\n", "login", "--config", configPath, "--user", "admin")
		if r.err != nil {
			t.Fatalf("login: %v\n%s", r.err, r.stderr)
		}
		if r.stdout != "fresh_token\n" {
			t.Errorf("stdout = %q", r.stdout)
		}
		if !strings.Contains(r.stderr, "Password for admin: ") {
			t.Errorf("password prompt missing:\n%s", r.stderr)
		}
		seen := server.seen()
		last := seen[len(seen)-1]
		if last.RequestURI != "/_matrix/client/v3/login" || last.Authorization != "" {
			t.Errorf("login request = %+v, want an anonymous POST to /login", last)
		}
	})

	t.Run("token file", func(t *testing.T) {
		tokenPath := filepath.Join(t.TempDir(), "tokens", "admin.token")
		r := execute(t, "hunter2\n", "login", "--config", configPath, "-u", "admin", "--token-file", tokenPath)
		if r.err != nil {
			t.Fatalf("login: %v\n%s", r.err, r.stderr)
		}
		if r.stdout != "" {
			t.Errorf("token printed with --token-file: %q", r.stdout)
		}
		data, err := os.ReadFile(tokenPath)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "fresh_token\n" {
			t.Errorf("token file = %q", data)
		}
		info, err := os.Stat(tokenPath)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("token file mode = %o, want 600", info.Mode().Perm())
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		r := execute(t, "wrong\n", "login", "--config", configPath, "--user", "admin")
		if cli.Categorize(r.err) != cli.CategoryForbidden {
			t.Errorf("error = %v, want forbidden", r.err)
		}
	})

	t.Run("user required", func(t *testing.T) {
		r := execute(t, "", "login", "--config", configPath)
		if cli.Categorize(r.err) != cli.CategoryValidation {
			t.Errorf("error = %v, want validation", r.err)
		}
	})
}
