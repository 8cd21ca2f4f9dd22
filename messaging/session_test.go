// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bureau-foundation/matrix-console/lib/identity"
)

func newTestSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	invoker := newTestInvoker(t, InvokerConfig{})
	return NewSession(invoker, identity.Identity{Name: "admin", ServerAddress: server.URL, AccessToken: "tok"})
}

func TestEndpointCatalog(t *testing.T) {
	seen := make(map[string]bool)
	for _, endpoint := range Endpoints() {
		if seen[endpoint.Name] {
			t.Errorf("duplicate endpoint %q", endpoint.Name)
		}
		seen[endpoint.Name] = true
		if endpoint.Method == "" || endpoint.Template == "" || endpoint.Summary == "" {
			t.Errorf("endpoint %q is incomplete: %+v", endpoint.Name, endpoint)
		}
		looked, err := LookupEndpoint(endpoint.Name)
		if err != nil || looked.Template != endpoint.Template {
			t.Errorf("LookupEndpoint(%q) = %+v, %v", endpoint.Name, looked, err)
		}
	}
	for _, name := range []string{"kick", "ban", "set-state", "room-delete", "user-deactivate"} {
		endpoint, err := LookupEndpoint(name)
		if err != nil {
			t.Fatalf("LookupEndpoint(%q): %v", name, err)
		}
		if !endpoint.Destructive || !endpoint.Request(nil, nil).RequiresConfirmation {
			t.Errorf("%s must require confirmation", name)
		}
	}
	if _, err := LookupEndpoint("nope"); err == nil {
		t.Error("expected error for unknown endpoint")
	}
}

func TestSetStateEmptyKey(t *testing.T) {
	var gotPath string
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		gotPath = request.URL.EscapedPath()
		if request.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", request.Method)
		}
		writeJSON(writer, http.StatusOK, map[string]string{"event_id": "$e"})
	})

	eventID, err := session.SetState(context.Background(), "!r:x", "m.room.topic", "", map[string]string{"topic": "hi"})
	if err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if eventID != "$e" {
		t.Errorf("event ID = %q", eventID)
	}
	if want := "/_matrix/client/v3/rooms/!r%3Ax/state/m.room.topic/"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}

func TestSessionWhoAmI(t *testing.T) {
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]string{"user_id": "@admin:x", "device_id": "DEV"})
	})
	response, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if response.UserID != "@admin:x" || response.DeviceID != "DEV" {
		t.Errorf("response = %+v", response)
	}
}

func TestSessionRejectsMalformedResponse(t *testing.T) {
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]any{"joined_rooms": []string{"!ok:x", "not-a-room"}})
	})
	_, err := session.JoinedRooms(context.Background())
	var shapeErr *ResponseShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *ResponseShapeError, got %v", err)
	}
}

func TestSessionKickBody(t *testing.T) {
	var body map[string]string
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.EscapedPath() != "/_matrix/client/v3/rooms/!r%3Ax/kick" {
			t.Errorf("path = %s", request.URL.EscapedPath())
		}
		json.NewDecoder(request.Body).Decode(&body)
		writeJSON(writer, http.StatusOK, map[string]any{})
	})
	if err := session.Kick(context.Background(), "!r:x", "@u:x", "spam"); err != nil {
		t.Fatalf("Kick failed: %v", err)
	}
	if body["user_id"] != "@u:x" || body["reason"] != "spam" {
		t.Errorf("body = %v", body)
	}
}

func TestSessionLoginIsAnonymous(t *testing.T) {
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		if auth := request.Header.Get("Authorization"); auth != "" {
			t.Errorf("login sent Authorization %q", auth)
		}
		writeJSON(writer, http.StatusOK, map[string]string{
			"user_id": "@admin:x", "access_token": "new", "device_id": "D",
		})
	})
	response, err := session.Login(context.Background(), "admin", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if response.AccessToken != "new" {
		t.Errorf("access token = %q", response.AccessToken)
	}
}

func TestSessionErrorWrapsMatrixError(t *testing.T) {
	session := newTestSession(t, func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusForbidden, map[string]string{"errcode": "M_FORBIDDEN"})
	})
	err := session.Invite(context.Background(), "!r:x", "@u:x")
	if !IsMatrixError(err, ErrCodeForbidden) {
		t.Errorf("Invite error = %v, want M_FORBIDDEN in chain", err)
	}
}
