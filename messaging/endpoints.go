// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"fmt"
	"net/http"
	"sort"
)

// Endpoint is a named templated request: a fixed method and a URL
// template whose !{key} placeholders are filled per call.
type Endpoint struct {
	// Name is the identifier operators use ("invite", "kick", ...).
	Name string
	// Method is the HTTP method.
	Method string
	// Template is the path template, appended to the server address.
	Template string
	// Summary is a one-line description for listings.
	Summary string
	// Destructive endpoints require confirmation when invoked
	// interactively.
	Destructive bool
}

// Variables returns the placeholder keys the endpoint needs.
func (e Endpoint) Variables() []string {
	return TemplateVariables(e.Template)
}

// Request builds an InvokeRequest for this endpoint.
func (e Endpoint) Request(variables map[string]string, body any) InvokeRequest {
	return InvokeRequest{
		Method:               e.Method,
		URL:                  e.Template,
		Variables:            variables,
		Body:                 body,
		RequiresConfirmation: e.Destructive,
	}
}

const clientV3 = "/_matrix/client/v3"

// SetStateTemplate is the state event path. The state key segment is
// always present: an empty state key yields a trailing slash
// (".../state/m.room.topic/"), which is how the Matrix API addresses the
// empty key. Absent and empty are not distinguished.
const SetStateTemplate = clientV3 + "/rooms/!{roomId}/state/!{eventType}/!{stateKey}"

var endpoints = []Endpoint{
	{Name: "whoami", Method: http.MethodGet, Template: clientV3 + "/account/whoami",
		Summary: "Show the user the identity's token belongs to"},
	{Name: "joined-rooms", Method: http.MethodGet, Template: clientV3 + "/joined_rooms",
		Summary: "List rooms the identity has joined"},
	{Name: "joined-members", Method: http.MethodGet, Template: clientV3 + "/rooms/!{roomId}/joined_members",
		Summary: "List joined members of a room"},
	{Name: "join", Method: http.MethodPost, Template: clientV3 + "/join/!{roomIdOrAlias}",
		Summary: "Join a room by ID or alias"},
	{Name: "leave", Method: http.MethodPost, Template: clientV3 + "/rooms/!{roomId}/leave",
		Summary: "Leave a room"},
	{Name: "invite", Method: http.MethodPost, Template: clientV3 + "/rooms/!{roomId}/invite",
		Summary: "Invite a user to a room (body: {\"user_id\": ...})"},
	{Name: "kick", Method: http.MethodPost, Template: clientV3 + "/rooms/!{roomId}/kick",
		Summary: "Kick a user from a room (body: {\"user_id\": ..., \"reason\": ...})", Destructive: true},
	{Name: "ban", Method: http.MethodPost, Template: clientV3 + "/rooms/!{roomId}/ban",
		Summary: "Ban a user from a room (body: {\"user_id\": ..., \"reason\": ...})", Destructive: true},
	{Name: "unban", Method: http.MethodPost, Template: clientV3 + "/rooms/!{roomId}/unban",
		Summary: "Lift a ban (body: {\"user_id\": ...})"},
	{Name: "get-state", Method: http.MethodGet, Template: clientV3 + "/rooms/!{roomId}/state/!{eventType}/!{stateKey}",
		Summary: "Read one state event"},
	{Name: "set-state", Method: http.MethodPut, Template: SetStateTemplate,
		Summary: "Write one state event (body: event content)", Destructive: true},
	{Name: "redact", Method: http.MethodPut, Template: clientV3 + "/rooms/!{roomId}/redact/!{eventId}/!{txnId}",
		Summary: "Redact an event", Destructive: true},
	{Name: "resolve-alias", Method: http.MethodGet, Template: clientV3 + "/directory/room/!{roomAlias}",
		Summary: "Resolve a room alias to a room ID"},
	{Name: "login", Method: http.MethodPost, Template: clientV3 + "/login",
		Summary: "Log in with a password and obtain an access token"},
	{Name: "server-version", Method: http.MethodGet, Template: "/_synapse/admin/v1/server_version",
		Summary: "Synapse admin: server version"},
	{Name: "room-delete", Method: http.MethodDelete, Template: "/_synapse/admin/v2/rooms/!{roomId}",
		Summary: "Synapse admin: delete a room (body: {\"purge\": true, ...})", Destructive: true},
	{Name: "user-deactivate", Method: http.MethodPost, Template: "/_synapse/admin/v1/deactivate/!{userId}",
		Summary: "Synapse admin: deactivate a user (body: {\"erase\": false})", Destructive: true},
}

var endpointsByName = func() map[string]Endpoint {
	byName := make(map[string]Endpoint, len(endpoints))
	for _, endpoint := range endpoints {
		byName[endpoint.Name] = endpoint
	}
	return byName
}()

// LookupEndpoint returns the named endpoint.
func LookupEndpoint(name string) (Endpoint, error) {
	endpoint, ok := endpointsByName[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("messaging: unknown endpoint %q", name)
	}
	return endpoint, nil
}

// Endpoints returns the catalog sorted by name.
func Endpoints() []Endpoint {
	result := make([]Endpoint, len(endpoints))
	copy(result, endpoints)
	sort.Slice(result, func(a, b int) bool { return result[a].Name < result[b].Name })
	return result
}
