// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/matrix-console/lib/identity"
)

// Session binds an Invoker to one identity and exposes typed wrappers
// over the endpoint catalog. Wrappers return errors (they use Call,
// not Invoke) so bulk actions can record them per item.
type Session struct {
	invoker  *Invoker
	identity identity.Identity
}

// NewSession creates a Session acting as who.
func NewSession(invoker *Invoker, who identity.Identity) *Session {
	return &Session{invoker: invoker, identity: who}
}

// Identity returns the identity the session acts as.
func (s *Session) Identity() identity.Identity {
	return s.identity
}

// call runs the named endpoint and decodes the response into T.
func call[T any](ctx context.Context, s *Session, name string, variables map[string]string, body any) (T, error) {
	var zero T
	endpoint, err := LookupEndpoint(name)
	if err != nil {
		return zero, err
	}
	request := endpoint.Request(variables, body)
	request.Identity = s.identity

	raw, err := s.invoker.Call(ctx, request)
	if err != nil {
		return zero, err
	}
	return DecodeResponse[T](raw)
}

// WhoAmI returns the user the session's token belongs to.
func (s *Session) WhoAmI(ctx context.Context) (*WhoAmIResponse, error) {
	response, err := call[WhoAmIResponse](ctx, s, "whoami", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &response, nil
}

// JoinedRooms lists the rooms the session's user has joined.
func (s *Session) JoinedRooms(ctx context.Context) ([]string, error) {
	response, err := call[JoinedRoomsResponse](ctx, s, "joined-rooms", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("joined rooms: %w", err)
	}
	return response.JoinedRooms, nil
}

// JoinedMembers lists the joined members of a room, keyed by user ID.
func (s *Session) JoinedMembers(ctx context.Context, roomID string) (map[string]JoinedMember, error) {
	response, err := call[JoinedMembersResponse](ctx, s, "joined-members", map[string]string{"roomId": roomID}, nil)
	if err != nil {
		return nil, fmt.Errorf("joined members of %s: %w", roomID, err)
	}
	return response.Joined, nil
}

// Join joins a room by ID or alias and returns the room ID.
func (s *Session) Join(ctx context.Context, roomIDOrAlias string) (string, error) {
	response, err := call[RoomIDResponse](ctx, s, "join", map[string]string{"roomIdOrAlias": roomIDOrAlias}, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("join %s: %w", roomIDOrAlias, err)
	}
	return response.RoomID, nil
}

// Invite invites userID to roomID.
func (s *Session) Invite(ctx context.Context, roomID, userID string) error {
	_, err := call[EmptyResponse](ctx, s, "invite", map[string]string{"roomId": roomID}, map[string]any{"user_id": userID})
	if err != nil {
		return fmt.Errorf("invite %s to %s: %w", userID, roomID, err)
	}
	return nil
}

// Kick removes userID from roomID.
func (s *Session) Kick(ctx context.Context, roomID, userID, reason string) error {
	_, err := call[EmptyResponse](ctx, s, "kick", map[string]string{"roomId": roomID}, membershipBody(userID, reason))
	if err != nil {
		return fmt.Errorf("kick %s from %s: %w", userID, roomID, err)
	}
	return nil
}

// Ban bans userID from roomID.
func (s *Session) Ban(ctx context.Context, roomID, userID, reason string) error {
	_, err := call[EmptyResponse](ctx, s, "ban", map[string]string{"roomId": roomID}, membershipBody(userID, reason))
	if err != nil {
		return fmt.Errorf("ban %s from %s: %w", userID, roomID, err)
	}
	return nil
}

// SetState writes a state event and returns its event ID. The state key
// is always part of the path; see SetStateTemplate.
func (s *Session) SetState(ctx context.Context, roomID, eventType, stateKey string, content any) (string, error) {
	variables := map[string]string{"roomId": roomID, "eventType": eventType, "stateKey": stateKey}
	if content == nil {
		content = map[string]any{}
	}
	response, err := call[EventIDResponse](ctx, s, "set-state", variables, content)
	if err != nil {
		return "", fmt.Errorf("set %s[%q] in %s: %w", eventType, stateKey, roomID, err)
	}
	return response.EventID, nil
}

// GetState reads the content of a state event.
func (s *Session) GetState(ctx context.Context, roomID, eventType, stateKey string) (json.RawMessage, error) {
	variables := map[string]string{"roomId": roomID, "eventType": eventType, "stateKey": stateKey}
	response, err := call[json.RawMessage](ctx, s, "get-state", variables, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s[%q] from %s: %w", eventType, stateKey, roomID, err)
	}
	return response, nil
}

// Login exchanges a password for an access token on the session's
// homeserver. The session's own token, if any, is not sent.
func (s *Session) Login(ctx context.Context, user, password string) (*LoginResponse, error) {
	anonymous := s.identity
	anonymous.AccessToken = ""
	anonymous.MasqueradeAs = ""
	body := map[string]any{
		"type":                        "m.login.password",
		"identifier":                  map[string]any{"type": "m.id.user", "user": user},
		"password":                    password,
		"initial_device_display_name": "matrix-console",
	}
	response, err := call[LoginResponse](ctx, &Session{invoker: s.invoker, identity: anonymous}, "login", nil, body)
	if err != nil {
		return nil, fmt.Errorf("login as %s: %w", user, err)
	}
	return &response, nil
}

func membershipBody(userID, reason string) map[string]any {
	body := map[string]any{"user_id": userID}
	if reason != "" {
		body["reason"] = reason
	}
	return body
}

// ServerVersion returns the Synapse version string. Requires a server
// admin token.
func (s *Session) ServerVersion(ctx context.Context) (string, error) {
	response, err := call[ServerVersionResponse](ctx, s, "server-version", nil, nil)
	if err != nil {
		return "", fmt.Errorf("server version: %w", err)
	}
	return response.ServerVersion, nil
}

// DeactivateUser deactivates userID through the Synapse admin API. With
// erase, the user's messages are hidden from future joiners.
func (s *Session) DeactivateUser(ctx context.Context, userID string, erase bool) error {
	_, err := call[json.RawMessage](ctx, s, "user-deactivate", map[string]string{"userId": userID}, map[string]any{"erase": erase})
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", userID, err)
	}
	return nil
}
