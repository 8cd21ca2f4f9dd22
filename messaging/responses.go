// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ResponseShapeError reports a successful response whose body does not
// match the schema the caller expected. Typed endpoint wrappers fail
// closed with it instead of trusting arbitrary fields.
type ResponseShapeError struct {
	// Schema is the Go type name of the expected response.
	Schema string
	// Err is the decode or validation failure.
	Err error
}

func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("messaging: response does not match %s: %v", e.Schema, e.Err)
}

func (e *ResponseShapeError) Unwrap() error { return e.Err }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func responseValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DecodeResponse decodes body into T and validates it against T's
// `validate` struct tags. Any failure is a *ResponseShapeError.
func DecodeResponse[T any](body json.RawMessage) (T, error) {
	var result T
	schema := reflect.TypeOf(result).String()

	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&result); err != nil {
		var zero T
		return zero, &ResponseShapeError{Schema: schema, Err: err}
	}

	if reflect.TypeOf(result).Kind() == reflect.Struct {
		if err := responseValidator().Struct(result); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				err = describeValidation(validationErrors)
			}
			var zero T
			return zero, &ResponseShapeError{Schema: schema, Err: err}
		}
	}
	return result, nil
}

func describeValidation(validationErrors validator.ValidationErrors) error {
	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		switch fieldError.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fieldError.Field()))
		case "startswith":
			messages = append(messages, fmt.Sprintf("%s must start with %q", fieldError.Field(), fieldError.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s", fieldError.Field(), fieldError.Tag()))
		}
	}
	return errors.New(strings.Join(messages, "; "))
}

// WhoAmIResponse is returned by GET /account/whoami.
type WhoAmIResponse struct {
	UserID   string `json:"user_id" validate:"required,startswith=@"`
	DeviceID string `json:"device_id,omitempty"`
	IsGuest  bool   `json:"is_guest,omitempty"`
}

// JoinedRoomsResponse is returned by GET /joined_rooms.
type JoinedRoomsResponse struct {
	JoinedRooms []string `json:"joined_rooms" validate:"required,dive,startswith=!"`
}

// JoinedMember is one entry of a joined members response.
type JoinedMember struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// JoinedMembersResponse is returned by GET /rooms/{roomId}/joined_members.
type JoinedMembersResponse struct {
	Joined map[string]JoinedMember `json:"joined" validate:"required"`
}

// RoomIDResponse is returned by join endpoints.
type RoomIDResponse struct {
	RoomID string `json:"room_id" validate:"required,startswith=!"`
}

// EventIDResponse is returned by endpoints that create an event.
type EventIDResponse struct {
	EventID string `json:"event_id" validate:"required,startswith=$"`
}

// ServerVersionResponse is returned by the Synapse admin server
// version endpoint.
type ServerVersionResponse struct {
	ServerVersion string `json:"server_version" validate:"required"`
}

// LoginResponse is returned by POST /login.
type LoginResponse struct {
	UserID      string `json:"user_id" validate:"required,startswith=@"`
	AccessToken string `json:"access_token" validate:"required"`
	DeviceID    string `json:"device_id"`
	HomeServer  string `json:"home_server,omitempty"`
}

// EmptyResponse is the {} most state-changing endpoints return.
type EmptyResponse struct{}
