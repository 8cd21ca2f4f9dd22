// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity defines the operator identities the console acts as
// and a read-only store that loads them from a YAML file.
//
// An [Identity] pairs a homeserver base URL with an access token and,
// for Application Service tokens, an optional user to masquerade as.
// The request pipeline only ever reads identities; creating, editing,
// and persisting them belongs to whoever owns the file.
package identity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned (wrapped with the name) when a lookup names an
// identity the store does not hold.
var ErrNotFound = errors.New("identity not found")

// Identity is a named credential for one homeserver.
type Identity struct {
	// Name is the unique key the operator refers to the identity by.
	Name string `yaml:"name" json:"name"`

	// ServerAddress is the homeserver base URL, without trailing
	// slash, e.g. "https://matrix.example.org". Request paths are
	// appended to it by string concatenation.
	ServerAddress string `yaml:"server_address" json:"server_address"`

	// AccessToken is sent as a bearer token. Empty means anonymous.
	AccessToken string `yaml:"access_token" json:"-"`

	// MasqueradeAs, when set, is sent as the user_id query parameter
	// so an Application Service token acts as that user.
	MasqueradeAs string `yaml:"masquerade_as,omitempty" json:"masquerade_as,omitempty"`

	// RememberLogin records whether the operator asked for the token
	// to be kept across sessions.
	RememberLogin bool `yaml:"remember_login" json:"remember_login"`
}

// Anonymous reports whether requests made as this identity carry no
// Authorization header.
func (i Identity) Anonymous() bool {
	return i.AccessToken == ""
}

// Validate checks the fields the request pipeline depends on.
func (i Identity) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("identity name is required")
	}
	if i.ServerAddress == "" {
		return fmt.Errorf("identity %q: server_address is required", i.Name)
	}
	parsed, err := url.Parse(i.ServerAddress)
	if err != nil {
		return fmt.Errorf("identity %q: invalid server_address %q: %w", i.Name, i.ServerAddress, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("identity %q: server_address %q must be an http or https URL", i.Name, i.ServerAddress)
	}
	if parsed.Host == "" {
		return fmt.Errorf("identity %q: server_address %q has no host", i.Name, i.ServerAddress)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("identity %q: server_address %q must not carry a query or fragment", i.Name, i.ServerAddress)
	}
	if i.MasqueradeAs != "" && !strings.HasPrefix(i.MasqueradeAs, "@") {
		return fmt.Errorf("identity %q: masquerade_as %q is not a Matrix user ID", i.Name, i.MasqueradeAs)
	}
	return nil
}

// Store gives synchronous, read-only access to the current identities.
type Store interface {
	// List returns every identity in store order.
	List() []Identity

	// Lookup returns the identity with the given name, or an error
	// wrapping ErrNotFound.
	Lookup(name string) (Identity, error)
}
