// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// identitiesFile is the on-disk shape of an identities file.
type identitiesFile struct {
	Identities []fileEntry `yaml:"identities"`
}

// fileEntry extends Identity with an indirection for the token so that
// identities files can be committed without secrets in them.
type fileEntry struct {
	Identity `yaml:",inline"`

	// AccessTokenFile names a file holding the token. Mutually
	// exclusive with an inline access_token.
	AccessTokenFile string `yaml:"access_token_file,omitempty"`
}

// MemoryStore is a Store over a fixed list of identities.
type MemoryStore struct {
	identities []Identity
	byName     map[string]int
}

// Compile-time check: *MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store from identities, validating each and
// rejecting duplicate names. Trailing slashes are stripped from server
// addresses.
func NewMemoryStore(identities ...Identity) (*MemoryStore, error) {
	store := &MemoryStore{
		identities: make([]Identity, 0, len(identities)),
		byName:     make(map[string]int, len(identities)),
	}

	var errs []error
	for _, entry := range identities {
		entry.ServerAddress = strings.TrimRight(entry.ServerAddress, "/")
		if err := entry.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, exists := store.byName[entry.Name]; exists {
			errs = append(errs, fmt.Errorf("duplicate identity name %q", entry.Name))
			continue
		}
		store.byName[entry.Name] = len(store.identities)
		store.identities = append(store.identities, entry)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return store, nil
}

// LoadFile reads a YAML identities file:
//
//	identities:
//	  - name: admin
//	    server_address: https://matrix.example.org
//	    access_token_file: ${HOME}/.config/matrix-console/admin.token
//	  - name: bridge-bot
//	    server_address: https://matrix.example.org
//	    access_token: as_token_value
//	    masquerade_as: "@bridge:example.org"
//
// Environment variables in access_token_file are expanded.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identities file: %w", err)
	}

	var file identitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing identities file %s: %w", path, err)
	}

	identities := make([]Identity, 0, len(file.Identities))
	for _, entry := range file.Identities {
		if entry.AccessTokenFile != "" {
			if entry.AccessToken != "" {
				return nil, fmt.Errorf("identity %q: access_token and access_token_file are mutually exclusive", entry.Name)
			}
			token, err := readTokenFile(os.ExpandEnv(entry.AccessTokenFile))
			if err != nil {
				return nil, fmt.Errorf("identity %q: %w", entry.Name, err)
			}
			entry.AccessToken = token
		}
		identities = append(identities, entry.Identity)
	}

	store, err := NewMemoryStore(identities...)
	if err != nil {
		return nil, fmt.Errorf("identities file %s: %w", path, err)
	}
	return store, nil
}

// readTokenFile reads a token and strips surrounding whitespace (files
// written by echo end with a newline).
func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading access token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("access token file %s is empty", path)
	}
	return token, nil
}

// List returns a copy of every identity in file order.
func (s *MemoryStore) List() []Identity {
	result := make([]Identity, len(s.identities))
	copy(result, s.identities)
	return result
}

// Lookup returns the identity named name.
func (s *MemoryStore) Lookup(name string) (Identity, error) {
	index, ok := s.byName[name]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s.identities[index], nil
}
