// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the console.
//
// Configuration is loaded from a single file specified by either the
// MATRIX_CONSOLE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search, so what the
// console does is always traceable to one file.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production paces bulk actions by default.
//
// ${HOME}, ${CONFIG_DIR}, and ${VAR:-default} are expanded in path
// fields after loading. No environment variable overrides a value.
//
// This package depends on no other console packages.
package config
