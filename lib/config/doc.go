// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the context service's YAML configuration.
//
// Configuration comes from a single file: the --config flag (via
// [LoadFile]) or the BUREAU_CONTEXT_CONFIG environment variable (via
// [Load]), which falls back to [DefaultPath], the path the deployment
// mounts. There is no search and no per-field environment override.
//
// The file may carry development, staging and production sections
// whose non-zero fields override the base values when
// [Config].Environment matches. Production always logs JSON.
//
// Path fields (the store files and collaborator sockets) expand
// ${VAR} and ${VAR:-default} from the process environment after
// overrides are applied. [Config.Validate] reports every problem at
// once.
//
// This package depends on no other Bureau packages.
package config
