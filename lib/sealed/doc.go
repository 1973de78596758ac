// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed wraps filippo.io/age for the values Bureau keeps
// encrypted at rest, such as the environment variables users store for
// their workspaces.
//
// [Encrypt] seals plaintext to one or more age x25519 public keys and
// returns base64 ciphertext suitable for a TEXT column. An [Opener]
// holds a parsed private key and decrypts those values; plaintext comes
// back in a secret.Buffer. [GenerateKeypair] creates keys for tests and
// for operators provisioning a new store.
package sealed
