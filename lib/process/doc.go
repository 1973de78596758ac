// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Bureau
// service binaries.
//
// [Main] owns the signal-cancelled context every service runs under.
// [Fatal] is the one place a binary writes raw text to stderr: errors
// that happen before the structured logger exists, or that end the
// process.
package process
