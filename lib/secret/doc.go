// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material in memory the garbage collector
// never sees.
//
// [Buffer] allocates with mmap(MAP_ANONYMOUS), locks the pages with
// mlock so they are never swapped, and marks them MADV_DONTDUMP so they
// stay out of core dumps. Close zeros, unlocks and unmaps the region.
//
// The context service keeps the age identity that unseals stored
// environment variables in a Buffer for the life of the process;
// [ReadFromPath] loads it from the mounted key file.
package secret
