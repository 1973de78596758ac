// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
)

// Overridden with -ldflags -X by release builds.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Stamp is the resolved build identity of the running binary.
type Stamp struct {
	Version   string
	Commit    string
	Dirty     bool
	BuildTime string
}

// Current resolves the build stamp. Fields left at their defaults by
// the linker fall back to the VCS settings the Go toolchain embeds,
// so a plain `go build` from a checkout still reports its commit.
func Current() Stamp {
	stamp := Stamp{
		Version:   Version,
		Commit:    GitCommit,
		Dirty:     GitDirty == "true",
		BuildTime: BuildTime,
	}
	if stamp.Commit != "unknown" {
		return stamp
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return stamp
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			stamp.Commit = shortRevision(setting.Value)
		case "vcs.modified":
			stamp.Dirty = setting.Value == "true"
		case "vcs.time":
			if stamp.BuildTime == "unknown" {
				stamp.BuildTime = setting.Value
			}
		}
	}
	return stamp
}

func shortRevision(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}

// String renders "0.1.0-dev (abc1234-dirty, 2026-03-01T12:00:00Z)".
func (s Stamp) String() string {
	commit := s.Commit
	if s.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", s.Version, commit, s.BuildTime)
}

// Info is Current().String().
func Info() string {
	return Current().String()
}

// Full appends the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns Version alone.
func Short() string {
	return Version
}

// Print writes the --version line for binary to stdout.
func Print(binary string) {
	Fprint(os.Stdout, binary)
}

// Fprint writes the --version line for binary to w.
func Fprint(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s %s\n", binary, Full())
}
