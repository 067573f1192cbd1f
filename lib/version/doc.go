// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the tether binaries.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected with
// -ldflags -X and default to "unknown" and "0.1.0-dev" in development
// builds:
//
//	go build -ldflags "-X github.com/bureau-foundation/tether/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
