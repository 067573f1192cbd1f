// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the tether
// binaries: reporting a fatal error before or after the logger exists,
// and turning a returned error into a process exit code.
package process
