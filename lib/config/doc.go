// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads tether configuration.
//
// Values are layered in a fixed order: [Default], then the YAML file
// named by TETHER_CONFIG if it is set, then the TETHER_* environment
// overrides listed on [Load]. There is no file discovery; an unset
// TETHER_CONFIG means no file.
//
// ${HOME}, ${TMPDIR} and ${VAR:-default} patterns are expanded in
// history_dir after loading.
//
// The seed is deliberately absent. It is an authentication secret and
// comes only from the command line, a seed file, or TETHER_SEED.
package config
