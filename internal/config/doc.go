// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is read from an explicit --config file, else from
// ~/.config/tankerci/config.cue (XDG, macOS and Windows equivalents apply),
// else from ./tankerci.cue. Every field is optional; defaults describe the
// Ruby SDK layout. Files are validated against the embedded CUE schema
// (config_schema.cue) before being merged over the defaults.
package config
