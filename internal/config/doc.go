// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// The configuration file is looked up, in order, at the path passed with
// --config, at $XDG_CONFIG_HOME/mp/config.cue (or the platform equivalent)
// and at ./mp.cue. Values are validated against the embedded CUE schema
// (config_schema.cue) before being merged over the defaults, and MP_*
// environment variables override both.
package config
