// Package config loads and validates vidpipe's TOML configuration.
//
// Configuration is resolved from an explicit path, a project-local
// vidpipe.toml, or ~/.config/vidpipe/config.toml, merged over compiled
// defaults. All path fields are tilde-expanded and absolute after Load.
package config
