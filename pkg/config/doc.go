// Package config loads typed configuration structs from environment
// variables.
//
// Each component declares its own Config struct with `env:` tags and
// defaults; the entrypoint loads them all at startup so a missing required
// variable fails fast instead of surfacing mid-request. A local .env file
// is honored in development.
package config
