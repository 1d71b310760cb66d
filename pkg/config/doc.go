// Package config loads runtime configuration in three layers:
// built-in defaults, an optional YAML file, and NIFICDC_* environment
// variables, each layer overriding the one below.
package config
