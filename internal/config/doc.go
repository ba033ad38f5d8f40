// Package config loads settings from a YAML file and CRAIG_ environment
// variables, with per-repository overrides merged over global defaults.
package config
