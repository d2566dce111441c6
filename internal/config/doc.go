// Package config loads parlor-hub configuration from YAML.
//
// Environment variables in ${VAR_NAME} form are expanded before parsing, and
// duration fields are written as Go duration strings ("30s", "24h") in the
// file and parsed into time.Duration values on load. Validate reports the
// first missing or invalid required field.
package config
