// Package config loads application configuration from environment
// variables (CTSALES_ prefix) with an optional YAML file overlay.
// Environment values take precedence over the file; defaults cover
// everything else, so the server starts with no configuration at all
// as long as the dataset file is in the default location.
package config
