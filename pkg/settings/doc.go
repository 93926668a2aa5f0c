// Package settings loads the envgate YAML configuration file: server
// options plus an optional seed of pipelines, environments, config
// repository parts and agents.
package settings
