// Package config defines the root YAML configuration for warden and its
// loading, defaulting and validation logic. Every section has working
// defaults; a missing config file yields a usable in-memory deployment.
package config
