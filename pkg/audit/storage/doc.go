// Package storage provides the audit.Storage backends: an in-memory store
// for tests and ephemeral runs, and a SQLite store for durable deployments.
package storage
