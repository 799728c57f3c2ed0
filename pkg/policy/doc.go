// Package policy defines the policy document model and the Store contract
// the compiler and enforcement engine consume policies through.
//
// A Policy is versioned, human-authored governance intent: structured
// requirements plus free text. Lifecycle is draft -> active -> superseded;
// at most one version per (tenant, name) lineage is active at a time, and
// activating a version supersedes the prior active one without deleting it.
//
// Two Store implementations are provided: an in-memory store with full
// lifecycle operations, and a read-only YAML directory store that watches
// for file changes via fsnotify and notifies subscribers so the caller can
// rebuild the rule index.
package policy
