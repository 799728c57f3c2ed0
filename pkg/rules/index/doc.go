// Package index holds the active working set of compiled rules used at
// enforcement time.
//
// The index is an immutable snapshot keyed by (tenant, operation, timing).
// Writers build a complete new snapshot from the active policy set and swap
// the reference atomically; readers always see a consistent snapshot and
// never block on a rebuild in progress.
package index
