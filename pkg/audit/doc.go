// Package audit provides the append-only decision log the enforcement
// engine writes to and compliance reporting reads from.
//
// Each enforcement call produces exactly one Entry: the context snapshot,
// every rule considered with its outcome, and the final decision. Entries
// are sequence-numbered and hash-chained to their predecessor so reordering
// or deletion inside the retained window is detectable. The public contract
// has no update or delete; retention pruning (package retention) is the one
// sanctioned path for removing aged entries, optionally archiving them
// first.
//
// Aggregate statistics are computed from the log itself, never from a
// separately maintained counter, so dashboards cannot drift from the
// record.
package audit
