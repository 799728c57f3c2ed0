// Package retention ages out audit entries. Pruning is the one sanctioned
// way entries leave the log: a Pruner deletes entries past the retention
// window (optionally archiving them to JSONL first), and a cron-backed
// Scheduler runs it unattended. Verification after a prune treats the
// oldest retained entry as the chain root.
package retention
