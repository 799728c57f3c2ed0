// Package compiler derives typed, machine-executable rules from policy
// documents.
//
// Compilation is a pure, deterministic, side-effect-free transform: the
// same policy version always yields the same rule set (object ids aside).
// Each structured requirement is classified by its verb and threshold
// pattern into one of the rule kinds (validation, automation, approval,
// notification, calculation); requirements that cannot be classified, or
// that reference mismatched units, are left uncompiled and reported as
// warnings so a published policy is never blocked by tooling limits.
// Malformed policy structure is the one fatal case.
//
// Persisting the resulting rules and rebuilding the rule index is the
// caller's responsibility.
package compiler
