// Package rules defines the compiled rule model shared by the compiler,
// the rule index, and the enforcement engine.
//
// A CompiledRule is the machine-executable derivation of exactly one policy
// requirement: a typed kind, a trigger (operation + timing), a condition
// tree, and an ordered action list. Rules are immutable once compiled; the
// index and engine treat them as read-only values.
package rules
