// Package enforce is the synchronous decision point for fleet operations.
//
// Callers submit an attempted operation (a Context) to Engine.Enforce and
// receive a Result whose Decision is allow, warn, require_approval or
// block. Evaluation runs against an immutable snapshot of the compiled rule
// index, so a policy activation mid-call never yields a half-applied rule
// set. Every call, including ones that match no rules, produces exactly one
// audit entry before it returns.
//
// Rules that gate an operation fail closed: when the data needed to prove a
// requirement holds cannot be resolved (missing payload field, lookup
// timeout, expression error), the gate fires rather than waving the
// operation through.
package enforce
