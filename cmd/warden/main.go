// Warden is a policy-to-rules compiler and enforcement engine for fleet
// operations.
//
// It turns governance policy documents into deterministic, typed rules and
// evaluates them synchronously against attempted operations (vehicle
// assignments, fuel purchases, dispatches, repair approvals), producing an
// allow, warn, require-approval or block decision and a hash-chained audit
// entry for every call.
//
// Usage:
//
//	# Compile a policy document and preview the resulting rules
//	warden compile --file policy.yaml
//
//	# Show aggregate decision statistics from the audit log
//	warden stats --db data/audit.db
//
//	# Verify the audit log's hash chain
//	warden verify --db data/audit.db
//
//	# Show version information
//	warden version
package main

func main() {
	Execute()
}
