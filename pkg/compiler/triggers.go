package compiler

import (
	"sort"
	"strings"

	"fleetgrid/warden/pkg/policy"
	"fleetgrid/warden/pkg/rules"
)

// builtinTriggers maps subject keywords to dotted operation names. Each
// entry is checked in order; the first whose every keyword appears in the
// subject wins, so more specific phrases come first.
var builtinTriggers = []struct {
	keywords  []string
	operation string
}{
	{[]string{"fuel", "purchase"}, "fuel.purchase"},
	{[]string{"assign", "vehicle"}, "vehicle.assign"},
	{[]string{"vehicle", "inspect"}, "vehicle.inspect"},
	{[]string{"vehicle", "retire"}, "vehicle.retire"},
	{[]string{"dispatch", "driver"}, "driver.dispatch"},
	{[]string{"driver", "onboard"}, "driver.onboard"},
	{[]string{"repair", "approv"}, "repair.approve"},
	{[]string{"repair", "request"}, "repair.request"},
	{[]string{"maintenance", "schedul"}, "maintenance.schedule"},
	{[]string{"maintenance", "complet"}, "maintenance.complete"},
	{[]string{"trip", "start"}, "trip.start"},
	{[]string{"trip", "end"}, "trip.end"},
}

// inferTrigger derives the (operation, timing) trigger from a requirement's
// subject. A subject that is already a dotted operation name ("vehicle.assign")
// is used verbatim; otherwise the subject phrase is matched against the
// keyword table. Timing defaults to before unless the requirement or the
// subject phrase says otherwise.
func (c *Compiler) inferTrigger(p *policy.Policy, req *policy.Requirement) (rules.Trigger, bool) {
	subject := strings.ToLower(strings.TrimSpace(req.Subject))

	timing := rules.TimingBefore
	switch strings.ToLower(req.Timing) {
	case "after":
		timing = rules.TimingAfter
	case "", "before":
		if strings.HasPrefix(subject, "after ") {
			timing = rules.TimingAfter
		}
	default:
		return rules.Trigger{}, false
	}
	subject = strings.TrimPrefix(subject, "after ")
	subject = strings.TrimPrefix(subject, "before ")

	// Exact dotted operation names pass through.
	if !strings.ContainsAny(subject, " \t") && strings.Contains(subject, ".") {
		return rules.Trigger{Operation: subject, Timing: timing}, true
	}

	// Caller-supplied table first, then the builtin phrases. Keys are
	// sorted so compilation stays deterministic.
	for _, keyword := range sortedKeys(c.triggers) {
		if strings.Contains(subject, keyword) {
			return rules.Trigger{Operation: c.triggers[keyword], Timing: timing}, true
		}
	}
	for _, entry := range builtinTriggers {
		if containsAll(subject, entry.keywords) {
			return rules.Trigger{Operation: entry.operation, Timing: timing}, true
		}
	}

	return rules.Trigger{}, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsAll(s string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(s, kw) {
			return false
		}
	}
	return true
}
