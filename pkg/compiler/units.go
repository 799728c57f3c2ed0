package compiler

import (
	"fmt"

	"fleetgrid/warden/pkg/policy"
)

// unitClasses groups concrete units into comparable classes. Comparing a
// threshold in one class against a field declared in another (a weight
// against a currency value) is meaningless and is caught at compile time.
var unitClasses = map[string]string{
	"usd": "currency", "eur": "currency", "gbp": "currency",
	"km": "distance", "mi": "distance", "m": "distance",
	"days": "duration", "hours": "duration", "minutes": "duration", "months": "duration",
	"kg": "mass", "lb": "mass", "t": "mass",
	"l": "volume", "gal": "volume",
	"count": "count", "percent": "ratio",
}

// DefaultFieldUnits declares units for the well-known fleet payload fields.
// Callers extend or override these through Options.FieldUnits.
func DefaultFieldUnits() map[string]string {
	return map[string]string{
		"repair.cost":        "usd",
		"repair.estimate":    "usd",
		"fuel.cost":          "usd",
		"fuel.quantity":      "l",
		"vehicle.odometer":   "km",
		"vehicle.age":        "months",
		"vehicle.payload":    "kg",
		"trip.distance":      "km",
		"driver.hoursOnDuty": "hours",
	}
}

// checkUnits validates a requirement's declared unit against the field's
// registered unit. It returns ok=false with a warning message when the
// requirement must stay uncompiled.
func (c *Compiler) checkUnits(req *policy.Requirement) (string, bool) {
	if req.Unit == "" {
		return "", true
	}

	reqClass, known := unitClasses[req.Unit]
	if !known {
		return fmt.Sprintf("undeclared unit %q; left uncompiled", req.Unit), false
	}

	fieldUnit, declared := c.fieldUnits[req.Field]
	if !declared {
		// No declaration for the field: the requirement's unit stands.
		return "", true
	}
	if unitClasses[fieldUnit] != reqClass {
		return fmt.Sprintf("unit %q (%s) is not comparable with field %q declared in %q (%s); left uncompiled",
			req.Unit, reqClass, req.Field, fieldUnit, unitClasses[fieldUnit]), false
	}
	return "", true
}
