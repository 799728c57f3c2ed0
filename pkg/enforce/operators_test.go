package enforce

import (
	"testing"

	"fleetgrid/warden/pkg/rules"
)

func TestCompareUndefinedSemantics(t *testing.T) {
	// An unresolved field is false under every operator except not-equals.
	ops := []rules.Operator{
		rules.OperatorEqual,
		rules.OperatorGreaterThan,
		rules.OperatorLessThan,
		rules.OperatorGreaterEqual,
		rules.OperatorLessEqual,
		rules.OperatorIn,
		rules.OperatorContains,
		rules.OperatorMatches,
	}
	for _, op := range ops {
		got, err := compare(op, nil, false, "anything")
		if err != nil {
			t.Fatalf("compare(%q, undefined) error: %v", op, err)
		}
		if got {
			t.Errorf("compare(%q, undefined) = true, want false", op)
		}
	}

	got, err := compare(rules.OperatorNotEqual, nil, false, "anything")
	if err != nil {
		t.Fatalf("compare(!=, undefined) error: %v", err)
	}
	if !got {
		t.Error("compare(!=, undefined) = false, want true")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		op       rules.Operator
		actual   any
		expected any
		want     bool
	}{
		{"equal strings", rules.OperatorEqual, "valid", "valid", true},
		{"equal int vs float", rules.OperatorEqual, 2000, 2000.0, true},
		{"not equal", rules.OperatorNotEqual, "suspended", "valid", true},
		{"greater than", rules.OperatorGreaterThan, 3500, 2000, true},
		{"greater than false", rules.OperatorGreaterThan, 1500, 2000, false},
		{"greater equal boundary", rules.OperatorGreaterEqual, 2000, 2000, true},
		{"less than", rules.OperatorLessThan, 80.5, 120, true},
		{"less equal", rules.OperatorLessEqual, 120, 120, true},
		{"in list", rules.OperatorIn, "diesel", []any{"diesel", "petrol"}, true},
		{"in list miss", rules.OperatorIn, "electric", []any{"diesel", "petrol"}, false},
		{"in numeric list", rules.OperatorIn, 3, []any{1, 2, 3.0}, true},
		{"contains substring", rules.OperatorContains, "heavy-duty truck", "truck", true},
		{"contains element", rules.OperatorContains, []any{"a", "b"}, "b", true},
		{"matches", rules.OperatorMatches, "TRK-104", `^TRK-\d+$`, true},
		{"matches miss", rules.OperatorMatches, "VAN-22", `^TRK-\d+$`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compare(tt.op, tt.actual, true, tt.expected)
			if err != nil {
				t.Fatalf("compare() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("compare(%q, %v, %v) = %v, want %v", tt.op, tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

func TestCompareTypeErrors(t *testing.T) {
	if _, err := compare(rules.OperatorGreaterThan, "abc", true, 10); err == nil {
		t.Error("expected error comparing string with > operator")
	}
	if _, err := compare(rules.OperatorIn, "x", true, "not-a-list"); err == nil {
		t.Error("expected error for in against non-list")
	}
	if _, err := compare(rules.OperatorMatches, "x", true, "("); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestResolvePath(t *testing.T) {
	payload := map[string]any{
		"driver": map[string]any{
			"licenseStatus": "valid",
			"stats":         map[string]any{"hours": 7},
		},
		"flag": nil,
	}

	if v, ok := resolvePath(payload, "driver.licenseStatus"); !ok || v != "valid" {
		t.Errorf("resolvePath(driver.licenseStatus) = %v, %v", v, ok)
	}
	if v, ok := resolvePath(payload, "driver.stats.hours"); !ok || v != 7 {
		t.Errorf("resolvePath(driver.stats.hours) = %v, %v", v, ok)
	}
	if v, ok := resolvePath(payload, "flag"); !ok || v != nil {
		t.Errorf("resolvePath(flag) should be present and nil, got %v, %v", v, ok)
	}
	if _, ok := resolvePath(payload, "driver.missing"); ok {
		t.Error("resolvePath(driver.missing) should not resolve")
	}
	if _, ok := resolvePath(payload, "driver.licenseStatus.deeper"); ok {
		t.Error("descending through a scalar should not resolve")
	}
}
