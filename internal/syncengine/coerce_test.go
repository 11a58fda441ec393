package syncengine

import "testing"

func TestCoerceIntToleratesStringAndNumeric(t *testing.T) {
	if got := coerceInt("f", 5, 0); got != 5 {
		t.Errorf("int passthrough: got %d", got)
	}
	if got := coerceInt("f", "42", 0); got != 42 {
		t.Errorf("string numeric: got %d", got)
	}
	if got := coerceInt("f", float64(7), 0); got != 7 {
		t.Errorf("float64 from JSON: got %d", got)
	}
	if got := coerceInt("f", "not a number", 99); got != 99 {
		t.Errorf("invalid string should default: got %d", got)
	}
	if got := coerceInt("f", nil, 11); got != 11 {
		t.Errorf("nil should default: got %d", got)
	}
}

func TestCoerceFloatToleratesStringAndNumeric(t *testing.T) {
	if got := coerceFloat("f", "3.5", 0); got != 3.5 {
		t.Errorf("string numeric: got %v", got)
	}
	if got := coerceFloat("f", "garbage", 1.25); got != 1.25 {
		t.Errorf("invalid string should default: got %v", got)
	}
}

func TestCoerceBoolUsesFieldDefault(t *testing.T) {
	if got := coerceBool("Available", nil, true); got != true {
		t.Errorf("nil should use default true, got %v", got)
	}
	if got := coerceBool("Available", false, true); got != false {
		t.Errorf("explicit false should override default, got %v", got)
	}
	if got := coerceBool("Available", "yes", true); got != true {
		t.Errorf("non-bool should fall back to default, got %v", got)
	}
}

func TestCoerceDateTimeParsesISO8601(t *testing.T) {
	tm, ok := coerceDateTime("OrderDate", "2026-01-15T10:00:00Z", nil)
	if !ok {
		t.Fatal("expected successful parse")
	}
	if tm.Year() != 2026 {
		t.Errorf("unexpected year: %d", tm.Year())
	}
}

func TestCoerceDateTimeFallsBackOnInvalidInput(t *testing.T) {
	_, ok := coerceDateTime("OrderDate", "not-a-date", nil)
	if ok {
		t.Error("expected fallback (ok=false) for invalid datetime string")
	}
}
