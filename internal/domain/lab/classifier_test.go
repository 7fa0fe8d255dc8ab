package lab

import (
	"errors"
	"testing"
)

func f64(v float64) *float64 { return &v }

func testTable(t *testing.T) *RangeTable {
	t.Helper()
	table, err := NewRangeTable([]RangeEntry{
		{TestName: "Glucose", Min: 70, Max: 100, Unit: "mg/dL", CriticalLow: f64(40), CriticalHigh: f64(500)},
		{TestName: "Hemoglobin", Min: 12, Max: 16, Unit: "g/dL"},
		{TestName: "Potassium", Min: 3.5, Max: 5.0, Unit: "mmol/L", CriticalLow: f64(2.5), CriticalHigh: f64(6.5)},
	})
	if err != nil {
		t.Fatalf("NewRangeTable: %v", err)
	}
	return table
}

func TestClassify_ExplicitRangeHigh(t *testing.T) {
	c := NewClassifier(testTable(t), DefaultEscalationRule(DefaultWidthMultiple))

	m, err := c.Classify("Fasting glucose", 180, "mg/dL", &Range{Min: 70, Max: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Abnormal {
		t.Error("expected abnormal")
	}
	if m.Severity != SeverityHigh {
		t.Errorf("expected severity high, got %q", m.Severity)
	}
}

func TestClassify_UnknownTest(t *testing.T) {
	c := NewClassifier(testTable(t), DefaultEscalationRule(DefaultWidthMultiple))

	_, err := c.Classify("XYZ123", 1, "", nil)
	if !errors.Is(err, ErrUnknownTest) {
		t.Fatalf("expected ErrUnknownTest, got %v", err)
	}
	var ute *UnknownTestError
	if !errors.As(err, &ute) || ute.TestName != "XYZ123" {
		t.Errorf("expected UnknownTestError for XYZ123, got %v", err)
	}
}

func TestClassify_TableLookup(t *testing.T) {
	c := NewClassifier(testTable(t), nil)

	m, err := c.Classify("Hemoglobin", 10.5, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Range != (Range{Min: 12, Max: 16}) {
		t.Errorf("expected table range, got %+v", m.Range)
	}
	if m.Unit != "g/dL" {
		t.Errorf("expected unit from table, got %q", m.Unit)
	}
	if m.Severity != SeverityLow {
		t.Errorf("expected low, got %q", m.Severity)
	}
}

func TestClassify_ExplicitRangeOverridesTable(t *testing.T) {
	c := NewClassifier(testTable(t), nil)

	m, err := c.Classify("Hemoglobin", 11, "g/dL", &Range{Min: 10, Max: 14})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Abnormal {
		t.Error("expected explicit range to win and value to be normal")
	}
}

func TestClassify_Boundaries(t *testing.T) {
	c := NewClassifier(testTable(t), nil)
	r := &Range{Min: 70, Max: 100}

	for _, v := range []float64{70, 100, 85} {
		m, err := c.Classify("Glucose", v, "", r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Abnormal || m.Severity != SeverityNone {
			t.Errorf("value %v on or inside the bounds should be normal, got %+v", v, m)
		}
	}
}

func TestClassify_InvalidExplicitRange(t *testing.T) {
	c := NewClassifier(testTable(t), nil)

	_, err := c.Classify("Glucose", 90, "", &Range{Min: 100, Max: 70})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestClassify_WidthMultipleEscalation(t *testing.T) {
	rule := WidthMultipleRule{Multiple: 3}
	c := NewClassifier(testTable(t), rule)
	r := &Range{Min: 70, Max: 100}

	tests := []struct {
		value float64
		want  Severity
	}{
		{180, SeverityHigh},     // 80 above, threshold 90
		{190, SeverityHigh},     // exactly 90 above is not beyond the threshold
		{191, SeverityCritical}, // 91 above
		{-21, SeverityCritical}, // 91 below
		{69, SeverityLow},
	}
	for _, tt := range tests {
		m, err := c.Classify("Glucose", tt.value, "", r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Severity != tt.want {
			t.Errorf("value %v: expected %q, got %q", tt.value, tt.want, m.Severity)
		}
	}
}

func TestClassify_WidthMultipleDisabled(t *testing.T) {
	c := NewClassifier(testTable(t), WidthMultipleRule{Multiple: 0})

	m, err := c.Classify("Glucose", 10000, "", &Range{Min: 70, Max: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Severity != SeverityHigh {
		t.Errorf("expected no escalation when disabled, got %q", m.Severity)
	}
}

func TestClassify_WidthMultipleZeroWidthRange(t *testing.T) {
	c := NewClassifier(testTable(t), DefaultEscalationRule(DefaultWidthMultiple))

	tests := []struct {
		value float64
		want  Severity
	}{
		{1, SeverityNone},
		{1.01, SeverityHigh},
		{0.99, SeverityLow},
		{50, SeverityHigh},
	}
	for _, tt := range tests {
		m, err := c.Classify("Fixed marker", tt.value, "", &Range{Min: 1, Max: 1})
		if err != nil {
			t.Fatalf("value %v: unexpected error: %v", tt.value, err)
		}
		if m.Severity != tt.want {
			t.Errorf("value %v: expected %q, got %q", tt.value, tt.want, m.Severity)
		}
	}
}

func TestWidthMultipleRule_ZeroWidthNeverEscalates(t *testing.T) {
	rule := WidthMultipleRule{Multiple: DefaultWidthMultiple}
	if rule.Critical(1000, Range{Min: 5, Max: 5}, nil) {
		t.Error("expected zero-width range to disable the width rule")
	}
	if !rule.Critical(1000, Range{Min: 5, Max: 6}, nil) {
		t.Error("expected non-zero-width range to escalate")
	}
}

func TestClassify_CriticalLimitEscalation(t *testing.T) {
	c := NewClassifier(testTable(t), CriticalLimitRule{})

	tests := []struct {
		value float64
		want  Severity
	}{
		{6.0, SeverityHigh},
		{6.5, SeverityCritical},
		{3.0, SeverityLow},
		{2.4, SeverityCritical},
	}
	for _, tt := range tests {
		m, err := c.Classify("Potassium", tt.value, "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Severity != tt.want {
			t.Errorf("potassium %v: expected %q, got %q", tt.value, tt.want, m.Severity)
		}
	}
}

func TestClassify_CriticalLimitIgnoredForUnknownEntries(t *testing.T) {
	c := NewClassifier(testTable(t), CriticalLimitRule{})

	m, err := c.Classify("Ferritin", 2000, "ng/mL", &Range{Min: 20, Max: 250})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Severity != SeverityHigh {
		t.Errorf("expected high without table limits, got %q", m.Severity)
	}
}

func TestClassify_NeverEscalatesNormalValue(t *testing.T) {
	always := ruleFunc(func(float64, Range, *RangeEntry) bool { return true })
	c := NewClassifier(testTable(t), always)

	m, err := c.Classify("Glucose", 85, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Abnormal || m.Severity != SeverityNone {
		t.Errorf("expected in-range value to stay normal, got %+v", m)
	}
}

type ruleFunc func(float64, Range, *RangeEntry) bool

func (f ruleFunc) Critical(v float64, r Range, e *RangeEntry) bool { return f(v, r, e) }

func TestClassify_SeverityInvariants(t *testing.T) {
	c := NewClassifier(testTable(t), DefaultEscalationRule(DefaultWidthMultiple))
	r := Range{Min: 12, Max: 16}

	for v := -50.0; v <= 80; v += 0.5 {
		m, err := c.Classify("Hemoglobin", v, "", &r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantAbnormal := v < r.Min || v > r.Max
		if m.Abnormal != wantAbnormal {
			t.Fatalf("value %v: abnormal=%v, want %v", v, m.Abnormal, wantAbnormal)
		}
		if (m.Severity == SeverityNone) == m.Abnormal {
			t.Fatalf("value %v: severity %q inconsistent with abnormal=%v", v, m.Severity, m.Abnormal)
		}
		if m.Severity == SeverityLow && v >= r.Min {
			t.Fatalf("value %v: low severity above min", v)
		}
		if m.Severity == SeverityHigh && v <= r.Max {
			t.Fatalf("value %v: high severity below max", v)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(testTable(t), DefaultEscalationRule(DefaultWidthMultiple))
	first, _ := c.Classify("Glucose", 612, "", nil)
	for i := 0; i < 10; i++ {
		again, _ := c.Classify("Glucose", 612, "", nil)
		if again != first {
			t.Fatalf("classification changed between calls: %+v vs %+v", first, again)
		}
	}
}

func TestClassifyAll_PreservesOrderAndNotes(t *testing.T) {
	c := NewClassifier(testTable(t), nil)
	note := "hemolysed sample"

	ms, err := c.ClassifyAll([]RawMeasurement{
		{TestName: "Potassium", Value: 5.4, Note: &note},
		{TestName: "Glucose", Value: 90},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms) != 2 || ms[0].TestName != "Potassium" || ms[1].TestName != "Glucose" {
		t.Fatalf("unexpected order: %+v", ms)
	}
	if ms[0].Note == nil || *ms[0].Note != note {
		t.Error("expected note to be carried over")
	}
}

func TestClassifyAll_FailsOnFirstError(t *testing.T) {
	c := NewClassifier(testTable(t), nil)

	_, err := c.ClassifyAll([]RawMeasurement{
		{TestName: "Glucose", Value: 90},
		{TestName: "XYZ123", Value: 1},
	})
	if !errors.Is(err, ErrUnknownTest) {
		t.Fatalf("expected ErrUnknownTest, got %v", err)
	}
}
