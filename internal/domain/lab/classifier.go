package lab

import (
	"fmt"
	"math"
)

// EscalationRule decides whether an abnormal value is critical. It is only
// consulted for values already outside their range.
type EscalationRule interface {
	Critical(value float64, r Range, entry *RangeEntry) bool
}

// WidthMultipleRule escalates when the distance outside the range is greater
// than Multiple times the range width. Multiple <= 0 disables the rule, and
// so does a zero-width range.
type WidthMultipleRule struct {
	Multiple float64
}

func (w WidthMultipleRule) Critical(value float64, r Range, _ *RangeEntry) bool {
	if w.Multiple <= 0 || r.Width() == 0 {
		return false
	}
	return distanceOutside(value, r) > w.Multiple*r.Width()
}

// CriticalLimitRule escalates when the value crosses the critical_low or
// critical_high limit configured on the range table entry.
type CriticalLimitRule struct{}

func (CriticalLimitRule) Critical(value float64, _ Range, entry *RangeEntry) bool {
	if entry == nil {
		return false
	}
	if entry.CriticalLow != nil && value <= *entry.CriticalLow {
		return true
	}
	if entry.CriticalHigh != nil && value >= *entry.CriticalHigh {
		return true
	}
	return false
}

// AnyRule escalates when any member rule does.
type AnyRule []EscalationRule

func (a AnyRule) Critical(value float64, r Range, entry *RangeEntry) bool {
	for _, rule := range a {
		if rule != nil && rule.Critical(value, r, entry) {
			return true
		}
	}
	return false
}

// DefaultWidthMultiple is the escalation multiple used when none is configured.
const DefaultWidthMultiple = 3

// DefaultEscalationRule combines the table's critical limits with the width
// multiple heuristic.
func DefaultEscalationRule(multiple float64) EscalationRule {
	return AnyRule{CriticalLimitRule{}, WidthMultipleRule{Multiple: multiple}}
}

func distanceOutside(value float64, r Range) float64 {
	switch {
	case value < r.Min:
		return r.Min - value
	case value > r.Max:
		return value - r.Max
	}
	return 0
}

// Classifier turns raw values into classified measurements. It holds only
// immutable state and is safe for concurrent use.
type Classifier struct {
	table *RangeTable
	rule  EscalationRule
}

// NewClassifier builds a classifier over table. A nil rule never escalates.
func NewClassifier(table *RangeTable, rule EscalationRule) *Classifier {
	return &Classifier{table: table, rule: rule}
}

// Table returns the reference table the classifier reads from.
func (c *Classifier) Table() *RangeTable { return c.table }

// Classify resolves the reference range for testName and classifies value
// against it. An explicit range takes precedence over the table.
func (c *Classifier) Classify(testName string, value float64, unit string, explicit *Range) (Measurement, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Measurement{}, &ValidationError{Field: testName, Message: "value must be a finite number"}
	}

	entry, known := c.table.Lookup(testName)
	var r Range
	switch {
	case explicit != nil:
		if !explicit.Valid() {
			return Measurement{}, fmt.Errorf("%s: min %g > max %g: %w", testName, explicit.Min, explicit.Max, ErrInvalidRange)
		}
		r = *explicit
	case known:
		r = entry.Range()
	default:
		return Measurement{}, &UnknownTestError{TestName: testName}
	}

	if unit == "" && known {
		unit = entry.Unit
	}

	m := Measurement{TestName: testName, Value: value, Unit: unit, Range: r}
	if r.Contains(value) {
		return m, nil
	}
	m.Abnormal, m.Severity = true, SeverityHigh
	if value < r.Min {
		m.Severity = SeverityLow
	}

	var ep *RangeEntry
	if known {
		ep = &entry
	}
	if c.rule != nil && c.rule.Critical(value, r, ep) {
		m.Severity = SeverityCritical
	}
	return m, nil
}

// ClassifyAll classifies every raw measurement, preserving order. The first
// failure aborts the whole batch.
func (c *Classifier) ClassifyAll(raw []RawMeasurement) ([]Measurement, error) {
	out := make([]Measurement, 0, len(raw))
	for i, rm := range raw {
		m, err := c.Classify(rm.TestName, rm.Value, rm.Unit, rm.Range)
		if err != nil {
			return nil, fmt.Errorf("measurement %d: %w", i, err)
		}
		m.Note = rm.Note
		out = append(out, m)
	}
	return out, nil
}
