package lab

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the direction and gravity of an abnormal measurement.
// The zero value means the measurement is within its reference range.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityLow      Severity = "low"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether s is one of the known severity tokens.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// PanelStatus is the overall status of a lab panel.
type PanelStatus string

const (
	StatusNormal   PanelStatus = "normal"
	StatusAbnormal PanelStatus = "abnormal"
	StatusCritical PanelStatus = "critical"
)

// Trend is the direction of successive deviation scores for one analyte.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// Range is a reference interval. A value equal to Min or Max is in range.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Valid reports whether the range bounds are ordered.
func (r Range) Valid() bool { return r.Min <= r.Max }

// Contains reports whether v lies inside the closed interval.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Width returns Max - Min.
func (r Range) Width() float64 { return r.Max - r.Min }

// Measurement is one classified test result inside a panel. Measurements are
// owned by their panel and have no identity of their own.
type Measurement struct {
	TestName string   `json:"test_name"`
	Value    float64  `json:"value"`
	Unit     string   `json:"unit"`
	Range    Range    `json:"range"`
	Abnormal bool     `json:"abnormal"`
	Severity Severity `json:"severity,omitempty"`
	Note     *string  `json:"note,omitempty"`
}

// Panel maps to the lab_panel table. Measurements are stored as a JSONB array
// on the same row so that a panel and its results are written atomically.
type Panel struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	RecordID      *uuid.UUID    `db:"record_id" json:"record_id,omitempty"`
	TestDate      time.Time     `db:"test_date" json:"test_date"`
	PanelType     string        `db:"panel_type" json:"panel_type"`
	OrderedBy     string        `db:"ordered_by" json:"ordered_by"`
	LabName       string        `db:"lab_name" json:"lab_name"`
	Measurements  []Measurement `db:"measurements" json:"measurements"`
	OverallStatus PanelStatus   `db:"overall_status" json:"overall_status"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// RawMeasurement is an unclassified (testName, value, unit) triple as received
// from a lab submission. Range is only needed for tests missing from the
// reference table.
type RawMeasurement struct {
	TestName string  `json:"test_name"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Range    *Range  `json:"range,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// Submission is the payload of a lab submission or whole-panel replacement.
type Submission struct {
	PatientID    uuid.UUID        `json:"patient_id"`
	RecordID     *uuid.UUID       `json:"record_id,omitempty"`
	PanelType    string           `json:"panel_type"`
	OrderedBy    string           `json:"ordered_by"`
	LabName      string           `json:"lab_name"`
	TestDate     time.Time        `json:"test_date"`
	Notes        *string          `json:"notes,omitempty"`
	Measurements []RawMeasurement `json:"measurements"`
}

// TrendPoint is one stored measurement of an analyte, tagged with the date
// of the panel it came from.
type TrendPoint struct {
	PanelID uuid.UUID `json:"panel_id"`
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	Unit    string    `json:"unit"`
	Range   Range     `json:"range"`
}

// TestCount is an analyte seen in a patient's panels with its result count.
type TestCount struct {
	TestName string    `json:"test_name"`
	Count    int       `json:"count"`
	LastDate time.Time `json:"last_date"`
}
