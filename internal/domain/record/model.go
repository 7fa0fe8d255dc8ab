package record

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the clinician's assessment attached to a record.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels from 1 (low) to 4 (critical). Unknown levels rank 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

func (r RiskLevel) Valid() bool { return r.Rank() > 0 }

// MediaAttachment describes a file stored elsewhere. Only the descriptor is kept.
type MediaAttachment struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Name     string `json:"name"`
}

type ClinicalRecord struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	PatientID        uuid.UUID         `db:"patient_id" json:"patient_id"`
	HospitalID       uuid.UUID         `db:"hospital_id" json:"hospital_id"`
	ClinicianID      uuid.UUID         `db:"clinician_id" json:"clinician_id"`
	EventDate        time.Time         `db:"event_date" json:"event_date"`
	Condition        string            `db:"condition" json:"condition"`
	Description      string            `db:"description" json:"description"`
	Treatment        *string           `db:"treatment" json:"treatment,omitempty"`
	RiskLevel        RiskLevel         `db:"risk_level" json:"risk_level"`
	EmergencyWarning *string           `db:"emergency_warning" json:"emergency_warning,omitempty"`
	Attachments      []MediaAttachment `db:"attachments" json:"attachments"`
	Editable         bool              `db:"is_editable" json:"editable"`
	EditableUntil    *time.Time        `db:"editable_until" json:"editable_until,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// Draft carries the caller-supplied fields of a record. Ownership and the
// edit deadline are never taken from it.
type Draft struct {
	PatientID        uuid.UUID         `json:"patient_id"`
	ClinicianID      uuid.UUID         `json:"clinician_id"`
	EventDate        time.Time         `json:"event_date"`
	Condition        string            `json:"condition"`
	Description      string            `json:"description"`
	Treatment        *string           `json:"treatment,omitempty"`
	RiskLevel        RiskLevel         `json:"risk_level"`
	EmergencyWarning *string           `json:"emergency_warning,omitempty"`
	Attachments      []MediaAttachment `json:"attachments"`
}

func (d *Draft) apply(rec *ClinicalRecord) {
	rec.PatientID = d.PatientID
	rec.ClinicianID = d.ClinicianID
	rec.EventDate = d.EventDate.UTC()
	rec.Condition = d.Condition
	rec.Description = d.Description
	rec.Treatment = d.Treatment
	rec.RiskLevel = d.RiskLevel
	rec.EmergencyWarning = d.EmergencyWarning
	rec.Attachments = d.Attachments
	if rec.Attachments == nil {
		rec.Attachments = []MediaAttachment{}
	}
}
