package record

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, rec *ClinicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalRecord, error)
	// UpdateWithinWindow applies the mutable fields of rec only when the row
	// belongs to hospitalID and its deadline is still after now. The check and
	// the write happen in one statement.
	UpdateWithinWindow(ctx context.Context, rec *ClinicalRecord, hospitalID uuid.UUID, now time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ClinicalRecord, int, error)
	ListAllByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalRecord, error)
}
