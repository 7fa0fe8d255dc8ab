package lab

import (
	"context"

	"github.com/google/uuid"
)

type PanelRepository interface {
	Create(ctx context.Context, p *Panel) error
	GetByID(ctx context.Context, id uuid.UUID) (*Panel, error)
	// Replace overwrites every mutable column of an existing panel.
	Replace(ctx context.Context, p *Panel) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Panel, int, error)
	// History returns every stored measurement of testName for the patient,
	// oldest panel first.
	History(ctx context.Context, patientID uuid.UUID, testName string) ([]TrendPoint, error)
	TestCounts(ctx context.Context, patientID uuid.UUID) ([]TestCount, error)
}
