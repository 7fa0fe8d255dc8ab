package lab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type panelRepoPG struct{ pool *pgxpool.Pool }

func NewPanelRepoPG(pool *pgxpool.Pool) PanelRepository {
	return &panelRepoPG{pool: pool}
}

func (r *panelRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const panelCols = `id, patient_id, record_id, test_date, panel_type, ordered_by, lab_name,
	measurements, overall_status, notes, created_at, updated_at`

func (r *panelRepoPG) scanPanel(row pgx.Row) (*Panel, error) {
	var p Panel
	var raw []byte
	err := row.Scan(&p.ID, &p.PatientID, &p.RecordID, &p.TestDate, &p.PanelType, &p.OrderedBy, &p.LabName,
		&raw, &p.OverallStatus, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Measurements); err != nil {
		return nil, fmt.Errorf("decode measurements of panel %s: %w", p.ID, err)
	}
	if err := checkStoredMeasurements(p.Measurements); err != nil {
		return nil, fmt.Errorf("panel %s: %w", p.ID, err)
	}
	return &p, nil
}

// checkStoredMeasurements rejects JSONB that was not written by this service.
func checkStoredMeasurements(ms []Measurement) error {
	for i, m := range ms {
		if !m.Severity.IsValid() {
			return fmt.Errorf("measurement %d (%s): unknown severity %q", i, m.TestName, m.Severity)
		}
		if m.Abnormal != (m.Severity != SeverityNone) {
			return fmt.Errorf("measurement %d (%s): abnormal flag disagrees with severity %q", i, m.TestName, m.Severity)
		}
	}
	return nil
}

func encodeMeasurements(ms []Measurement) ([]byte, error) {
	if ms == nil {
		ms = []Measurement{}
	}
	return json.Marshal(ms)
}

func (r *panelRepoPG) Create(ctx context.Context, p *Panel) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	ms, err := encodeMeasurements(p.Measurements)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_panel (id, patient_id, record_id, test_date, panel_type, ordered_by, lab_name,
			measurements, overall_status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.RecordID, p.TestDate, p.PanelType, p.OrderedBy, p.LabName,
		ms, p.OverallStatus, p.Notes).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *panelRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Panel, error) {
	q := `SELECT ` + panelCols + ` FROM lab_panel WHERE id = $1`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}
	return r.scanPanel(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *panelRepoPG) Replace(ctx context.Context, p *Panel) error {
	ms, err := encodeMeasurements(p.Measurements)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE lab_panel SET patient_id=$2, record_id=$3, test_date=$4, panel_type=$5, ordered_by=$6,
			lab_name=$7, measurements=$8, overall_status=$9, notes=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.RecordID, p.TestDate, p.PanelType, p.OrderedBy,
		p.LabName, ms, p.OverallStatus, p.Notes).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *panelRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Panel, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_panel WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+panelCols+` FROM lab_panel WHERE patient_id = $1 ORDER BY test_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Panel
	for rows.Next() {
		p, err := r.scanPanel(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *panelRepoPG) History(ctx context.Context, patientID uuid.UUID, testName string) ([]TrendPoint, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.test_date,
			(m->>'value')::float8, COALESCE(m->>'unit', ''),
			(m->'range'->>'min')::float8, (m->'range'->>'max')::float8
		FROM lab_panel p, jsonb_array_elements(p.measurements) AS m
		WHERE p.patient_id = $1 AND m->>'test_name' = $2
		ORDER BY p.test_date ASC, p.created_at ASC`, patientID, testName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []TrendPoint
	for rows.Next() {
		var pt TrendPoint
		if err := rows.Scan(&pt.PanelID, &pt.Date, &pt.Value, &pt.Unit, &pt.Range.Min, &pt.Range.Max); err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}

func (r *panelRepoPG) TestCounts(ctx context.Context, patientID uuid.UUID) ([]TestCount, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m->>'test_name', COUNT(*), MAX(p.test_date)
		FROM lab_panel p, jsonb_array_elements(p.measurements) AS m
		WHERE p.patient_id = $1
		GROUP BY m->>'test_name'
		ORDER BY m->>'test_name'`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []TestCount
	for rows.Next() {
		var tc TestCount
		if err := rows.Scan(&tc.TestName, &tc.Count, &tc.LastDate); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}
