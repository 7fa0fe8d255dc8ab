package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, patient_id, hospital_id, clinician_id, event_date, condition, description,
	treatment, risk_level, emergency_warning, attachments, is_editable, editable_until, created_at, updated_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*ClinicalRecord, error) {
	var rec ClinicalRecord
	var raw []byte
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.HospitalID, &rec.ClinicianID, &rec.EventDate,
		&rec.Condition, &rec.Description, &rec.Treatment, &rec.RiskLevel, &rec.EmergencyWarning,
		&raw, &rec.Editable, &rec.EditableUntil, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments of record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func encodeAttachments(a []MediaAttachment) ([]byte, error) {
	if a == nil {
		a = []MediaAttachment{}
	}
	return json.Marshal(a)
}

func (r *recordRepoPG) Create(ctx context.Context, rec *ClinicalRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	att, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_record (id, patient_id, hospital_id, clinician_id, event_date, condition,
			description, treatment, risk_level, emergency_warning, attachments, is_editable, editable_until,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.HospitalID, rec.ClinicianID, rec.EventDate, rec.Condition,
		rec.Description, rec.Treatment, rec.RiskLevel, rec.EmergencyWarning, att, rec.Editable,
		rec.EditableUntil, rec.CreatedAt).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalRecord, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM clinical_record WHERE id = $1`, id))
}

// UpdateWithinWindow runs the guarded update and, when it matches nothing, the
// lookup explaining why, in one transaction so both see the same row.
func (r *recordRepoPG) UpdateWithinWindow(ctx context.Context, rec *ClinicalRecord, hospitalID uuid.UUID, now time.Time) error {
	att, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		return r.updateGuarded(ctx, rec, att, hospitalID, now)
	})
}

func (r *recordRepoPG) updateGuarded(ctx context.Context, rec *ClinicalRecord, att []byte, hospitalID uuid.UUID, now time.Time) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE clinical_record SET clinician_id=$4, event_date=$5, condition=$6, description=$7,
			treatment=$8, risk_level=$9, emergency_warning=$10, attachments=$11, updated_at=$3
		WHERE id = $1 AND hospital_id = $2 AND editable_until > $3
		RETURNING created_at, updated_at, editable_until`,
		rec.ID, hospitalID, now, rec.ClinicianID, rec.EventDate, rec.Condition, rec.Description,
		rec.Treatment, rec.RiskLevel, rec.EmergencyWarning, att).Scan(&rec.CreatedAt, &rec.UpdatedAt, &rec.EditableUntil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return r.rejection(ctx, rec.ID, hospitalID)
}

// rejection explains why the guarded update matched no row.
func (r *recordRepoPG) rejection(ctx context.Context, id, hospitalID uuid.UUID) error {
	var owner uuid.UUID
	var deadline time.Time
	err := r.conn(ctx).QueryRow(ctx, `SELECT hospital_id, editable_until FROM clinical_record WHERE id = $1`, id).
		Scan(&owner, &deadline)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != hospitalID {
		return ErrNotAuthor
	}
	return &WindowExpiredError{RecordID: id, Deadline: deadline}
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ClinicalRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM clinical_record WHERE patient_id = $1 ORDER BY event_date DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *recordRepoPG) ListAllByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM clinical_record WHERE patient_id = $1 ORDER BY event_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *recordRepoPG) collect(rows pgx.Rows) ([]*ClinicalRecord, error) {
	defer rows.Close()
	var items []*ClinicalRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
