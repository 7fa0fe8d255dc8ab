package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSummarizerUnavailable is returned by Summary when no summarizer is configured.
var ErrSummarizerUnavailable = errors.New("summarizer not configured")

// Summarizer produces free text from a formatted patient history.
type Summarizer interface {
	Summarize(ctx context.Context, history string, emergency bool) (string, error)
}

// Metrics receives record lifecycle events.
type Metrics interface {
	RecordCreated()
	MutationRejected(reason string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCreated()          {}
func (noopMetrics) MutationRejected(string) {}

// PatientSummary is the summarizer output for one patient.
type PatientSummary struct {
	PatientID uuid.UUID `json:"patient_id"`
	Emergency bool      `json:"emergency"`
	Records   int       `json:"records"`
	Summary   string    `json:"summary"`
}

type Service struct {
	records    RecordRepository
	window     EditWindow
	now        func() time.Time
	summarizer Summarizer
	names      NameResolver
	metrics    Metrics
	logger     zerolog.Logger
}

func NewService(records RecordRepository, window EditWindow) *Service {
	return &Service{
		records: records,
		window:  window,
		now:     time.Now,
		metrics: noopMetrics{},
		logger:  zerolog.Nop(),
	}
}

// SetClock replaces the time source. Each request reads it exactly once.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) SetSummarizer(sum Summarizer) { s.summarizer = sum }

func (s *Service) SetNameResolver(names NameResolver) { s.names = names }

func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

func (s *Service) Window() EditWindow { return s.window }

func validateDraft(d *Draft) error {
	if d.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Message: "is required"}
	}
	if d.ClinicianID == uuid.Nil {
		return &ValidationError{Field: "clinician_id", Message: "is required"}
	}
	if d.EventDate.IsZero() {
		return &ValidationError{Field: "event_date", Message: "is required"}
	}
	if strings.TrimSpace(d.Condition) == "" {
		return &ValidationError{Field: "condition", Message: "is required"}
	}
	if strings.TrimSpace(d.Description) == "" {
		return &ValidationError{Field: "description", Message: "is required"}
	}
	if !d.RiskLevel.Valid() {
		return &ValidationError{Field: "risk_level", Message: "must be one of low, medium, high, critical"}
	}
	for i, a := range d.Attachments {
		if strings.TrimSpace(a.Location) == "" {
			return &ValidationError{Field: fmt.Sprintf("attachments[%d].location", i), Message: "is required"}
		}
	}
	return nil
}

// Create stores a new record owned by hospitalID. The edit deadline is always
// derived from the creation instant.
func (s *Service) Create(ctx context.Context, hospitalID uuid.UUID, d *Draft) (*ClinicalRecord, error) {
	if hospitalID == uuid.Nil {
		return nil, &ValidationError{Field: "hospital_id", Message: "is required"}
	}
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	deadline := s.window.Open(now)
	rec := &ClinicalRecord{
		HospitalID:    hospitalID,
		Editable:      true,
		EditableUntil: &deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	d.apply(rec)
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create clinical record: %w", err)
	}
	s.metrics.RecordCreated()
	s.window.Refresh(rec, now)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ClinicalRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.window.Refresh(rec, s.now())
	return rec, nil
}

// Update applies d to the record when hospitalID authored it and its window
// is still open. The patient a record belongs to never changes.
func (s *Service) Update(ctx context.Context, id, hospitalID uuid.UUID, d *Draft) (*ClinicalRecord, error) {
	now := s.now().UTC()
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.HospitalID != hospitalID {
		s.metrics.MutationRejected("not_author")
		return nil, ErrNotAuthor
	}
	if err := s.window.AuthorizeMutation(rec, now); err != nil {
		s.metrics.MutationRejected("locked")
		return nil, err
	}

	d.PatientID = rec.PatientID
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	d.apply(rec)
	if err := s.records.UpdateWithinWindow(ctx, rec, hospitalID, now); err != nil {
		if errors.Is(err, ErrWindowExpired) {
			s.metrics.MutationRejected("locked")
			return nil, err
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotAuthor) {
			return nil, err
		}
		return nil, fmt.Errorf("update clinical record %s: %w", id, err)
	}
	s.window.Refresh(rec, now)
	return rec, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ClinicalRecord, int, error) {
	items, total, err := s.records.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for _, rec := range items {
		s.window.Refresh(rec, now)
	}
	return items, total, nil
}

func (s *Service) RiskProgression(ctx context.Context, patientID uuid.UUID) (*RiskProgression, error) {
	records, err := s.records.ListAllByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load records of patient %s: %w", patientID, err)
	}
	p := AnalyzeRiskProgression(records)
	return &p, nil
}

// RiskPredictions scores the patient's outlook per condition from the full
// history.
func (s *Service) RiskPredictions(ctx context.Context, patientID uuid.UUID) (*RiskPrediction, error) {
	records, err := s.records.ListAllByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load records of patient %s: %w", patientID, err)
	}
	p := PredictRisks(records)
	return &p, nil
}

// Summary formats the patient's history and hands it to the summarizer.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID, emergency bool) (*PatientSummary, error) {
	if s.summarizer == nil {
		return nil, ErrSummarizerUnavailable
	}
	records, err := s.records.ListAllByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load records of patient %s: %w", patientID, err)
	}
	out := &PatientSummary{PatientID: patientID, Emergency: emergency, Records: len(records)}
	if len(records) == 0 {
		return out, nil
	}
	text, err := s.summarizer.Summarize(ctx, FormatHistory(records, s.names), emergency)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("summarizer call failed")
		return nil, fmt.Errorf("summarize patient %s: %w", patientID, err)
	}
	out.Summary = text
	return out, nil
}
