package lab

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/alert"
)

// Metrics receives lab analytics events. The prometheus collector implements it.
type Metrics interface {
	PanelSubmitted(status string)
	MeasurementClassified(severity string)
	TrendAnalyzed(trend string)
}

type noopMetrics struct{}

func (noopMetrics) PanelSubmitted(string)        {}
func (noopMetrics) MeasurementClassified(string) {}
func (noopMetrics) TrendAnalyzed(string)         {}

// TrendReport is the trend of one analyte for one patient.
type TrendReport struct {
	PatientID uuid.UUID `json:"patient_id"`
	TestName  string    `json:"test_name"`
	Unit      string    `json:"unit,omitempty"`
	TrendResult
}

// TxRunner runs fn inside a transaction carried on the context it is given.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func runDirect(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Service struct {
	panels     PanelRepository
	classifier *Classifier
	tolerance  float64
	alerts     alert.Publisher
	metrics    Metrics
	logger     zerolog.Logger
	inTx       TxRunner
}

func NewService(panels PanelRepository, classifier *Classifier, tolerance float64) *Service {
	if tolerance <= 0 {
		tolerance = DefaultTrendTolerance
	}
	return &Service{
		panels:     panels,
		classifier: classifier,
		tolerance:  tolerance,
		metrics:    noopMetrics{},
		logger:     zerolog.Nop(),
		inTx:       runDirect,
	}
}

// SetTxRunner makes Replace read and rewrite the panel in one transaction.
func (s *Service) SetTxRunner(run TxRunner) {
	if run != nil {
		s.inTx = run
	}
}

// SetAlertPublisher attaches the publisher notified about critical panels.
func (s *Service) SetAlertPublisher(p alert.Publisher) { s.alerts = p }

// SetMetrics attaches a metrics sink.
func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// -- Panels --

func validateSubmission(sub *Submission) error {
	if sub.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Message: "is required"}
	}
	if strings.TrimSpace(sub.PanelType) == "" {
		return &ValidationError{Field: "panel_type", Message: "is required"}
	}
	if strings.TrimSpace(sub.OrderedBy) == "" {
		return &ValidationError{Field: "ordered_by", Message: "is required"}
	}
	if strings.TrimSpace(sub.LabName) == "" {
		return &ValidationError{Field: "lab_name", Message: "is required"}
	}
	if sub.TestDate.IsZero() {
		return &ValidationError{Field: "test_date", Message: "is required"}
	}
	for i, m := range sub.Measurements {
		if strings.TrimSpace(m.TestName) == "" {
			return &ValidationError{Field: fmt.Sprintf("measurements[%d].test_name", i), Message: "is required"}
		}
	}
	return nil
}

// classify runs the whole submission through the classifier and aggregator.
// Nothing is stored when any measurement fails. A panel without measurements
// is normal.
func (s *Service) classify(sub *Submission, p *Panel) error {
	if err := validateSubmission(sub); err != nil {
		return err
	}
	ms, err := s.classifier.ClassifyAll(sub.Measurements)
	if err != nil {
		return err
	}
	p.RecordID = sub.RecordID
	p.TestDate = sub.TestDate.UTC()
	p.PanelType = sub.PanelType
	p.OrderedBy = sub.OrderedBy
	p.LabName = sub.LabName
	p.Notes = sub.Notes
	p.Measurements = ms
	p.OverallStatus = Aggregate(ms)
	return nil
}

func (s *Service) Submit(ctx context.Context, sub *Submission) (*Panel, error) {
	p := &Panel{PatientID: sub.PatientID}
	if err := s.classify(sub, p); err != nil {
		return nil, err
	}
	if err := s.panels.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create lab panel: %w", err)
	}
	s.record(ctx, p)
	return p, nil
}

// Replace re-classifies a whole panel. Individual measurements are never
// patched in place and a panel never moves to another patient.
func (s *Service) Replace(ctx context.Context, id uuid.UUID, sub *Submission) (*Panel, error) {
	var p *Panel
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.panels.GetByID(ctx, id); err != nil {
			return err
		}
		if sub.PatientID != uuid.Nil && sub.PatientID != p.PatientID {
			return &ValidationError{Field: "patient_id", Message: "does not match the stored panel"}
		}
		sub.PatientID = p.PatientID
		if err := s.classify(sub, p); err != nil {
			return err
		}
		if err := s.panels.Replace(ctx, p); err != nil {
			return fmt.Errorf("replace lab panel %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, p)
	return p, nil
}

func (s *Service) record(ctx context.Context, p *Panel) {
	s.metrics.PanelSubmitted(string(p.OverallStatus))
	for _, m := range p.Measurements {
		sev := string(m.Severity)
		if sev == "" {
			sev = "none"
		}
		s.metrics.MeasurementClassified(sev)
	}
	if p.OverallStatus != StatusCritical || s.alerts == nil {
		return
	}
	if err := s.alerts.PublishCriticalPanel(ctx, criticalAlert(p)); err != nil {
		s.logger.Error().Err(err).Str("panel_id", p.ID.String()).Msg("failed to publish critical panel alert")
	}
}

func criticalAlert(p *Panel) alert.CriticalPanel {
	a := alert.CriticalPanel{
		PanelID:   p.ID,
		PatientID: p.PatientID,
		PanelType: p.PanelType,
		TestDate:  p.TestDate,
	}
	for _, m := range p.Measurements {
		if m.Severity == SeverityCritical {
			a.Tests = append(a.Tests, alert.CriticalTest{
				TestName: m.TestName,
				Value:    m.Value,
				Unit:     m.Unit,
				Severity: string(m.Severity),
			})
		}
	}
	return a
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Panel, error) {
	return s.panels.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Panel, int, error) {
	return s.panels.ListByPatient(ctx, patientID, limit, offset)
}

// -- Analytics --

// Trend gathers every stored value of testName for the patient and analyses
// it. A history shorter than two points is reported as stable.
func (s *Service) Trend(ctx context.Context, patientID uuid.UUID, testName string) (*TrendReport, error) {
	if strings.TrimSpace(testName) == "" {
		return nil, &ValidationError{Field: "test_name", Message: "is required"}
	}
	history, err := s.panels.History(ctx, patientID, testName)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", testName, err)
	}
	res := AnalyzeTrend(history, s.tolerance)
	s.metrics.TrendAnalyzed(string(res.Trend))

	report := &TrendReport{PatientID: patientID, TestName: testName, TrendResult: res}
	if n := len(history); n > 0 {
		report.Unit = history[n-1].Unit
	}
	return report, nil
}

func (s *Service) ListTests(ctx context.Context, patientID uuid.UUID) ([]TestCount, error) {
	return s.panels.TestCounts(ctx, patientID)
}

// ReferenceRanges returns the table the classifier was built with.
func (s *Service) ReferenceRanges() []RangeEntry {
	return s.classifier.Table().Entries()
}
