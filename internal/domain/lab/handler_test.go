package lab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	svc, _ := newTestService(t)
	return NewHandler(svc), echo.New()
}

func httpErrorBody(t *testing.T, err error, wantCode int) map[string]interface{} {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != wantCode {
		t.Fatalf("expected status %d, got %d", wantCode, he.Code)
	}
	body, _ := he.Message.(map[string]interface{})
	return body
}

func TestHandler_SubmitPanel(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"patient_id":"` + uuid.NewString() + `","panel_type":"Metabolic","ordered_by":"Dr. Ruiz","lab_name":"North Lab",
		"test_date":"2024-03-01T08:00:00Z","measurements":[{"test_name":"Glucose","value":180,"unit":"mg/dL","range":{"min":70,"max":100}}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SubmitPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var p Panel
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.OverallStatus != StatusAbnormal {
		t.Errorf("expected abnormal, got %s", p.OverallStatus)
	}
	if len(p.Measurements) != 1 || p.Measurements[0].Severity != SeverityHigh || !p.Measurements[0].Abnormal {
		t.Errorf("unexpected measurements %+v", p.Measurements)
	}
}

func TestHandler_SubmitPanel_UnknownTest(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"patient_id":"` + uuid.NewString() + `","panel_type":"Misc","ordered_by":"Dr. Ruiz","lab_name":"North Lab",
		"test_date":"2024-03-01T08:00:00Z","measurements":[{"test_name":"XYZ123","value":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	resp := httpErrorBody(t, h.SubmitPanel(c), http.StatusUnprocessableEntity)
	if resp["code"] != "unknown_test" {
		t.Errorf("expected code unknown_test, got %v", resp["code"])
	}
	if resp["test_name"] != "XYZ123" {
		t.Errorf("expected test_name XYZ123, got %v", resp["test_name"])
	}
}

func TestHandler_SubmitPanel_InvalidRange(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"patient_id":"` + uuid.NewString() + `","panel_type":"Misc","ordered_by":"Dr. Ruiz","lab_name":"North Lab",
		"test_date":"2024-03-01T08:00:00Z","measurements":[{"test_name":"Ferritin","value":30,"range":{"min":250,"max":20}}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	resp := httpErrorBody(t, h.SubmitPanel(c), http.StatusUnprocessableEntity)
	if resp["code"] != "invalid_range" {
		t.Errorf("expected code invalid_range, got %v", resp["code"])
	}
}

func TestHandler_SubmitPanel_Validation(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"panel_type":"Misc"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	httpErrorBody(t, h.SubmitPanel(c), http.StatusBadRequest)
}

func TestHandler_GetPanel_NotFound(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	httpErrorBody(t, h.GetPanel(c), http.StatusNotFound)
}

func TestHandler_GetPanel_InvalidID(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	httpErrorBody(t, h.GetPanel(c), http.StatusBadRequest)
}

func TestHandler_ReplacePanel(t *testing.T) {
	h, e := newTestHandler(t)
	pid := uuid.New()
	p, err := h.svc.Submit(context.Background(), basicSubmission(pid, day0, RawMeasurement{TestName: "Potassium", Value: 7.0}))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	body := `{"patient_id":"` + pid.String() + `","panel_type":"Metabolic","ordered_by":"Dr. Ruiz","lab_name":"North Lab",
		"test_date":"2024-01-01T09:00:00Z","measurements":[{"test_name":"Potassium","value":4.1}]}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.ReplacePanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Panel
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.OverallStatus != StatusNormal {
		t.Errorf("expected normal after replacement, got %s", got.OverallStatus)
	}
}

func TestHandler_GetTrend(t *testing.T) {
	h, e := newTestHandler(t)
	pid := uuid.New()
	for i, v := range []float64{9, 10, 11.5} {
		sub := basicSubmission(pid, day0.AddDate(0, 0, 7*i), RawMeasurement{TestName: "Hemoglobin", Value: v})
		if _, err := h.svc.Submit(context.Background(), sub); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patientId", "testName")
	c.SetParamValues(pid.String(), "Hemoglobin")

	if err := h.GetTrend(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report struct {
		Trend        Trend         `json:"trend"`
		RecentPoints []RecentPoint `json:"recent_points"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Trend != TrendImproving {
		t.Errorf("expected improving, got %s", report.Trend)
	}
	if len(report.RecentPoints) != 3 {
		t.Errorf("expected 3 recent points, got %d", len(report.RecentPoints))
	}
}

// newRoutedServer registers the handler on a real router with a lab actor
// already authenticated.
func newRoutedServer(t *testing.T) (*Service, *echo.Echo) {
	t.Helper()
	svc, _ := newTestService(t)
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.ContextWithActor(c.Request().Context(), auth.Actor{UserID: "lab-1", Roles: []string{auth.RoleLab}})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return svc, e
}

func TestHandler_GetTrend_RoutedTestNames(t *testing.T) {
	svc, e := newRoutedServer(t)
	pid := uuid.New()
	for i, v := range []float64{60, 66, 72} {
		sub := basicSubmission(pid, day0.AddDate(0, 0, i),
			RawMeasurement{TestName: "Neutrophils %", Value: v, Unit: "%", Range: &Range{Min: 40, Max: 70}},
			RawMeasurement{TestName: "White blood cells", Value: 7},
		)
		if _, err := svc.Submit(context.Background(), sub); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	tests := []struct {
		path     string
		testName string
	}{
		{"Neutrophils%20%25", "Neutrophils %"},
		{"White%20blood%20cells", "White blood cells"},
	}
	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+pid.String()+"/lab-trends/"+tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var report TrendReport
			if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if report.TestName != tt.testName {
				t.Errorf("expected test name %q, got %q", tt.testName, report.TestName)
			}
			if len(report.RecentPoints) != 3 {
				t.Errorf("expected 3 points, got %d", len(report.RecentPoints))
			}
		})
	}
}

func TestHandler_GetTrend_RoutedEscapedSlash(t *testing.T) {
	svc, e := newRoutedServer(t)
	pid := uuid.New()
	sub := basicSubmission(pid, day0, RawMeasurement{TestName: "Albumin/Globulin", Value: 1.5, Range: &Range{Min: 1, Max: 2.5}})
	if _, err := svc.Submit(context.Background(), sub); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+pid.String()+"/lab-trends/Albumin%2FGlobulin", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"test_name":"Albumin/Globulin"`) {
		t.Errorf("expected decoded test name, got %s", rec.Body.String())
	}
}

func TestHandler_SubmitPanel_EmptyMeasurements(t *testing.T) {
	_, e := newRoutedServer(t)
	body := `{"patient_id":"` + uuid.NewString() + `","panel_type":"Metabolic","ordered_by":"Dr. Ruiz","lab_name":"North Lab",
		"test_date":"2024-03-01T08:00:00Z","measurements":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lab-panels", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Panel
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.OverallStatus != StatusNormal {
		t.Errorf("expected normal, got %s", p.OverallStatus)
	}
}

func TestHandler_ListTests_Empty(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patientId")
	c.SetParamValues(uuid.NewString())

	if err := h.ListTests(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"tests":[]`) {
		t.Errorf("expected empty tests array, got %s", rec.Body.String())
	}
}

func TestHandler_ListReferenceRanges(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListReferenceRanges(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Ranges []RangeEntry `json:"ranges"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Ranges) == 0 {
		t.Error("expected reference ranges")
	}
}
