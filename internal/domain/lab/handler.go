package lab

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleHospital, auth.RoleClinician, auth.RoleLab, auth.RoleViewer))
	readGroup.GET("/lab-panels/:id", h.GetPanel)
	readGroup.GET("/patients/:patientId/lab-panels", h.ListPanels)
	readGroup.GET("/patients/:patientId/lab-trends/:testName", h.GetTrend)
	readGroup.GET("/patients/:patientId/lab-tests", h.ListTests)
	readGroup.GET("/reference-ranges", h.ListReferenceRanges)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleLab, auth.RoleClinician, auth.RoleHospital))
	writeGroup.POST("/lab-panels", h.SubmitPanel)
	writeGroup.PUT("/lab-panels/:id", h.ReplacePanel)
}

func errorBody(code, message string) map[string]interface{} {
	return map[string]interface{}{"code": code, "message": message}
}

// httpError maps service errors to responses. Conditions a client can act on
// carry a machine-readable code.
func httpError(err error) error {
	var unknown *UnknownTestError
	var invalid *ValidationError
	switch {
	case errors.As(err, &unknown):
		body := errorBody("unknown_test", err.Error())
		body["test_name"] = unknown.TestName
		return echo.NewHTTPError(http.StatusUnprocessableEntity, body)
	case errors.Is(err, ErrInvalidRange):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, errorBody("invalid_range", err.Error()))
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, errorBody("validation_failed", err.Error()))
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "lab panel not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) SubmitPanel(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Submit(c.Request().Context(), &sub)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ReplacePanel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Replace(c.Request().Context(), id, &sub)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPanel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPanels(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetTrend(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	// The router matches against RawPath when the request carries one, and
	// then leaves params encoded.
	testName := c.Param("testName")
	if c.Request().URL.RawPath != "" {
		if testName, err = url.PathUnescape(testName); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid test name")
		}
	}
	report, err := h.svc.Trend(c.Request().Context(), patientID, testName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ListTests(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	tests, err := h.svc.ListTests(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	if tests == nil {
		tests = []TestCount{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patient_id": patientID, "tests": tests})
}

func (h *Handler) ListReferenceRanges(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"ranges": h.svc.ReferenceRanges()})
}
