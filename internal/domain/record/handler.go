package record

import (
	"errors"
	"net/http"
	"strconv"

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
	readGroup := api.Group("", auth.RequireRole(auth.RoleHospital, auth.RoleClinician, auth.RoleViewer))
	readGroup.GET("/records/:id", h.GetRecord)
	readGroup.GET("/patients/:patientId/records", h.ListRecords)
	readGroup.GET("/patients/:patientId/risk-progression", h.GetRiskProgression)
	readGroup.GET("/patients/:patientId/risk-predictions", h.GetRiskPredictions)
	readGroup.GET("/patients/:patientId/summary", h.GetSummary)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleHospital, auth.RoleClinician))
	writeGroup.POST("/records", h.CreateRecord)
	writeGroup.PUT("/records/:id", h.UpdateRecord)
}

func errorBody(code, message string) map[string]interface{} {
	return map[string]interface{}{"code": code, "message": message}
}

func httpError(err error) error {
	var expired *WindowExpiredError
	var invalid *ValidationError
	switch {
	case errors.As(err, &expired):
		body := errorBody("record_locked", err.Error())
		body["editable_until"] = expired.Deadline
		return echo.NewHTTPError(http.StatusLocked, body)
	case errors.Is(err, ErrNotAuthor):
		return echo.NewHTTPError(http.StatusForbidden, errorBody("not_author", err.Error()))
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "clinical record not found")
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, errorBody("validation_failed", err.Error()))
	case errors.Is(err, ErrSummarizerUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, errorBody("summarizer_unavailable", err.Error()))
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// actor returns the authenticated caller, which must belong to a hospital.
func actor(c echo.Context) (auth.Actor, error) {
	a, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	if a.HospitalID == uuid.Nil {
		return auth.Actor{}, echo.NewHTTPError(http.StatusForbidden, "caller is not bound to a hospital")
	}
	return a, nil
}

func (h *Handler) CreateRecord(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var d Draft
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if d.ClinicianID == uuid.Nil {
		d.ClinicianID = a.ClinicianID
	}
	rec, err := h.svc.Create(c.Request().Context(), a.HospitalID, &d)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var d Draft
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if d.ClinicianID == uuid.Nil {
		d.ClinicianID = a.ClinicianID
	}
	rec, err := h.svc.Update(c.Request().Context(), id, a.HospitalID, &d)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
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

func (h *Handler) GetRiskProgression(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.RiskProgression(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetRiskPredictions(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.RiskPredictions(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetSummary(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var emergency bool
	if v := c.QueryParam("emergency"); v != "" {
		emergency, err = strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "emergency must be a boolean")
		}
	}
	s, err := h.svc.Summary(c.Request().Context(), patientID, emergency)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}
