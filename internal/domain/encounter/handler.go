package encounter

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
	"github.com/mediconnet/mediconnet/internal/platform/auth"
	"github.com/mediconnet/mediconnet/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the encounter lifecycle under the authenticated staff
// group. Every route here runs behind the staff identity middleware.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/records", h.Open)
	g.POST("/records/:recordID/triage", h.RecordTriage)
	g.POST("/records/:recordID/assign", h.Assign)
	g.POST("/records/:recordID/start", h.StartTreatment)
	g.PUT("/records/:recordID", h.Complete)
	g.GET("/records/:recordID", h.GetRecord)
	g.GET("/patients", h.ListAssignedPatients)
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("recordID"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	return id, nil
}

func (h *Handler) Open(c echo.Context) error {
	var in struct {
		PatientID string       `json:"patientId"`
		Triage    *TriageInput `json:"triage"`
	}
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		return apperr.HTTP(apperr.Validation("valid patientId is required", "patientId"))
	}

	staffID := auth.DoctorIDFromContext(c.Request().Context())
	rec, err := h.svc.Open(c.Request().Context(), staffID, OpenInput{PatientID: patientID, Triage: in.Triage})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "medical record created successfully",
		"record":  rec,
	})
}

func (h *Handler) RecordTriage(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var in TriageInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	staffID := auth.DoctorIDFromContext(c.Request().Context())
	rec, err := h.svc.RecordTriage(c.Request().Context(), id, staffID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "triage recorded successfully",
		"record":  rec,
	})
}

func (h *Handler) Assign(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	rec, err := h.svc.Assign(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "record assigned successfully",
		"record":  rec,
	})
}

func (h *Handler) StartTreatment(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	rec, err := h.svc.StartTreatment(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "treatment started successfully",
		"record":  rec,
	})
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var in CompleteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	rec, err := h.svc.Complete(c.Request().Context(), id, doctorID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "treatment completed successfully",
		"record":  rec,
	})
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	rec, err := h.svc.GetRecord(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"record": rec})
}

func (h *Handler) ListAssignedPatients(c echo.Context) error {
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	params := pagination.FromContext(c)

	in := ListInput{
		Search: c.QueryParam("search"),
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			in.Statuses = append(in.Statuses, Status(strings.TrimSpace(s)))
		}
	}

	patients, total, err := h.svc.ListAssignedPatients(c.Request().Context(), doctorID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, params.Limit, params.Offset))
}
