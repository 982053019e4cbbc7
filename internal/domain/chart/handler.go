package chart

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
	"github.com/mediconnet/mediconnet/internal/platform/auth"
)

// AccessGuard decides whether a doctor may read a patient's chart. Backed by
// the encounter service's doctor-patient link check.
type AccessGuard interface {
	CanAccessPatient(ctx context.Context, doctorID, patientID uuid.UUID) error
}

type Handler struct {
	projector *Projector
	guard     AccessGuard
}

func NewHandler(projector *Projector, guard AccessGuard) *Handler {
	return &Handler{projector: projector, guard: guard}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients/:patientID/profile", h.Profile)
	g.GET("/patients/:patientID/history", h.History)
}

func (h *Handler) Profile(c echo.Context) error {
	patientID, err := h.authorize(c)
	if err != nil {
		return err
	}
	profile, err := h.projector.Profile(c.Request().Context(), patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"profile": profile})
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := h.authorize(c)
	if err != nil {
		return err
	}
	history, err := h.projector.History(c.Request().Context(), patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": history})
}

func (h *Handler) authorize(c echo.Context) (uuid.UUID, error) {
	patientID, err := uuid.Parse(c.Param("patientID"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	if err := h.guard.CanAccessPatient(c.Request().Context(), doctorID, patientID); err != nil {
		return uuid.Nil, apperr.HTTP(err)
	}
	return patientID, nil
}
