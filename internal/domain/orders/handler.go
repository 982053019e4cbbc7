package orders

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnet/mediconnet/internal/platform/apperr"
	"github.com/mediconnet/mediconnet/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/records/:recordID/lab-requests", h.CreateLabRequest)
	g.GET("/records/:recordID/lab-requests", h.ListLabRequests)
	g.POST("/records/:recordID/prescriptions", h.CreatePrescription)
	g.GET("/records/:recordID/prescriptions", h.ListPrescriptions)
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("recordID"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	return id, nil
}

func (h *Handler) CreateLabRequest(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var in LabRequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	lr, err := h.svc.CreateLabRequest(c.Request().Context(), id, doctorID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":    "lab request created successfully",
		"labRequest": lr,
	})
}

func (h *Handler) ListLabRequests(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	labs, err := h.svc.ListLabRequests(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"labRequests": labs})
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	p, err := h.svc.CreatePrescription(c.Request().Context(), id, doctorID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "prescription created successfully",
		"prescription": p,
	})
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	doctorID := auth.DoctorIDFromContext(c.Request().Context())
	scripts, err := h.svc.ListPrescriptions(c.Request().Context(), id, doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"prescriptions": scripts})
}
