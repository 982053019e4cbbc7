package history

import (
	"net/http"

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

// RegisterRoutes wires the central aggregation plane. Writes carry the
// facility identity bound by the admission middleware; reads are open to any
// caller holding a national ID.
func (h *Handler) RegisterRoutes(central *echo.Group, facilityMW echo.MiddlewareFunc) {
	central.POST("/records", h.SubmitVisit, facilityMW)
	central.GET("/records/:nationalID", h.FetchHistory)
}

func (h *Handler) SubmitVisit(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	facilityID := auth.FacilityFromContext(c.Request().Context())
	result, err := h.svc.SubmitVisit(c.Request().Context(), facilityID, in)
	if err != nil {
		return apperr.HTTP(err)
	}

	status := http.StatusOK
	message := "patient record updated successfully"
	if result.Created {
		status = http.StatusCreated
		message = "new patient record created successfully"
	}
	return c.JSON(status, map[string]interface{}{
		"message":     message,
		"patient":     result.Patient,
		"visit_count": result.VisitCount,
	})
}

func (h *Handler) FetchHistory(c echo.Context) error {
	view, err := h.svc.FetchHistory(c.Request().Context(), c.Param("nationalID"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "patient history fetched successfully",
		"patient": view,
	})
}
