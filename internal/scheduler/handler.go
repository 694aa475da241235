package scheduler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/domain/assignment"
	"github.com/clinicflow/clinicflow/internal/domain/queue"
	"github.com/clinicflow/clinicflow/internal/domain/treatment"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	staff.POST("/queue/advance", h.AdvanceQueue)
	staff.POST("/queue/:id/claim", h.ClaimEntry)
	staff.POST("/queue/:id/release", h.ReleaseEntry)
	staff.POST("/events/:id/claim", h.ClaimDose)
	staff.POST("/events/:id/release", h.ReleaseDose)
	staff.GET("/patients/:id/plan", h.GetDailyPlan)

	clinical := api.Group("", auth.RequireRole("admin", "physician"))
	clinical.POST("/prescriptions", h.WritePrescription)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, queue.ErrNotFound),
		errors.Is(err, queue.ErrQueueEmpty),
		errors.Is(err, treatment.ErrEventNotFound),
		errors.Is(err, treatment.ErrPrescriptionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, queue.ErrDuplicateActiveEntry),
		errors.Is(err, treatment.ErrAlreadyFinalized),
		errors.Is(err, assignment.ErrAlreadyClaimed),
		errors.Is(err, assignment.ErrNotClaimant),
		errors.Is(err, assignment.ErrNotClaimed),
		errors.Is(err, ErrConsultationNotStarted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// staffID resolves the authenticated user into a staff UUID.
func staffID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authenticated user has no staff id")
	}
	return id, nil
}

func (h *Handler) AdvanceQueue(c echo.Context) error {
	var body struct {
		DoctorID uuid.UUID `json:"doctor_id"`
		Day      string    `json:"day"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	staff, err := staffID(c)
	if err != nil {
		return err
	}

	e, err := h.svc.AdvanceQueue(c.Request().Context(), body.DoctorID, body.Day, staff)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) WritePrescription(c echo.Context) error {
	var body struct {
		EntryID      uuid.UUID             `json:"entry_id"`
		Prescription treatment.Prescription `json:"prescription"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.EntryID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "entry_id is required")
	}

	if err := h.svc.WritePrescriptionAndSchedule(c.Request().Context(), body.EntryID, &body.Prescription); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, body.Prescription)
}

func (h *Handler) ClaimEntry(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid queue entry id")
	}
	staff, err := staffID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ClaimEntry(c.Request().Context(), entryID, staff); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReleaseEntry(c echo.Context) error {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid queue entry id")
	}
	staff, err := staffID(c)
	if err != nil {
		return err
	}
	admin := auth.IsAdmin(c.Request().Context())
	if err := h.svc.ReleaseEntry(c.Request().Context(), entryID, staff, admin); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ClaimDose(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	staff, err := staffID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ClaimDose(c.Request().Context(), eventID, staff); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReleaseDose(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	staff, err := staffID(c)
	if err != nil {
		return err
	}
	admin := auth.IsAdmin(c.Request().Context())
	if err := h.svc.ReleaseDose(c.Request().Context(), eventID, staff, admin); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetDailyPlan(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	plan, err := h.svc.GetPatientDailyPlan(c.Request().Context(), patientID, c.QueryParam("day"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plan)
}
