package scheduling

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
	"github.com/spacedreammer/vaccineSchedule/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	perm := auth.RequirePermission

	api.GET("/schedules/available", h.ListAvailableSchedules)
	api.GET("/schedules/upcoming", h.ListUpcomingSchedules, perm(auth.PermViewUpcomingSchedule))
	api.GET("/schedules/:id", h.GetSchedule)

	manage := api.Group("/schedules", perm(auth.PermManageSchedules))
	manage.GET("", h.ListSchedules)
	manage.POST("", h.CreateSchedule)
	manage.PUT("/:id", h.UpdateSchedule)
	manage.POST("/:id/cancel", h.CancelSchedule)
	manage.DELETE("/:id", h.DeleteSchedule)

	api.POST("/appointments", h.CreateAppointment, perm(auth.PermCreateAppointment))
	api.GET("/appointments", h.SearchAppointments, perm(auth.PermSearchAppointments))
	api.GET("/appointments/mine", h.MyAppointments, perm(auth.PermViewOwnAppointments))
	api.GET("/appointments/pending", h.PendingReview, perm(auth.PermViewPendingReview))
	api.GET("/appointments/ready", h.ReadyToComplete, perm(auth.PermViewProviderQueue))
	api.GET("/appointments/incoming", h.IncomingRequests, perm(auth.PermViewProviderQueue))
	api.GET("/appointments/:id", h.GetAppointment)
	// The target status decides the permission; the service checks it.
	api.PATCH("/appointments/:id/status", h.TransitionAppointment)
	api.PUT("/appointments/:id/provider", h.AssignProvider, perm(auth.PermAssignProvider))
}

func actorFrom(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("body", "malformed request body")
	}
	return c.Validate(dst)
}

// -- Schedule Handlers --

type scheduleRequest struct {
	Title             string     `json:"title" validate:"required,max=255"`
	Description       *string    `json:"description"`
	Date              string     `json:"date" validate:"required,datetime=2006-01-02"`
	Time              string     `json:"time" validate:"required,clock"`
	Location          string     `json:"location" validate:"required,max=255"`
	Capacity          int        `json:"capacity" validate:"min=1"`
	VaccineCategoryID *uuid.UUID `json:"vaccine_category_id"`
}

func (r scheduleRequest) input() ScheduleInput {
	date, _ := time.Parse(dateLayout, r.Date)
	return ScheduleInput{
		Title:             r.Title,
		Description:       r.Description,
		Date:              date,
		Time:              r.Time,
		Location:          r.Location,
		Capacity:          r.Capacity,
		VaccineCategoryID: r.VaccineCategoryID,
	}
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req scheduleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sched, err := h.svc.CreateSchedule(c.Request().Context(), actor, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSchedules(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListAvailableSchedules(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAvailableSchedules(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListUpcomingSchedules(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUpcomingSchedules(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// UpdateSchedule replaces the schedule's editable fields. The body takes the
// same shape as create; omitted required fields fail validation rather than
// keeping their stored values.
func (h *Handler) UpdateSchedule(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req scheduleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sched, err := h.svc.UpdateSchedule(c.Request().Context(), actor, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) CancelSchedule(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sched, err := h.svc.CancelSchedule(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSchedule(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Appointment Handlers --

type createAppointmentRequest struct {
	ScheduleID    *uuid.UUID `json:"schedule_id"`
	ChildName     *string    `json:"child_name" validate:"omitempty,max=255"`
	VaccineType   *string    `json:"vaccine_type" validate:"omitempty,max=255"`
	PreferredDate string     `json:"preferred_date" validate:"required,datetime=2006-01-02"`
	PreferredTime string     `json:"preferred_time" validate:"required,clock"`
	Notes         *string    `json:"notes" validate:"omitempty,max=1000"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req createAppointmentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, _ := time.Parse(dateLayout, req.PreferredDate)
	appt, err := h.svc.CreateAppointment(c.Request().Context(), actor, NewAppointment{
		ScheduleID:    req.ScheduleID,
		ChildName:     req.ChildName,
		VaccineType:   req.VaccineType,
		PreferredDate: date,
		PreferredTime: req.PreferredTime,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetAppointment(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

type transitionRequest struct {
	Status     AppointmentStatus `json:"status" validate:"required,oneof=approved rejected completed cancelled"`
	ProviderID *uuid.UUID        `json:"provider_id"`
}

func (h *Handler) TransitionAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	appt, err := h.svc.Transition(c.Request().Context(), actor, id, req.Status, req.ProviderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

type assignProviderRequest struct {
	ProviderID uuid.UUID `json:"provider_id" validate:"required"`
}

func (h *Handler) AssignProvider(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req assignProviderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	appt, err := h.svc.AssignProvider(c.Request().Context(), actor, id, req.ProviderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) MyAppointments(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.MyAppointments(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) PendingReview(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PendingReview(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ReadyToComplete(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ReadyToComplete(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) IncomingRequests(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.IncomingRequests(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SearchAppointments(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchAppointments(c.Request().Context(), actor, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
