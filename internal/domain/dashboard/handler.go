package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.Stats)
	api.GET("/dashboard/analytics", h.Analytics, auth.RequirePermission(auth.PermViewAnalytics))
}

func actorFrom(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// Stats returns the dashboard counters for the caller's role.
func (h *Handler) Stats(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	st, err := h.svc.ForActor(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Analytics(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Analytics(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
