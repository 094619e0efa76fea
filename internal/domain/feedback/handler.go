package feedback

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
	"github.com/spacedreammer/vaccineSchedule/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	submit := auth.RequirePermission(auth.PermSubmitFeedback)
	view := auth.RequirePermission(auth.PermViewProviderFeedback)

	api.POST("/feedback", h.Submit, submit)
	api.GET("/feedback/mine", h.ListMine, submit)
	api.GET("/providers/:id/feedback", h.ListForProvider, view)
	api.GET("/providers/:id/feedback/export", h.ExportForProvider, view)
	api.GET("/providers/:id/rating", h.AverageRating, view)
}

func actorFrom(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

type submitRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id" validate:"required"`
	Rating        int       `json:"rating" validate:"required,min=1,max=5"`
	Comment       *string   `json:"comment" validate:"omitempty,max=1000"`
}

func (h *Handler) Submit(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	fb, err := h.svc.Submit(c.Request().Context(), actor, Submission{
		AppointmentID: req.AppointmentID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, fb)
}

func (h *Handler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMine(c.Request().Context(), actor, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func providerParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}
	return id, nil
}

func (h *Handler) ListForProvider(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	providerID, err := providerParam(c)
	if err != nil {
		return err
	}
	params, err := pagination.KeysetFromContext(c)
	if err != nil {
		return apperr.Validation("cursor", err.Error())
	}
	items, next, err := h.svc.ProviderPage(c.Request().Context(), actor, providerID, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &pagination.KeysetResponse{Data: items, NextCursor: next.Encode()})
}

// ExportForProvider streams every feedback entry as newline-delimited JSON.
func (h *Handler) ExportForProvider(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	providerID, err := providerParam(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.ListForProvider(c.Request().Context(), actor, providerID)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	res.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(res)
	for pf, err := range entries {
		if err != nil {
			// Headers are gone; the error only reaches the request log.
			return err
		}
		if err := enc.Encode(pf); err != nil {
			return err
		}
		res.Flush()
	}
	return nil
}

func (h *Handler) AverageRating(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	providerID, err := providerParam(c)
	if err != nil {
		return err
	}
	r, err := h.svc.AverageRating(c.Request().Context(), actor, providerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}
