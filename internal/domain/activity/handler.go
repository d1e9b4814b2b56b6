package activity

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/careledger/careledger/internal/platform/auth"
	"github.com/careledger/careledger/internal/platform/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/activities", h.List)
	api.GET("/activities/mine", h.ListMine)
	api.POST("/activities/:id/visibility", h.ToggleVisibility)
}

func (h *Handler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.svc.List(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) ListMine(c echo.Context) error {
	caller := auth.CallerFromContext(c.Request().Context())
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.svc.ListForActor(c.Request().Context(), caller, limit)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) ToggleVisibility(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid activity id")
	}
	caller := auth.CallerFromContext(c.Request().Context())
	e, err := h.svc.ToggleVisibility(c.Request().Context(), caller, id)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, e)
}
