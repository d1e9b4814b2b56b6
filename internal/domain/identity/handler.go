package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careledger/careledger/internal/platform/auth"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/accounts", h.Register)
	api.GET("/accounts/me", h.GetMe)
	api.GET("/accounts/:principal/role", h.GetRole)
	api.PUT("/accounts/me/profile", h.UpdateProfile)
	api.PUT("/accounts/me/passcode", h.RotatePasscode)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.CallerFromContext(c.Request().Context())
	a, err := h.svc.Register(c.Request().Context(), caller, req)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetMe(c echo.Context) error {
	caller := auth.CallerFromContext(c.Request().Context())
	a, err := h.svc.GetAccount(c.Request().Context(), caller)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetRole(c echo.Context) error {
	p, err := principal.Parse(c.Param("principal"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal")
	}
	role, err := h.svc.GetRole(c.Request().Context(), p)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"principal": string(p), "role": string(role)})
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var profile Profile
	if err := c.Bind(&profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.CallerFromContext(c.Request().Context())
	a, err := h.svc.UpdateProfile(c.Request().Context(), caller, profile)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RotatePasscode(c echo.Context) error {
	var req struct {
		CurrentPasscode string `json:"current_passcode"`
		NewPasscode     string `json:"new_passcode"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.CallerFromContext(c.Request().Context())
	if err := h.svc.RotatePasscode(c.Request().Context(), caller, req.CurrentPasscode, req.NewPasscode); err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
