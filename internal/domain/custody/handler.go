package custody

import (
	"net/http"
	"strconv"

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

// RegisterRoutes mounts the write-side case endpoints. Case and record reads
// go through the access gateway routes, not here.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/cases", h.CreateCase)
	api.GET("/cases/mine", h.ListMyCaseIDs)
	api.POST("/cases/:id/records", h.AddRecord)
	api.POST("/cases/:id/reports", h.AddReport)
	api.POST("/cases/:id/close", h.CloseCase)
}

func (h *Handler) CreateCase(c echo.Context) error {
	var req struct {
		Patient string `json:"patient"`
		Title   string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patient, err := principal.Parse(req.Patient)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient principal")
	}
	caller := auth.CallerFromContext(c.Request().Context())
	created, err := h.svc.CreateCase(c.Request().Context(), caller, patient, req.Title)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListMyCaseIDs(c echo.Context) error {
	caller := auth.CallerFromContext(c.Request().Context())
	ids, err := h.svc.ListCaseIDsForDoctor(c.Request().Context(), caller)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	if ids == nil {
		ids = []int64{}
	}
	return c.JSON(http.StatusOK, map[string][]int64{"case_ids": ids})
}

func (h *Handler) AddRecord(c echo.Context) error {
	caseID, err := caseIDParam(c)
	if err != nil {
		return err
	}
	var in RecordInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.CallerFromContext(c.Request().Context())
	rec, err := h.svc.AddRecord(c.Request().Context(), caller, caseID, in)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) AddReport(c echo.Context) error {
	caseID, err := caseIDParam(c)
	if err != nil {
		return err
	}
	var req struct {
		ContentRef string `json:"content_ref"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	caller := auth.CallerFromContext(c.Request().Context())
	rep, err := h.svc.AddReport(c.Request().Context(), caller, caseID, req.ContentRef)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) CloseCase(c echo.Context) error {
	caseID, err := caseIDParam(c)
	if err != nil {
		return err
	}
	caller := auth.CallerFromContext(c.Request().Context())
	closed, err := h.svc.CloseCase(c.Request().Context(), caller, caseID)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, closed)
}

func caseIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	return id, nil
}
