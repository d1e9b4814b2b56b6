package access

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/careledger/careledger/internal/domain/custody"
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
	api.POST("/patients/:patient/grants", h.Grant)
	api.POST("/patients/:patient/grants/:member/revoke", h.Revoke)
	api.GET("/patients/:patient/grants", h.ListGrants)
	api.GET("/patients/:patient/access/:requester", h.HasAccess)
	api.GET("/patients/:patient/cases", h.ReadCases)
	api.GET("/cases/:id/records", h.ReadRecords)
	api.GET("/cases/:id/reports", h.ReadReports)
	api.POST("/patients/:patient/profile", h.ReadProfileWithPasscode)
}

func (h *Handler) Grant(c echo.Context) error {
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	caller := auth.CallerFromContext(c.Request().Context())
	if caller != patient {
		return echo.NewHTTPError(http.StatusForbidden, "only the patient may manage their grants")
	}
	var req struct {
		Member       string `json:"member"`
		Relationship string `json:"relationship"`
		Passcode     string `json:"passcode"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	member, err := principal.Parse(req.Member)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member principal")
	}
	g, err := h.svc.Grant(c.Request().Context(), patient, member, req.Relationship, req.Passcode)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) Revoke(c echo.Context) error {
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	caller := auth.CallerFromContext(c.Request().Context())
	if caller != patient {
		return echo.NewHTTPError(http.StatusForbidden, "only the patient may manage their grants")
	}
	member, err := principal.Parse(c.Param("member"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member principal")
	}
	var req struct {
		Passcode string `json:"passcode"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Revoke(c.Request().Context(), patient, member, req.Passcode); err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListGrants(c echo.Context) error {
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	caller := auth.CallerFromContext(c.Request().Context())
	grants, err := h.svc.ListGrants(c.Request().Context(), caller, patient)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	if grants == nil {
		grants = []*Grant{}
	}
	return c.JSON(http.StatusOK, grants)
}

func (h *Handler) HasAccess(c echo.Context) error {
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	requester, err := principal.Parse(c.Param("requester"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid requester principal")
	}
	ok, err := h.svc.HasAccess(c.Request().Context(), patient, requester)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"has_access": ok})
}

func (h *Handler) ReadCases(c echo.Context) error {
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	requester := auth.CallerFromContext(c.Request().Context())
	cases, err := h.svc.ReadCases(c.Request().Context(), requester, patient)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	if cases == nil {
		cases = []*custody.Case{}
	}
	return c.JSON(http.StatusOK, cases)
}

func (h *Handler) ReadRecords(c echo.Context) error {
	caseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	requester := auth.CallerFromContext(c.Request().Context())
	records, err := h.svc.ReadRecords(c.Request().Context(), requester, caseID)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	if records == nil {
		records = []*custody.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) ReadReports(c echo.Context) error {
	caseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	requester := auth.CallerFromContext(c.Request().Context())
	reports, err := h.svc.ReadReports(c.Request().Context(), requester, caseID)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	if reports == nil {
		reports = []*custody.Report{}
	}
	return c.JSON(http.StatusOK, reports)
}

func (h *Handler) ReadProfileWithPasscode(c echo.Context) error {
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Passcode string `json:"passcode"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	requester := auth.CallerFromContext(c.Request().Context())
	account, err := h.svc.ReadProfileWithPasscode(c.Request().Context(), requester, patient, req.Passcode)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, account)
}

func patientParam(c echo.Context) (principal.Principal, error) {
	p, err := principal.Parse(c.Param("patient"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid patient principal")
	}
	return p, nil
}
