package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"ticketwave/internal/engine"
	"ticketwave/internal/model"
)

// AdminHandler serves the privileged override endpoints. Routes are gated
// to the ADMIN role; every action lands in the audit log.
type AdminHandler struct {
	Admin *engine.Admin
}

func NewAdminHandler(admin *engine.Admin) *AdminHandler {
	return &AdminHandler{Admin: admin}
}

type createShowReq struct {
	Title string `json:"title"`
}

type addScheduleReq struct {
	StartsAt    time.Time `json:"starts_at"`
	Rows        uint32    `json:"rows"`
	SeatsPerRow uint32    `json:"seats_per_row"`
	PriceCents  uint32    `json:"price_cents"`
}

type saleStatusReq struct {
	SaleStatus string `json:"sale_status"`
}

type forceCancelReq struct {
	Reason string `json:"reason"`
}

// CreateShow registers a new show.
func (h *AdminHandler) CreateShow(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createShowReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	show, err := h.Admin.CreateShow(c.Request().Context(), uid, strings.TrimSpace(req.Title))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":     show.ID,
		"title":  show.Title,
		"status": string(show.Status),
	})
}

// OpenShowSales moves a show to ON_SALE.
func (h *AdminHandler) OpenShowSales(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	showID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Admin.OpenShowSales(c.Request().Context(), uid, showID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetSaleStatus suspends or resumes sales for a show.
func (h *AdminHandler) SetSaleStatus(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	showID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req saleStatusReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	status := model.SaleStatus(strings.ToUpper(strings.TrimSpace(req.SaleStatus)))
	if status != model.SaleAllowed && status != model.SaleSuspended {
		return echo.NewHTTPError(http.StatusBadRequest, "sale_status must be ALLOWED or SUSPENDED")
	}
	if err := h.Admin.SetShowSaleStatus(c.Request().Context(), uid, showID, status); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddSchedule creates a schedule with its seat grid.
func (h *AdminHandler) AddSchedule(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	showID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req addScheduleReq
	if err := c.Bind(&req); err != nil || req.StartsAt.IsZero() || req.Rows == 0 || req.SeatsPerRow == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "starts_at, rows and seats_per_row required")
	}
	schedule, err := h.Admin.AddSchedule(c.Request().Context(), uid, showID,
		req.StartsAt, req.Rows, req.SeatsPerRow, req.PriceCents)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        schedule.ID,
		"show_id":   schedule.ShowID,
		"starts_at": schedule.StartsAt,
		"status":    string(schedule.Status),
	})
}

// OpenSchedule moves a schedule to OPEN.
func (h *AdminHandler) OpenSchedule(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	scheduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Admin.OpenSchedule(c.Request().Context(), uid, scheduleID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ForceCancelReservation cancels any reservation, recording a forced
// withdrawal when the buyer had already paid.
func (h *AdminHandler) ForceCancelReservation(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req forceCancelReq
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by admin"
	}
	res, err := h.Admin.ForceCancelReservation(c.Request().Context(), uid, id, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// ForceCancelSchedule cancels a schedule and unwinds its queue, holds and
// PENDING reservations.
func (h *AdminHandler) ForceCancelSchedule(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req forceCancelReq
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "schedule cancelled by admin"
	}
	if err := h.Admin.ForceCancelSchedule(c.Request().Context(), uid, id, req.Reason); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type auditEntryResp struct {
	ID         uint64    `json:"id"`
	AdminID    uint64    `json:"admin_id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   uint64    `json:"target_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditTrail lists recent admin actions.
func (h *AdminHandler) AuditTrail(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	items, err := h.Admin.AuditTrail(c.Request().Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]auditEntryResp, 0, len(items))
	for _, l := range items {
		out = append(out, auditEntryResp{
			ID:         l.ID,
			AdminID:    l.AdminID,
			Action:     string(l.Action),
			TargetType: l.TargetType,
			TargetID:   l.TargetID,
			Detail:     l.Detail,
			CreatedAt:  l.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
