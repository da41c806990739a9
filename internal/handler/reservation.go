package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ticketwave/internal/engine"
	"ticketwave/internal/model"
)

// ReservationHandler serves the customer reservation endpoints.
type ReservationHandler struct {
	Reservations *engine.Reservations
}

func NewReservationHandler(reservations *engine.Reservations) *ReservationHandler {
	return &ReservationHandler{Reservations: reservations}
}

type createReservationReq struct {
	ScheduleID uint64 `json:"schedule_id"`
	SeatID     uint64 `json:"seat_id"`
	Token      string `json:"token"`
}

type reservationResp struct {
	ID          uint64     `json:"id"`
	Number      string     `json:"number"`
	ScheduleID  uint64     `json:"schedule_id"`
	SeatID      uint64     `json:"seat_id"`
	Status      string     `json:"status"`
	AmountCents uint32     `json:"amount_cents"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func toReservationResp(r *model.Reservation) reservationResp {
	return reservationResp{
		ID:          r.ID,
		Number:      r.Number,
		ScheduleID:  r.ScheduleID,
		SeatID:      r.SeatID,
		Status:      string(r.Status),
		AmountCents: r.AmountCents,
		ExpiresAt:   r.ExpiresAt,
		CancelledAt: r.CancelledAt,
	}
}

// Create turns a held seat into a PENDING reservation with a payment
// deadline.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil || req.ScheduleID == 0 || req.SeatID == 0 || req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "schedule_id, seat_id and token required")
	}
	res, err := h.Reservations.Create(c.Request().Context(), uid, req.ScheduleID, req.SeatID, req.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationResp(res))
}

// Get returns one of the caller's reservations.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.Reservations.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	if res.UserID != uid {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// List returns the caller's reservations, newest first.
func (h *ReservationHandler) List(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.Reservations.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	out := make([]reservationResp, 0, len(items))
	for i := range items {
		out = append(out, toReservationResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Cancel withdraws the caller's PENDING reservation.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.Reservations.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if res.UserID != uid {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	out, err := h.Reservations.Cancel(ctx, id, "cancelled by customer")
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(out))
}
