package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ticketwave/internal/engine"
)

// SeatHandler serves the seat-hold endpoints. Every call requires a READY
// queue ticket; the ticket token doubles as the lock holder identity.
type SeatHandler struct {
	Gate      *engine.Gate
	Admission *engine.Admission
	Locks     *engine.LockManager
}

func NewSeatHandler(gate *engine.Gate, admission *engine.Admission, locks *engine.LockManager) *SeatHandler {
	return &SeatHandler{Gate: gate, Admission: admission, Locks: locks}
}

type seatHoldReq struct {
	SeatID uint64 `json:"seat_id"`
	Token  string `json:"token"`
}

type seatHoldResp struct {
	SeatID    uint64     `json:"seat_id"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// bindHold validates the request body and the caller's queue ticket.
func (h *SeatHandler) bindHold(c echo.Context, scheduleID uint64) (*seatHoldReq, error) {
	var req seatHoldReq
	if err := c.Bind(&req); err != nil || req.SeatID == 0 || req.Token == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "seat_id and token required")
	}
	uid, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	t, err := h.Admission.RequireReady(c.Request().Context(), req.Token)
	if err != nil {
		return nil, err
	}
	if t.ScheduleID != scheduleID || t.UserID != uid {
		return nil, engine.ErrTicketNotFound
	}
	return &req, nil
}

// Lock places a TTL hold on a seat. Exactly one concurrent caller wins. The
// sale gate is re-evaluated per acquire: admission earned while the sale was
// open does not let a buyer keep locking seats after a suspension.
func (h *SeatHandler) Lock(c echo.Context) error {
	scheduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, _, err := h.Gate.CheckAdmissible(c.Request().Context(), scheduleID); err != nil {
		return fail(c, err)
	}
	req, err := h.bindHold(c, scheduleID)
	if err != nil {
		return fail(c, err)
	}
	seat, err := h.Locks.Acquire(c.Request().Context(), scheduleID, req.SeatID, req.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, seatHoldResp{
		SeatID:    seat.ID,
		Status:    string(seat.Status),
		ExpiresAt: seat.LockExpiresAt,
	})
}

// Release gives a held seat back before a reservation was made.
func (h *SeatHandler) Release(c echo.Context) error {
	scheduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req, err := h.bindHold(c, scheduleID)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Locks.Release(c.Request().Context(), scheduleID, req.SeatID, req.Token); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Extend refreshes the hold's deadline while the buyer is still choosing.
func (h *SeatHandler) Extend(c echo.Context) error {
	scheduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	req, err := h.bindHold(c, scheduleID)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Locks.Extend(c.Request().Context(), scheduleID, req.SeatID, req.Token, 0); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
