package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ticketwave/internal/engine"
	"ticketwave/internal/model"
)

// QueueHandler serves queue entry and polling.
type QueueHandler struct {
	Gate      *engine.Gate
	Admission *engine.Admission
}

func NewQueueHandler(gate *engine.Gate, admission *engine.Admission) *QueueHandler {
	return &QueueHandler{Gate: gate, Admission: admission}
}

type ticketResp struct {
	Token     string     `json:"token"`
	Status    string     `json:"status"`
	Position  *int64     `json:"position,omitempty"`
	ReadyAt   *time.Time `json:"ready_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func toTicketResp(t *model.QueueTicket, position int64) ticketResp {
	r := ticketResp{
		Token:     t.Token,
		Status:    string(t.Status),
		ReadyAt:   t.ReadyAt,
		ExpiresAt: t.ExpiresAt,
	}
	if t.Status == model.TicketWaiting && position >= 0 {
		r.Position = &position
	}
	return r
}

// Enter joins the queue for a schedule. The sale gate is checked first so a
// suspended or sold-out schedule rejects entrants before they queue.
func (h *QueueHandler) Enter(c echo.Context) error {
	scheduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, _, err := h.Gate.CheckAdmissible(ctx, scheduleID); err != nil {
		return fail(c, err)
	}
	t, err := h.Admission.Enqueue(ctx, scheduleID, uid)
	if err != nil {
		return fail(c, err)
	}
	position := int64(-1)
	if _, pos, err := h.Admission.Poll(ctx, t.Token); err == nil {
		position = pos
	}
	return c.JSON(http.StatusCreated, toTicketResp(t, position))
}

// Leave abandons the caller's queue ticket, giving its place or slot back.
func (h *QueueHandler) Leave(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid token")
	}
	if err := h.Admission.Abandon(c.Request().Context(), token); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Poll reports the ticket's current status and queue position.
func (h *QueueHandler) Poll(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid token")
	}
	t, position, err := h.Admission.Poll(c.Request().Context(), token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toTicketResp(t, position))
}
