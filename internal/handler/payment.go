package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ticketwave/internal/engine"
	"ticketwave/internal/model"
)

// PaymentHandler serves payment initiation, the provider callback and the
// per-reservation payment history.
type PaymentHandler struct {
	Payments     *engine.Payments
	Reservations *engine.Reservations
}

func NewPaymentHandler(payments *engine.Payments, reservations *engine.Reservations) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Reservations: reservations}
}

type initiatePaymentReq struct {
	ReservationID uint64 `json:"reservation_id"`
	Method        string `json:"method"`
}

type paymentCallbackReq struct {
	OrderID    string `json:"order_id"`
	Approved   bool   `json:"approved"`
	PaymentKey string `json:"payment_key"`
	Reason     string `json:"reason"`
}

type paymentResp struct {
	OrderID       string     `json:"order_id"`
	ReservationID uint64     `json:"reservation_id"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	AmountCents   uint32     `json:"amount_cents"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
}

func toPaymentResp(p *model.Payment) paymentResp {
	resp := paymentResp{
		OrderID:       p.OrderID,
		ReservationID: p.ReservationID,
		Method:        string(p.Method),
		Status:        string(p.Status),
		AmountCents:   p.AmountCents,
		ApprovedAt:    p.ApprovedAt,
	}
	if p.FailureReason != nil {
		resp.FailureReason = *p.FailureReason
	}
	return resp
}

// Initiate opens a payment attempt for the caller's reservation.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req initiatePaymentReq
	if err := c.Bind(&req); err != nil || req.ReservationID == 0 || req.Method == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservation_id and method required")
	}
	ctx := c.Request().Context()
	res, err := h.Reservations.Get(ctx, req.ReservationID)
	if err != nil {
		return fail(c, err)
	}
	if res.UserID != uid {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	pay, err := h.Payments.Initiate(ctx, req.ReservationID, model.PaymentMethod(req.Method))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toPaymentResp(pay))
}

// Callback receives the provider's settlement verdict. The endpoint is
// idempotent; the provider may deliver the same verdict more than once.
func (h *PaymentHandler) Callback(c echo.Context) error {
	var req paymentCallbackReq
	if err := c.Bind(&req); err != nil || req.OrderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id required")
	}
	err := h.Payments.HandleCallback(c.Request().Context(), engine.CallbackResult{
		OrderID:    req.OrderID,
		Approved:   req.Approved,
		PaymentKey: req.PaymentKey,
		Reason:     req.Reason,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// History lists the payment attempts of the caller's reservation.
func (h *PaymentHandler) History(c echo.Context) error {
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
	items, err := h.Payments.History(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	out := make([]paymentResp, 0, len(items))
	for i := range items {
		out = append(out, toPaymentResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
