// Package gateway is the outbound client for the external payment
// provider. With a provider URL configured it submits charges over HTTP;
// without one it runs in sandbox mode, approving every charge through the
// regular callback path so the full settlement flow is exercised locally.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ticketwave/internal/engine"
	"ticketwave/internal/model"
)

// Client implements engine.Gateway.
type Client struct {
	baseURL string
	http    *http.Client
	settle  func(ctx context.Context, cb engine.CallbackResult) error
}

// New returns a gateway client. With an empty baseURL the client runs in
// sandbox mode.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// OnSettle registers the callback sink used in sandbox mode. The payment
// coordinator is built after the gateway, so this is wired separately.
func (c *Client) OnSettle(settle func(ctx context.Context, cb engine.CallbackResult) error) {
	c.settle = settle
}

type chargeReq struct {
	OrderID     string `json:"order_id"`
	AmountCents uint32 `json:"amount_cents"`
	Method      string `json:"method"`
}

// Request submits a charge. In provider mode a non-2xx response is an
// error; settlement arrives later on the callback endpoint. In sandbox mode
// the charge is approved asynchronously through the same callback path.
func (c *Client) Request(ctx context.Context, orderID string, amountCents uint32, method model.PaymentMethod) error {
	if c.baseURL == "" {
		go c.sandboxSettle(orderID)
		return nil
	}

	body, err := json.Marshal(chargeReq{OrderID: orderID, AmountCents: amountCents, Method: string(method)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

func (c *Client) sandboxSettle(orderID string) {
	if c.settle == nil {
		return
	}
	// A short delay keeps the asynchronous shape of real settlement.
	time.Sleep(200 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.settle(ctx, engine.CallbackResult{
		OrderID:    orderID,
		Approved:   true,
		PaymentKey: "sandbox-" + uuid.New().String(),
	})
	if err != nil {
		slog.Warn("sandbox settlement failed", "order_id", orderID, "error", err)
	}
}
