package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ticketwave/internal/model"
)

// Publisher emits reservation lifecycle events to RabbitMQ. It satisfies
// the engine's Notifier contract: publishing is best-effort, a broker
// outage is logged and the state transition that triggered the event stands.
// Each publish uses a short-lived connection so a flaky broker never pins a
// stale channel; messages are persistent.
type Publisher struct {
	url string
	now func() time.Time
}

// NewPublisher returns a publisher for the given broker URL.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, now: time.Now}
}

// ReservationConfirmed publishes a confirmation event.
func (p *Publisher) ReservationConfirmed(ctx context.Context, res *model.Reservation) {
	ev := ReservationConfirmedEvent{
		ReservationID: res.ID,
		Number:        res.Number,
		UserID:        res.UserID,
		ScheduleID:    res.ScheduleID,
		SeatID:        res.SeatID,
		AmountCents:   res.AmountCents,
		ConfirmedAt:   p.now().UTC().Format(time.RFC3339),
	}
	if err := p.publish(ctx, QueueConfirmed, ev); err != nil {
		slog.Warn("confirmation event not published",
			"reservation_id", res.ID, "error", err)
	}
}

// ReservationCancelled publishes a cancellation event.
func (p *Publisher) ReservationCancelled(ctx context.Context, res *model.Reservation, cause string) {
	cancelledAt := p.now().UTC()
	if res.CancelledAt != nil {
		cancelledAt = res.CancelledAt.UTC()
	}
	ev := ReservationCancelledEvent{
		ReservationID: res.ID,
		Number:        res.Number,
		UserID:        res.UserID,
		ScheduleID:    res.ScheduleID,
		SeatID:        res.SeatID,
		Cause:         cause,
		CancelledAt:   cancelledAt.Format(time.RFC3339),
	}
	if err := p.publish(ctx, QueueCancelled, ev); err != nil {
		slog.Warn("cancellation event not published",
			"reservation_id", res.ID, "error", err)
	}
}

func (p *Publisher) publish(ctx context.Context, queue string, payload any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable declare is idempotent; messages must survive broker restarts.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"", queue, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now().UTC(),
			Body:         body,
		})
}
