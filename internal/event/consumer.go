package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	qrcode "github.com/skip2/go-qrcode"
)

// StartConsumer connects to RabbitMQ and consumes both reservation queues.
// Confirmations are appended to logs/booking.log and rendered as an entry
// QR code under qrcodes/; cancellations go to the booking log only. The
// function runs a reconnect loop with exponential backoff and never
// returns; processing errors reject the offending message without requeue
// so a poison payload cannot wedge the consumer.
func StartConsumer(url string) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("event consumer dial failed", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			slog.Warn("event consumer loop ended, reconnecting", "error", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("event consumer qos not set", "error", err)
	}

	for _, q := range []string{QueueConfirmed, QueueCancelled} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
	}

	confirmed, err := ch.Consume(QueueConfirmed, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueConfirmed, err)
	}
	cancelled, err := ch.Consume(QueueCancelled, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueCancelled, err)
	}

	for {
		select {
		case d, ok := <-confirmed:
			if !ok {
				return errors.New("confirmed deliveries channel closed")
			}
			settle(d, handleConfirmed)
		case d, ok := <-cancelled:
			if !ok {
				return errors.New("cancelled deliveries channel closed")
			}
			settle(d, handleCancelled)
		}
	}
}

func settle(d amqp.Delivery, handle func([]byte) error) {
	if err := handle(d.Body); err != nil {
		slog.Warn("event not processed", "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func handleConfirmed(body []byte) error {
	var ev ReservationConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Reservation confirmed | number=%s | reservation_id=%d | user_id=%d | schedule_id=%d | seat_id=%d | amount=%d cents\n",
		ev.ConfirmedAt, ev.Number, ev.ReservationID, ev.UserID, ev.ScheduleID, ev.SeatID, ev.AmountCents)
	if err := appendBookingLog(line); err != nil {
		return err
	}
	return writeEntryQR(ev)
}

func handleCancelled(body []byte) error {
	var ev ReservationCancelledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Reservation cancelled | number=%s | reservation_id=%d | user_id=%d | schedule_id=%d | seat_id=%d | cause=%q\n",
		ev.CancelledAt, ev.Number, ev.ReservationID, ev.UserID, ev.ScheduleID, ev.SeatID, ev.Cause)
	return appendBookingLog(line)
}

func appendBookingLog(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open booking log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write booking log: %w", err)
	}
	return nil
}

// writeEntryQR renders the gate-entry QR code for a confirmed reservation.
// The code encodes the reservation number, which the venue scanner checks
// against the database.
func writeEntryQR(ev ReservationConfirmedEvent) error {
	if err := os.MkdirAll("qrcodes", 0o755); err != nil {
		return fmt.Errorf("mkdir qrcodes: %w", err)
	}
	path := filepath.Join("qrcodes", fmt.Sprintf("%s.png", ev.Number))
	if err := qrcode.WriteFile(ev.Number, qrcode.Medium, 256, path); err != nil {
		return fmt.Errorf("write qr: %w", err)
	}
	return nil
}
