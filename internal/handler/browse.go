package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ticketwave/internal/model"
	"ticketwave/internal/repository"
)

// BrowseHandler serves the unauthenticated catalog: shows, schedules and
// seat maps. Responses carry only public fields.
type BrowseHandler struct {
	Shows     *repository.ShowRepo
	Schedules *repository.ScheduleRepo
	Seats     *repository.SeatRepo
}

func NewBrowseHandler(shows *repository.ShowRepo, schedules *repository.ScheduleRepo, seats *repository.SeatRepo) *BrowseHandler {
	return &BrowseHandler{Shows: shows, Schedules: schedules, Seats: seats}
}

type publicShow struct {
	ID         uint64 `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	SaleStatus string `json:"sale_status"`
}

type publicSchedule struct {
	ID             uint64    `json:"id"`
	ShowID         uint64    `json:"show_id"`
	StartsAt       time.Time `json:"starts_at"`
	Status         string    `json:"status"`
	Capacity       uint32    `json:"capacity"`
	AvailableSeats int64     `json:"available_seats"`
}

type publicSeat struct {
	ID         uint64 `json:"id"`
	RowLabel   string `json:"row"`
	SeatNumber uint32 `json:"number"`
	PriceCents uint32 `json:"price_cents"`
	Status     string `json:"status"`
}

// ListShows returns the catalog of shows.
func (h *BrowseHandler) ListShows(c echo.Context) error {
	shows, err := h.Shows.List(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	out := make([]publicShow, 0, len(shows))
	for _, s := range shows {
		out = append(out, publicShow{
			ID:         s.ID,
			Title:      s.Title,
			Status:     string(s.Status),
			SaleStatus: string(s.SaleStatus),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ListSchedules returns a show's schedules.
func (h *BrowseHandler) ListSchedules(c echo.Context) error {
	showID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.Shows.GetByID(ctx, showID); err != nil {
		return fail(c, err)
	}
	schedules, err := h.Schedules.ListByShow(ctx, showID)
	if err != nil {
		return fail(c, err)
	}
	out := make([]publicSchedule, 0, len(schedules))
	for _, s := range schedules {
		available, err := h.Seats.CountAvailable(ctx, s.ID)
		if err != nil {
			return fail(c, err)
		}
		out = append(out, publicSchedule{
			ID:             s.ID,
			ShowID:         s.ShowID,
			StartsAt:       s.StartsAt,
			Status:         string(s.Status),
			Capacity:       s.Capacity,
			AvailableSeats: available,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// SeatMap returns the live seat map of a schedule. Held seats show as
// LOCKED without exposing who holds them.
func (h *BrowseHandler) SeatMap(c echo.Context) error {
	scheduleID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	schedule, err := h.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return fail(c, err)
	}
	seats, err := h.Seats.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return fail(c, err)
	}
	out := make([]publicSeat, 0, len(seats))
	for _, s := range seats {
		status := s.Status
		// A lock whose deadline passed reads as AVAILABLE even before the
		// sweep reconciles the row.
		if status == model.SeatLocked && s.LockExpiresAt != nil && s.LockExpiresAt.Before(time.Now()) {
			status = model.SeatAvailable
		}
		out = append(out, publicSeat{
			ID:         s.ID,
			RowLabel:   s.RowLabel,
			SeatNumber: s.SeatNumber,
			PriceCents: s.PriceCents,
			Status:     string(status),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"schedule": publicSchedule{
			ID:       schedule.ID,
			ShowID:   schedule.ShowID,
			StartsAt: schedule.StartsAt,
			Status:   string(schedule.Status),
		},
		"seats": out,
	})
}
