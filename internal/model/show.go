package model

import "time"

// Show identifies a sellable event. Status moves through the show lifecycle
// (WAITING, ON_SALE, SOLD_OUT, ENDED, SUSPENDED) while SaleStatus is the
// independent admin switch that can suspend sales at any point.
//
// Fields:
//  ID         – primary key identifier.
//  Title      – public name of the show.
//  Status     – lifecycle state of the show.
//  SaleStatus – ALLOWED or SUSPENDED.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Show struct {
	ID         uint64     // shows.id
	Title      string     // shows.title
	Status     ShowStatus // shows.status
	SaleStatus SaleStatus // shows.sale_status
	CreatedAt  time.Time  // shows.created_at
	UpdatedAt  time.Time  // shows.updated_at
}

// Schedule is one sale session of a show at a specific time. A schedule owns
// its seats; Capacity is derived from the seat count at setup and never
// changes over the schedule's life.
type Schedule struct {
	ID        uint64         // schedules.id
	ShowID    uint64         // schedules.show_id
	StartsAt  time.Time      // schedules.starts_at
	Status    ScheduleStatus // schedules.status
	Capacity  uint32         // schedules.capacity (seat count)
	CreatedAt time.Time      // schedules.created_at
	UpdatedAt time.Time      // schedules.updated_at
}
