// Package router wires the HTTP routes: public browsing, auth, the
// customer purchase flow and the admin overrides.
package router

import (
	"github.com/labstack/echo/v4"

	"ticketwave/internal/handler"
	"ticketwave/internal/middleware"
	"ticketwave/internal/model"
)

// Handlers groups everything the router registers.
type Handlers struct {
	Auth         *handler.AuthHandler
	Browse       *handler.BrowseHandler
	Queue        *handler.QueueHandler
	Seats        *handler.SeatHandler
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler
	Admin        *handler.AdminHandler
}

// Register registers all routes. rateLimit guards the public and queue
// endpoints where the on-sale stampede lands; jwtSecret protects the
// session routes.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated: account creation and catalog browsing.
	auth := e.Group("/v1/auth", rateLimit)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	pub := e.Group("/v1", rateLimit)
	pub.GET("/shows", h.Browse.ListShows)
	pub.GET("/shows/:id/schedules", h.Browse.ListSchedules)
	pub.GET("/schedules/:id/seats", h.Browse.SeatMap)

	// The payment provider calls back without a user session.
	pub.POST("/payments/callback", h.Payments.Callback)

	// Authenticated purchase flow.
	user := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	user.GET("/me", h.Auth.Me)

	user.POST("/schedules/:id/queue", h.Queue.Enter, rateLimit)
	user.GET("/queue/:token", h.Queue.Poll)
	user.DELETE("/queue/:token", h.Queue.Leave)

	user.POST("/schedules/:id/seats/lock", h.Seats.Lock)
	user.POST("/schedules/:id/seats/release", h.Seats.Release)
	user.POST("/schedules/:id/seats/extend", h.Seats.Extend)

	user.POST("/reservations", h.Reservations.Create)
	user.GET("/reservations", h.Reservations.List)
	user.GET("/reservations/:id", h.Reservations.Get)
	user.DELETE("/reservations/:id", h.Reservations.Cancel)
	user.GET("/reservations/:id/payments", h.Payments.History)
	user.POST("/payments", h.Payments.Initiate)

	// Admin overrides.
	admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/shows", h.Admin.CreateShow)
	admin.POST("/shows/:id/open", h.Admin.OpenShowSales)
	admin.PUT("/shows/:id/sale-status", h.Admin.SetSaleStatus)
	admin.POST("/shows/:id/schedules", h.Admin.AddSchedule)
	admin.POST("/schedules/:id/open", h.Admin.OpenSchedule)
	admin.DELETE("/schedules/:id", h.Admin.ForceCancelSchedule)
	admin.DELETE("/reservations/:id", h.Admin.ForceCancelReservation)
	admin.GET("/audit", h.Admin.AuditTrail)
}
