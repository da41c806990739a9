// Package handler exposes the HTTP handlers: public browsing, queue entry,
// seat holds, reservations, payments and the admin overrides. Handlers stay
// thin; the engine services own the semantics and handlers translate their
// errors into HTTP statuses.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ticketwave/internal/engine"
	"ticketwave/internal/repository"
)

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// currentUser returns the authenticated user ID stored by the JWT middleware.
func currentUser(c echo.Context) (uint64, error) {
	uid, ok := c.Get("user_id").(uint64)
	if !ok || uid == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return uid, nil
}

// fail translates engine and repository errors into JSON error responses.
func fail(c echo.Context, err error) error {
	if blocked, ok := engine.AsBlocked(err); ok {
		return c.JSON(http.StatusConflict, echo.Map{"error": "sale not admissible", "reason": string(blocked.Reason)})
	}
	switch {
	case errors.Is(err, engine.ErrTicketNotFound),
		errors.Is(err, repository.ErrShowNotFound),
		errors.Is(err, repository.ErrScheduleNotFound),
		errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrReservationNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrTicketExpired),
		errors.Is(err, engine.ErrLockExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrTicketNotReady),
		errors.Is(err, engine.ErrNotLockOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrSeatConflict),
		errors.Is(err, engine.ErrReservationResolved),
		errors.Is(err, engine.ErrPaymentInFlight),
		errors.Is(err, repository.ErrStateChanged),
		errors.Is(err, repository.ErrEmailTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrPaymentFailed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}
	if httpErr, ok := err.(*echo.HTTPError); ok {
		return httpErr
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// Health is the liveness endpoint used by load balancers and monitoring.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
