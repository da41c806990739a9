// Package model defines the domain entities and their status enumerations.
// Every mutable entity carries a typed status; all transitions are performed
// by the engine package so that invalid states never reach the database.
package model

// ShowStatus is the lifecycle state of a show.
type ShowStatus string

const (
	ShowWaiting   ShowStatus = "WAITING"
	ShowOnSale    ShowStatus = "ON_SALE"
	ShowSoldOut   ShowStatus = "SOLD_OUT"
	ShowEnded     ShowStatus = "ENDED"
	ShowSuspended ShowStatus = "SUSPENDED"
)

// SaleStatus is the admin-controlled sale switch on a show. It is separate
// from ShowStatus so an admin can pause sales without ending the show.
type SaleStatus string

const (
	SaleAllowed   SaleStatus = "ALLOWED"
	SaleSuspended SaleStatus = "SUSPENDED"
)

// ScheduleStatus is the state of a single sale session of a show.
type ScheduleStatus string

const (
	ScheduleBeforeOpen ScheduleStatus = "BEFORE_OPEN"
	ScheduleOpen       ScheduleStatus = "OPEN"
	ScheduleSoldOut    ScheduleStatus = "SOLD_OUT"
	ScheduleCancelled  ScheduleStatus = "CANCELLED"
)

// SeatStatus is the state of a sellable seat within a schedule.
//
// The complete seat state machine is
// AVAILABLE -> LOCKED -> { RESERVED -> SOLD | AVAILABLE }.
// RESERVED is reachable only through a successful reservation creation and
// SOLD only through a confirmed payment.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatLocked    SeatStatus = "LOCKED"
	SeatReserved  SeatStatus = "RESERVED"
	SeatSold      SeatStatus = "SOLD"
)

// QueueTicketStatus is the state of a virtual-queue ticket.
type QueueTicketStatus string

const (
	TicketWaiting   QueueTicketStatus = "WAITING"
	TicketReady     QueueTicketStatus = "READY"
	TicketExpired   QueueTicketStatus = "EXPIRED"
	TicketCompleted QueueTicketStatus = "COMPLETED"
)

// ReservationStatus is the state of a reservation. PENDING is the initial
// state; CONFIRMED and CANCELLED are terminal.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// PaymentStatus is the state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// PaymentMethod identifies how a buyer pays.
type PaymentMethod string

const (
	MethodCard           PaymentMethod = "CARD"
	MethodVirtualAccount PaymentMethod = "VIRTUAL_ACCOUNT"
	MethodEasyPay        PaymentMethod = "EASY_PAY"
	MethodTransfer       PaymentMethod = "TRANSFER"
	MethodToss           PaymentMethod = "TOSS"
)

// ValidPaymentMethod reports whether m is one of the supported methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCard, MethodVirtualAccount, MethodEasyPay, MethodTransfer, MethodToss:
		return true
	}
	return false
}

// AdminActionType identifies a privileged override recorded in the audit log.
type AdminActionType string

const (
	ActionCreate          AdminActionType = "CREATE"
	ActionUpdate          AdminActionType = "UPDATE"
	ActionDelete          AdminActionType = "DELETE"
	ActionForceCancel     AdminActionType = "FORCE_CANCEL"
	ActionForceWithdrawal AdminActionType = "FORCE_WITHDRAWAL"
)
