// README: Booking aggregate, status definitions, and the lifecycle transition table.
package booking

import (
	"strings"
	"time"

	"drivebook/internal/modules/pricing"
	"drivebook/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var ErrInvalidStatus = types.NewValidationError("status", "must be one of pending, accepted, started, completed, cancelled")

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case StatusPending, StatusAccepted, StatusStarted, StatusCompleted, StatusCancelled:
		return s, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var ErrInvalidPaymentStatus = types.NewValidationError("payment_status", "must be one of pending, paid, failed, refunded")

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return s, nil
	}
	return "", ErrInvalidPaymentStatus
}

// PaymentMethod is a label only; no gateway processes it.
type PaymentMethod string

const (
	MethodMomoPay     PaymentMethod = "momo_pay"
	MethodMTNMoney    PaymentMethod = "mtn_money"
	MethodAirtelMoney PaymentMethod = "airtel_money"
	MethodCard        PaymentMethod = "card"
	MethodPayPal      PaymentMethod = "paypal"
	MethodCash        PaymentMethod = "cash"
)

var ErrInvalidPaymentMethod = types.NewValidationError("payment_method", "must be one of momo_pay, mtn_money, airtel_money, card, paypal, cash")

func ParsePaymentMethod(v string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(v)))
	switch m {
	case MethodMomoPay, MethodMTNMoney, MethodAirtelMoney, MethodCard, MethodPayPal, MethodCash:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

type Kind string

const (
	KindOneTime Kind = "one_time"
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

var ErrInvalidKind = types.NewValidationError("booking_kind", "must be one of one_time, daily, weekly, monthly")

func ParseKind(v string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "one_time", "once", "hourly":
		return KindOneTime, nil
	case "daily":
		return KindDaily, nil
	case "weekly":
		return KindWeekly, nil
	case "monthly":
		return KindMonthly, nil
	}
	return "", ErrInvalidKind
}

type Rating struct {
	CustomerScore   *int       `json:"customer_score,omitempty"`
	CustomerText    string     `json:"customer_text,omitempty"`
	CustomerRatedAt *time.Time `json:"customer_rated_at,omitempty"`
	DriverScore     *int       `json:"driver_score,omitempty"`
	DriverText      string     `json:"driver_text,omitempty"`
	DriverRatedAt   *time.Time `json:"driver_rated_at,omitempty"`
}

type TimelineEntry struct {
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
	Note    string    `json:"note,omitempty"`
	ActorID types.ID  `json:"actor_id,omitempty"`
}

type Booking struct {
	ID             types.ID        `json:"id"`
	CustomerID     types.ID        `json:"customer_id"`
	DriverID       types.ID        `json:"driver_id"`
	Pickup         types.Place     `json:"pickup"`
	Dropoff        *types.Place    `json:"dropoff,omitempty"`
	Kind           Kind            `json:"booking_kind"`
	Duration       types.Duration  `json:"duration"`
	ScheduledStart time.Time       `json:"scheduled_start"`
	ScheduledEnd   time.Time       `json:"scheduled_end"`
	DistanceKm     *float64        `json:"distance_km,omitempty"`
	Status         Status          `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Pricing        pricing.Quote   `json:"pricing"`
	Rating         Rating          `json:"rating"`
	Timeline       []TimelineEntry `json:"timeline"`
	ActualStart    *time.Time      `json:"actual_start,omitempty"`
	ActualEnd      *time.Time      `json:"actual_end,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (b *Booking) Clone() *Booking {
	c := *b
	c.Timeline = append([]TimelineEntry(nil), b.Timeline...)
	return &c
}

func (b *Booking) record(status Status, at time.Time, note string, actor types.ID) {
	b.Timeline = append(b.Timeline, TimelineEntry{Status: status, At: at, Note: note, ActorID: actor})
}

// Actor is the part a caller plays on one booking.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorDriver   Actor = "driver"
)

// actorFor reports how p relates to b. Admins and strangers are not actors.
func actorFor(b *Booking, p types.Principal) (Actor, bool) {
	switch {
	case p.Role == types.RoleDriver && p.ID == b.DriverID:
		return ActorDriver, true
	case p.Role == types.RoleCustomer && p.ID == b.CustomerID:
		return ActorCustomer, true
	}
	return "", false
}

type Transition struct {
	From   Status
	To     Status
	Actors []Actor
}

func (t Transition) Allows(a Actor) bool {
	for _, x := range t.Actors {
		if x == a {
			return true
		}
	}
	return false
}

// Transitions is the booking state flow as code. Completed and Cancelled have no exits.
var Transitions = []Transition{
	{From: StatusPending, To: StatusAccepted, Actors: []Actor{ActorDriver}},
	{From: StatusPending, To: StatusCancelled, Actors: []Actor{ActorCustomer, ActorDriver}},
	{From: StatusAccepted, To: StatusStarted, Actors: []Actor{ActorDriver}},
	{From: StatusAccepted, To: StatusCancelled, Actors: []Actor{ActorDriver}},
	{From: StatusStarted, To: StatusCompleted, Actors: []Actor{ActorDriver}},
}

func lookupTransition(from, to Status) (Transition, bool) {
	for _, t := range Transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

func CanTransition(from, to Status) bool {
	_, ok := lookupTransition(from, to)
	return ok
}
