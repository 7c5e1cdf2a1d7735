package reservations

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resource is a bookable court. Rates are resolved once per read (see ResolveRates).
type Resource struct {
	ID    string
	Name  string
	Hours OperatingHours
	Rates RateTable
}

type Reservation struct {
	ID          string
	ResourceID  string
	RequesterID string
	StaffID     *string // set when staff booked on behalf of the requester
	Date        time.Time
	Start       TimeOfDay
	End         TimeOfDay
	Cost        decimal.Decimal
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Reservation) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}

// Occupies reports whether the reservation blocks its slot.
func (r Reservation) Occupies() bool {
	return r.Status.Occupies()
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentRejected  PaymentStatus = "rejected"
)

// Payment is owned by the payment subsystem; the core only reads whether a
// confirmed one exists and removes them together with a purged reservation.
type Payment struct {
	ID            string
	ReservationID string
	Amount        decimal.Decimal
	Method        string
	Status        PaymentStatus
	PaidAt        *time.Time
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor is the caller identity handed over by the authorization provider.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by background jobs such as the expiration sweep.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) Privileged() bool {
	switch a.Role {
	case RoleStaff, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

func (a Actor) canManage(r Reservation) bool {
	return a.Privileged() || (a.ID != "" && a.ID == r.RequesterID)
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
