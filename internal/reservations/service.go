package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/clock"
)

var tracer = otel.Tracer("github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations")

// Repository is the relational store behind the booking core. Methods named
// Lock* take row-level exclusive locks and are only meaningful inside WithTx.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetResource(ctx context.Context, id string) (Resource, error)
	LockResource(ctx context.Context, id string) (Resource, error)

	// LockConflicting returns, locked, the occupying reservations of
	// (resourceID, date) that overlap slot, skipping excludeID.
	LockConflicting(ctx context.Context, resourceID string, date time.Time, slot Interval, excludeID string) ([]Reservation, error)
	ListOccupying(ctx context.Context, resourceID string, date time.Time) ([]Reservation, error)
	ListByResourceDate(ctx context.Context, resourceID string, date time.Time) ([]Reservation, error)

	GetReservation(ctx context.Context, id string) (Reservation, error)
	LockReservation(ctx context.Context, id string) (Reservation, error)
	InsertReservation(ctx context.Context, r Reservation) error
	UpdateReservation(ctx context.Context, r Reservation) error
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
	// DeleteReservation removes the reservation and its payments.
	DeleteReservation(ctx context.Context, id string) error

	HasConfirmedPayment(ctx context.Context, reservationID string) (bool, error)
	// ListExpirable returns ids of pending reservations created before cutoff
	// that have no confirmed payment.
	ListExpirable(ctx context.Context, createdBefore time.Time) ([]string, error)
}

type Service struct {
	repo  Repository
	pub   EventPublisher
	clock clock.Clock
	log   *slog.Logger
	newID func() string
}

type Option func(*Service)

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.pub = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIDGenerator overrides uuid generation (tests).
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

func NewService(repo Repository, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		pub:   nopPublisher{},
		clock: clk,
		log:   slog.Default(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BookRequest struct {
	ResourceID string
	// RequesterID books on behalf of someone else; privileged callers only.
	RequesterID  string
	Date         time.Time
	Start        TimeOfDay
	End          TimeOfDay
	Notes        string
	CostOverride *decimal.Decimal
}

// EditRequest lists the fields an edit may change. Nil means unchanged.
type EditRequest struct {
	Date         *time.Time
	Start        *TimeOfDay
	End          *TimeOfDay
	Notes        *string
	CostOverride *decimal.Decimal
}

func (r EditRequest) reschedules() bool {
	return r.Date != nil || r.Start != nil || r.End != nil
}

// Book creates a pending reservation. Locks are taken resource row first,
// then overlapping reservation rows, so concurrent bookers cannot deadlock
// and at most one of two overlapping requests commits.
func (s *Service) Book(ctx context.Context, actor Actor, req BookRequest) (Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.Book", trace.WithAttributes(
		attribute.String("resource_id", req.ResourceID),
	))
	defer span.End()

	slot := Interval{Start: req.Start, End: req.End}
	if slot.End <= slot.Start {
		return Reservation{}, ErrInvalidInterval
	}
	if req.CostOverride != nil {
		if !actor.Privileged() {
			return Reservation{}, ErrForbidden
		}
		if err := ValidateCost(*req.CostOverride); err != nil {
			return Reservation{}, err
		}
	}

	requester := actor.ID
	var staffID *string
	if req.RequesterID != "" && req.RequesterID != actor.ID {
		if !actor.Privileged() {
			return Reservation{}, ErrForbidden
		}
		requester = req.RequesterID
		staff := actor.ID
		staffID = &staff
	}
	if requester == "" {
		return Reservation{}, ErrForbidden
	}

	date := DateOnly(req.Date)
	var created Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.LockResource(txCtx, req.ResourceID)
		if err != nil {
			return err
		}
		if !res.Hours.Contains(slot) {
			return &OutOfHoursError{Hours: res.Hours}
		}

		conflicts, err := s.repo.LockConflicting(txCtx, res.ID, date, slot, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return ErrSlotConflict
		}

		// Rates come from the row locked above, so a concurrent rate change
		// cannot interleave with this booking.
		cost, err := Price(res.Rates, res.Hours, slot, req.CostOverride)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		r := Reservation{
			ID:          s.newID(),
			ResourceID:  res.ID,
			RequesterID: requester,
			StaffID:     staffID,
			Date:        date,
			Start:       slot.Start,
			End:         slot.End,
			Cost:        cost,
			Status:      StatusPending,
			Notes:       req.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.InsertReservation(txCtx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		s.fail(span, "book", err, "resource_id", req.ResourceID, "date", date.Format(DateLayout), "slot", slot.String())
		return Reservation{}, err
	}

	s.log.Info("reservation created",
		"id", created.ID,
		"resource_id", created.ResourceID,
		"date", created.Date.Format(DateLayout),
		"slot", created.Interval().String(),
		"cost", created.Cost.String(),
	)
	s.emit(ctx, created)
	return created, nil
}

// Edit re-runs the booking protocol for an existing reservation, excluding
// the reservation itself from the conflict set.
func (s *Service) Edit(ctx context.Context, actor Actor, id string, req EditRequest) (Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.Edit", trace.WithAttributes(
		attribute.String("reservation_id", id),
	))
	defer span.End()

	if req.CostOverride != nil {
		if !actor.Privileged() {
			return Reservation{}, ErrForbidden
		}
		if err := ValidateCost(*req.CostOverride); err != nil {
			return Reservation{}, err
		}
	}

	// Unlocked read only to learn the resource, keeping resource-first lock order.
	current, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		s.fail(span, "edit", err, "reservation_id", id)
		return Reservation{}, err
	}

	var updated Reservation
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.LockResource(txCtx, current.ResourceID)
		if err != nil {
			return err
		}
		locked, err := s.repo.LockReservation(txCtx, id)
		if err != nil {
			return err
		}
		if !actor.canManage(locked) {
			return ErrForbidden
		}
		if !locked.Status.Editable() {
			return &TransitionError{Op: "edit", From: locked.Status}
		}

		next := locked
		if req.Date != nil {
			next.Date = DateOnly(*req.Date)
		}
		if req.Start != nil {
			next.Start = *req.Start
		}
		if req.End != nil {
			next.End = *req.End
		}
		if req.Notes != nil {
			next.Notes = *req.Notes
		}

		slot := next.Interval()
		if slot.End <= slot.Start {
			return ErrInvalidInterval
		}
		if !res.Hours.Contains(slot) {
			return &OutOfHoursError{Hours: res.Hours}
		}

		conflicts, err := s.repo.LockConflicting(txCtx, res.ID, next.Date, slot, locked.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return ErrSlotConflict
		}

		switch {
		case req.CostOverride != nil:
			next.Cost, err = Price(res.Rates, res.Hours, slot, req.CostOverride)
		case req.reschedules():
			next.Cost, err = Price(res.Rates, res.Hours, slot, nil)
		}
		if err != nil {
			return err
		}

		next.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateReservation(txCtx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		s.fail(span, "edit", err, "reservation_id", id, "resource_id", current.ResourceID)
		return Reservation{}, err
	}

	s.log.Info("reservation updated",
		"id", updated.ID,
		"date", updated.Date.Format(DateLayout),
		"slot", updated.Interval().String(),
		"cost", updated.Cost.String(),
	)
	return updated, nil
}

// Cancel is idempotent: cancelling a cancelled reservation succeeds without
// emitting an event.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.Cancel", trace.WithAttributes(
		attribute.String("reservation_id", id),
	))
	defer span.End()

	r, _, err := s.transition(ctx, id, "cancel", StatusCancelled, func(_ context.Context, r Reservation) error {
		if !actor.canManage(r) {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		s.fail(span, "cancel", err, "reservation_id", id)
		return Reservation{}, err
	}
	return r, nil
}

// SetStatus is the privileged direct status change.
func (s *Service) SetStatus(ctx context.Context, actor Actor, id string, to Status) (Reservation, error) {
	if !actor.Privileged() {
		return Reservation{}, ErrForbidden
	}
	if _, ok := ParseStatus(string(to)); !ok {
		return Reservation{}, &TransitionError{Op: "set status", To: to}
	}
	r, _, err := s.transition(ctx, id, "set status", to, nil)
	if err != nil {
		s.fail(trace.SpanFromContext(ctx), "set_status", err, "reservation_id", id, "to", string(to))
		return Reservation{}, err
	}
	return r, nil
}

// MarkCompleted is called by the payment subsystem after it confirmed a
// payment. Completing a completed reservation is a no-op.
func (s *Service) MarkCompleted(ctx context.Context, id string) (Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.MarkCompleted", trace.WithAttributes(
		attribute.String("reservation_id", id),
	))
	defer span.End()

	r, _, err := s.transition(ctx, id, "complete", StatusCompleted, nil)
	if err != nil {
		s.fail(span, "complete", err, "reservation_id", id)
		return Reservation{}, err
	}
	return r, nil
}

// Delete purges a cancelled reservation together with its payments.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.Privileged() {
		return ErrForbidden
	}
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.LockReservation(txCtx, id)
		if err != nil {
			return err
		}
		if !r.Status.Deletable() {
			return &TransitionError{Op: "delete", From: r.Status}
		}
		return s.repo.DeleteReservation(txCtx, id)
	})
	if err != nil {
		s.fail(trace.SpanFromContext(ctx), "delete", err, "reservation_id", id)
		return err
	}
	s.log.Info("reservation deleted", "id", id, "actor", actor.ID)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *Service) ListForDay(ctx context.Context, resourceID string, date time.Time) ([]Reservation, error) {
	if _, err := s.repo.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return s.repo.ListByResourceDate(ctx, resourceID, DateOnly(date))
}

// CheckAvailability runs the conflict check without locks. The answer is
// advisory: only Book and Edit guarantee it under lock.
func (s *Service) CheckAvailability(ctx context.Context, resourceID string, date time.Time, slot Interval) ([]Reservation, error) {
	if slot.End <= slot.Start {
		return nil, ErrInvalidInterval
	}
	res, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !res.Hours.Contains(slot) {
		return nil, &OutOfHoursError{Hours: res.Hours}
	}
	existing, err := s.repo.ListOccupying(ctx, resourceID, DateOnly(date))
	if err != nil {
		return nil, err
	}
	return FindConflicts(existing, slot, ""), nil
}

// DayAvailability is the read-only view of one resource on one date.
type DayAvailability struct {
	ResourceID string
	Date       time.Time
	Hours      OperatingHours
	Busy       []Interval
}

func (s *Service) Availability(ctx context.Context, resourceID string, date time.Time) (DayAvailability, error) {
	res, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		return DayAvailability{}, err
	}
	day := DateOnly(date)
	existing, err := s.repo.ListOccupying(ctx, resourceID, day)
	if err != nil {
		return DayAvailability{}, err
	}
	busy := make([]Interval, 0, len(existing))
	for _, r := range existing {
		busy = append(busy, r.Interval())
	}
	return DayAvailability{ResourceID: res.ID, Date: day, Hours: res.Hours, Busy: busy}, nil
}

var errNotExpirable = errors.New("reservation not expirable")

// expire cancels a reservation through the regular cancel transition, after
// re-checking under lock that it is still pending, old enough and unpaid.
func (s *Service) expire(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	_, changed, err := s.transition(ctx, id, "cancel", StatusCancelled, func(txCtx context.Context, r Reservation) error {
		if r.Status != StatusPending || !r.CreatedAt.Before(cutoff) {
			return errNotExpirable
		}
		paid, err := s.repo.HasConfirmedPayment(txCtx, r.ID)
		if err != nil {
			return err
		}
		if paid {
			return errNotExpirable
		}
		return nil
	})
	if errors.Is(err, errNotExpirable) {
		return false, nil
	}
	return changed, err
}

// transition is the single place where an existing reservation's status
// changes, and therefore the single emitter of lifecycle events.
func (s *Service) transition(ctx context.Context, id, op string, to Status, check func(ctx context.Context, r Reservation) error) (Reservation, bool, error) {
	var (
		out     Reservation
		changed bool
		from    Status
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.LockReservation(txCtx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(txCtx, r); err != nil {
				return err
			}
		}

		switch decide(r.Status, to) {
		case decisionNoop:
			out = r
			return nil
		case decisionReject:
			return &TransitionError{Op: op, From: r.Status, To: to}
		}

		now := s.clock.Now()
		if err := s.repo.UpdateStatus(txCtx, id, to, now); err != nil {
			return err
		}
		from = r.Status
		r.Status = to
		r.UpdatedAt = now
		out = r
		changed = true
		return nil
	})
	if err != nil {
		return Reservation{}, false, err
	}
	if changed {
		s.log.Info("reservation status changed", "id", id, "op", op, "from", string(from), "to", string(to))
		s.emit(ctx, out)
	}
	return out, changed, nil
}

// emit publishes after commit. Publishing failures never affect the booking.
func (s *Service) emit(ctx context.Context, r Reservation) {
	ev := newLifecycleEvent(r, s.clock.Now())
	if err := s.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("publish lifecycle event failed",
			"reservation_id", r.ID,
			"status", string(r.Status),
			"error", err,
		)
	}
}

func (s *Service) fail(span trace.Span, op string, err error, attrs ...any) {
	if IsDomainError(err) {
		s.log.Debug("reservation operation rejected", append([]any{"op", op, "reason", err.Error()}, attrs...)...)
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	s.log.Error("reservation operation failed", append([]any{"op", op, "error", err}, attrs...)...)
}

// IsDomainError reports whether err is a caller-facing domain error rather
// than an infrastructure failure.
func IsDomainError(err error) bool {
	var ooh *OutOfHoursError
	var te *TransitionError
	switch {
	case errors.As(err, &ooh), errors.As(err, &te):
		return true
	case errors.Is(err, ErrSlotConflict),
		errors.Is(err, ErrInvalidCost),
		errors.Is(err, ErrInvalidInterval),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrLockTimeout),
		IsNotFound(err):
		return true
	}
	return false
}

func (r Reservation) String() string {
	return fmt.Sprintf("%s %s %s %s", r.ID, r.Date.Format(DateLayout), r.Interval(), r.Status)
}
