package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
)

// ReservationRepo stores resources, reservations and the payment rows the
// booking core reads. Lock* methods use SELECT ... FOR UPDATE and must run
// inside WithTx.
type ReservationRepo struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

var _ reservations.Repository = (*ReservationRepo)(nil)

func (r *ReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.DB, r.LockTimeout, fn)
}

const resourceColumns = `id, name, open_time, close_time,
	day_rate_30, day_rate_60, night_rate_30, night_rate_60,
	rate_30, rate_60, night_cutoff`

func (r *ReservationRepo) GetResource(ctx context.Context, id string) (reservations.Resource, error) {
	row := conn(ctx, r.DB).QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	res, err := scanResource(row)
	return res, translate(err, reservations.ErrResourceNotFound)
}

// LockResource serializes every booking on the resource for the rest of the
// transaction. It is always the first lock taken.
func (r *ReservationRepo) LockResource(ctx context.Context, id string) (reservations.Resource, error) {
	row := conn(ctx, r.DB).QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1 FOR UPDATE`, id)
	res, err := scanResource(row)
	return res, translate(err, reservations.ErrResourceNotFound)
}

func scanResource(row pgx.Row) (reservations.Resource, error) {
	var (
		res                    reservations.Resource
		openAt, closeAt        pgtype.Time
		dayHalf, dayHour       decimal.NullDecimal
		nightHalf, nightHour   decimal.NullDecimal
		legacyHalf, legacyHour decimal.NullDecimal
		cutoff                 pgtype.Time
	)
	if err := row.Scan(&res.ID, &res.Name, &openAt, &closeAt,
		&dayHalf, &dayHour, &nightHalf, &nightHour,
		&legacyHalf, &legacyHour, &cutoff); err != nil {
		return reservations.Resource{}, err
	}
	res.Hours = reservations.OperatingHours{Open: fromPGTime(openAt), Close: fromPGTime(closeAt)}
	raw := reservations.RawRates{
		DayHalfHour:    nullable(dayHalf),
		DayHour:        nullable(dayHour),
		NightHalfHour:  nullable(nightHalf),
		NightHour:      nullable(nightHour),
		LegacyHalfHour: nullable(legacyHalf),
		LegacyHour:     nullable(legacyHour),
	}
	if cutoff.Valid {
		c := fromPGTime(cutoff)
		raw.Cutoff = &c
	}
	res.Rates = reservations.ResolveRates(raw)
	return res, nil
}

const reservationColumns = `id, resource_id, requester_id, staff_id, date,
	start_time, end_time, cost, status, notes, created_at, updated_at`

const occupying = `status IN ('pending', 'confirmed', 'completed')`

// LockConflicting locks the occupying rows of the day that overlap slot.
// Overlap is half-open: touching intervals are not returned.
func (r *ReservationRepo) LockConflicting(ctx context.Context, resourceID string, date time.Time, slot reservations.Interval, excludeID string) ([]reservations.Reservation, error) {
	rows, err := conn(ctx, r.DB).Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE resource_id = $1 AND date = $2 AND `+occupying+`
		  AND start_time < $4 AND end_time > $3
		  AND ($5 = '' OR id::text <> $5)
		ORDER BY start_time
		FOR UPDATE`,
		resourceID, date, toPGTime(slot.Start), toPGTime(slot.End), excludeID)
	if err != nil {
		return nil, translate(err, reservations.ErrResourceNotFound)
	}
	return collectReservations(rows)
}

func (r *ReservationRepo) ListOccupying(ctx context.Context, resourceID string, date time.Time) ([]reservations.Reservation, error) {
	rows, err := conn(ctx, r.DB).Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE resource_id = $1 AND date = $2 AND `+occupying+`
		ORDER BY start_time`, resourceID, date)
	if err != nil {
		return nil, translate(err, reservations.ErrResourceNotFound)
	}
	return collectReservations(rows)
}

func (r *ReservationRepo) ListByResourceDate(ctx context.Context, resourceID string, date time.Time) ([]reservations.Reservation, error) {
	rows, err := conn(ctx, r.DB).Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE resource_id = $1 AND date = $2
		ORDER BY start_time, created_at`, resourceID, date)
	if err != nil {
		return nil, translate(err, reservations.ErrResourceNotFound)
	}
	return collectReservations(rows)
}

func (r *ReservationRepo) GetReservation(ctx context.Context, id string) (reservations.Reservation, error) {
	row := conn(ctx, r.DB).QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	return res, translate(err, reservations.ErrReservationNotFound)
}

func (r *ReservationRepo) LockReservation(ctx context.Context, id string) (reservations.Reservation, error) {
	row := conn(ctx, r.DB).QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
	res, err := scanReservation(row)
	return res, translate(err, reservations.ErrReservationNotFound)
}

func (r *ReservationRepo) InsertReservation(ctx context.Context, res reservations.Reservation) error {
	_, err := conn(ctx, r.DB).Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		res.ID, res.ResourceID, res.RequesterID, res.StaffID, res.Date,
		toPGTime(res.Start), toPGTime(res.End), res.Cost, string(res.Status), res.Notes,
		res.CreatedAt, res.UpdatedAt)
	return translate(err, reservations.ErrResourceNotFound)
}

func (r *ReservationRepo) UpdateReservation(ctx context.Context, res reservations.Reservation) error {
	ct, err := conn(ctx, r.DB).Exec(ctx, `
		UPDATE reservations
		SET date = $2, start_time = $3, end_time = $4, cost = $5, notes = $6, updated_at = $7
		WHERE id = $1`,
		res.ID, res.Date, toPGTime(res.Start), toPGTime(res.End), res.Cost, res.Notes, res.UpdatedAt)
	if err != nil {
		return translate(err, reservations.ErrReservationNotFound)
	}
	if ct.RowsAffected() != 1 {
		return reservations.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepo) UpdateStatus(ctx context.Context, id string, status reservations.Status, at time.Time) error {
	ct, err := conn(ctx, r.DB).Exec(ctx,
		`UPDATE reservations SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at)
	if err != nil {
		return translate(err, reservations.ErrReservationNotFound)
	}
	if ct.RowsAffected() != 1 {
		return reservations.ErrReservationNotFound
	}
	return nil
}

// DeleteReservation removes payments first so no orphan payment survives.
func (r *ReservationRepo) DeleteReservation(ctx context.Context, id string) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.DB)
		if _, err := q.Exec(ctx, `DELETE FROM payments WHERE reservation_id = $1`, id); err != nil {
			return translate(err, reservations.ErrReservationNotFound)
		}
		ct, err := q.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
		if err != nil {
			return translate(err, reservations.ErrReservationNotFound)
		}
		if ct.RowsAffected() != 1 {
			return reservations.ErrReservationNotFound
		}
		return nil
	})
}

func (r *ReservationRepo) HasConfirmedPayment(ctx context.Context, reservationID string) (bool, error) {
	var ok bool
	err := conn(ctx, r.DB).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments WHERE reservation_id = $1 AND status = 'confirmed'
		)`, reservationID).Scan(&ok)
	return ok, translate(err, reservations.ErrReservationNotFound)
}

func (r *ReservationRepo) ListExpirable(ctx context.Context, createdBefore time.Time) ([]string, error) {
	rows, err := conn(ctx, r.DB).Query(ctx, `
		SELECT r.id::text
		FROM reservations r
		WHERE r.status = 'pending' AND r.created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM payments p WHERE p.reservation_id = r.id AND p.status = 'confirmed'
		  )
		ORDER BY r.created_at`, createdBefore)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect expirable ids: %w", err)
	}
	return ids, nil
}

func scanReservation(row pgx.Row) (reservations.Reservation, error) {
	var (
		res        reservations.Reservation
		start, end pgtype.Time
		status     string
	)
	if err := row.Scan(&res.ID, &res.ResourceID, &res.RequesterID, &res.StaffID, &res.Date,
		&start, &end, &res.Cost, &status, &res.Notes, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return reservations.Reservation{}, err
	}
	res.Start = fromPGTime(start)
	res.End = fromPGTime(end)
	res.Status = reservations.Status(status)
	res.Date = reservations.DateOnly(res.Date)
	return res, nil
}

func collectReservations(rows pgx.Rows) ([]reservations.Reservation, error) {
	defer rows.Close()
	var out []reservations.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, nil)
	}
	return out, nil
}

const microsPerMinute = int64(time.Minute / time.Microsecond)

func toPGTime(t reservations.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * microsPerMinute, Valid: true}
}

func fromPGTime(t pgtype.Time) reservations.TimeOfDay {
	return reservations.TimeOfDay(t.Microseconds / microsPerMinute)
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
