package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("timeofday", validateTimeOfDay); err != nil {
		panic(err)
	}
	return v
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, err := reservations.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

type bookRequest struct {
	ResourceID   string          `json:"resource_id" validate:"required"`
	RequesterID  string          `json:"requester_id"`
	Date         string          `json:"date" validate:"required,datetime=2006-01-02"`
	Start        string          `json:"start_time" validate:"required,timeofday"`
	End          string          `json:"end_time" validate:"required,timeofday"`
	Notes        string          `json:"notes" validate:"max=500"`
	CostOverride json.RawMessage `json:"cost_override"`
}

func (b bookRequest) toDomain() (reservations.BookRequest, error) {
	override, err := parseCost(b.CostOverride)
	if err != nil {
		return reservations.BookRequest{}, err
	}
	date, _ := time.Parse(reservations.DateLayout, b.Date)
	return reservations.BookRequest{
		ResourceID:   b.ResourceID,
		RequesterID:  b.RequesterID,
		Date:         date,
		Start:        reservations.MustTimeOfDay(b.Start),
		End:          reservations.MustTimeOfDay(b.End),
		Notes:        b.Notes,
		CostOverride: override,
	}, nil
}

type editRequest struct {
	Date         *string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Start        *string         `json:"start_time" validate:"omitempty,timeofday"`
	End          *string         `json:"end_time" validate:"omitempty,timeofday"`
	Notes        *string         `json:"notes" validate:"omitempty,max=500"`
	CostOverride json.RawMessage `json:"cost_override"`
}

func (e editRequest) toDomain() (reservations.EditRequest, error) {
	var out reservations.EditRequest
	override, err := parseCost(e.CostOverride)
	if err != nil {
		return out, err
	}
	out.CostOverride = override
	if e.Date != nil {
		d, _ := time.Parse(reservations.DateLayout, *e.Date)
		out.Date = &d
	}
	if e.Start != nil {
		t := reservations.MustTimeOfDay(*e.Start)
		out.Start = &t
	}
	if e.End != nil {
		t := reservations.MustTimeOfDay(*e.End)
		out.End = &t
	}
	out.Notes = e.Notes
	return out, nil
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed completed cancelled"`
}

// parseCost accepts a JSON number or numeric string with at most two
// decimals. Absent or null means no override.
func parseCost(raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, reservations.ErrInvalidCost
	}
	if err := reservations.ValidateCost(d); err != nil {
		return nil, err
	}
	return &d, nil
}

type reservationResponse struct {
	ID          string    `json:"id"`
	ResourceID  string    `json:"resource_id"`
	RequesterID string    `json:"requester_id"`
	StaffID     *string   `json:"staff_id,omitempty"`
	Date        string    `json:"date"`
	Start       string    `json:"start_time"`
	End         string    `json:"end_time"`
	Cost        string    `json:"cost"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toReservationResponse(r reservations.Reservation) reservationResponse {
	return reservationResponse{
		ID:          r.ID,
		ResourceID:  r.ResourceID,
		RequesterID: r.RequesterID,
		StaffID:     r.StaffID,
		Date:        r.Date.Format(reservations.DateLayout),
		Start:       r.Start.String(),
		End:         r.End.String(),
		Cost:        r.Cost.StringFixed(2),
		Status:      string(r.Status),
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type intervalResponse struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

type availabilityResponse struct {
	ResourceID string             `json:"resource_id"`
	Date       string             `json:"date"`
	Open       string             `json:"open"`
	Close      string             `json:"close"`
	Busy       []intervalResponse `json:"busy"`
}

func toAvailabilityResponse(a reservations.DayAvailability) availabilityResponse {
	busy := make([]intervalResponse, 0, len(a.Busy))
	for _, i := range a.Busy {
		busy = append(busy, intervalResponse{Start: i.Start.String(), End: i.End.String()})
	}
	return availabilityResponse{
		ResourceID: a.ResourceID,
		Date:       a.Date.Format(reservations.DateLayout),
		Open:       a.Hours.Open.String(),
		Close:      a.Hours.Close.String(),
		Busy:       busy,
	}
}

type sweepResponse struct {
	Cutoff         time.Time `json:"cutoff"`
	ExaminedCount  int       `json:"examined_count"`
	CancelledCount int       `json:"cancelled_count"`
	FailedCount    int       `json:"failed_count"`
}
