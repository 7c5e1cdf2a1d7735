package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LiamFranKi/vanguard-canchasintetica/internal/reservations"
)

const maxBodyBytes = 1 << 20

// ReservationService is the part of reservations.Service the handlers use.
type ReservationService interface {
	Book(ctx context.Context, actor reservations.Actor, req reservations.BookRequest) (reservations.Reservation, error)
	Edit(ctx context.Context, actor reservations.Actor, id string, req reservations.EditRequest) (reservations.Reservation, error)
	Cancel(ctx context.Context, actor reservations.Actor, id string) (reservations.Reservation, error)
	SetStatus(ctx context.Context, actor reservations.Actor, id string, to reservations.Status) (reservations.Reservation, error)
	MarkCompleted(ctx context.Context, id string) (reservations.Reservation, error)
	Delete(ctx context.Context, actor reservations.Actor, id string) error
	Get(ctx context.Context, id string) (reservations.Reservation, error)
	ListForDay(ctx context.Context, resourceID string, date time.Time) ([]reservations.Reservation, error)
	Availability(ctx context.Context, resourceID string, date time.Time) (reservations.DayAvailability, error)
}

type SweepRunner interface {
	Run(ctx context.Context) (reservations.SweepResult, error)
}

// AvailabilityCache stores rendered availability views per resource and date.
type AvailabilityCache interface {
	Get(ctx context.Context, resourceID, date string, out any) (bool, error)
	Set(ctx context.Context, resourceID, date string, v any) error
	Invalidate(ctx context.Context, resourceID string) error
}

type ReservationHandler struct {
	Service ReservationService
	Sweeper SweepRunner
	Cache   AvailabilityCache
	Log     *slog.Logger
}

func (h *ReservationHandler) Register(r chi.Router) {
	r.Post("/reservations", h.book)
	r.Get("/reservations/{id}", h.get)
	r.Patch("/reservations/{id}", h.edit)
	r.Delete("/reservations/{id}", h.delete)
	r.Put("/reservations/{id}/status", h.setStatus)
	r.Post("/reservations/{id}/cancel", h.cancel)
	r.Post("/reservations/{id}/complete", h.complete)
	r.Get("/resources/{id}/reservations", h.listForDay)
	r.Get("/resources/{id}/availability", h.availability)
	r.Post("/admin/sweeps", h.sweep)
}

func (h *ReservationHandler) book(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req bookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := req.toDomain()
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}

	res, err := h.Service.Book(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	h.invalidate(r.Context(), res.ResourceID)
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	res, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	if !actor.Privileged() && res.RequesterID != actor.ID {
		writeServiceError(w, r, h.Log, reservations.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) edit(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req editRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := req.toDomain()
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}

	res, err := h.Service.Edit(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	h.invalidate(r.Context(), res.ResourceID)
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Service.SetStatus(r.Context(), actor, chi.URLParam(r, "id"), reservations.Status(req.Status))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	h.invalidate(r.Context(), res.ResourceID)
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())

	res, err := h.Service.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	h.invalidate(r.Context(), res.ResourceID)
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

// complete is the entry point for the payment subsystem once it confirmed a
// payment. Only privileged tokens may call it.
func (h *ReservationHandler) complete(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	if !actor.Privileged() {
		writeServiceError(w, r, h.Log, reservations.ErrForbidden)
		return
	}

	res, err := h.Service.MarkCompleted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")

	res, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	h.invalidate(r.Context(), res.ResourceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReservationHandler) listForDay(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	date, ok := queryDate(w, r)
	if !ok {
		return
	}

	list, err := h.Service.ListForDay(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	out := make([]reservationResponse, 0, len(list))
	for _, res := range list {
		if !actor.Privileged() && res.RequesterID != actor.ID {
			continue
		}
		out = append(out, toReservationResponse(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReservationHandler) availability(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r)
	if !ok {
		return
	}
	resourceID := chi.URLParam(r, "id")
	day := date.Format(reservations.DateLayout)

	if h.Cache != nil {
		var cached availabilityResponse
		hit, err := h.Cache.Get(r.Context(), resourceID, day, &cached)
		if err != nil {
			h.Log.WarnContext(r.Context(), "availability cache read failed", "resource_id", resourceID, "error", err)
		}
		if hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	view, err := h.Service.Availability(r.Context(), resourceID, date)
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	resp := toAvailabilityResponse(view)
	if h.Cache != nil {
		if err := h.Cache.Set(r.Context(), resourceID, day, resp); err != nil {
			h.Log.WarnContext(r.Context(), "availability cache write failed", "resource_id", resourceID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReservationHandler) sweep(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	if !actor.Privileged() {
		writeServiceError(w, r, h.Log, reservations.ErrForbidden)
		return
	}

	res, err := h.Sweeper.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{
		Cutoff:         res.Cutoff,
		ExaminedCount:  res.Examined,
		CancelledCount: res.Cancelled,
		FailedCount:    res.Failed,
	})
}

func (h *ReservationHandler) invalidate(ctx context.Context, resourceID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx, resourceID); err != nil {
		h.Log.WarnContext(ctx, "availability cache invalidation failed", "resource_id", resourceID, "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, codeInvalidDate, "date is required")
		return time.Time{}, false
	}
	d, err := time.Parse(reservations.DateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidDate, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
