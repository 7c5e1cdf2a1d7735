package reservations

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// fakeRepo serializes transactions with txMu, standing in for the row locks
// Postgres takes. Writes are applied directly, so callers must only write as
// the last step of a transaction.
type fakeRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	resources    map[string]Resource
	reservations map[string]Reservation
	paid         map[string]bool
	payments     map[string]int

	failStatus map[string]error
	statusHook func(id string)
	inserts    int
}

func newFakeRepo(resources ...Resource) *fakeRepo {
	r := &fakeRepo{
		resources:    map[string]Resource{},
		reservations: map[string]Reservation{},
		paid:         map[string]bool{},
		payments:     map[string]int{},
		failStatus:   map[string]error{},
	}
	for _, res := range resources {
		r.resources[res.ID] = res
	}
	return r
}

func (f *fakeRepo) seed(rs ...Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rs {
		f.reservations[r.ID] = r
	}
}

func (f *fakeRepo) get(id string) Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reservations[id]
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeRepo) GetResource(_ context.Context, id string) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.resources[id]
	if !ok {
		return Resource{}, ErrResourceNotFound
	}
	return res, nil
}

func (f *fakeRepo) LockResource(ctx context.Context, id string) (Resource, error) {
	return f.GetResource(ctx, id)
}

func (f *fakeRepo) LockConflicting(ctx context.Context, resourceID string, date time.Time, s Interval, excludeID string) ([]Reservation, error) {
	existing, err := f.ListOccupying(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}
	return FindConflicts(existing, s, excludeID), nil
}

func (f *fakeRepo) ListOccupying(ctx context.Context, resourceID string, date time.Time) ([]Reservation, error) {
	all, _ := f.ListByResourceDate(ctx, resourceID, date)
	var out []Reservation
	for _, r := range all {
		if r.Occupies() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByResourceDate(_ context.Context, resourceID string, date time.Time) ([]Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Reservation
	for _, r := range f.reservations {
		if r.ResourceID == resourceID && r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (f *fakeRepo) GetReservation(_ context.Context, id string) (Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	return r, nil
}

func (f *fakeRepo) LockReservation(ctx context.Context, id string) (Reservation, error) {
	return f.GetReservation(ctx, id)
}

func (f *fakeRepo) InsertReservation(_ context.Context, r Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[r.ID] = r
	f.inserts++
	return nil
}

func (f *fakeRepo) UpdateReservation(_ context.Context, r Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[r.ID]; !ok {
		return ErrReservationNotFound
	}
	f.reservations[r.ID] = r
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, status Status, at time.Time) error {
	if f.statusHook != nil {
		f.statusHook(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failStatus[id]; err != nil {
		return err
	}
	r, ok := f.reservations[id]
	if !ok {
		return ErrReservationNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	f.reservations[id] = r
	return nil
}

func (f *fakeRepo) DeleteReservation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reservations, id)
	delete(f.payments, id)
	delete(f.paid, id)
	return nil
}

func (f *fakeRepo) HasConfirmedPayment(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paid[id], nil
}

func (f *fakeRepo) ListExpirable(_ context.Context, createdBefore time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, r := range f.reservations {
		if r.Status == StatusPending && r.CreatedAt.Before(createdBefore) && !f.paid[r.ID] {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Status, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.NewStatus)
	}
	return out
}

type staticSettings map[string]string

func (s staticSettings) Get(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", errMissingSetting
	}
	return v, nil
}

var errMissingSetting = errors.New("setting not found")
