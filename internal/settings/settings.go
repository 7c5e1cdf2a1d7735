// Package settings provides runtime business settings (grace period, company
// name) through an injected provider. Values are read from a snapshot that
// the owner refreshes explicitly.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNotFound = errors.New("setting not found")

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
}

// Static serves fixed values, typically the environment defaults.
type Static map[string]string

func (s Static) Get(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Loader reads every setting from the backing store.
type Loader interface {
	LoadAll(ctx context.Context) (map[string]string, error)
}

// Snapshot caches the settings table. Get never touches the store; Refresh
// replaces the whole snapshot at once.
type Snapshot struct {
	loader Loader
	now    func() time.Time

	mu       sync.RWMutex
	values   map[string]string
	loadedAt time.Time
}

func NewSnapshot(loader Loader) *Snapshot {
	return &Snapshot{loader: loader, now: time.Now, values: map[string]string{}}
}

func (s *Snapshot) Refresh(ctx context.Context) error {
	vals, err := s.loader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.mu.Lock()
	s.values = vals
	s.loadedAt = s.now()
	s.mu.Unlock()
	return nil
}

func (s *Snapshot) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// LoadedAt is the time of the last successful Refresh, zero if none.
func (s *Snapshot) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Layered asks each provider in order and returns the first value found.
type Layered []Provider

func (l Layered) Get(ctx context.Context, key string) (string, error) {
	var firstErr error
	for _, p := range l {
		v, err := p.Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return "", firstErr
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}
