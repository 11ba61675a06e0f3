package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultPollInterval is how often the tracker re-reads the shared store.
const DefaultPollInterval = 5 * time.Second

// ErrNoCredential is returned when a token is needed but none is held.
var ErrNoCredential = errors.New("no calendar credential available")

// Tracker owns the in-memory copy of the calendar bearer credential and
// keeps it current against the shared store. The credential may be written
// by a login flow running elsewhere in the process; the tracker has no push
// channel from it, so it polls the store and adopts any differing token.
type Tracker struct {
	logger   *slog.Logger
	store    Store
	interval time.Duration

	mu    sync.Mutex
	token string
}

// NewTracker creates a tracker and adopts whatever token the store already
// holds. Pass interval <= 0 to use DefaultPollInterval.
func NewTracker(logger *slog.Logger, store Store, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := &Tracker{logger: logger, store: store, interval: interval}
	t.refresh()
	return t
}

// SetCredential stores the token in memory and persists it to the shared
// store. Calling it again with the same token is a no-op replacement.
func (t *Tracker) SetCredential(token string) error {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
	if err := t.store.Put(token); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}

// HasAccess reports whether a non-empty credential is currently held.
func (t *Tracker) HasAccess() bool {
	return t.Current() != ""
}

// Current returns the held token, or "" when absent.
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// Token implements oauth2.TokenSource, so the calendar service sees the
// latest credential on every request.
func (t *Tracker) Token() (*oauth2.Token, error) {
	token := t.Current()
	if token == "" {
		return nil, ErrNoCredential
	}
	return &oauth2.Token{AccessToken: token}, nil
}

// Start launches the background refresh loop. It returns immediately; the
// loop stops when ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.refresh()
			}
		}
	}()
}

// refresh adopts an externally written token that differs from the one in
// memory. An empty store value never clears a held token; only SetCredential
// replaces it deliberately.
func (t *Tracker) refresh() {
	token, err := t.store.Get()
	if err != nil {
		t.logger.Warn("Could not read credential store", "error", err)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if token != "" && token != t.token {
		t.token = token
		t.logger.Debug("Adopted externally written credential")
	}
}
