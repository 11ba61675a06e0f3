package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// Loader obtains the payment provider runtime. Load performs one script
// fetch attempt; Provider reports the runtime object once it has
// registered. Loading and readiness are separate: a fetched script does not
// imply a live provider.
type Loader interface {
	Load(ctx context.Context) error
	Provider() (Provider, bool)
}

// ScriptLoader fetches the checkout script from its CDN URL. A prior
// successful fetch is detected and reused rather than repeated, and only
// one fetch may be in flight at a time.
type ScriptLoader struct {
	logger   *slog.Logger
	url      string
	client   *http.Client
	registry *Registry

	mu       sync.Mutex
	loaded   bool
	inFlight bool
}

// NewScriptLoader creates a loader for the given script URL. A nil registry
// polls the process-wide default.
func NewScriptLoader(logger *slog.Logger, url string, registry *Registry) *ScriptLoader {
	if registry == nil {
		registry = defaultRegistry
	}
	return &ScriptLoader{logger: logger, url: url, client: &http.Client{}, registry: registry}
}

func (l *ScriptLoader) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.loaded {
		l.mu.Unlock()
		return nil
	}
	if l.inFlight {
		l.mu.Unlock()
		return errors.New("script load already in flight")
	}
	l.inFlight = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.inFlight = false
		l.mu.Unlock()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return fmt.Errorf("invalid script url: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("script fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("script fetch returned status %d", resp.StatusCode)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("script read failed: %w", err)
	}

	l.mu.Lock()
	l.loaded = true
	l.mu.Unlock()
	l.logger.Debug("Checkout script loaded", "url", l.url)
	return nil
}

func (l *ScriptLoader) Provider() (Provider, bool) {
	return l.registry.Lookup()
}
