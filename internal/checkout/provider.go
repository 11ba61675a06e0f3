package checkout

import (
	"math"
	"sync"
)

// Customer identifies the paying client on a checkout attempt.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Config describes one checkout attempt. Appearance is passed through to
// the provider opaquely. The three callbacks receive the terminal outcome;
// each fires at most once per session.
type Config struct {
	PublicKey   string
	AmountMinor int64
	Currency    string
	Description string
	Customer    Customer
	Appearance  map[string]any

	OnSuccess func(paymentID string)
	OnError   func(reason FailureReason, detail string)
	OnCancel  func()
}

// MinorUnits converts a major-unit amount (e.g. dollars) into minor units
// (cents) by multiplying by 100 and rounding.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Events is supplied by the session when constructing the provider checkout.
// The provider invokes these as the payment progresses; events arriving
// after a terminal outcome are ignored by the session.
type Events struct {
	Success func(paymentID string)
	Error   func(detail string)
	Cancel  func()
}

// Form is a constructed checkout surface, ready to attach to the page.
type Form interface {
	Mount(selector string) error
}

// Provider is the runtime object the payment script exposes once evaluated.
type Provider interface {
	Checkout(cfg Config, events Events) (Form, error)
}

// Registry holds the provider object for a process, the way database/sql
// holds drivers: the embedding runtime registers it once the payment script
// has evaluated, and sessions poll for it.
type Registry struct {
	mu       sync.Mutex
	provider Provider
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = p
}

func (r *Registry) Lookup() (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.provider, r.provider != nil
}

var defaultRegistry = new(Registry)

// Register makes a provider available to loaders polling the default
// registry.
func Register(p Provider) {
	defaultRegistry.Register(p)
}
