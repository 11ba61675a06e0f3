package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the session's position in the checkout lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoadingScript
	PhaseReady
	PhaseInitializing
	PhaseMounted
	PhaseSucceeded
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseLoadingScript:
		return "LoadingScript"
	case PhaseReady:
		return "Ready"
	case PhaseInitializing:
		return "Initializing"
	case PhaseMounted:
		return "Mounted"
	case PhaseSucceeded:
		return "Succeeded"
	case PhaseFailed:
		return "Failed"
	case PhaseCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// FailureReason classifies a Failed outcome. The detail alongside it is the
// original error text, renderable verbatim for diagnostics.
type FailureReason string

const (
	ReasonScriptLoadFailed FailureReason = "scriptLoadFailed"
	ReasonGlobalMissing    FailureReason = "globalMissing"
	ReasonInitError        FailureReason = "initError"
	ReasonProviderError    FailureReason = "providerError"
)

// Status tags the terminal outcome of a session.
type Status int

const (
	StatusNone Status = iota // session torn down before any outcome
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

// Outcome is the terminal result of one checkout session. It is delivered
// at most once, through both the callbacks and Done.
type Outcome struct {
	Status    Status
	PaymentID string
	Reason    FailureReason
	Detail    string
}

// Params are the timing bounds for one session. Zero fields take defaults.
type Params struct {
	LoadTimeout       time.Duration // per script fetch attempt
	MaxLoadAttempts   int           // total fetch attempts, first included
	LoadBackoff       time.Duration // fixed delay between failed attempts
	ReadyPollAttempts int           // provider polls after the script loads
	ReadyPollInterval time.Duration
	ManualDelay       time.Duration // delay before a manual completion lands
	MountSelector     string
	HostedPageURL     string // hosted payment page for out-of-widget flows
}

func DefaultParams() Params {
	return Params{
		LoadTimeout:       8 * time.Second,
		MaxLoadAttempts:   3,
		LoadBackoff:       600 * time.Millisecond,
		ReadyPollAttempts: 10,
		ReadyPollInterval: 200 * time.Millisecond,
		ManualDelay:       1500 * time.Millisecond,
		MountSelector:     "#checkout-container",
	}
}

// Session drives one payment attempt through the external gateway: load the
// script, wait for the provider runtime, construct and mount the checkout,
// then relay the provider's terminal event. State transitions are strictly
// sequential; a transition attempted from the wrong phase is a no-op.
type Session struct {
	logger *slog.Logger
	loader Loader
	cfg    Config
	params Params

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	phase        Phase
	closed       bool
	finished     bool
	loadAttempts int
	readyPolls   int

	done chan Outcome
}

// NewSession prepares a session in the Idle phase. Nothing happens until
// Start.
func NewSession(logger *slog.Logger, loader Loader, cfg Config, params Params) *Session {
	d := DefaultParams()
	if params.LoadTimeout <= 0 {
		params.LoadTimeout = d.LoadTimeout
	}
	if params.MaxLoadAttempts <= 0 {
		params.MaxLoadAttempts = d.MaxLoadAttempts
	}
	if params.LoadBackoff <= 0 {
		params.LoadBackoff = d.LoadBackoff
	}
	if params.ReadyPollAttempts <= 0 {
		params.ReadyPollAttempts = d.ReadyPollAttempts
	}
	if params.ReadyPollInterval <= 0 {
		params.ReadyPollInterval = d.ReadyPollInterval
	}
	if params.ManualDelay <= 0 {
		params.ManualDelay = d.ManualDelay
	}
	if params.MountSelector == "" {
		params.MountSelector = d.MountSelector
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		logger: logger,
		loader: loader,
		cfg:    cfg,
		params: params,
		ctx:    ctx,
		cancel: cancel,
		phase:  PhaseIdle,
		done:   make(chan Outcome, 1),
	}
}

// Start begins driving the session and returns immediately. The terminal
// outcome arrives through the configured callbacks and Done.
func (s *Session) Start() {
	if !s.transition(PhaseIdle, PhaseLoadingScript) {
		return
	}
	go s.run()
}

// Done yields the terminal outcome. The channel closes after delivery, and
// also when Close tears the session down without one.
func (s *Session) Done() <-chan Outcome {
	return s.done
}

// Phase reports the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LoadAttempts reports how many script fetch attempts have run.
func (s *Session) LoadAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAttempts
}

// ReadyPolls reports how many provider readiness polls have run.
func (s *Session) ReadyPolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyPolls
}

// HostedPageURL returns the hosted payment page for this attempt, or "".
func (s *Session) HostedPageURL() string {
	return s.params.HostedPageURL
}

// ManualComplete synthesizes a successful outcome after a short fixed
// delay, regardless of provider state. It backs the acknowledge path for
// payments completed on the hosted page and keeps the flow usable when the
// script or provider is unreachable.
func (s *Session) ManualComplete() {
	s.mu.Lock()
	blocked := s.closed || s.finished
	s.mu.Unlock()
	if blocked {
		return
	}
	go func() {
		if !s.sleep(s.params.ManualDelay) {
			return
		}
		s.finish(Outcome{Status: StatusSucceeded, PaymentID: "manual-" + uuid.New().String()})
	}()
}

// Cancel moves any non-terminal session to Cancelled and fires OnCancel.
func (s *Session) Cancel() {
	s.finish(Outcome{Status: StatusCancelled})
}

// Close tears the session down. All pending timers and polls stop, and no
// further transition or callback fires. Unlike Cancel, no terminal outcome
// is delivered; Done closes empty.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if !s.finished {
		s.finished = true
		close(s.done)
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) run() {
	if _, ok := s.loader.Provider(); ok {
		// Provider already registered by a previous session; skip the fetch.
		if !s.transition(PhaseLoadingScript, PhaseReady) {
			return
		}
	} else if !s.loadScript() {
		return
	}

	provider, ok := s.awaitProvider()
	if !ok {
		return
	}
	s.initialize(provider)
}

// loadScript drives the LoadingScript phase: bounded attempts with a fixed
// backoff between them. Returns true once the session reaches Ready.
func (s *Session) loadScript() bool {
	maxAttempts := s.params.MaxLoadAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s.mu.Lock()
		if s.phase != PhaseLoadingScript {
			s.mu.Unlock()
			return false
		}
		s.loadAttempts = attempt
		s.mu.Unlock()

		attemptCtx, cancelAttempt := context.WithTimeout(s.ctx, s.params.LoadTimeout)
		err := s.loader.Load(attemptCtx)
		cancelAttempt()
		if err == nil {
			return s.transition(PhaseLoadingScript, PhaseReady)
		}
		if s.ctx.Err() != nil {
			// Torn down or finished mid-attempt; the load result is stale.
			return false
		}

		s.logger.Warn("Checkout script load attempt failed", "attempt", attempt, "error", err)
		if attempt == maxAttempts {
			s.fail(ReasonScriptLoadFailed, err)
			return false
		}
		if !s.sleep(s.params.LoadBackoff) {
			return false
		}
	}
	return false
}

// awaitProvider drives the Ready phase: poll for the provider runtime at a
// fixed spacing until it registers or the attempts run out.
func (s *Session) awaitProvider() (Provider, bool) {
	for poll := 1; poll <= s.params.ReadyPollAttempts; poll++ {
		s.mu.Lock()
		if s.phase != PhaseReady {
			s.mu.Unlock()
			return nil, false
		}
		s.readyPolls = poll
		s.mu.Unlock()

		if provider, ok := s.loader.Provider(); ok {
			if s.transition(PhaseReady, PhaseInitializing) {
				return provider, true
			}
			return nil, false
		}
		if poll < s.params.ReadyPollAttempts && !s.sleep(s.params.ReadyPollInterval) {
			return nil, false
		}
	}
	s.fail(ReasonGlobalMissing,
		fmt.Errorf("provider not available after %d polls", s.params.ReadyPollAttempts))
	return nil, false
}

// initialize constructs and mounts the provider checkout. Provider events
// are only honored once the session is Mounted.
func (s *Session) initialize(provider Provider) {
	events := Events{
		Success: func(paymentID string) {
			s.finishFrom(PhaseMounted, Outcome{Status: StatusSucceeded, PaymentID: paymentID})
		},
		Error: func(detail string) {
			s.finishFrom(PhaseMounted, Outcome{Status: StatusFailed, Reason: ReasonProviderError, Detail: detail})
		},
		Cancel: func() {
			s.finishFrom(PhaseMounted, Outcome{Status: StatusCancelled})
		},
	}

	form, err := provider.Checkout(s.cfg, events)
	if err != nil {
		s.fail(ReasonInitError, err)
		return
	}
	if !s.transition(PhaseInitializing, PhaseMounted) {
		return
	}
	if err := form.Mount(s.params.MountSelector); err != nil {
		s.fail(ReasonInitError, err)
	}
}

// transition moves from one phase to another, refusing when the session is
// not in the expected phase. Invalid transitions are no-ops, not errors.
func (s *Session) transition(from, to Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != from {
		return false
	}
	s.phase = to
	return true
}

func (s *Session) fail(reason FailureReason, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.finish(Outcome{Status: StatusFailed, Reason: reason, Detail: detail})
}

// finish delivers a terminal outcome from any non-terminal phase.
func (s *Session) finish(o Outcome) {
	s.deliver(o, nil)
}

// finishFrom delivers a terminal outcome only when the session is currently
// in the given phase; events arriving in any other phase are ignored.
func (s *Session) finishFrom(from Phase, o Outcome) {
	s.deliver(o, &from)
}

func (s *Session) deliver(o Outcome, from *Phase) {
	s.mu.Lock()
	if s.closed || s.finished || (from != nil && s.phase != *from) {
		s.mu.Unlock()
		return
	}
	s.finished = true
	switch o.Status {
	case StatusSucceeded:
		s.phase = PhaseSucceeded
	case StatusFailed:
		s.phase = PhaseFailed
	case StatusCancelled:
		s.phase = PhaseCancelled
	}
	s.done <- o
	close(s.done)
	s.mu.Unlock()

	// Stop any pending timers and polls before dispatching.
	s.cancel()

	switch o.Status {
	case StatusSucceeded:
		s.logger.Info("Checkout succeeded", "paymentID", o.PaymentID)
		if s.cfg.OnSuccess != nil {
			s.cfg.OnSuccess(o.PaymentID)
		}
	case StatusFailed:
		s.logger.Warn("Checkout failed", "reason", string(o.Reason), "detail", o.Detail)
		if s.cfg.OnError != nil {
			s.cfg.OnError(o.Reason, o.Detail)
		}
	case StatusCancelled:
		s.logger.Info("Checkout cancelled")
		if s.cfg.OnCancel != nil {
			s.cfg.OnCancel()
		}
	}
}

// sleep waits for d unless the session is finished or closed first.
func (s *Session) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
