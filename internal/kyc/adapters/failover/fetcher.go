// Package failover routes KYC lookups to a secondary source while the
// primary is failing.
package failover

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/ports"
	"kycstatus/pkg/platform/circuit"
)

// DefaultProbeInterval is how often the primary is retried while the
// circuit is open.
const DefaultProbeInterval = 10 * time.Second

// Fetcher implements ports.StatusFetcher over a primary and a secondary source.
type Fetcher struct {
	primary   ports.StatusFetcher
	secondary ports.StatusFetcher
	breaker   *circuit.Breaker
	logger    *slog.Logger

	probeInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	nextProbe time.Time
}

type Option func(*Fetcher)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithProbeInterval sets the gap between primary probes while open.
func WithProbeInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.probeInterval = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// New creates a failover fetcher. breaker decides when the primary is unhealthy.
func New(primary, secondary ports.StatusFetcher, breaker *circuit.Breaker, opts ...Option) *Fetcher {
	f := &Fetcher{
		primary:       primary,
		secondary:     secondary,
		breaker:       breaker,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		probeInterval: DefaultProbeInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchStatus asks the primary unless the circuit is open, in which case the
// secondary answers and the primary is only probed once per interval.
func (f *Fetcher) FetchStatus(ctx context.Context, id domain.ClientID) (*domain.RawRecord, error) {
	if f.breaker.IsOpen() && !f.probeDue() {
		return f.secondary.FetchStatus(ctx, id)
	}

	record, err := f.primary.FetchStatus(ctx, id)
	if err == nil {
		if _, change := f.breaker.RecordSuccess(); change.Closed {
			f.logger.InfoContext(ctx, "kyc primary source recovered",
				"breaker", f.breaker.Name(),
			)
		}
		return record, nil
	}

	useFallback, change := f.breaker.RecordFailure()
	if change.Opened {
		f.scheduleProbe()
		f.logger.WarnContext(ctx, "kyc primary source failing, switching to secondary",
			"breaker", f.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return nil, err
	}
	return f.secondary.FetchStatus(ctx, id)
}

// probeDue reports whether this call should probe the primary, and if so
// pushes the next probe out by one interval.
func (f *Fetcher) probeDue() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if now.Before(f.nextProbe) {
		return false
	}
	f.nextProbe = now.Add(f.probeInterval)
	return true
}

func (f *Fetcher) scheduleProbe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextProbe = f.now().Add(f.probeInterval)
}
