package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"kycstatus/internal/kyc/cache"
	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/inflight"
	"kycstatus/internal/kyc/metrics"
	"kycstatus/internal/kyc/notify"
	"kycstatus/internal/kyc/ports"
	"kycstatus/internal/kyc/resolver"
	"kycstatus/pkg/platform/dedupe"
)

// Service resolves KYC status summaries through a TTL cache, coalescing
// concurrent lookups per client and throttling batch lookups upstream.
//
// Upstream failures never reach callers: they are cached as the zero summary.
type Service struct {
	cache    *cache.InMemoryCache
	inflight *inflight.Registry
	notifier *notify.Broadcaster
	resolver *resolver.Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// commitMu makes cache write, in-flight release and publish one step.
	commitMu sync.Mutex

	ttl   time.Duration
	delay time.Duration
	now   func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTTL overrides cache.DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithBatchDelay overrides resolver.DefaultDelay.
func WithBatchDelay(d time.Duration) Option {
	return func(s *Service) {
		s.delay = d
	}
}

// WithClock replaces time.Now for cache freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New wires a service around fetcher.
func New(fetcher ports.StatusFetcher, opts ...Option) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("status fetcher is required")
	}

	s := &Service{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ttl:    cache.DefaultTTL,
		delay:  resolver.DefaultDelay,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cache = cache.New(s.ttl, cache.WithClock(s.now), cache.WithMetrics(s.metrics))
	s.inflight = inflight.New(s.metrics)
	s.notifier = notify.New()
	s.resolver = resolver.New(fetcher,
		resolver.WithDelay(s.delay),
		resolver.WithLogger(s.logger),
		resolver.WithMetrics(s.metrics),
	)
	return s, nil
}

// Batch returns a summary for every requested client, resolving stale or
// missing ones through the throttled resolver. It never fails; clients
// with nothing cached after resolution are omitted.
func (s *Service) Batch(ctx context.Context, ids []domain.ClientID) map[domain.ClientID]domain.StatusSummary {
	result := make(map[domain.ClientID]domain.StatusSummary, len(ids))
	if len(ids) == 0 {
		return result
	}

	var stale []domain.ClientID
	for _, id := range dedupe.Values(ids) {
		if summary, ok := s.cache.Get(id); ok {
			result[id] = summary
			continue
		}
		stale = append(stale, id)
	}
	if len(stale) == 0 {
		return result
	}

	owned, shared := s.claim(stale)
	s.logger.DebugContext(ctx, "resolving kyc batch",
		"requested", len(ids),
		"stale", len(stale),
		"owned", len(owned),
		"shared", len(shared),
	)

	s.resolver.Resolve(context.WithoutCancel(ctx), owned, resolver.CommitFunc(s.commit))

	for _, id := range shared {
		if _, err := s.await(ctx, id); err != nil {
			s.logger.DebugContext(ctx, "stopped waiting for in-flight kyc lookup",
				"client_id", id,
				"error", err,
			)
			break
		}
	}

	for _, id := range stale {
		if summary, ok := s.cache.Peek(id); ok {
			result[id] = summary
		}
	}
	return result
}

// claim marks ids as in flight. Ids someone else is already resolving are
// returned as shared. Owned ids that became fresh while we were claiming are
// released straight away.
func (s *Service) claim(ids []domain.ClientID) (owned, shared []domain.ClientID) {
	for _, id := range ids {
		if !s.inflight.TryBegin(id) {
			shared = append(shared, id)
			continue
		}
		if _, fresh := s.cache.Get(id); fresh {
			s.release(id)
			continue
		}
		owned = append(owned, id)
	}
	return owned, shared
}

// Individual returns the summary for one client. Concurrent callers for the
// same cold client share a single upstream lookup. The only error is ctx.Err()
// when a caller stops waiting for someone else's lookup.
func (s *Service) Individual(ctx context.Context, id domain.ClientID) (domain.StatusSummary, error) {
	if summary, ok := s.cache.Get(id); ok {
		return summary, nil
	}

	if !s.inflight.TryBegin(id) {
		s.metrics.IncrementCoalesced()
		return s.await(ctx, id)
	}

	if summary, ok := s.cache.Get(id); ok {
		s.release(id)
		return summary, nil
	}

	summary := s.resolver.ResolveOne(context.WithoutCancel(ctx), id)
	s.commit(id, summary)
	return summary, nil
}

// await blocks until id is no longer in flight, then returns its fresh
// summary, or the latest published one, or the zero summary.
func (s *Service) await(ctx context.Context, id domain.ClientID) (domain.StatusSummary, error) {
	for {
		changed := s.notifier.Changed()

		if summary, ok := s.cache.Get(id); ok {
			return summary, nil
		}
		if !s.inflight.Has(id) {
			if summary, ok := s.notifier.Lookup(id); ok {
				return summary, nil
			}
			return domain.ZeroSummary(), nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return domain.StatusSummary{}, ctx.Err()
		}
	}
}

// CachedSync returns the fresh cached summary or the zero summary. It never
// triggers a lookup.
func (s *Service) CachedSync(id domain.ClientID) domain.StatusSummary {
	if summary, ok := s.cache.Get(id); ok {
		return summary
	}
	return domain.ZeroSummary()
}

// IsVerified reports whether PAN and Aadhaar are both verified for id.
func (s *Service) IsVerified(ctx context.Context, id domain.ClientID) (bool, error) {
	summary, err := s.Individual(ctx, id)
	if err != nil {
		return false, err
	}
	return summary.HasRequiredDocuments(), nil
}

// Reset clears the cache and the in-flight set together and publishes the
// empty snapshot, waking anyone waiting on a lookup.
func (s *Service) Reset() {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.cache.Clear()
	s.inflight.Clear()
	s.publishLocked()
	s.logger.Info("kyc status cache reset")
}

// Subscribe streams full cache snapshots, starting with the current one.
func (s *Service) Subscribe(ctx context.Context) <-chan domain.Snapshot {
	return s.notifier.Subscribe(ctx)
}

// Snapshot returns a copy of the cache, stale entries included.
func (s *Service) Snapshot() domain.Snapshot {
	return s.cache.Snapshot()
}

// commit caches summary, clears the in-flight mark and notifies subscribers
// as a single step.
func (s *Service) commit(id domain.ClientID, summary domain.StatusSummary) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.cache.Put(id, summary)
	s.inflight.End(id)
	s.publishLocked()
}

// release drops an in-flight mark without a cache write. Waiters are still
// woken so they re-check the cache.
func (s *Service) release(id domain.ClientID) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.inflight.End(id)
	s.publishLocked()
}

func (s *Service) publishLocked() {
	s.notifier.Publish(s.cache.Snapshot())
	s.metrics.IncrementNotifications()
}
