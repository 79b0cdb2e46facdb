package resolver

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/metrics"
	"kycstatus/internal/kyc/ports"
)

// DefaultDelay spaces consecutive upstream lookups within one batch.
const DefaultDelay = 50 * time.Millisecond

// Committer receives each resolved summary. The service implements it by
// caching the summary and publishing a snapshot.
type Committer interface {
	Commit(id domain.ClientID, summary domain.StatusSummary)
}

// CommitFunc adapts a plain function to Committer.
type CommitFunc func(id domain.ClientID, summary domain.StatusSummary)

// Commit calls f.
func (f CommitFunc) Commit(id domain.ClientID, summary domain.StatusSummary) {
	f(id, summary)
}

// Resolver performs rate-limited, strictly sequential upstream lookups.
type Resolver struct {
	fetcher ports.StatusFetcher
	delay   time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Resolver)

// WithDelay sets the spacing between lookups. Zero disables throttling.
func WithDelay(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.delay = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = tracer
	}
}

// New creates a resolver around fetcher.
func New(fetcher ports.StatusFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		delay:   DefaultDelay,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:  otel.Tracer("kycstatus/internal/kyc/resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up ids one at a time in the given order and hands every
// outcome to sink before moving on. Item k is not attempted before
// start + k*delay. A failed lookup commits the zero summary and does not
// stop the batch. Resolve does not watch ctx for cancellation: once started
// a batch always runs to completion.
func (r *Resolver) Resolve(ctx context.Context, ids []domain.ClientID, sink Committer) {
	if len(ids) == 0 {
		return
	}
	r.metrics.ObserveBatchSize(len(ids))

	start := time.Now()
	for k, id := range ids {
		r.waitUntil(start.Add(time.Duration(k) * r.delay))
		sink.Commit(id, r.ResolveOne(ctx, id))
	}
}

// ResolveOne performs a single lookup. Any failure yields the zero summary.
func (r *Resolver) ResolveOne(ctx context.Context, id domain.ClientID) domain.StatusSummary {
	ctx, span := r.tracer.Start(ctx, "kyc.fetch_status",
		trace.WithAttributes(attribute.Int64("kyc.client_id", int64(id))),
	)
	defer span.End()

	start := time.Now()
	record, err := r.fetcher.FetchStatus(ctx, id)
	r.metrics.ObserveLookup(err == nil, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		r.logger.WarnContext(ctx, "kyc lookup failed, caching unverified status",
			"client_id", id,
			"category", ports.CategoryOf(err),
			"error", err,
		)
		return domain.ZeroSummary()
	}

	summary := domain.Process(record)
	span.SetAttributes(
		attribute.Bool("kyc.record_found", record != nil),
		attribute.Bool("kyc.verified", summary.IsVerified()),
	)
	return summary
}

func (r *Resolver) waitUntil(at time.Time) {
	d := time.Until(at)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}
