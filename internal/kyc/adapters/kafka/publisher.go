// Package kafka publishes KYC status changes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycstatus/internal/kyc/domain"
)

// Producer is the slice of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// SnapshotSource streams cache snapshots, newest first.
type SnapshotSource interface {
	Subscribe(ctx context.Context) <-chan domain.Snapshot
}

// StatusChanged is the event value written for each changed client.
type StatusChanged struct {
	EventID                string    `json:"event_id"`
	ClientID               int64     `json:"client_id"`
	IsVerified             bool      `json:"is_verified"`
	VerifiedDocumentCount  int       `json:"verified_document_count"`
	TotalRequiredDocuments int       `json:"total_required_documents"`
	HasRequiredDocuments   bool      `json:"has_required_documents"`
	LastVerifiedOn         *string   `json:"last_verified_on,omitempty"`
	OccurredAt             time.Time `json:"occurred_at"`
}

// Publisher diffs consecutive snapshots and produces one record per client
// whose summary changed. Clients dropped from the cache produce nothing.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithTopic overrides the client's default produce topic.
func WithTopic(topic string) Option {
	return func(p *Publisher) {
		p.topic = topic
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func New(producer Producer, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run publishes changes from source until ctx ends, then returns ctx.Err().
// Produce failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, source SnapshotSource) error {
	updates := source.Subscribe(ctx)
	previous := domain.Snapshot{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			p.publish(ctx, Diff(previous, snapshot))
			previous = snapshot
		}
	}
}

func (p *Publisher) publish(ctx context.Context, changed domain.Snapshot) {
	if len(changed) == 0 {
		return
	}

	records := make([]*kgo.Record, 0, len(changed))
	for id, summary := range changed {
		value, err := json.Marshal(p.event(id, summary))
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to encode kyc status event",
				"client_id", id,
				"error", err,
			)
			continue
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(id.String()),
			Value: value,
		})
	}

	results := p.producer.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish kyc status events",
			"records", len(records),
			"error", err,
		)
		return
	}
	p.logger.DebugContext(ctx, "published kyc status events", "records", len(records))
}

func (p *Publisher) event(id domain.ClientID, summary domain.StatusSummary) StatusChanged {
	ev := StatusChanged{
		EventID:                p.newID(),
		ClientID:               int64(id),
		IsVerified:             summary.IsVerified(),
		VerifiedDocumentCount:  summary.VerifiedDocumentCount(),
		TotalRequiredDocuments: summary.TotalRequiredDocuments(),
		HasRequiredDocuments:   summary.HasRequiredDocuments(),
		OccurredAt:             p.now().UTC(),
	}
	if d, ok := summary.LastVerifiedOn(); ok {
		s := d.String()
		ev.LastVerifiedOn = &s
	}
	return ev
}

// Diff returns the entries of next that are new or differ from previous.
func Diff(previous, next domain.Snapshot) domain.Snapshot {
	changed := domain.Snapshot{}
	for id, summary := range next {
		if old, ok := previous[id]; ok && old.Equal(summary) {
			continue
		}
		changed[id] = summary
	}
	return changed
}
