package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycstatus/internal/kyc/domain"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func (p *fakeProducer) Records() []*kgo.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kgo.Record(nil), p.records...)
}

type chanSource chan domain.Snapshot

func (c chanSource) Subscribe(context.Context) <-chan domain.Snapshot {
	return c
}

func verified(date *domain.Date) domain.StatusSummary {
	return domain.NewStatusSummary(2, true, date)
}

func TestDiff(t *testing.T) {
	previous := domain.Snapshot{
		1: verified(nil),
		2: domain.ZeroSummary(),
		3: domain.ZeroSummary(),
	}
	next := domain.Snapshot{
		1: verified(nil),
		2: verified(nil),
		4: domain.ZeroSummary(),
	}

	changed := Diff(previous, next)

	assert.Len(t, changed, 2)
	assert.Contains(t, changed, domain.ClientID(2))
	assert.Contains(t, changed, domain.ClientID(4))
}

func TestPublisherRun(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	producer := &fakeProducer{}
	p := New(producer,
		WithTopic("kyc.status"),
		WithClock(func() time.Time { return at }),
	)
	p.newID = func() string { return "evt-1" }

	source := make(chanSource)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, source) }()

	date := domain.Date{Year: 2024, Month: time.May, Day: 17}
	source <- domain.Snapshot{}
	source <- domain.Snapshot{7: verified(&date)}
	source <- domain.Snapshot{7: verified(&date)}
	source <- domain.Snapshot{7: verified(&date), 8: domain.ZeroSummary()}

	require.Eventually(t, func() bool { return len(producer.Records()) == 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	records := producer.Records()
	assert.Equal(t, "kyc.status", records[0].Topic)
	assert.Equal(t, "7", string(records[0].Key))

	var ev StatusChanged
	require.NoError(t, json.Unmarshal(records[0].Value, &ev))
	assert.Equal(t, "evt-1", ev.EventID)
	assert.Equal(t, int64(7), ev.ClientID)
	assert.True(t, ev.IsVerified)
	assert.True(t, ev.HasRequiredDocuments)
	assert.Equal(t, 2, ev.VerifiedDocumentCount)
	assert.Equal(t, 2, ev.TotalRequiredDocuments)
	require.NotNil(t, ev.LastVerifiedOn)
	assert.Equal(t, "2024-05-17", *ev.LastVerifiedOn)
	assert.Equal(t, at, ev.OccurredAt)

	assert.Equal(t, "8", string(records[1].Key))
}

func TestPublisherKeepsRunningAfterProduceError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unavailable")}
	p := New(producer)

	source := make(chanSource)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, source) }()

	source <- domain.Snapshot{1: domain.ZeroSummary()}
	source <- domain.Snapshot{1: verified(nil)}
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, producer.Records())
}
