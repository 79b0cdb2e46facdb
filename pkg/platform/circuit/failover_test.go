package circuit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycstatus/internal/kyc/adapters/failover"
	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/ports"
	"kycstatus/pkg/platform/circuit"
)

// TestBreakerDrivesFailoverRecovery runs the breaker through the failover
// fetcher: open on failures, answer from the secondary between probes, and
// close only after enough successful probes.
func TestBreakerDrivesFailoverRecovery(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	healthy := false
	primaryCalls := 0
	fromPrimary := &domain.RawRecord{}
	fromSecondary := &domain.RawRecord{}

	primary := ports.FetcherFunc(func(_ context.Context, id domain.ClientID) (*domain.RawRecord, error) {
		primaryCalls++
		if !healthy {
			return nil, ports.NewLookupError(ports.CategoryOutage, id, "fineract unreachable", nil)
		}
		return fromPrimary, nil
	})
	secondary := ports.FetcherFunc(func(context.Context, domain.ClientID) (*domain.RawRecord, error) {
		return fromSecondary, nil
	})

	breaker := circuit.New("fineract", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2))
	fetcher := failover.New(primary, secondary, breaker,
		failover.WithProbeInterval(time.Minute),
		failover.WithClock(func() time.Time { return now }),
	)

	_, err := fetcher.FetchStatus(ctx, 1)
	require.Error(t, err)
	got, err := fetcher.FetchStatus(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, fromSecondary, got)
	require.Equal(t, circuit.StateOpen, breaker.State())

	got, _ = fetcher.FetchStatus(ctx, 1)
	assert.Same(t, fromSecondary, got)
	assert.Equal(t, 2, primaryCalls, "primary is left alone until the probe is due")

	healthy = true
	now = now.Add(time.Minute)
	got, _ = fetcher.FetchStatus(ctx, 1)
	assert.Same(t, fromPrimary, got)
	assert.True(t, breaker.IsOpen(), "one success is below the close threshold")

	got, _ = fetcher.FetchStatus(ctx, 1)
	assert.Same(t, fromSecondary, got)
	assert.Equal(t, 3, primaryCalls)

	now = now.Add(time.Minute)
	got, _ = fetcher.FetchStatus(ctx, 1)
	assert.Same(t, fromPrimary, got)
	assert.Equal(t, circuit.StateClosed, breaker.State())

	got, _ = fetcher.FetchStatus(ctx, 1)
	assert.Same(t, fromPrimary, got)
	assert.Equal(t, 5, primaryCalls)
}
