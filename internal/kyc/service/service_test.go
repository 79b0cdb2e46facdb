package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/metrics"
	"kycstatus/internal/kyc/ports"
	"kycstatus/internal/kyc/ports/mocks"
)

func flag(v bool) *bool { return &v }

func verifiedRecord() *domain.RawRecord {
	return &domain.RawRecord{
		PANVerified:            flag(true),
		AadhaarVerified:        flag(true),
		DrivingLicenseVerified: flag(true),
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// Service Test Suite
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	fetcher *mocks.MockStatusFetcher
	clock   *fakeClock
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fetcher = mocks.NewMockStatusFetcher(s.ctrl)
	s.clock = &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()

	var err error
	s.service, err = New(s.fetcher,
		WithClock(s.clock.Now),
		WithBatchDelay(time.Millisecond),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil fetcher returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "status fetcher is required")
	})
}

// =============================================================================
// Batch Tests
// =============================================================================

func (s *ServiceSuite) TestBatch() {
	s.Run("empty input returns empty mapping without lookups", func() {
		result := s.service.Batch(s.ctx, nil)
		s.Empty(result)
	})

	s.Run("cold cache issues one lookup per distinct id", func() {
		s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(1)).Return(verifiedRecord(), nil).Times(1)
		s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(2)).Return(nil, nil).Times(1)
		s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(3)).Return(&domain.RawRecord{PANVerified: flag(true)}, nil).Times(1)

		result := s.service.Batch(s.ctx, []domain.ClientID{1, 2, 2, 3, 1})

		s.Len(result, 3)
		s.True(result[1].IsVerified())
		s.Equal(3, result[1].VerifiedDocumentCount())
		s.True(result[2].Equal(domain.ZeroSummary()))
		s.Equal(1, result[3].VerifiedDocumentCount())
	})

	s.Run("fresh entries are served without lookups", func() {
		result := s.service.Batch(s.ctx, []domain.ClientID{1, 2, 3})
		s.Len(result, 3)
	})
}

func (s *ServiceSuite) TestBatchRefreshesOnlyStaleEntries() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(1)).Return(verifiedRecord(), nil).Times(1)
	s.service.Batch(s.ctx, []domain.ClientID{1})

	s.clock.Advance(20 * time.Second)
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(2)).Return(verifiedRecord(), nil).Times(1)
	s.service.Batch(s.ctx, []domain.ClientID{2})

	s.clock.Advance(15 * time.Second)
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(1)).Return(nil, nil).Times(1)

	result := s.service.Batch(s.ctx, []domain.ClientID{1, 2})

	s.Len(result, 2)
	s.True(result[1].Equal(domain.ZeroSummary()), "stale entry re-resolved")
	s.True(result[2].IsVerified(), "fresh entry served from cache")
}

func (s *ServiceSuite) TestBatchFailureIsolation() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(5)).
		Return(nil, ports.NewLookupError(ports.CategoryOutage, 5, "upstream down", nil))
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(7)).
		Return(verifiedRecord(), nil)

	result := s.service.Batch(s.ctx, []domain.ClientID{5, 7})

	s.Len(result, 2)
	s.True(result[5].Equal(domain.ZeroSummary()))
	s.True(result[7].IsVerified())

	s.Run("failed lookup is cached, not retried", func() {
		summary, err := s.service.Individual(s.ctx, 5)
		s.NoError(err)
		s.False(summary.IsVerified())
	})
}

func (s *ServiceSuite) TestBatchNotifiesOncePerResolvedID() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)

	s.service.Batch(s.ctx, []domain.ClientID{1, 2, 3})

	s.Equal(3.0, testutil.ToFloat64(s.metrics.Notifications))
	s.Len(s.service.Snapshot(), 3)
}

// =============================================================================
// Individual Tests
// =============================================================================

func (s *ServiceSuite) TestIndividualIsIdempotentWithinTTL() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(9)).Return(verifiedRecord(), nil).Times(1)

	first, err := s.service.Individual(s.ctx, 9)
	s.Require().NoError(err)
	second, err := s.service.Individual(s.ctx, 9)
	s.Require().NoError(err)

	s.True(first.Equal(second))
	s.True(first.IsVerified())
}

func (s *ServiceSuite) TestIndividualTTLBoundary() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(3)).Return(verifiedRecord(), nil).Times(2)

	_, err := s.service.Individual(s.ctx, 3)
	s.Require().NoError(err)

	s.clock.Advance(29999 * time.Millisecond)
	_, err = s.service.Individual(s.ctx, 3)
	s.Require().NoError(err)

	s.clock.Advance(2 * time.Millisecond)
	_, err = s.service.Individual(s.ctx, 3)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestIndividualFailureYieldsZeroSummary() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(4)).Return(nil, errors.New("connection reset"))

	summary, err := s.service.Individual(s.ctx, 4)

	s.NoError(err)
	s.True(summary.Equal(domain.ZeroSummary()))
	s.True(s.service.CachedSync(4).Equal(domain.ZeroSummary()))
	s.Contains(s.service.Snapshot(), domain.ClientID(4))
}

func (s *ServiceSuite) TestIndividualCoalescesConcurrentCallers() {
	const callers = 10
	release := make(chan struct{})

	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(42)).
		DoAndReturn(func(context.Context, domain.ClientID) (*domain.RawRecord, error) {
			<-release
			return verifiedRecord(), nil
		}).Times(1)

	results := make([]domain.StatusSummary, callers)
	g, ctx := errgroup.WithContext(s.ctx)
	for i := range callers {
		g.Go(func() error {
			summary, err := s.service.Individual(ctx, 42)
			results[i] = summary
			return err
		})
	}

	s.Eventually(func() bool {
		return testutil.ToFloat64(s.metrics.CoalescedWaits) == callers-1
	}, time.Second, time.Millisecond)
	close(release)

	s.Require().NoError(g.Wait())
	for _, summary := range results {
		s.True(summary.Equal(results[0]))
		s.True(summary.IsVerified())
	}
}

func (s *ServiceSuite) TestIndividualJoinsInFlightBatchLookup() {
	release := make(chan struct{})
	started := make(chan struct{})

	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(1)).
		DoAndReturn(func(context.Context, domain.ClientID) (*domain.RawRecord, error) {
			close(started)
			<-release
			return verifiedRecord(), nil
		}).Times(1)

	done := make(chan map[domain.ClientID]domain.StatusSummary)
	go func() { done <- s.service.Batch(s.ctx, []domain.ClientID{1}) }()
	<-started

	waiter := make(chan domain.StatusSummary)
	go func() {
		summary, _ := s.service.Individual(s.ctx, 1)
		waiter <- summary
	}()

	s.Eventually(func() bool {
		return testutil.ToFloat64(s.metrics.CoalescedWaits) == 1
	}, time.Second, time.Millisecond)
	close(release)

	s.True((<-waiter).IsVerified())
	s.True((<-done)[1].IsVerified())
}

func (s *ServiceSuite) TestWaiterGivesUpWhenContextEnds() {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(8)).
		DoAndReturn(func(context.Context, domain.ClientID) (*domain.RawRecord, error) {
			close(started)
			<-release
			return nil, nil
		}).Times(1)

	go s.service.Individual(s.ctx, 8)
	<-started

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Millisecond)
	defer cancel()
	_, err := s.service.Individual(ctx, 8)

	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *ServiceSuite) TestLookupOutlivesCallerCancellation() {
	var sawCancelled atomic.Bool
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(6)).
		DoAndReturn(func(ctx context.Context, _ domain.ClientID) (*domain.RawRecord, error) {
			sawCancelled.Store(ctx.Err() != nil)
			return verifiedRecord(), nil
		})

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	summary, err := s.service.Individual(ctx, 6)

	s.NoError(err)
	s.True(summary.IsVerified())
	s.False(sawCancelled.Load())
}

// =============================================================================
// CachedSync / IsVerified Tests
// =============================================================================

func (s *ServiceSuite) TestCachedSync() {
	s.Run("cold cache returns zero summary without lookup", func() {
		s.True(s.service.CachedSync(11).Equal(domain.ZeroSummary()))
	})

	s.Run("fresh entry is returned", func() {
		s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(11)).Return(verifiedRecord(), nil)
		s.service.Individual(s.ctx, 11)

		s.True(s.service.CachedSync(11).IsVerified())
	})

	s.Run("stale entry reads as zero summary", func() {
		s.clock.Advance(time.Minute)
		s.True(s.service.CachedSync(11).Equal(domain.ZeroSummary()))
	})
}

func (s *ServiceSuite) TestIsVerified() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(1)).Return(verifiedRecord(), nil)
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(2)).
		Return(&domain.RawRecord{PANVerified: flag(true), DrivingLicenseVerified: flag(true)}, nil)

	ok, err := s.service.IsVerified(s.ctx, 1)
	s.NoError(err)
	s.True(ok)

	ok, err = s.service.IsVerified(s.ctx, 2)
	s.NoError(err)
	s.False(ok)
}

// =============================================================================
// Reset / Notification Tests
// =============================================================================

func (s *ServiceSuite) TestResetBehavesLikeNewInstance() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(1)).Return(verifiedRecord(), nil).Times(2)
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(2)).Return(nil, nil).Times(2)

	s.service.Batch(s.ctx, []domain.ClientID{1, 2})
	s.service.Reset()

	s.Empty(s.service.Snapshot())
	s.True(s.service.CachedSync(1).Equal(domain.ZeroSummary()))

	result := s.service.Batch(s.ctx, []domain.ClientID{1, 2})
	s.Len(result, 2)
}

func (s *ServiceSuite) TestResetWakesWaiters() {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	s.fetcher.EXPECT().FetchStatus(gomock.Any(), domain.ClientID(3)).
		DoAndReturn(func(context.Context, domain.ClientID) (*domain.RawRecord, error) {
			close(started)
			<-release
			return verifiedRecord(), nil
		}).Times(1)

	go s.service.Individual(s.ctx, 3)
	<-started

	waiter := make(chan domain.StatusSummary)
	go func() {
		summary, _ := s.service.Individual(s.ctx, 3)
		waiter <- summary
	}()
	s.Eventually(func() bool {
		return testutil.ToFloat64(s.metrics.CoalescedWaits) == 1
	}, time.Second, time.Millisecond)

	s.service.Reset()

	select {
	case summary := <-waiter:
		s.True(summary.Equal(domain.ZeroSummary()))
	case <-time.After(time.Second):
		s.Fail("waiter not woken by reset")
	}
}

func (s *ServiceSuite) TestSubscribeSeesEveryWrite() {
	s.fetcher.EXPECT().FetchStatus(gomock.Any(), gomock.Any()).Return(verifiedRecord(), nil).Times(3)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	updates := s.service.Subscribe(ctx)
	first := <-updates
	s.Empty(first)

	s.service.Batch(s.ctx, []domain.ClientID{1, 2, 3})

	s.Eventually(func() bool {
		select {
		case snap := <-updates:
			return len(snap) == 3
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
