//go:generate mockgen -source=fetcher.go -destination=mocks/mocks.go -package=mocks StatusFetcher

package ports

import (
	"context"

	"kycstatus/internal/kyc/domain"
)

// StatusFetcher is the upstream KYC lookup. The resolution core treats it as
// a black box: any error is absorbed into a cached zero summary.
//
// A nil record with a nil error means the upstream has no KYC details for
// the client.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, id domain.ClientID) (*domain.RawRecord, error)
}

// FetcherFunc adapts a plain function to StatusFetcher.
type FetcherFunc func(ctx context.Context, id domain.ClientID) (*domain.RawRecord, error)

// FetchStatus calls f.
func (f FetcherFunc) FetchStatus(ctx context.Context, id domain.ClientID) (*domain.RawRecord, error) {
	return f(ctx, id)
}
