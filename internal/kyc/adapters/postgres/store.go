// Package postgres reads raw KYC records straight from the Fineract database.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"kycstatus/internal/kyc/domain"
	"kycstatus/internal/kyc/ports"
)

const selectKYC = `
SELECT pan_verified,
       aadhaar_verified,
       driving_license_verified,
       voter_id_verified,
       passport_verified,
       last_verified_on
FROM m_extend_client_kyc_details
WHERE client_id = $1`

// Querier is the slice of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ports.StatusFetcher over m_extend_client_kyc_details.
type Store struct {
	db Querier
}

// New creates a store over db, usually a *pgxpool.Pool.
func New(db Querier) *Store {
	return &Store{db: db}
}

// FetchStatus returns the client's KYC row, or nil when there is none.
func (s *Store) FetchStatus(ctx context.Context, id domain.ClientID) (*domain.RawRecord, error) {
	var (
		record         domain.RawRecord
		lastVerifiedOn *time.Time
	)
	err := s.db.QueryRow(ctx, selectKYC, int64(id)).Scan(
		&record.PANVerified,
		&record.AadhaarVerified,
		&record.DrivingLicenseVerified,
		&record.VoterIDVerified,
		&record.PassportVerified,
		&lastVerifiedOn,
	)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, nil
		case errors.Is(err, context.DeadlineExceeded):
			return nil, ports.NewLookupError(ports.CategoryTimeout, id, "kyc query timed out", err)
		default:
			return nil, ports.NewLookupError(ports.CategoryOutage, id, "kyc query failed", err)
		}
	}

	if lastVerifiedOn != nil {
		d := domain.DateFromTime(*lastVerifiedOn)
		record.LastVerifiedOn = &d
	}
	return &record, nil
}
