package handler

import (
	"fmt"

	"kycstatus/internal/kyc/domain"
	dErrors "kycstatus/pkg/domain-errors"
)

// MaxBatchSize caps client_ids per batch request.
const MaxBatchSize = 1000

// BatchRequest is the HTTP request body for POST /kyc/status/batch.
type BatchRequest struct {
	ClientIDs []int64 `json:"client_ids"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *BatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.ClientIDs == nil {
		return dErrors.New(dErrors.CodeValidation, "client_ids is required")
	}
	if len(r.ClientIDs) > MaxBatchSize {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("client_ids must contain at most %d entries", MaxBatchSize))
	}
	return nil
}

// ParsedClientIDs returns the requested ids in request order.
func (r *BatchRequest) ParsedClientIDs() []domain.ClientID {
	ids := make([]domain.ClientID, len(r.ClientIDs))
	for i, id := range r.ClientIDs {
		ids[i] = domain.ClientID(id)
	}
	return ids
}
