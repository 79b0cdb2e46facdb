package handler

import (
	"slices"

	"kycstatus/internal/kyc/domain"
	"kycstatus/pkg/platform/dedupe"
)

// StatusResponse is one client's KYC summary.
type StatusResponse struct {
	ClientID               int64   `json:"client_id"`
	IsVerified             bool    `json:"is_verified"`
	VerifiedDocumentCount  int     `json:"verified_document_count"`
	TotalRequiredDocuments int     `json:"total_required_documents"`
	HasRequiredDocuments   bool    `json:"has_required_documents"`
	LastVerifiedOn         *string `json:"last_verified_on,omitempty"`
}

// VerifiedResponse is the HTTP response for GET /kyc/clients/{clientID}/verified.
type VerifiedResponse struct {
	ClientID int64 `json:"client_id"`
	Verified bool  `json:"verified"`
}

// StatusListResponse carries several summaries. Used by the batch endpoint
// and by snapshot stream events.
type StatusListResponse struct {
	Statuses []StatusResponse `json:"statuses"`
}

// FromSummary converts a domain summary to an HTTP response.
func FromSummary(id domain.ClientID, summary domain.StatusSummary) StatusResponse {
	resp := StatusResponse{
		ClientID:               int64(id),
		IsVerified:             summary.IsVerified(),
		VerifiedDocumentCount:  summary.VerifiedDocumentCount(),
		TotalRequiredDocuments: summary.TotalRequiredDocuments(),
		HasRequiredDocuments:   summary.HasRequiredDocuments(),
	}
	if d, ok := summary.LastVerifiedOn(); ok {
		s := d.String()
		resp.LastVerifiedOn = &s
	}
	return resp
}

// FromBatch lists results in request order, once per distinct id.
func FromBatch(ids []domain.ClientID, results map[domain.ClientID]domain.StatusSummary) StatusListResponse {
	statuses := make([]StatusResponse, 0, len(results))
	for _, id := range dedupe.Values(ids) {
		if summary, ok := results[id]; ok {
			statuses = append(statuses, FromSummary(id, summary))
		}
	}
	return StatusListResponse{Statuses: statuses}
}

// FromSnapshot lists a snapshot ordered by client id.
func FromSnapshot(snapshot domain.Snapshot) StatusListResponse {
	ids := make([]domain.ClientID, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	statuses := make([]StatusResponse, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, FromSummary(id, snapshot[id]))
	}
	return StatusListResponse{Statuses: statuses}
}
