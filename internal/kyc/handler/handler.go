package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kycstatus/internal/kyc/domain"
	dErrors "kycstatus/pkg/domain-errors"
	"kycstatus/pkg/platform/httputil"
)

// Service defines the KYC status operations exposed over HTTP.
type Service interface {
	Individual(ctx context.Context, id domain.ClientID) (domain.StatusSummary, error)
	CachedSync(id domain.ClientID) domain.StatusSummary
	IsVerified(ctx context.Context, id domain.ClientID) (bool, error)
	Batch(ctx context.Context, ids []domain.ClientID) map[domain.ClientID]domain.StatusSummary
	Reset()
	Subscribe(ctx context.Context) <-chan domain.Snapshot
}

// Handler wires KYC status endpoints to the status service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a KYC status handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts public KYC status endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/kyc/clients/{clientID}/status", h.HandleStatus)
	r.Get("/kyc/clients/{clientID}/status/cached", h.HandleCachedStatus)
	r.Get("/kyc/clients/{clientID}/verified", h.HandleVerified)
	r.Post("/kyc/status/batch", h.HandleBatch)
	r.Get("/kyc/status/stream", h.HandleStream)
}

// RegisterAdmin mounts operator endpoints on the router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/kyc/cache/reset", h.HandleReset)
}

// HandleStatus handles GET /kyc/clients/{clientID}/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Individual(ctx, id)
	if err != nil {
		h.writeLookupError(ctx, w, id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(id, summary))
}

// HandleCachedStatus handles GET /kyc/clients/{clientID}/status/cached.
// It never reaches the upstream.
func (h *Handler) HandleCachedStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(id, h.service.CachedSync(id)))
}

// HandleVerified handles GET /kyc/clients/{clientID}/verified.
func (h *Handler) HandleVerified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	verified, err := h.service.IsVerified(ctx, id)
	if err != nil {
		h.writeLookupError(ctx, w, id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifiedResponse{ClientID: int64(id), Verified: verified})
}

// HandleBatch handles POST /kyc/status/batch.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger)
	if !ok {
		return
	}

	ids := req.ParsedClientIDs()
	results := h.service.Batch(ctx, ids)

	h.logger.InfoContext(ctx, "kyc batch resolved",
		"request_id", middleware.GetReqID(ctx),
		"requested", len(ids),
		"returned", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromBatch(ids, results))
}

// HandleStream handles GET /kyc/status/stream as server-sent events. Each
// event carries the full cache snapshot.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for snapshot := range h.service.Subscribe(ctx) {
		data, err := json.Marshal(FromSnapshot(snapshot))
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to encode snapshot", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			h.logger.WarnContext(ctx, "snapshot stream flush failed", "error", err)
			return
		}
	}
}

// HandleReset handles POST /admin/kyc/cache/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.service.Reset()
	h.logger.InfoContext(r.Context(), "kyc status cache reset requested",
		"request_id", middleware.GetReqID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clientID(w http.ResponseWriter, r *http.Request) (domain.ClientID, bool) {
	id, err := domain.ParseClientID(chi.URLParam(r, "clientID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "clientID must be an integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeLookupError(ctx context.Context, w http.ResponseWriter, id domain.ClientID, err error) {
	h.logger.WarnContext(ctx, "kyc status request ended before lookup completed",
		"request_id", middleware.GetReqID(ctx),
		"client_id", id,
		"error", err,
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTimeout, "kyc status lookup did not complete"))
}
