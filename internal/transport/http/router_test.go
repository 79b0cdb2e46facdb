package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycstatus/internal/kyc/domain"
	kychandler "kycstatus/internal/kyc/handler"
	"kycstatus/internal/kyc/metrics"
	"kycstatus/internal/kyc/ports"
	"kycstatus/internal/kyc/service"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	fetcher := ports.FetcherFunc(func(context.Context, domain.ClientID) (*domain.RawRecord, error) {
		return nil, nil
	})
	svc, err := service.New(fetcher, service.WithMetrics(metrics.New(reg)))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(logger, kychandler.New(svc, logger), reg)
}

func TestRouter(t *testing.T) {
	router := newTestRouter(t)

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("kyc routes are mounted", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kyc/clients/3/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("metrics expose kyc series", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "kyc_status_upstream_lookups_total")
	})

	t.Run("wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/kyc/cache/reset", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
