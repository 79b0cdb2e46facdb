package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kychandler "kycstatus/internal/kyc/handler"
	"kycstatus/pkg/platform/httputil"
	"kycstatus/pkg/platform/middleware/requestlog"
)

// NewRouter wires the KYC status endpoints plus health and metrics.
// gatherer backs /metrics; pass prometheus.DefaultGatherer in production.
func NewRouter(logger *slog.Logger, kyc *kychandler.Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestlog.Middleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	kyc.Register(r)
	kyc.RegisterAdmin(r)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
