// journal-payments/internal/gateway/server.go
package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/journal-payments/internal/click"
	"github.com/example/journal-payments/internal/ledger"
	"github.com/example/journal-payments/internal/payme"
	m "github.com/example/journal-payments/pkg/metrics"
)

const serviceName = "payments-gateway"

// Server is the single HTTP entry point: one dispatch path per provider plus
// the collaborator-facing transaction API.
type Server struct {
	router   *mux.Router
	ledger   *ledger.Ledger
	click    *click.Adapter
	invoices *click.InvoiceClient
	payme    *payme.Adapter
}

func NewServer(l *ledger.Ledger, ca *click.Adapter, inv *click.InvoiceClient, pa *payme.Adapter) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		ledger:   l,
		click:    ca,
		invoices: inv,
		payme:    pa,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(metricsMiddleware)

	// Provider webhooks. GET on the click paths is the provider's
	// endpoint-liveness probe: 200, no side effects.
	r.HandleFunc("/payments/click/prepare", s.clickPrepareHandler).Methods(http.MethodPost)
	r.HandleFunc("/payments/click/complete", s.clickCompleteHandler).Methods(http.MethodPost)
	r.HandleFunc("/payments/click/prepare", s.clickProbeHandler).Methods(http.MethodGet)
	r.HandleFunc("/payments/click/complete", s.clickProbeHandler).Methods(http.MethodGet)
	r.HandleFunc("/payments/payme", s.paymeHandler).Methods(http.MethodPost)

	// Collaborator API.
	r.HandleFunc("/api/transactions", s.createTransactionHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/transactions/{id}", s.getTransactionHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions/{id}/pay-url", s.payURLHandler).Methods(http.MethodPost)

	// health & metrics
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": serviceName,
			"ts":      time.Now().UTC(),
		})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.router }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

/*************** Metrics middleware ***************/

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// providerLabel buckets a request path for the duration histogram's provider
// dimension.
func providerLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/payments/click"):
		return "click"
	case strings.HasPrefix(path, "/payments/payme"):
		return "payme"
	default:
		return "api"
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		statusLabel := "FAILED"
		if rec.status >= 200 && rec.status < 400 {
			statusLabel = "SUCCESS"
		}
		m.ObserveWebhook(providerLabel(r.URL.Path), statusLabel, time.Since(start).Seconds())
	})
}
