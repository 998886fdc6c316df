package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chameleon-systems/chameleon/internal/handlers"
	"github.com/chameleon-systems/chameleon/internal/middleware"
)

// NewRouter constructs the full route table: the attacker-facing bait
// endpoints, the token-gated forensics API, and the operational probes.
func NewRouter(hp *handlers.HoneypotHandler, fh *handlers.ForensicsHandler, auth *middleware.AuthMiddleware) http.Handler {
	mux := http.NewServeMux()

	// Attacker-facing endpoints. Deliberately unauthenticated.
	mux.HandleFunc("POST /admin", hp.HandleLogin)
	mux.HandleFunc("POST /otp-verify", hp.HandleOTPVerify)
	mux.HandleFunc("POST /upload-id", hp.HandleUpload)

	// Operator-facing forensics API.
	mux.HandleFunc("GET /forensics/events", auth.RequireAuth(fh.HandleEvents))
	mux.HandleFunc("GET /forensics/ledger", auth.RequireAuth(fh.HandleStatus))
	mux.HandleFunc("GET /forensics/verify", auth.RequireAuth(fh.HandleVerify))

	// Operational probes and metrics.
	mux.HandleFunc("GET /health", hp.HandleHealth)
	mux.HandleFunc("GET /healthz", hp.HandleHealth)
	mux.HandleFunc("GET /readyz", hp.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
