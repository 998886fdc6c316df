package handlers

import (
	"net/http"
	"strconv"

	"github.com/chameleon-systems/chameleon/internal/forensics"
	"github.com/chameleon-systems/chameleon/internal/httputil"
)

// ForensicsHandler serves the operator-facing read API. Routes using it
// must be wrapped by the auth middleware.
type ForensicsHandler struct {
	service *forensics.Service
}

func NewForensicsHandler(service *forensics.Service) *ForensicsHandler {
	return &ForensicsHandler{
		service: service,
	}
}

// HandleEvents serves GET /forensics/events?limit=N.
func (h *ForensicsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := h.service.Events(r.Context(), limitParam(r))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// HandleStatus serves GET /forensics/ledger.
func (h *ForensicsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := h.service.Status(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read ledger status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// HandleVerify serves GET /forensics/verify?limit=N.
func (h *ForensicsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := h.service.Verify(r.Context(), limitParam(r))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to verify events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
