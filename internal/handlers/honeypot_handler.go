package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/chameleon-systems/chameleon/internal/engine"
	"github.com/chameleon-systems/chameleon/internal/httputil"
	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/models"
	"github.com/chameleon-systems/chameleon/internal/session"
)

// DefaultUploadMaxBytes caps the upload bait at 10 MiB.
const DefaultUploadMaxBytes = 10 << 20

// loginBodyMaxBytes matches the ceiling ParseForm applies to form posts,
// so the JSON branch cannot be used to stream an unbounded body.
const loginBodyMaxBytes = 10 << 20

// HoneypotHandler serves the attacker-facing endpoints. Every response
// comes from the deception script; real errors are never surfaced.
type HoneypotHandler struct {
	engine         *engine.Engine
	uploadMaxBytes int64
	logger         *logging.Logger
}

func NewHoneypotHandler(eng *engine.Engine, uploadMaxBytes int64, logger *logging.Logger) *HoneypotHandler {
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = DefaultUploadMaxBytes
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HoneypotHandler{
		engine:         eng,
		uploadMaxBytes: uploadMaxBytes,
		logger:         logger,
	}
}

// loginBody is the JSON shape of a login attempt; form posts carry the
// same field names.
type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Screen   string `json:"screen"`
	Timezone string `json:"timezone"`
}

// HandleLogin serves POST /admin, the fake banking login.
func (h *HoneypotHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := h.parseLoginBody(w, r)
	req := &engine.LoginRequest{
		IP:       httputil.ClientIP(r),
		Username: body.Username,
		Password: body.Password,
		Device: models.DeviceFingerprint{
			UserAgent:  r.Header.Get("User-Agent"),
			AcceptLang: r.Header.Get("Accept-Language"),
			Screen:     body.Screen,
			Timezone:   body.Timezone,
		},
	}

	dec, err := h.engine.HandleLogin(r.Context(), req)
	if err != nil {
		// The attacker sees a generic rejection regardless of what
		// broke internally.
		h.logger.ErrorContext(r.Context(), "Login pipeline failed",
			logging.IP(req.IP), logging.Err(err))
		httputil.WriteHTML(w, http.StatusUnauthorized, h.engine.Script().InvalidCredentials)
		return
	}

	h.respond(w, r, dec)
}

// HandleOTPVerify serves POST /otp-verify, the fake two-factor step.
func (h *HoneypotHandler) HandleOTPVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			code = body.Code
		}
	}

	cookieValue := ""
	if c, err := r.Cookie(session.CookieName); err == nil {
		cookieValue = c.Value
	}

	dec, err := h.engine.HandleOTP(r.Context(), httputil.ClientIP(r), code, cookieValue)
	if err != nil {
		httputil.WriteHTML(w, http.StatusOK, h.engine.Script().InvalidCode)
		return
	}
	h.respond(w, r, dec)
}

// HandleUpload serves POST /upload-id. The uploaded content is discarded;
// only its size survives into the event record.
func (h *HoneypotHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	size, err := io.Copy(io.Discard, r.Body)
	if err != nil {
		// Oversized or truncated upload; record what arrived.
		h.logger.WarnContext(r.Context(), "Upload body discarded early",
			logging.IP(httputil.ClientIP(r)), logging.Err(err))
	}

	dec, err := h.engine.HandleUpload(r.Context(), httputil.ClientIP(r), size)
	if err != nil {
		httputil.WriteHTML(w, http.StatusOK, h.engine.Script().UploadAck)
		return
	}
	h.respond(w, r, dec)
}

// HandleHealth serves GET /health.
func (h *HoneypotHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// respond applies the decision: cookie first, then the tarpit delay, then
// the scripted body. The event is already in the ledger before any delay
// starts, so a client that hangs up mid-tarpit loses nothing forensically.
func (h *HoneypotHandler) respond(w http.ResponseWriter, r *http.Request, dec *engine.Decision) {
	if dec.Cookie != nil {
		http.SetCookie(w, dec.Cookie)
	}

	if dec.TarpitDelay > 0 {
		timer := time.NewTimer(dec.TarpitDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}

	httputil.WriteHTML(w, dec.Status, dec.Body)
}

// parseLoginBody accepts both form posts and JSON bodies; the honeypot
// rejects nothing for shape, malformed input simply yields empty fields.
func (h *HoneypotHandler) parseLoginBody(w http.ResponseWriter, r *http.Request) loginBody {
	ct := r.Header.Get("Content-Type")
	if len(ct) >= 16 && ct[:16] == "application/json" {
		var body loginBody
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, loginBodyMaxBytes)).Decode(&body)
		return body
	}

	_ = r.ParseForm()
	return loginBody{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
		Screen:   r.PostFormValue("screen"),
		Timezone: r.PostFormValue("timezone"),
	}
}
