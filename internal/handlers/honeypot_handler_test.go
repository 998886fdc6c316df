package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chameleon-systems/chameleon/internal/classifier"
	"github.com/chameleon-systems/chameleon/internal/decoy"
	"github.com/chameleon-systems/chameleon/internal/engine"
	"github.com/chameleon-systems/chameleon/internal/ledger"
	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/models"
	"github.com/chameleon-systems/chameleon/internal/script"
	"github.com/chameleon-systems/chameleon/internal/state"
)

type staticGeo struct{}

func (staticGeo) Lookup(context.Context, string) (*models.GeoIntel, error) {
	return &models.GeoIntel{IP: "203.0.113.1", Country: "Testland"}, nil
}

type staticClassifier struct{}

func (staticClassifier) Classify(context.Context, string) (models.Classification, error) {
	return models.Classification{Label: classifier.LabelNormal, Confidence: 0.9}, nil
}

func newTestHandler(t *testing.T) (*HoneypotHandler, *ledger.MemoryRepository) {
	t.Helper()

	logger := logging.Default()
	repo := ledger.NewMemoryRepository()
	cfg := engine.DefaultConfig()
	cfg.TargetSecret = "hunter2-prod"
	cfg.TarpitDelay = 10 * time.Millisecond

	eng := engine.New(
		cfg,
		state.NewMemoryRepository(),
		ledger.NewService(repo, ledger.Options{}, logger),
		staticGeo{},
		staticClassifier{},
		decoy.NewMemoryStore(3, 42),
		script.Default(),
		logger,
	)
	return NewHoneypotHandler(eng, 0, logger), repo
}

func formReq(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept-Language", "en-US")
	req.RemoteAddr = "198.51.100.1:54321"
	return req
}

func TestHandleLoginFormPost(t *testing.T) {
	h, repo := newTestHandler(t)

	req := formReq("/admin", url.Values{
		"username": {"root"},
		"password": {"toor"},
		"screen":   {"1920x1080"},
		"timezone": {"UTC"},
	})
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	evs, err := repo.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "198.51.100.1", evs[0].SourceIP)
	require.NotNil(t, evs[0].DeviceFingerprint)
	assert.Equal(t, "1920x1080", evs[0].DeviceFingerprint.Screen)
	assert.Equal(t, "Mozilla/5.0", evs[0].DeviceFingerprint.UserAgent)
}

func TestHandleLoginJSONPost(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"username":"admin","password":"hunter2-prod","screen":"1280x800","timezone":"Europe/Berlin"}`
	req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.2:1000"
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Two-Factor Authentication")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.False(t, cookies[0].HttpOnly)
	assert.Equal(t, 1800, cookies[0].MaxAge)
}

func TestHandleLoginJSONBodyBounded(t *testing.T) {
	h, repo := newTestHandler(t)

	// A JSON body past the 10 MiB ceiling is cut off mid-decode; the
	// request still resolves to a generic rejection with empty fields
	// and the attempt is still recorded.
	body := `{"username":"admin","password":"` + strings.Repeat("A", loginBodyMaxBytes+1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.3:2000"
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")

	evs, err := repo.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.NotNil(t, evs[0].LoginAttempt)
	assert.Empty(t, evs[0].LoginAttempt.Username)
}

func TestHandleLoginForwardedFor(t *testing.T) {
	h, repo := newTestHandler(t)

	req := formReq("/admin", url.Values{"username": {"a"}, "password": {"b"}})
	req.Header.Set("X-Forwarded-For", "192.0.2.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)

	evs, err := repo.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "192.0.2.9", evs[0].SourceIP)
}

func TestHandleLoginTarpitDelaysResponse(t *testing.T) {
	h, _ := newTestHandler(t)

	// Push one IP into the tarpit band.
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		h.HandleLogin(rec, formReq("/admin", url.Values{"username": {"x"}, "password": {"y"}}))
		if i < 3 {
			continue
		}
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	start := time.Now()
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, formReq("/admin", url.Values{"username": {"x"}, "password": {"y"}}))
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
}

func TestHandleOTPVerify(t *testing.T) {
	h, repo := newTestHandler(t)

	req := formReq("/otp-verify", url.Values{"code": {"123456"}})
	rec := httptest.NewRecorder()
	h.HandleOTPVerify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Verification Successful")

	evs, err := repo.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventKindOTP, evs[0].Kind)
	assert.Equal(t, "123456", evs[0].OTPCode)
}

func TestHandleUploadCountsBytes(t *testing.T) {
	h, repo := newTestHandler(t)

	payload := strings.Repeat("x", 2048)
	req := httptest.NewRequest(http.MethodPost, "/upload-id", strings.NewReader(payload))
	req.RemoteAddr = "198.51.100.3:2000"
	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Manual review")

	evs, err := repo.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(2048), evs[0].UploadSize)
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, fn := range []http.HandlerFunc{h.HandleLogin, h.HandleOTPVerify, h.HandleUpload} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	}
}
