package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chameleon-systems/chameleon/internal/classifier"
	"github.com/chameleon-systems/chameleon/internal/decoy"
	"github.com/chameleon-systems/chameleon/internal/ledger"
	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/models"
	"github.com/chameleon-systems/chameleon/internal/script"
	"github.com/chameleon-systems/chameleon/internal/state"
)

type stubGeo struct {
	intel *models.GeoIntel
	err   error
}

func (s *stubGeo) Lookup(context.Context, string) (*models.GeoIntel, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.intel, nil
}

type stubClassifier struct {
	label      string
	confidence float64
	err        error
	calls      int
}

func (s *stubClassifier) Classify(context.Context, string) (models.Classification, error) {
	s.calls++
	if s.err != nil {
		return models.Classification{}, s.err
	}
	return models.Classification{Label: s.label, Confidence: s.confidence}, nil
}

type failingStateRepo struct {
	err error
}

func (f *failingStateRepo) GetOrCreate(context.Context, string) (*models.AttackerState, error) {
	return nil, f.err
}

func (f *failingStateRepo) RecordContact(context.Context, string, time.Time) (*models.ContactSnapshot, error) {
	return nil, f.err
}

func (f *failingStateRepo) RecordFailure(context.Context, string) (int64, error) {
	return 0, f.err
}

func (f *failingStateRepo) Close() error { return nil }

type testHarness struct {
	engine     *Engine
	ledgerRepo *ledger.MemoryRepository
	classifier *stubClassifier
}

func newTestHarness(t *testing.T, mutate func(*Config, *stubClassifier)) *testHarness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.TargetSecret = "hunter2-prod"

	cls := &stubClassifier{label: classifier.LabelNormal, confidence: 0.92}
	if mutate != nil {
		mutate(&cfg, cls)
	}

	logger := logging.Default()
	ledgerRepo := ledger.NewMemoryRepository()
	svc := ledger.NewService(ledgerRepo, ledger.Options{}, logger)

	eng := New(
		cfg,
		state.NewMemoryRepository(),
		svc,
		&stubGeo{intel: &models.GeoIntel{IP: "203.0.113.7", Country: "Testland"}},
		cls,
		decoy.NewMemoryStore(3, 42),
		script.Default(),
		logger,
	)

	return &testHarness{engine: eng, ledgerRepo: ledgerRepo, classifier: cls}
}

func loginReq(ip, username, password string) *LoginRequest {
	return &LoginRequest{
		IP:       ip,
		Username: username,
		Password: password,
		Device:   models.DeviceFingerprint{UserAgent: "Mozilla/5.0"},
	}
}

func (h *testHarness) events(t *testing.T) []*models.Event {
	t.Helper()
	evs, err := h.ledgerRepo.RecentEvents(context.Background(), 1000)
	require.NoError(t, err)
	return evs
}

func TestHandleLoginWrongCredentials(t *testing.T) {
	h := newTestHarness(t, nil)

	dec, err := h.engine.HandleLogin(context.Background(), loginReq("198.51.100.1", "root", "toor"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, dec.Status)
	assert.Contains(t, dec.Body, "Invalid username or password")
	assert.Nil(t, dec.Cookie)
	assert.Zero(t, dec.TarpitDelay)

	require.NotNil(t, dec.Event.LoginAttempt)
	assert.Equal(t, models.OutcomeFailed, dec.Event.LoginAttempt.Outcome)
	assert.Equal(t, "root", dec.Event.LoginAttempt.Username)
	assert.False(t, dec.Event.LoginAttempt.MLFallback)
	require.NotNil(t, dec.Event.Behavioral)
	assert.Equal(t, int64(1), dec.Event.Behavioral.RequestCount)
	assert.Equal(t, int64(0), dec.Event.Behavioral.FailedLogins)

	evs := h.events(t)
	require.Len(t, evs, 1)
	assert.NotEmpty(t, evs[0].ContentHash)
	assert.Equal(t, int64(1), evs[0].Seq)
}

func TestHandleLoginCorrectCredentials(t *testing.T) {
	h := newTestHarness(t, nil)

	dec, err := h.engine.HandleLogin(context.Background(), loginReq("198.51.100.2", "admin", "hunter2-prod"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, dec.Status)
	assert.Contains(t, dec.Body, "Two-Factor Authentication")
	require.NotNil(t, dec.Cookie)
	assert.Equal(t, "session", dec.Cookie.Name)
	assert.False(t, dec.Cookie.HttpOnly)

	la := dec.Event.LoginAttempt
	require.NotNil(t, la)
	assert.Equal(t, models.OutcomeCorrect, la.Outcome)
	assert.Equal(t, "override", la.MLLabel)
	assert.Equal(t, 1.0, la.MLConfidence)

	require.NotNil(t, dec.Event.Deception)
	assert.True(t, dec.Event.Deception.OTPBait)

	// The winning rule never consulted the classifier.
	assert.Zero(t, h.classifier.calls)
}

func TestHandleLoginInjectionFlagged(t *testing.T) {
	h := newTestHarness(t, func(_ *Config, cls *stubClassifier) {
		cls.label = classifier.LabelInjected
		cls.confidence = 0.97
	})

	dec, err := h.engine.HandleLogin(context.Background(),
		loginReq("198.51.100.3", "guest", "' OR 1=1 --"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, dec.Status)
	assert.Contains(t, dec.Body, "Information schema suggests table 'users'")

	la := dec.Event.LoginAttempt
	require.NotNil(t, la)
	assert.Equal(t, models.OutcomeInjection, la.Outcome)
	assert.Equal(t, classifier.LabelInjected, la.MLLabel)

	require.NotNil(t, dec.Event.Deception)
	assert.Equal(t, "users_table", dec.Event.Deception.Hint)

	// Memoized: one classifier call serves guard and handler.
	assert.Equal(t, 1, h.classifier.calls)
}

func TestHandleLoginAdminOverrideSuppressesInjection(t *testing.T) {
	h := newTestHarness(t, func(_ *Config, cls *stubClassifier) {
		cls.label = classifier.LabelInjected
		cls.confidence = 0.99
	})

	dec, err := h.engine.HandleLogin(context.Background(),
		loginReq("198.51.100.4", "Admin", "' OR 1=1 --"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, dec.Status)
	la := dec.Event.LoginAttempt
	require.NotNil(t, la)
	assert.Equal(t, models.OutcomeFailed, la.Outcome)
	assert.Equal(t, classifier.LabelNormal, la.MLLabel)
	assert.Equal(t, 1.0, la.MLConfidence)
}

func TestHandleLoginDecoyLeak(t *testing.T) {
	h := newTestHarness(t, nil)

	dec, err := h.engine.HandleLogin(context.Background(),
		loginReq("198.51.100.5", "guest", "x; SELECT * FROM 'users'"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, dec.Status)
	assert.Contains(t, dec.Body, "Partial Database Dump")
	assert.Contains(t, dec.Body, "admin")

	la := dec.Event.LoginAttempt
	require.NotNil(t, la)
	assert.Equal(t, models.OutcomeDecoyLeak, la.Outcome)

	require.NotNil(t, dec.Event.Deception)
	assert.True(t, dec.Event.Deception.TableLeak)
	require.NotEmpty(t, dec.Event.Deception.LeakedRows)
	assert.Equal(t, "admin", dec.Event.Deception.LeakedRows[0]["username"])
}

func TestHandleLoginClassifierFallback(t *testing.T) {
	h := newTestHarness(t, func(_ *Config, cls *stubClassifier) {
		cls.err = errors.New("connection refused")
	})

	dec, err := h.engine.HandleLogin(context.Background(), loginReq("198.51.100.6", "guest", "wrong"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, dec.Status)
	la := dec.Event.LoginAttempt
	require.NotNil(t, la)
	assert.True(t, la.MLFallback)
	assert.Equal(t, classifier.LabelNormal, la.MLLabel)
	assert.Equal(t, 0.4, la.MLConfidence)
}

func TestHandleLoginGeoFailureDoesNotBlock(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine.geo = &stubGeo{err: errors.New("timeout")}

	dec, err := h.engine.HandleLogin(context.Background(), loginReq("198.51.100.7", "guest", "wrong"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, dec.Status)
	require.NotNil(t, dec.Event.GeoIntel)
	assert.Equal(t, "geo_lookup_failed", dec.Event.GeoIntel.Error)
	assert.Equal(t, "198.51.100.7", dec.Event.GeoIntel.IP)
}

// A broken state tracker must not swallow the attempt: the login still
// resolves to a decision and the ledger still receives exactly one event,
// carrying a zeroed behavioral snapshot.
func TestHandleLoginStateFailureStillAppendsEvent(t *testing.T) {
	h := newTestHarness(t, nil)
	h.engine.state = &failingStateRepo{err: errors.New("redis: connection refused")}

	dec, err := h.engine.HandleLogin(context.Background(), loginReq("198.51.100.77", "root", "wrong"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, dec.Status)
	assert.Contains(t, dec.Body, "Invalid username or password")
	assert.Zero(t, dec.TarpitDelay)

	evs := h.events(t)
	require.Len(t, evs, 1)
	require.NotNil(t, evs[0].Behavioral)
	assert.Zero(t, evs[0].Behavioral.RequestCount)
	assert.Zero(t, evs[0].Behavioral.FailedLogins)
	require.NotNil(t, evs[0].LoginAttempt)
	assert.Equal(t, models.OutcomeFailed, evs[0].LoginAttempt.Outcome)
}

// TestEscalationLadder drives one IP through repeated failures and checks
// the plain-failure, tarpit, and ban bands at their exact boundaries.
func TestEscalationLadder(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	ip := "198.51.100.8"

	for attempt := 1; attempt <= 10; attempt++ {
		dec, err := h.engine.HandleLogin(ctx, loginReq(ip, "root", fmt.Sprintf("guess-%d", attempt)))
		require.NoError(t, err)

		switch {
		case attempt <= 3:
			assert.Equal(t, http.StatusUnauthorized, dec.Status, "attempt %d", attempt)
			assert.Zero(t, dec.TarpitDelay, "attempt %d", attempt)
			assert.Nil(t, dec.Event.Deception, "attempt %d", attempt)
		case attempt <= 6:
			assert.Equal(t, http.StatusUnauthorized, dec.Status, "attempt %d", attempt)
			assert.Equal(t, 5*time.Second, dec.TarpitDelay, "attempt %d", attempt)
			require.NotNil(t, dec.Event.Deception, "attempt %d", attempt)
			assert.Equal(t, int64(5000), dec.Event.Deception.TarpitDelayMS, "attempt %d", attempt)
		case attempt == 7:
			// Seventh failure lands on the counter boundary: past the
			// tarpit band, not yet over the ban threshold.
			assert.Equal(t, http.StatusUnauthorized, dec.Status, "attempt %d", attempt)
			assert.Zero(t, dec.TarpitDelay, "attempt %d", attempt)
			assert.Nil(t, dec.Event.Deception, "attempt %d", attempt)
		default:
			assert.Equal(t, http.StatusForbidden, dec.Status, "attempt %d", attempt)
			assert.Zero(t, dec.TarpitDelay, "attempt %d", attempt)
			require.NotNil(t, dec.Event.Deception, "attempt %d", attempt)
			assert.True(t, dec.Event.Deception.Banned, "attempt %d", attempt)
			assert.Equal(t, models.OutcomeBanned, dec.Event.LoginAttempt.Outcome, "attempt %d", attempt)
		}
	}

	// A banned attacker with the real password stays banned.
	dec, err := h.engine.HandleLogin(ctx, loginReq(ip, "admin", "hunter2-prod"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, dec.Status)
	assert.Nil(t, dec.Cookie)
}

func TestBanOutranksDecoyLeak(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()
	ip := "198.51.100.9"

	for i := 0; i < 7; i++ {
		_, err := h.engine.HandleLogin(ctx, loginReq(ip, "root", "wrong"))
		require.NoError(t, err)
	}

	dec, err := h.engine.HandleLogin(ctx, loginReq(ip, "root", "select * from 'users'"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, dec.Status)
	assert.Equal(t, models.OutcomeBanned, dec.Event.LoginAttempt.Outcome)
}

func TestPasswordPreviewIsCapped(t *testing.T) {
	h := newTestHarness(t, nil)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}

	dec, err := h.engine.HandleLogin(context.Background(),
		loginReq("198.51.100.10", "guest", string(long)))
	require.NoError(t, err)

	require.NotNil(t, dec.Event.LoginAttempt)
	assert.Len(t, dec.Event.LoginAttempt.PasswordPreview, passwordPreviewMax)
}

func TestEveryLoginAppendsExactlyOneEvent(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	attempts := []*LoginRequest{
		loginReq("198.51.100.11", "admin", "hunter2-prod"),
		loginReq("198.51.100.11", "root", "wrong"),
		loginReq("198.51.100.11", "guest", "select * from 'users'"),
	}
	for _, req := range attempts {
		_, err := h.engine.HandleLogin(ctx, req)
		require.NoError(t, err)
	}

	evs := h.events(t)
	require.Len(t, evs, len(attempts))
	for i, ev := range evs {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, models.EventKindLogin, ev.Kind)
		assert.NotEmpty(t, ev.EventID)
	}
}

func TestHandleOTP(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantBody string
	}{
		{name: "valid 6 digit code", code: "123456", wantBody: "Verification Successful"},
		{name: "valid 4 digit code", code: "0000", wantBody: "Verification Successful"},
		{name: "too short", code: "123", wantBody: "Invalid Code"},
		{name: "too long", code: "123456789", wantBody: "Invalid Code"},
		{name: "non numeric", code: "12ab56", wantBody: "Invalid Code"},
		{name: "empty", code: "", wantBody: "Invalid Code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t, nil)

			dec, err := h.engine.HandleOTP(context.Background(), "198.51.100.12", tt.code, "")
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, dec.Status)
			assert.Contains(t, dec.Body, tt.wantBody)
			assert.Equal(t, models.EventKindOTP, dec.Event.Kind)
			assert.Equal(t, tt.code, dec.Event.OTPCode)

			evs := h.events(t)
			require.Len(t, evs, 1)
		})
	}
}

func TestHandleOTPRecordsParsedCookie(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	login, err := h.engine.HandleLogin(ctx, loginReq("198.51.100.13", "admin", "hunter2-prod"))
	require.NoError(t, err)
	require.NotNil(t, login.Cookie)

	dec, err := h.engine.HandleOTP(ctx, "198.51.100.13", "123456", login.Cookie.Value)
	require.NoError(t, err)

	require.NotNil(t, dec.Event.ParsedCookie)
	assert.Equal(t, "admin", dec.Event.ParsedCookie["username"])
}

func TestHandleUpload(t *testing.T) {
	h := newTestHarness(t, nil)

	dec, err := h.engine.HandleUpload(context.Background(), "198.51.100.14", 4096)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, dec.Status)
	assert.Contains(t, dec.Body, "Manual review")
	assert.Equal(t, models.EventKindUpload, dec.Event.Kind)
	assert.Equal(t, int64(4096), dec.Event.UploadSize)

	evs := h.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventKindUpload, evs[0].Kind)
}
