package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chameleon-systems/chameleon/internal/forensics"
	"github.com/chameleon-systems/chameleon/internal/ledger"
	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/middleware"
	"github.com/chameleon-systems/chameleon/internal/models"
	"github.com/chameleon-systems/chameleon/pkg/tokens"
)

func newForensicsFixture(t *testing.T) (*ForensicsHandler, *ledger.Service, *middleware.AuthMiddleware, string) {
	t.Helper()

	svc := ledger.NewService(ledger.NewMemoryRepository(), ledger.Options{}, logging.Default())
	handler := NewForensicsHandler(forensics.NewService(svc))

	tg := tokens.NewTokenGenerator("test-secret-key-that-is-long-enough", time.Hour)
	token, err := tg.Generate("analyst-1", []string{"forensics"})
	require.NoError(t, err)

	return handler, svc, middleware.NewAuthMiddleware(tg), token
}

func appendLoginEvents(t *testing.T, svc *ledger.Service, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := svc.Append(context.Background(), &models.Event{
			Kind:     models.EventKindLogin,
			SourceIP: "198.51.100.50",
		})
		require.NoError(t, err)
	}
}

func TestForensicsEventsRequiresToken(t *testing.T) {
	h, _, auth, token := newForensicsFixture(t)
	protected := auth.RequireAuth(h.HandleEvents)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "no header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", authHeader: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer nonsense", wantStatus: http.StatusUnauthorized},
		{name: "valid token", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/forensics/events", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			protected(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestForensicsEventsReturnsRecent(t *testing.T) {
	h, svc, _, _ := newForensicsFixture(t)
	appendLoginEvents(t, svc, 5)

	req := httptest.NewRequest(http.MethodGet, "/forensics/events?limit=3", nil)
	rec := httptest.NewRecorder()
	h.HandleEvents(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []*models.Event `json:"events"`
		Count  int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	require.Len(t, body.Events, 3)
	// Oldest first within the returned window.
	assert.Equal(t, int64(3), body.Events[0].Seq)
	assert.Equal(t, int64(5), body.Events[2].Seq)
}

func TestForensicsStatus(t *testing.T) {
	h, svc, _, _ := newForensicsFixture(t)
	appendLoginEvents(t, svc, 50)

	req := httptest.NewRequest(http.MethodGet, "/forensics/ledger", nil)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status forensics.StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.NotNil(t, status.Counter)
	assert.Equal(t, int64(50), status.Counter.TotalEvents)
	require.Len(t, status.Batches, 1)
	assert.NotEmpty(t, status.Batches[0].RootHash)
	assert.Equal(t, status.Batches[0].RootHash, status.Counter.LastMerkleRoot)
}

func TestForensicsVerify(t *testing.T) {
	h, svc, _, _ := newForensicsFixture(t)
	appendLoginEvents(t, svc, 4)

	req := httptest.NewRequest(http.MethodGet, "/forensics/verify", nil)
	rec := httptest.NewRecorder()
	h.HandleVerify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report forensics.VerifyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 4, report.Checked)
	assert.Empty(t, report.Tampered)
}
