// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ranidpz/qrinfo-sub000/candidates"
	"github.com/Ranidpz/qrinfo-sub000/cliparse"
	"github.com/Ranidpz/qrinfo-sub000/ledger"
	"github.com/Ranidpz/qrinfo-sub000/livesync"
	"github.com/Ranidpz/qrinfo-sub000/metrics"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/phase"
	"github.com/Ranidpz/qrinfo-sub000/testutil"
	"github.com/Ranidpz/qrinfo-sub000/verify"
)

func newTestRouter(t *testing.T) *http.ServeMux {
	t.Helper()

	conn := testutil.NewTestDB(t)
	cfg := cliparse.Config{
		OperatorKeySalt: "op-salt",
		ShortIDSalt:     "sid-salt",
		SessionSecret:   "sess-secret",
		OTPSalt:         "otp-salt",
	}
	registry := prometheus.NewRegistry()
	ms := metrics.NewService(registry)
	hub := livesync.NewHub(ms)
	store := candidates.NewStore(conn)

	return NewRouter(Deps{
		DB:       conn,
		Cfg:      cfg,
		Store:    store,
		Ledger:   ledger.NewLedger(conn, cfg.SessionSecret, hub, ms),
		Ctrl:     phase.NewController(conn, store, hub, ms),
		Gate:     verify.NewGate(conn, cfg.SessionSecret, cfg.SessionSecret, verify.LogSender{}, ms),
		Hub:      hub,
		Registry: registry,
	})
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	expected := "qrinfo qvote API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRouteExistence(t *testing.T) {
	mux := newTestRouter(t)

	// Handlers may reject with 400/401/404 for missing data; the point is
	// that the route dispatches at all
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/"},

		// Operator surface
		{"POST", "/codes"},
		{"PUT", "/codes/test-id/qvote"},
		{"POST", "/codes/test-id/qvote/phase"},
		{"POST", "/codes/test-id/qvote/reset-votes"},
		{"POST", "/codes/test-id/candidates"},
		{"GET", "/codes/test-id/candidates"},
		{"PUT", "/codes/test-id/candidates/test-cid"},
		{"DELETE", "/codes/test-id/candidates/test-cid"},
		{"POST", "/codes/test-id/candidates/batch-status"},
		{"GET", "/codes/test-id/standings"},

		// Visitor surface
		{"GET", "/q/test-slug"},
		{"GET", "/q/test-slug/candidates"},
		{"POST", "/q/test-slug/register"},
		{"GET", "/q/test-slug/results"},
		{"POST", "/q/test-slug/votes"},
		{"GET", "/q/test-slug/votes"},
		{"POST", "/q/test-slug/votes/reset"},
		{"POST", "/q/test-slug/verification/send"},
		{"POST", "/q/test-slug/verification/verify"},

		// Visitor registry
		{"POST", "/visitors/register"},
		{"GET", "/visitors/me"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},              // Only GET is defined
		{"DELETE", "/q/test-slug/votes"}, // POST and GET are defined
		{"GET", "/codes/test-id/qvote"},  // Only PUT is defined
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	conn := testutil.NewTestDB(t)
	cfg := cliparse.Config{
		OperatorKeySalt: "op-salt",
		ShortIDSalt:     "sid-salt",
		SessionSecret:   "sess-secret",
		OTPSalt:         "otp-salt",
	}
	hub := livesync.NewHub(nil)
	store := candidates.NewStore(conn)
	mux := NewRouter(Deps{
		DB:     conn,
		Cfg:    cfg,
		Store:  store,
		Ledger: ledger.NewLedger(conn, cfg.SessionSecret, hub, nil),
		Ctrl:   phase.NewController(conn, store, hub, nil),
		Gate:   verify.NewGate(conn, cfg.SessionSecret, cfg.SessionSecret, verify.LogSender{}, nil),
		Hub:    hub,
	})

	codeID := testutil.CreateCode(t, conn, "contest")
	testutil.ConfigureQVote(t, conn, codeID, models.ConfigureQVoteRequest{MaxSelectionsPerVoter: 1})
	shortID := testutil.ShortID(t, conn, codeID)

	req := httptest.NewRequest("GET", "/q/"+shortID, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for configured code view, got %d. Body: %s", w.Code, w.Body.String())
	}
}
