// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ranidpz/qrinfo-sub000/models"
)

func TestJSONResponse(t *testing.T) {
	w := httptest.NewRecorder()
	JSONResponse(w, http.StatusCreated, map[string]string{"hello": "world"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestVoteErrorResponse_StatusMapping(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{models.ErrCodeAlreadyVoted, http.StatusConflict},
		{models.ErrCodeAlreadyVotedCategory, http.StatusConflict},
		{models.ErrCodeAlreadyRegistered, http.StatusConflict},
		{models.ErrCodeVotingClosed, http.StatusConflict},
		{models.ErrCodeVerificationRequired, http.StatusUnauthorized},
		{models.ErrCodeInvalidSession, http.StatusUnauthorized},
		{models.ErrCodeSessionExpired, http.StatusUnauthorized},
		{models.ErrCodeVoteLimitReached, http.StatusForbidden},
		{models.ErrCodeBlocked, http.StatusForbidden},
		{models.ErrCodeAlreadyVotedAll, http.StatusForbidden},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeNotFound, http.StatusNotFound},
		{models.ErrCodeInvalidSelection, http.StatusBadRequest},
		{models.ErrCodeInvalidPhone, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			VoteErrorResponse(w, models.NewVoteError(tt.code, "boom"))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body.Code != tt.code {
				t.Errorf("body code = %q, want %q", body.Code, tt.code)
			}
			if body.Message != "boom" {
				t.Errorf("body message = %q", body.Message)
			}
		})
	}
}

func TestVoteErrorResponse_PlainErrorIs500(t *testing.T) {
	w := httptest.NewRecorder()
	VoteErrorResponse(w, errors.New("database exploded"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Message == "database exploded" {
		t.Error("internal error details must not leak to clients")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr with port", "10.0.0.1:1234", nil, "10.0.0.1"},
		{"x-forwarded-for single", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "1.2.3.4"},
		{"x-forwarded-for chain", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "1.2.3.4"},
		{"x-real-ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
