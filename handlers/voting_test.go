// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ranidpz/qrinfo-sub000/ledger"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/testutil"
)

func setupVoteHandler(t *testing.T) (*sql.DB, *VoteHandler, string, string) {
	t.Helper()

	conn := testutil.NewTestDB(t)
	codeID := testutil.CreateCode(t, conn, "contest")
	testutil.ConfigureQVote(t, conn, codeID, models.ConfigureQVoteRequest{MaxSelectionsPerVoter: 2})
	testutil.SetPhase(t, conn, codeID, models.PhaseVoting)
	candidateID := testutil.CreateCandidate(t, conn, codeID, "alpha")

	lg := ledger.NewLedger(conn, "sess-secret", nil, nil)
	return conn, NewVoteHandler(conn, lg), testutil.ShortID(t, conn, codeID), candidateID
}

func submitReq(shortID, visitorID string, body interface{}) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/q/"+shortID+"/votes", bytes.NewReader(payload))
	req.SetPathValue("shortId", shortID)
	req.Header.Set("Content-Type", "application/json")
	if visitorID != "" {
		req.Header.Set("X-Visitor-ID", visitorID)
	}
	return req
}

func TestSubmitVote(t *testing.T) {
	conn, handler, shortID, candidateID := setupVoteHandler(t)

	tests := []struct {
		name           string
		shortID        string
		visitorID      string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "valid submission",
			shortID:        shortID,
			visitorID:      "visitor-1",
			body:           models.SubmitVotesRequest{CandidateIDs: []string{candidateID}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing visitor header",
			shortID:        shortID,
			visitorID:      "",
			body:           models.SubmitVotesRequest{CandidateIDs: []string{candidateID}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown short id",
			shortID:        "nope",
			visitorID:      "visitor-2",
			body:           models.SubmitVotesRequest{CandidateIDs: []string{candidateID}},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown candidate",
			shortID:        shortID,
			visitorID:      "visitor-3",
			body:           models.SubmitVotesRequest{CandidateIDs: []string{"ghost"}},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitReq(tt.shortID, tt.visitorID, tt.body)
			w := httptest.NewRecorder()
			handler.Submit(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus == http.StatusCreated {
				var resp models.SubmitVotesResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if resp.VoteID == "" {
					t.Error("Expected non-empty vote_id")
				}
			}
		})
	}

	// Exactly one counted vote from the whole table
	if got := testutil.VoteCount(t, conn, candidateID, models.RoundVoting); got != 1 {
		t.Errorf("vote count = %d, want 1", got)
	}
}

func TestSubmitVote_DuplicateRejected(t *testing.T) {
	conn, handler, shortID, candidateID := setupVoteHandler(t)

	w := httptest.NewRecorder()
	handler.Submit(w, submitReq(shortID, "visitor-1", models.SubmitVotesRequest{CandidateIDs: []string{candidateID}}))
	if w.Code != http.StatusCreated {
		t.Fatalf("first submission failed: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	handler.Submit(w, submitReq(shortID, "visitor-1", models.SubmitVotesRequest{CandidateIDs: []string{candidateID}}))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate, got %d", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Code != models.ErrCodeAlreadyVoted {
		t.Errorf("error code = %q, want %q", resp.Code, models.ErrCodeAlreadyVoted)
	}
	if got := testutil.VoteCount(t, conn, candidateID, models.RoundVoting); got != 1 {
		t.Errorf("duplicate must not change the count: got %d", got)
	}
}

func TestSubmitVote_ClosedPhase(t *testing.T) {
	conn, handler, shortID, candidateID := setupVoteHandler(t)

	var codeID string
	if err := conn.QueryRow(`SELECT id FROM code WHERE short_id = $1`, shortID).Scan(&codeID); err != nil {
		t.Fatal(err)
	}
	testutil.SetPhase(t, conn, codeID, models.PhaseResults)

	w := httptest.NewRecorder()
	handler.Submit(w, submitReq(shortID, "visitor-1", models.SubmitVotesRequest{CandidateIDs: []string{candidateID}}))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 when voting is closed, got %d", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != models.ErrCodeVotingClosed {
		t.Errorf("error code = %q, want %q", resp.Code, models.ErrCodeVotingClosed)
	}
}

func TestResetVote(t *testing.T) {
	conn, handler, shortID, candidateID := setupVoteHandler(t)

	w := httptest.NewRecorder()
	handler.Submit(w, submitReq(shortID, "visitor-1", models.SubmitVotesRequest{CandidateIDs: []string{candidateID}}))
	if w.Code != http.StatusCreated {
		t.Fatalf("submission failed: %d %s", w.Code, w.Body.String())
	}

	body, _ := json.Marshal(models.ResetVoteRequest{})
	req := httptest.NewRequest("POST", "/q/"+shortID+"/votes/reset", bytes.NewReader(body))
	req.SetPathValue("shortId", shortID)
	req.Header.Set("X-Visitor-ID", "visitor-1")
	w = httptest.NewRecorder()
	handler.Reset(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	var resp models.ResetVoteResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.NewChangeCount != 1 {
		t.Errorf("response = %+v, want success with change count 1", resp)
	}
	if got := testutil.VoteCount(t, conn, candidateID, models.RoundVoting); got != 0 {
		t.Errorf("vote count after reset = %d, want 0", got)
	}
}

func TestMyVote(t *testing.T) {
	_, handler, shortID, candidateID := setupVoteHandler(t)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/q/"+shortID+"/votes", nil)
		req.SetPathValue("shortId", shortID)
		req.Header.Set("X-Visitor-ID", "visitor-1")
		w := httptest.NewRecorder()
		handler.MyVote(w, req)
		return w
	}

	if w := get(); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before voting, got %d", w.Code)
	}

	w := httptest.NewRecorder()
	handler.Submit(w, submitReq(shortID, "visitor-1", models.SubmitVotesRequest{CandidateIDs: []string{candidateID}}))
	if w.Code != http.StatusCreated {
		t.Fatalf("submission failed: %d %s", w.Code, w.Body.String())
	}

	w = get()
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 after voting, got %d. Body: %s", w.Code, w.Body.String())
	}
	var vote models.Vote
	if err := json.NewDecoder(w.Body).Decode(&vote); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(vote.CandidateIDs) != 1 || vote.CandidateIDs[0] != candidateID {
		t.Errorf("candidate ids = %v, want [%s]", vote.CandidateIDs, candidateID)
	}
}
