// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/Ranidpz/qrinfo-sub000/ledger"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// VoteHandler owns the visitor voting surface.
type VoteHandler struct {
	db     *sql.DB
	ledger *ledger.Ledger
}

func NewVoteHandler(db *sql.DB, lg *ledger.Ledger) *VoteHandler {
	return &VoteHandler{db: db, ledger: lg}
}

// Submit handles POST /q/{shortId}/votes
func (h *VoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	voterID := requireVisitor(w, r)
	if voterID == "" {
		return
	}

	var req models.SubmitVotesRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	vote, remaining, err := h.ledger.SubmitVotes(ledger.Submission{
		CodeID:       codeID,
		VoterID:      voterID,
		CandidateIDs: req.CandidateIDs,
		Round:        req.Round,
		CategoryID:   req.CategoryID,
		Phone:        req.Phone,
		SessionToken: req.SessionToken,
	})
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.SubmitVotesResponse{
		VoteID:         vote.ID,
		VotesRemaining: remaining,
	})
}

// Reset handles POST /q/{shortId}/votes/reset
func (h *VoteHandler) Reset(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	voterID := requireVisitor(w, r)
	if voterID == "" {
		return
	}

	var req models.ResetVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Round == 0 {
		req.Round = models.RoundVoting
	}

	newCount, err := h.ledger.ResetVote(codeID, voterID, req.Round, req.CategoryID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ResetVoteResponse{
		Success:        true,
		NewChangeCount: newCount,
	})
}

// MyVote handles GET /q/{shortId}/votes: the caller's active entry for
// a round/category, 404 when none.
func (h *VoteHandler) MyVote(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	voterID := requireVisitor(w, r)
	if voterID == "" {
		return
	}

	round := models.RoundVoting
	if r.URL.Query().Get("round") == "2" {
		round = models.RoundFinals
	}
	vote, err := h.ledger.GetVote(codeID, voterID, round, r.URL.Query().Get("category_id"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	if vote == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "no active vote")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, vote)
}
