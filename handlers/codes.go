// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Ranidpz/qrinfo-sub000/auth"
	"github.com/Ranidpz/qrinfo-sub000/cliparse"
	"github.com/Ranidpz/qrinfo-sub000/ledger"
	"github.com/Ranidpz/qrinfo-sub000/livesync"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/phase"
)

// CodeHandler owns the operator surface: code creation, Q.Vote
// configuration, phase control, and the administrative vote wipe.
type CodeHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	ctrl   *phase.Controller
	ledger *ledger.Ledger
	hub    *livesync.Hub
}

func NewCodeHandler(db *sql.DB, cfg cliparse.Config, ctrl *phase.Controller, lg *ledger.Ledger, hub *livesync.Hub) *CodeHandler {
	return &CodeHandler{db: db, cfg: cfg, ctrl: ctrl, ledger: lg, hub: hub}
}

// CreateCode handles POST /codes
func (h *CodeHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCodeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	codeID := uuid.NewString()
	shortID := auth.GenerateShortID(codeID, h.cfg.ShortIDSalt)
	if _, err := h.db.Exec(`
		INSERT INTO code (id, short_id, title, created_at) VALUES ($1, $2, $3, $4)
	`, codeID, shortID, req.Title, time.Now()); err != nil {
		slog.Error("failed to create code", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "failed to create code")
		return
	}

	slog.Info("code created", "code_id", codeID, "short_id", shortID)
	middleware.JSONResponse(w, http.StatusCreated, models.CreateCodeResponse{
		CodeID:      codeID,
		ShortID:     shortID,
		OperatorKey: auth.GenerateOperatorKey(codeID, h.cfg.OperatorKeySalt),
	})
}

// ConfigureQVote handles PUT /codes/{id}/qvote
func (h *CodeHandler) ConfigureQVote(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	var req models.ConfigureQVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := phase.Configure(h.db, codeID, req); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	cfg, err := phase.LoadConfig(h.db, codeID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	h.hub.PublishConfig(cfg)
	middleware.JSONResponse(w, http.StatusOK, cfg)
}

// AdvancePhase handles POST /codes/{id}/qvote/phase
func (h *CodeHandler) AdvancePhase(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	var req models.AdvancePhaseRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := models.ParsePhase(req.Phase)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.ctrl.AdvancePhase(codeID, target); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.AdvancePhaseResponse{
		Phase:     string(target),
		ChangedAt: time.Now(),
	})
}

// ResetVotes handles POST /codes/{id}/qvote/reset-votes
func (h *CodeHandler) ResetVotes(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	if err := h.ledger.ResetAllVotes(codeID); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}
