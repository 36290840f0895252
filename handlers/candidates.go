// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/Ranidpz/qrinfo-sub000/candidates"
	"github.com/Ranidpz/qrinfo-sub000/cliparse"
	"github.com/Ranidpz/qrinfo-sub000/livesync"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// CandidateHandler owns the operator candidate surface.
type CandidateHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	store *candidates.Store
	hub   *livesync.Hub
}

func NewCandidateHandler(db *sql.DB, cfg cliparse.Config, store *candidates.Store, hub *livesync.Hub) *CandidateHandler {
	return &CandidateHandler{db: db, cfg: cfg, store: store, hub: hub}
}

// broadcast pushes the fresh candidate list to live viewers.
func (h *CandidateHandler) broadcast(codeID string) {
	cands, err := h.store.List(codeID, candidates.Filters{ApprovedOnly: true, ExcludeHidden: true})
	if err != nil {
		return
	}
	h.hub.PublishCandidates(codeID, cands)
}

// Create handles POST /codes/{id}/candidates
func (h *CandidateHandler) Create(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	var req models.RegisterCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	cand := &models.Candidate{
		CodeID:      codeID,
		Name:        req.Name,
		FormData:    req.FormData,
		CategoryIDs: req.CategoryIDs,
		Source:      models.SourceOperator,
		// Operator-created candidates are approved up front
		IsApproved: true,
	}
	for _, p := range req.Photos {
		cand.Photos = append(cand.Photos, models.Photo{URL: p.URL, ThumbnailURL: p.ThumbnailURL})
	}

	if err := h.store.Create(cand); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	h.broadcast(codeID)
	middleware.JSONResponse(w, http.StatusCreated, models.RegisterCandidateResponse{CandidateID: cand.ID})
}

// List handles GET /codes/{id}/candidates (unfiltered, operator view)
func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	cands, err := h.store.List(codeID, candidates.Filters{CategoryID: r.URL.Query().Get("category_id")})
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, cands)
}

// Update handles PUT /codes/{id}/candidates/{cid}
func (h *CandidateHandler) Update(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	var req models.UpdateCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.Update(r.PathValue("cid"), req); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	h.broadcast(codeID)
	cand, err := h.store.GetByID(r.PathValue("cid"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, cand)
}

// Delete handles DELETE /codes/{id}/candidates/{cid}
func (h *CandidateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	if err := h.store.Delete(r.PathValue("cid")); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	h.broadcast(codeID)
	middleware.JSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// BatchStatus handles POST /codes/{id}/candidates/batch-status
func (h *CandidateHandler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	var req models.BatchStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.CandidateIDs) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "candidate_ids is required")
		return
	}

	updated, failed := h.store.BatchUpdateStatus(req.CandidateIDs, req)
	h.broadcast(codeID)
	middleware.JSONResponse(w, http.StatusOK, models.BatchStatusResponse{Updated: updated, Failed: failed})
}

// Standings handles GET /codes/{id}/standings (live operator dashboard)
func (h *CandidateHandler) Standings(w http.ResponseWriter, r *http.Request) {
	codeID := r.PathValue("id")
	if !requireOperator(w, r, codeID, h.cfg.OperatorKeySalt) {
		return
	}

	round := models.RoundVoting
	if r.URL.Query().Get("round") == "2" {
		round = models.RoundFinals
	}
	standings, err := h.store.Standings(codeID, round, r.URL.Query().Get("category_id"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, standings)
}
