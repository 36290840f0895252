// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/Ranidpz/qrinfo-sub000/candidates"
	"github.com/Ranidpz/qrinfo-sub000/livesync"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/phase"
)

// PublicHandler owns the visitor-facing read surface and candidate
// self-registration.
type PublicHandler struct {
	db    *sql.DB
	store *candidates.Store
	hub   *livesync.Hub
}

func NewPublicHandler(db *sql.DB, store *candidates.Store, hub *livesync.Hub) *PublicHandler {
	return &PublicHandler{db: db, store: store, hub: hub}
}

// View handles GET /q/{shortId}: the full config document a viewer
// session boots from.
func (h *PublicHandler) View(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	cfg, err := phase.LoadConfig(h.db, codeID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, cfg)
}

// Candidates handles GET /q/{shortId}/candidates: only approved,
// visible candidates; during finals, finalists only.
func (h *PublicHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	cfg, err := phase.LoadConfig(h.db, codeID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	f := candidates.Filters{
		ApprovedOnly:  true,
		ExcludeHidden: true,
		CategoryID:    r.URL.Query().Get("category_id"),
	}
	if cfg.CurrentPhase == models.PhaseFinals {
		f.FinalistsOnly = true
	}
	cands, err := h.store.List(codeID, f)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, cands)
}

// Register handles POST /q/{shortId}/register: candidate
// self-registration, open only during the registration phase, one per
// visitor. Self-registered candidates await operator approval.
func (h *PublicHandler) Register(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	visitorID := requireVisitor(w, r)
	if visitorID == "" {
		return
	}

	cfg, err := phase.LoadConfig(h.db, codeID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	if cfg.CurrentPhase != models.PhaseRegistration {
		middleware.VoteErrorResponse(w,
			models.NewVoteError(models.ErrCodeVotingClosed, "registration is closed"))
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
	if len(req.Photos) > 2 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "at most two photos")
		return
	}
	for _, field := range cfg.FormFields {
		if field.Required && req.FormData[field.ID] == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "missing required field: "+field.Label)
			return
		}
	}

	cand := &models.Candidate{
		CodeID:      codeID,
		Name:        req.Name,
		FormData:    req.FormData,
		CategoryIDs: req.CategoryIDs,
		Source:      models.SourceSelf,
		VisitorID:   &visitorID,
	}
	for _, p := range req.Photos {
		cand.Photos = append(cand.Photos, models.Photo{URL: p.URL, ThumbnailURL: p.ThumbnailURL})
	}

	if err := h.store.Create(cand); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.RegisterCandidateResponse{CandidateID: cand.ID})
}

// Results handles GET /q/{shortId}/results: the winner snapshot,
// sealed until the results phase.
func (h *PublicHandler) Results(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	cfg, err := phase.LoadConfig(h.db, codeID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	if cfg.CurrentPhase != models.PhaseResults {
		middleware.ErrorResponse(w, http.StatusForbidden, "results are not published yet")
		return
	}

	round := models.RoundVoting
	if cfg.EnableFinals {
		round = models.RoundFinals
	}
	snapshot, err := h.store.LatestSnapshot(codeID, round)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	if snapshot == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "no results computed")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, snapshot)
}
