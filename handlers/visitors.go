// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/Ranidpz/qrinfo-sub000/auth"
	"github.com/Ranidpz/qrinfo-sub000/cliparse"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// VisitorHandler owns the anonymous device registry. A visitor id is the
// durable identity votes and self-registrations hang off.
type VisitorHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVisitorHandler(db *sql.DB, cfg cliparse.Config) *VisitorHandler {
	return &VisitorHandler{db: db, cfg: cfg}
}

// Register handles POST /visitors/register. Idempotent: a request that
// already carries a known X-Visitor-ID just refreshes last_seen_at.
func (h *VisitorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterVisitorRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	platform := req.Platform
	if platform == "" {
		platform = models.PlatformWeb
	}
	switch platform {
	case models.PlatformIOS, models.PlatformAndroid, models.PlatformWeb, models.PlatformKiosk:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown platform")
		return
	}

	now := time.Now()
	if existing := r.Header.Get("X-Visitor-ID"); existing != "" {
		res, err := h.db.Exec(`
			UPDATE visitor SET last_seen_at = $1 WHERE id = $2
		`, now, existing)
		if err != nil {
			middleware.VoteErrorResponse(w, err)
			return
		}
		if n, _ := res.RowsAffected(); n > 0 {
			middleware.JSONResponse(w, http.StatusOK, models.RegisterVisitorResponse{
				VisitorID: existing,
				IsNew:     false,
			})
			return
		}
		// Unknown id presented: fall through and mint a fresh one
	}

	visitorID, err := auth.GenerateVoterID()
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	kiosk := req.Kiosk || platform == models.PlatformKiosk
	// Store only a salted hash of the client IP, for abuse tracing
	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.SessionSecret)
	if _, err := h.db.Exec(`
		INSERT INTO visitor (id, platform, kiosk, ip_hash, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, visitorID, platform, kiosk, ipHash, now, now); err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.RegisterVisitorResponse{
		VisitorID: visitorID,
		IsNew:     true,
	})
}

// Me handles GET /visitors/me
func (h *VisitorHandler) Me(w http.ResponseWriter, r *http.Request) {
	visitorID := requireVisitor(w, r)
	if visitorID == "" {
		return
	}

	info := models.VisitorInfo{}
	err := h.db.QueryRow(`
		SELECT id, platform, kiosk, created_at, last_seen_at FROM visitor WHERE id = $1
	`, visitorID).Scan(&info.ID, &info.Platform, &info.Kiosk, &info.CreatedAt, &info.LastSeenAt)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "unknown visitor")
		return
	}
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, info)
}
