// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/phase"
	"github.com/Ranidpz/qrinfo-sub000/verify"
)

// VerificationHandler owns the OTP flow.
type VerificationHandler struct {
	db   *sql.DB
	gate *verify.Gate
}

func NewVerificationHandler(db *sql.DB, gate *verify.Gate) *VerificationHandler {
	return &VerificationHandler{db: db, gate: gate}
}

// SendCode handles POST /q/{shortId}/verification/send
func (h *VerificationHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	var req models.SendCodeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := phase.LoadConfig(h.db, codeID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	resp, err := h.gate.SendCode(r.Context(), cfg, req.Phone, req.Locale)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// VerifyCode handles POST /q/{shortId}/verification/verify
func (h *VerificationHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	codeID, err := resolveShortID(h.db, r.PathValue("shortId"))
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	var req models.VerifyCodeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := phase.LoadConfig(h.db, codeID)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}

	resp, err := h.gate.VerifyCode(cfg, req.Phone, req.Code)
	if err != nil {
		middleware.VoteErrorResponse(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
