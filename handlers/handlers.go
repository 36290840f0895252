// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/Ranidpz/qrinfo-sub000/auth"
	"github.com/Ranidpz/qrinfo-sub000/middleware"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// resolveShortID maps the short id a QR encodes to the code's id.
func resolveShortID(db *sql.DB, shortID string) (string, error) {
	var codeID string
	err := db.QueryRow(`SELECT id FROM code WHERE short_id = $1`, shortID).Scan(&codeID)
	if err == sql.ErrNoRows {
		return "", models.NewVoteError(models.ErrCodeNotFound, "unknown code")
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve short id: %w", err)
	}
	return codeID, nil
}

// requireOperator validates the X-Operator-Key header against the code.
// Writes the error response itself; callers bail on false.
func requireOperator(w http.ResponseWriter, r *http.Request, codeID, salt string) bool {
	key := r.Header.Get("X-Operator-Key")
	if key == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "missing operator key")
		return false
	}
	if err := auth.ValidateOperatorKey(codeID, key, salt); err != nil {
		middleware.ErrorResponse(w, http.StatusForbidden, "invalid operator key")
		return false
	}
	return true
}

// requireVisitor reads the anonymous device identity header.
// Writes the error response itself; callers bail on empty.
func requireVisitor(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get("X-Visitor-ID")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "missing visitor id")
	}
	return id
}
