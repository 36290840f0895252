// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil provisions throwaway databases and seed data for
// tests. Tests run on in-memory sqlite with the full schema applied, so
// no external services are needed.
package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Ranidpz/qrinfo-sub000/db"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/phase"
)

var dbSeq atomic.Int64

// NewTestDB opens a fresh in-memory database with the schema applied.
// Each call gets its own database, so parallel tests do not interfere.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// A single connection keeps the in-memory database alive and avoids
	// sqlite write contention
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// CreateCode inserts a code row and returns its id.
func CreateCode(t *testing.T, conn *sql.DB, title string) string {
	t.Helper()

	codeID := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO code (id, short_id, title, created_at) VALUES ($1, $2, $3, $4)
	`, codeID, "s-"+codeID[:8], title, time.Now())
	if err != nil {
		t.Fatalf("failed to create code: %v", err)
	}
	return codeID
}

// ShortID returns the short id of a code created via CreateCode.
func ShortID(t *testing.T, conn *sql.DB, codeID string) string {
	t.Helper()

	var shortID string
	if err := conn.QueryRow(`SELECT short_id FROM code WHERE id = $1`, codeID).Scan(&shortID); err != nil {
		t.Fatalf("failed to load short id: %v", err)
	}
	return shortID
}

// ConfigureQVote writes a Q.Vote configuration for the code.
func ConfigureQVote(t *testing.T, conn *sql.DB, codeID string, req models.ConfigureQVoteRequest) {
	t.Helper()

	if req.MaxSelectionsPerVoter == 0 {
		req.MaxSelectionsPerVoter = 1
	}
	if err := phase.Configure(conn, codeID, req); err != nil {
		t.Fatalf("failed to configure qvote: %v", err)
	}
}

// SetPhase forces the current phase directly, bypassing controller side
// effects. Tests that care about entry side effects use the controller.
func SetPhase(t *testing.T, conn *sql.DB, codeID string, p models.Phase) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE qvote_config SET current_phase = $1 WHERE code_id = $2`, string(p), codeID); err != nil {
		t.Fatalf("failed to set phase: %v", err)
	}
}

// CreateCandidate inserts an approved, visible candidate and returns its id.
func CreateCandidate(t *testing.T, conn *sql.DB, codeID, name string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO candidate (id, code_id, name, is_approved, source, created_at)
		VALUES ($1, $2, $3, TRUE, 'operator', $4)
	`, id, codeID, name, time.Now())
	if err != nil {
		t.Fatalf("failed to create candidate: %v", err)
	}
	if _, err := conn.Exec(`
		UPDATE qvote_config SET total_candidates = total_candidates + 1,
		       approved_candidates = approved_candidates + 1
		WHERE code_id = $1
	`, codeID); err != nil {
		t.Fatalf("failed to bump candidate stats: %v", err)
	}
	return id
}

// LinkCategory attaches a candidate to a category.
func LinkCategory(t *testing.T, conn *sql.DB, candidateID, categoryID string) {
	t.Helper()

	if _, err := conn.Exec(`
		INSERT INTO candidate_category (candidate_id, category_id) VALUES ($1, $2)
	`, candidateID, categoryID); err != nil {
		t.Fatalf("failed to link category: %v", err)
	}
}

// VoteCount reads a candidate's counter for a round.
func VoteCount(t *testing.T, conn *sql.DB, candidateID string, round int) int {
	t.Helper()

	col := "vote_count"
	if round == models.RoundFinals {
		col = "finals_vote_count"
	}
	var n int
	if err := conn.QueryRow(`SELECT `+col+` FROM candidate WHERE id = $1`, candidateID).Scan(&n); err != nil {
		t.Fatalf("failed to read vote count: %v", err)
	}
	return n
}
