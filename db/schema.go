// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL is restricted to the dialect shared by postgres and sqlite.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure
// from either supported driver. Used to turn races on idempotency keys
// into coded rejections instead of 500s.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}

const schema = `
-- Codes (the shareable entity a QR points at)
CREATE TABLE IF NOT EXISTS code (
    id TEXT PRIMARY KEY,
    short_id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_code_short_id ON code(short_id);

-- Q.Vote configuration + live state, one row per code.
-- The stats columns are a denormalized cache over candidate/vote.
CREATE TABLE IF NOT EXISTS qvote_config (
    code_id TEXT PRIMARY KEY REFERENCES code(id) ON DELETE CASCADE,
    current_phase TEXT NOT NULL DEFAULT 'registration'
        CHECK (current_phase IN ('registration', 'preparation', 'voting', 'finals', 'calculating', 'results')),
    max_selections INTEGER NOT NULL DEFAULT 1 CHECK (max_selections > 0),
    enable_finals BOOLEAN NOT NULL DEFAULT FALSE,
    verification_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    max_votes_per_phone INTEGER NOT NULL DEFAULT 1,
    max_sends_per_phone INTEGER NOT NULL DEFAULT 3,
    attempt_limit INTEGER NOT NULL DEFAULT 5,
    tablet_mode BOOLEAN NOT NULL DEFAULT FALSE,
    tablet_reset_delay INTEGER NOT NULL DEFAULT 5,
    total_candidates INTEGER NOT NULL DEFAULT 0,
    approved_candidates INTEGER NOT NULL DEFAULT 0,
    total_voters INTEGER NOT NULL DEFAULT 0,
    total_votes INTEGER NOT NULL DEFAULT 0,
    finals_voters INTEGER NOT NULL DEFAULT 0,
    finals_votes INTEGER NOT NULL DEFAULT 0,
    stats_updated_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Scheduled phase transitions, one row per (code, phase)
CREATE TABLE IF NOT EXISTS qvote_schedule (
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    phase TEXT NOT NULL,
    scheduled_at TIMESTAMP NOT NULL,
    PRIMARY KEY (code_id, phase)
);

-- Voting categories
CREATE TABLE IF NOT EXISTS qvote_category (
    id TEXT PRIMARY KEY,
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    display_order INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_qvote_category_code_id ON qvote_category(code_id);

-- Registration form fields
CREATE TABLE IF NOT EXISTS qvote_form_field (
    id TEXT PRIMARY KEY,
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    field_type TEXT NOT NULL DEFAULT 'text',
    required BOOLEAN NOT NULL DEFAULT FALSE,
    display_order INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_qvote_form_field_code_id ON qvote_form_field(code_id);

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    is_approved BOOLEAN NOT NULL DEFAULT FALSE,
    is_finalist BOOLEAN NOT NULL DEFAULT FALSE,
    is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
    vote_count INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
    finals_vote_count INTEGER NOT NULL DEFAULT 0 CHECK (finals_vote_count >= 0),
    source TEXT NOT NULL DEFAULT 'operator' CHECK (source IN ('self', 'operator')),
    visitor_id TEXT,
    display_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_candidate_code_id ON candidate(code_id);

-- One self-registered candidate per (code, visitor)
CREATE UNIQUE INDEX IF NOT EXISTS idx_candidate_self_visitor
    ON candidate(code_id, visitor_id) WHERE source = 'self';

-- Candidate photos (1-2 per candidate; 2 enables boomerang presentation)
CREATE TABLE IF NOT EXISTS candidate_photo (
    id TEXT PRIMARY KEY,
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    thumbnail_url TEXT,
    photo_order INTEGER NOT NULL DEFAULT 0,
    uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_candidate_photo_candidate ON candidate_photo(candidate_id);

-- Candidate -> category links
CREATE TABLE IF NOT EXISTS candidate_category (
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    category_id TEXT NOT NULL REFERENCES qvote_category(id) ON DELETE CASCADE,
    PRIMARY KEY (candidate_id, category_id)
);

-- Candidate form answers
CREATE TABLE IF NOT EXISTS candidate_form_value (
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE CASCADE,
    field_id TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (candidate_id, field_id)
);

-- Vote ledger. category_id is '' for uncategorized votes so the UNIQUE
-- constraint covers them (SQL treats NULLs as distinct).
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL,
    round INTEGER NOT NULL CHECK (round IN (1, 2)),
    category_id TEXT NOT NULL DEFAULT '',
    phone TEXT,
    change_count INTEGER NOT NULL DEFAULT 0,
    submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (code_id, voter_id, round, category_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_code_id ON vote(code_id);

-- Chosen candidates per ledger entry
CREATE TABLE IF NOT EXISTS vote_selection (
    vote_id TEXT NOT NULL REFERENCES vote(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL,
    PRIMARY KEY (vote_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_selection_candidate ON vote_selection(candidate_id);

-- Verification sessions (issued after successful OTP verification)
CREATE TABLE IF NOT EXISTS verification_session (
    id TEXT PRIMARY KEY,
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    phone TEXT NOT NULL,
    votes_remaining INTEGER NOT NULL CHECK (votes_remaining >= 0),
    max_votes INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at TIMESTAMP NOT NULL,
    UNIQUE (code_id, phone)
);

-- Outstanding OTP challenges, one per (code, phone)
CREATE TABLE IF NOT EXISTS verification_code (
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    phone TEXT NOT NULL,
    code_hash TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    attempts_remaining INTEGER NOT NULL,
    blocked_until TIMESTAMP,
    last_sent_at TIMESTAMP NOT NULL,
    send_count INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (code_id, phone)
);

-- Registered visitor devices
CREATE TABLE IF NOT EXISTS visitor (
    id TEXT PRIMARY KEY,
    platform TEXT NOT NULL DEFAULT 'web'
        CHECK (platform IN ('ios', 'android', 'web', 'kiosk')),
    kiosk BOOLEAN NOT NULL DEFAULT FALSE,
    ip_hash TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Winner snapshots, computed when voting closes
CREATE TABLE IF NOT EXISTS result_snapshot (
    id TEXT PRIMARY KEY,
    code_id TEXT NOT NULL REFERENCES code(id) ON DELETE CASCADE,
    round INTEGER NOT NULL,
    computed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_result_snapshot_code_id ON result_snapshot(code_id);
`
