// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Ranidpz/qrinfo-sub000/auth"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// checkVotingOpen gates submissions on the current phase. The calculating
// phase is the server-side grace window: viewers that have not yet seen
// the close may still land their in-flight submission.
func checkVotingOpen(cfg *models.QVoteConfig, round int) error {
	switch cfg.CurrentPhase {
	case models.PhaseVoting:
		if round != models.RoundVoting {
			return models.NewVoteError(models.ErrCodeVotingClosed, "finals voting has not started")
		}
		return nil
	case models.PhaseFinals:
		if round != models.RoundFinals {
			return models.NewVoteError(models.ErrCodeVotingClosed, "first-round voting has ended")
		}
		return nil
	case models.PhaseCalculating:
		// Grace window accepts the round that just closed
		closing := models.RoundVoting
		if cfg.EnableFinals {
			closing = models.RoundFinals
		}
		if round != closing {
			return models.NewVoteError(models.ErrCodeVotingClosed, "voting is closed")
		}
		return nil
	default:
		return models.NewVoteError(models.ErrCodeVotingClosed, "voting is closed")
	}
}

func hasCategory(cfg *models.QVoteConfig, categoryID string) bool {
	for _, c := range cfg.Categories {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}

// validateSelection checks every selected candidate is real, approved,
// visible, in the right category, and (for finals) a finalist.
func (l *Ledger) validateSelection(cfg *models.QVoteConfig, sub Submission) error {
	for _, candID := range sub.CandidateIDs {
		var codeID string
		var approved, finalist, hidden bool
		err := l.db.QueryRow(`
			SELECT code_id, is_approved, is_finalist, is_hidden FROM candidate WHERE id = $1
		`, candID).Scan(&codeID, &approved, &finalist, &hidden)
		if err == sql.ErrNoRows {
			return models.NewVoteError(models.ErrCodeInvalidSelection, "unknown candidate")
		}
		if err != nil {
			return fmt.Errorf("failed to check candidate: %w", err)
		}
		if codeID != sub.CodeID || !approved || hidden {
			return models.NewVoteError(models.ErrCodeInvalidSelection, "candidate is not votable")
		}
		if sub.Round == models.RoundFinals && !finalist {
			return models.NewVoteError(models.ErrCodeInvalidSelection, "candidate is not a finalist")
		}
		if sub.CategoryID != "" {
			var inCategory bool
			if err := l.db.QueryRow(`
				SELECT EXISTS(SELECT 1 FROM candidate_category WHERE candidate_id = $1 AND category_id = $2)
			`, candID, sub.CategoryID).Scan(&inCategory); err != nil {
				return fmt.Errorf("failed to check candidate category: %w", err)
			}
			if !inCategory {
				return models.NewVoteError(models.ErrCodeInvalidSelection, "candidate is not in this category")
			}
		}
	}
	return nil
}

// findEntry locates the ledger row for the identity. A row with zero
// selections is a reset tombstone kept for its change counter.
func (l *Ledger) findEntry(codeID, voterID string, round int, categoryID string) (id string, changeCount, selections int, err error) {
	err = l.db.QueryRow(`
		SELECT v.id, v.change_count,
		       (SELECT COUNT(*) FROM vote_selection vs WHERE vs.vote_id = v.id)
		FROM vote v
		WHERE v.code_id = $1 AND v.voter_id = $2 AND v.round = $3 AND v.category_id = $4
	`, codeID, voterID, round, categoryID).Scan(&id, &changeCount, &selections)
	if err == sql.ErrNoRows {
		return "", 0, 0, nil
	}
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to query ledger entry: %w", err)
	}
	return id, changeCount, selections, nil
}

// checkSession enforces the verification gate: a valid session token,
// a live session row, and a phone that matches the submission. The row
// is authoritative; the token only names it.
func (l *Ledger) checkSession(cfg *models.QVoteConfig, sub Submission) (*models.VerificationSession, error) {
	if sub.SessionToken == "" {
		return nil, models.NewVoteError(models.ErrCodeVerificationRequired, "phone verification is required")
	}
	claims, err := auth.ParseSessionToken(sub.SessionToken, l.sessionSecret)
	if err == auth.ErrSessionTokenExpired {
		return nil, models.NewVoteError(models.ErrCodeSessionExpired, "verification session expired")
	}
	if err != nil {
		return nil, models.NewVoteError(models.ErrCodeInvalidSession, "invalid verification session")
	}
	if claims.CodeID != sub.CodeID {
		return nil, models.NewVoteError(models.ErrCodeInvalidSession, "session belongs to a different code")
	}
	if sub.Phone != "" && claims.Phone != sub.Phone {
		return nil, models.NewVoteError(models.ErrCodeInvalidSession, "session belongs to a different phone")
	}

	session := &models.VerificationSession{}
	err = l.db.QueryRow(`
		SELECT id, code_id, phone, votes_remaining, max_votes, created_at, expires_at
		FROM verification_session WHERE id = $1
	`, claims.SessionID).Scan(&session.ID, &session.CodeID, &session.Phone,
		&session.VotesRemaining, &session.MaxVotes, &session.CreatedAt, &session.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, models.NewVoteError(models.ErrCodeNotVerified, "verification session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query verification session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, models.NewVoteError(models.ErrCodeSessionExpired, "verification session expired")
	}
	if session.VotesRemaining <= 0 {
		return nil, models.NewVoteError(models.ErrCodeVoteLimitReached, "vote limit reached for this phone")
	}
	return session, nil
}

func alreadyVotedError(categoryID string) *models.VoteError {
	if categoryID != "" {
		return models.NewVoteError(models.ErrCodeAlreadyVotedCategory, "already voted in this category")
	}
	return models.NewVoteError(models.ErrCodeAlreadyVoted, "already voted in this round")
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// reviveEntry claims a reset tombstone for a resubmission. The NOT
// EXISTS guard is the backstop for two resubmits racing past the
// idempotency read: whichever commits first wins the row, the other
// sees no rows affected and reports a duplicate instead of merging
// its selections in.
func reviveEntry(tx *sql.Tx, voteID, phone string, now time.Time) (bool, error) {
	res, err := tx.Exec(`
		UPDATE vote SET phone = $1, submitted_at = $2
		WHERE id = $3 AND NOT EXISTS (SELECT 1 FROM vote_selection WHERE vote_id = $3)
	`, nullable(phone), now, voteID)
	if err != nil {
		return false, fmt.Errorf("failed to revive ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to revive ledger entry: %w", err)
	}
	return n > 0, nil
}

// entryDetails loads the selections and phone of a ledger row inside the
// reset transaction.
func entryDetails(tx *sql.Tx, voteID string) ([]string, string, error) {
	var phone sql.NullString
	if err := tx.QueryRow(`SELECT phone FROM vote WHERE id = $1`, voteID).Scan(&phone); err != nil {
		return nil, "", fmt.Errorf("failed to load ledger entry: %w", err)
	}

	rows, err := tx.Query(`SELECT candidate_id FROM vote_selection WHERE vote_id = $1`, voteID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load selections: %w", err)
	}
	defer rows.Close()
	var candidateIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", fmt.Errorf("failed to scan selection: %w", err)
		}
		candidateIDs = append(candidateIDs, id)
	}
	return candidateIDs, phone.String, rows.Err()
}
