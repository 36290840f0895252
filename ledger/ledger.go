// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ranidpz/qrinfo-sub000/candidates"
	"github.com/Ranidpz/qrinfo-sub000/db"
	"github.com/Ranidpz/qrinfo-sub000/metrics"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/phase"
)

// Notifier receives the refreshed config document after ledger mutations
// change the cached stats. Satisfied by livesync.Hub; nil disables fan-out.
type Notifier interface {
	PublishConfig(cfg *models.QVoteConfig)
}

// Ledger is the vote ledger: the only writer of vote rows and candidate
// vote counters.
type Ledger struct {
	db            *sql.DB
	sessionSecret string
	notifier      Notifier
	metrics       *metrics.Service
}

func NewLedger(database *sql.DB, sessionSecret string, notifier Notifier, ms *metrics.Service) *Ledger {
	return &Ledger{db: database, sessionSecret: sessionSecret, notifier: notifier, metrics: ms}
}

// Submission is one voter's vote-set for a (round, category).
type Submission struct {
	CodeID       string
	VoterID      string
	CandidateIDs []string
	Round        int
	CategoryID   string
	Phone        string
	SessionToken string
}

// SubmitVotes validates and records a vote-set, incrementing candidate
// counters exactly once per (voter, round, category). Re-submission
// without an intervening reset is rejected and mutates nothing.
// Returns the ledger entry and, when verification is enabled, the
// voter's remaining quota.
func (l *Ledger) SubmitVotes(sub Submission) (*models.Vote, *int, error) {
	vote, remaining, err := l.submitVotes(sub)
	if err != nil {
		if ve, ok := err.(*models.VoteError); ok {
			l.metrics.IncVotesRejected(ve.Code)
		}
		return nil, nil, err
	}
	l.metrics.IncVotesSubmitted()
	l.publishConfig(sub.CodeID)
	return vote, remaining, nil
}

func (l *Ledger) submitVotes(sub Submission) (*models.Vote, *int, error) {
	if len(sub.CandidateIDs) == 0 {
		return nil, nil, models.NewVoteError(models.ErrCodeInvalidSelection, "no candidates selected")
	}
	seen := map[string]bool{}
	for _, id := range sub.CandidateIDs {
		if seen[id] {
			return nil, nil, models.NewVoteError(models.ErrCodeInvalidSelection, "duplicate candidate in selection")
		}
		seen[id] = true
	}

	cfg, err := phase.LoadConfig(l.db, sub.CodeID)
	if err != nil {
		return nil, nil, err
	}
	if sub.Round == 0 {
		sub.Round = cfg.CurrentPhase.Round()
	}
	if sub.Round != models.RoundVoting && sub.Round != models.RoundFinals {
		return nil, nil, models.NewVoteError(models.ErrCodeInvalidSelection, "round must be 1 or 2")
	}
	if len(sub.CandidateIDs) > cfg.MaxSelectionsPerVoter {
		return nil, nil, models.NewVoteError(models.ErrCodeInvalidSelection,
			fmt.Sprintf("at most %d selections allowed", cfg.MaxSelectionsPerVoter))
	}
	if err := checkVotingOpen(cfg, sub.Round); err != nil {
		return nil, nil, err
	}
	if sub.CategoryID != "" && !hasCategory(cfg, sub.CategoryID) {
		return nil, nil, models.NewVoteError(models.ErrCodeInvalidSelection, "unknown category")
	}
	if err := l.validateSelection(cfg, sub); err != nil {
		return nil, nil, err
	}

	// Idempotency first, so a voter who already voted sees ALREADY_VOTED
	// even when their verification quota is exhausted.
	existingID, existingChanges, existingSelections, err := l.findEntry(sub.CodeID, sub.VoterID, sub.Round, sub.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	if existingID != "" && existingSelections > 0 {
		return nil, nil, alreadyVotedError(sub.CategoryID)
	}

	var session *models.VerificationSession
	if cfg.VerificationEnabled() {
		session, err = l.checkSession(cfg, sub)
		if err != nil {
			return nil, nil, err
		}
	}

	now := time.Now()
	tx, err := l.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	vote := &models.Vote{
		CodeID:       sub.CodeID,
		VoterID:      sub.VoterID,
		Round:        sub.Round,
		CategoryID:   sub.CategoryID,
		CandidateIDs: sub.CandidateIDs,
		ChangeCount:  existingChanges,
		SubmittedAt:  now,
	}
	if existingID != "" {
		// Reset tombstone: reuse the row so the change counter survives
		claimed, err := reviveEntry(tx, existingID, sub.Phone, now)
		if err != nil {
			return nil, nil, err
		}
		if !claimed {
			return nil, nil, alreadyVotedError(sub.CategoryID)
		}
		vote.ID = existingID
	} else {
		vote.ID = uuid.NewString()
		_, err = tx.Exec(`
			INSERT INTO vote (id, code_id, voter_id, round, category_id, phone, change_count, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, vote.ID, sub.CodeID, sub.VoterID, sub.Round, sub.CategoryID, nullable(sub.Phone), 0, now)
		if err != nil {
			// Unique constraint is the backstop for racing duplicate submits
			if db.IsUniqueViolation(err) {
				return nil, nil, alreadyVotedError(sub.CategoryID)
			}
			return nil, nil, fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}

	for _, candID := range sub.CandidateIDs {
		if _, err := tx.Exec(`
			INSERT INTO vote_selection (vote_id, candidate_id) VALUES ($1, $2)
		`, vote.ID, candID); err != nil {
			return nil, nil, fmt.Errorf("failed to insert selection: %w", err)
		}
	}

	if err := candidates.IncrementVoteCounts(tx, sub.CandidateIDs, sub.Round); err != nil {
		return nil, nil, err
	}
	if err := candidates.AdjustVoteStats(tx, sub.CodeID, sub.Round, len(sub.CandidateIDs), 1); err != nil {
		return nil, nil, err
	}

	var remaining *int
	if session != nil {
		// Conditional decrement: quota is contended only by this phone's
		// own concurrent requests, so decrement-if-positive suffices.
		res, err := tx.Exec(`
			UPDATE verification_session SET votes_remaining = votes_remaining - 1
			WHERE id = $1 AND votes_remaining > 0
		`, session.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to consume vote quota: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, nil, models.NewVoteError(models.ErrCodeVoteLimitReached, "vote limit reached for this phone")
		}
		r := session.VotesRemaining - 1
		remaining = &r
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	slog.Info("vote recorded", "code_id", sub.CodeID, "round", sub.Round,
		"category_id", sub.CategoryID, "selections", len(sub.CandidateIDs))
	return vote, remaining, nil
}

// ResetVote removes the voter's active vote-set for (round, category),
// decrementing exactly what was counted, and permits a re-submission.
// Returns the new change count.
func (l *Ledger) ResetVote(codeID, voterID string, round int, categoryID string) (int, error) {
	cfg, err := phase.LoadConfig(l.db, codeID)
	if err != nil {
		return 0, err
	}
	if cfg.CurrentPhase == models.PhaseResults {
		return 0, models.NewVoteError(models.ErrCodeVotingClosed, "voting is closed")
	}

	voteID, changes, selections, err := l.findEntry(codeID, voterID, round, categoryID)
	if err != nil {
		return 0, err
	}
	if voteID == "" || selections == 0 {
		return 0, models.NewVoteError(models.ErrCodeNotFound, "no active vote to reset")
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	candidateIDs, phone, err := entryDetails(tx, voteID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`DELETE FROM vote_selection WHERE vote_id = $1`, voteID); err != nil {
		return 0, fmt.Errorf("failed to clear selections: %w", err)
	}
	if err := candidates.DecrementVoteCounts(tx, candidateIDs, round); err != nil {
		return 0, err
	}
	if err := candidates.AdjustVoteStats(tx, codeID, round, -len(candidateIDs), -1); err != nil {
		return 0, err
	}

	newChanges := changes + 1
	if _, err := tx.Exec(`
		UPDATE vote SET change_count = $1 WHERE id = $2
	`, newChanges, voteID); err != nil {
		return 0, fmt.Errorf("failed to bump change count: %w", err)
	}

	// Hand the quota back so change-your-vote works with max_votes=1
	if phone != "" {
		if _, err := tx.Exec(`
			UPDATE verification_session
			SET votes_remaining = CASE WHEN votes_remaining < max_votes THEN votes_remaining + 1 ELSE max_votes END
			WHERE code_id = $1 AND phone = $2
		`, codeID, phone); err != nil {
			return 0, fmt.Errorf("failed to restore vote quota: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reset: %w", err)
	}

	slog.Info("vote reset", "code_id", codeID, "round", round, "category_id", categoryID, "change_count", newChanges)
	l.metrics.IncVotesReset()
	l.publishConfig(codeID)
	return newChanges, nil
}

// ResetAllVotes wipes the ledger for a code: all entries, all candidate
// counters, all verification sessions, and the cached stats. The zeroed
// stats are the wipe signal live viewer sessions react to.
func (l *Ledger) ResetAllVotes(codeID string) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM vote_selection WHERE vote_id IN (SELECT id FROM vote WHERE code_id = $1)
	`, codeID); err != nil {
		return fmt.Errorf("failed to wipe selections: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM vote WHERE code_id = $1`, codeID); err != nil {
		return fmt.Errorf("failed to wipe ledger: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE candidate SET vote_count = 0, finals_vote_count = 0 WHERE code_id = $1
	`, codeID); err != nil {
		return fmt.Errorf("failed to zero counters: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM verification_session WHERE code_id = $1`, codeID); err != nil {
		return fmt.Errorf("failed to wipe verification sessions: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE qvote_config
		SET total_voters = 0, total_votes = 0, finals_voters = 0, finals_votes = 0, stats_updated_at = $1
		WHERE code_id = $2
	`, time.Now(), codeID); err != nil {
		return fmt.Errorf("failed to zero stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe: %w", err)
	}

	slog.Info("all votes wiped", "code_id", codeID)
	l.publishConfig(codeID)
	return nil
}

// publishConfig fans the refreshed config document out after a ledger
// mutation changed the cached stats.
func (l *Ledger) publishConfig(codeID string) {
	if l.notifier == nil {
		return
	}
	cfg, err := phase.LoadConfig(l.db, codeID)
	if err != nil {
		slog.Warn("failed to reload config for fan-out", "code_id", codeID, "error", err)
		return
	}
	l.notifier.PublishConfig(cfg)
}

// HasVoted reports whether an active vote-set exists for the identity.
func (l *Ledger) HasVoted(codeID, voterID string, round int, categoryID string) (bool, error) {
	id, _, selections, err := l.findEntry(codeID, voterID, round, categoryID)
	if err != nil {
		return false, err
	}
	return id != "" && selections > 0, nil
}

// VotedCategories returns the category ids the voter has active votes in
// for a round ("" marks an uncategorized vote).
func (l *Ledger) VotedCategories(codeID, voterID string, round int) ([]string, error) {
	rows, err := l.db.Query(`
		SELECT v.category_id FROM vote v
		WHERE v.code_id = $1 AND v.voter_id = $2 AND v.round = $3
		  AND EXISTS (SELECT 1 FROM vote_selection vs WHERE vs.vote_id = v.id)
	`, codeID, voterID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to query voted categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

// GetVote loads the voter's active entry for (round, category), or nil.
func (l *Ledger) GetVote(codeID, voterID string, round int, categoryID string) (*models.Vote, error) {
	vote := &models.Vote{}
	var phone sql.NullString
	err := l.db.QueryRow(`
		SELECT id, code_id, voter_id, round, category_id, phone, change_count, submitted_at
		FROM vote
		WHERE code_id = $1 AND voter_id = $2 AND round = $3 AND category_id = $4
	`, codeID, voterID, round, categoryID).Scan(&vote.ID, &vote.CodeID, &vote.VoterID,
		&vote.Round, &vote.CategoryID, &phone, &vote.ChangeCount, &vote.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vote: %w", err)
	}

	rows, err := l.db.Query(`SELECT candidate_id FROM vote_selection WHERE vote_id = $1`, vote.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var candID string
		if err := rows.Scan(&candID); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		vote.CandidateIDs = append(vote.CandidateIDs, candID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(vote.CandidateIDs) == 0 {
		// Reset tombstone, not an active vote
		return nil, nil
	}
	return vote, nil
}
