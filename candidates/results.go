// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package candidates

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ranidpz/qrinfo-sub000/models"
)

// Standings returns the live ranking for one round, optionally scoped to
// a category. Hidden and non-approved candidates never rank.
func (s *Store) Standings(codeID string, round int, categoryID string) ([]models.RankedCandidate, error) {
	f := Filters{
		ApprovedOnly:  true,
		ExcludeHidden: true,
		OrderByVotes:  true,
		Round:         round,
		CategoryID:    categoryID,
	}
	if round == models.RoundFinals {
		f.FinalistsOnly = true
	}
	cands, err := s.List(codeID, f)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.RankedCandidate, 0, len(cands))
	for i, c := range cands {
		votes := c.VoteCount
		if round == models.RoundFinals {
			votes = c.FinalsVoteCount
		}
		ranked = append(ranked, models.RankedCandidate{
			CandidateID: c.ID,
			Name:        c.Name,
			CategoryID:  categoryID,
			Votes:       votes,
			Rank:        i + 1,
		})
	}
	return ranked, nil
}

// ComputeWinners builds the full ranking for a round across all
// categories (or one overall ranking when the code has none).
func (s *Store) ComputeWinners(codeID string, round int, categories []models.Category) ([]models.RankedCandidate, error) {
	if len(categories) == 0 {
		return s.Standings(codeID, round, "")
	}

	var all []models.RankedCandidate
	for _, cat := range categories {
		ranked, err := s.Standings(codeID, round, cat.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to rank category %s: %w", cat.ID, err)
		}
		all = append(all, ranked...)
	}
	return all, nil
}

// SaveSnapshot persists an immutable winner ranking for a round.
func (s *Store) SaveSnapshot(codeID string, round int, rankings []models.RankedCandidate) (*models.ResultSnapshot, error) {
	snapshot := &models.ResultSnapshot{
		ID:         uuid.NewString(),
		CodeID:     codeID,
		Round:      round,
		ComputedAt: time.Now(),
		Rankings:   rankings,
	}

	payload, err := json.Marshal(rankings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO result_snapshot (id, code_id, round, computed_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, snapshot.ID, snapshot.CodeID, snapshot.Round, snapshot.ComputedAt, string(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return snapshot, nil
}

// LatestSnapshot returns the most recent snapshot for a round, or nil if
// none has been computed yet.
func (s *Store) LatestSnapshot(codeID string, round int) (*models.ResultSnapshot, error) {
	snapshot := &models.ResultSnapshot{}
	var payload string
	err := s.db.QueryRow(`
		SELECT id, code_id, round, computed_at, payload
		FROM result_snapshot
		WHERE code_id = $1 AND round = $2
		ORDER BY computed_at DESC
		LIMIT 1
	`, codeID, round).Scan(&snapshot.ID, &snapshot.CodeID, &snapshot.Round, &snapshot.ComputedAt, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &snapshot.Rankings); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}
