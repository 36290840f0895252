// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package candidates

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ranidpz/qrinfo-sub000/db"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// Store is the candidate store for a single database.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Filters are independent and composable query options for List.
type Filters struct {
	ApprovedOnly  bool
	FinalistsOnly bool
	ExcludeHidden bool
	OrderByVotes  bool
	// Round selects which counter OrderByVotes sorts on (defaults to round 1).
	Round int
	// CategoryID restricts to candidates linked to the category.
	CategoryID string
}

// Execer is the subset of *sql.DB / *sql.Tx the counter mutations need,
// so the ledger can run them inside its own transaction.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Create inserts a candidate with its photos, category links, and form
// values. For self-registrations it enforces one candidate per
// (code, visitor): a duplicate surfaces as ALREADY_REGISTERED.
func (s *Store) Create(cand *models.Candidate) error {
	if cand.Source == models.SourceSelf {
		if cand.VisitorID == nil || *cand.VisitorID == "" {
			return models.NewVoteError(models.ErrCodeInvalidSelection, "self-registration requires a visitor identity")
		}
		var exists bool
		err := s.db.QueryRow(`
			SELECT EXISTS(
				SELECT 1 FROM candidate
				WHERE code_id = $1 AND visitor_id = $2 AND source = 'self'
			)
		`, cand.CodeID, *cand.VisitorID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check existing registration: %w", err)
		}
		if exists {
			return models.NewVoteError(models.ErrCodeAlreadyRegistered, "already registered for this code")
		}
	}

	if cand.ID == "" {
		cand.ID = uuid.NewString()
	}
	if cand.CreatedAt.IsZero() {
		cand.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO candidate (id, code_id, name, is_approved, is_finalist, is_hidden, source, visitor_id, display_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, cand.ID, cand.CodeID, cand.Name, cand.IsApproved, cand.IsFinalist, cand.IsHidden,
		cand.Source, cand.VisitorID, cand.DisplayOrder, cand.CreatedAt)
	if err != nil {
		// The partial unique index is the backstop for racing self-registrations
		if db.IsUniqueViolation(err) {
			return models.NewVoteError(models.ErrCodeAlreadyRegistered, "already registered for this code")
		}
		return fmt.Errorf("failed to insert candidate: %w", err)
	}

	for i, p := range cand.Photos {
		photoID := p.ID
		if photoID == "" {
			photoID = uuid.NewString()
		}
		uploadedAt := p.UploadedAt
		if uploadedAt.IsZero() {
			uploadedAt = time.Now()
		}
		_, err = tx.Exec(`
			INSERT INTO candidate_photo (id, candidate_id, url, thumbnail_url, photo_order, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, photoID, cand.ID, p.URL, p.ThumbnailURL, i, uploadedAt)
		if err != nil {
			return fmt.Errorf("failed to insert photo: %w", err)
		}
	}

	for _, catID := range cand.CategoryIDs {
		_, err = tx.Exec(`
			INSERT INTO candidate_category (candidate_id, category_id)
			VALUES ($1, $2)
		`, cand.ID, catID)
		if err != nil {
			return fmt.Errorf("failed to link category: %w", err)
		}
	}

	for fieldID, value := range cand.FormData {
		_, err = tx.Exec(`
			INSERT INTO candidate_form_value (candidate_id, field_id, value)
			VALUES ($1, $2, $3)
		`, cand.ID, fieldID, value)
		if err != nil {
			return fmt.Errorf("failed to insert form value: %w", err)
		}
	}

	if _, err := tx.Exec(`
		UPDATE qvote_config SET total_candidates = total_candidates + 1 WHERE code_id = $1
	`, cand.CodeID); err != nil {
		return fmt.Errorf("failed to update candidate stats: %w", err)
	}
	if cand.IsApproved {
		if _, err := tx.Exec(`
			UPDATE qvote_config SET approved_candidates = approved_candidates + 1 WHERE code_id = $1
		`, cand.CodeID); err != nil {
			return fmt.Errorf("failed to update candidate stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candidate: %w", err)
	}
	return nil
}

// GetByID loads a single candidate with photos, categories, and form data.
func (s *Store) GetByID(id string) (*models.Candidate, error) {
	cand := &models.Candidate{}
	err := s.db.QueryRow(`
		SELECT id, code_id, name, is_approved, is_finalist, is_hidden,
		       vote_count, finals_vote_count, source, visitor_id, display_order, created_at
		FROM candidate WHERE id = $1
	`, id).Scan(&cand.ID, &cand.CodeID, &cand.Name, &cand.IsApproved, &cand.IsFinalist,
		&cand.IsHidden, &cand.VoteCount, &cand.FinalsVoteCount, &cand.Source,
		&cand.VisitorID, &cand.DisplayOrder, &cand.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.NewVoteError(models.ErrCodeNotFound, "candidate not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate: %w", err)
	}
	if err := s.loadDetails(cand); err != nil {
		return nil, err
	}
	return cand, nil
}

// List returns candidates for a code. Ordering without OrderByVotes is
// display_order ascending, then creation time.
func (s *Store) List(codeID string, f Filters) ([]models.Candidate, error) {
	query := `
		SELECT id, code_id, name, is_approved, is_finalist, is_hidden,
		       vote_count, finals_vote_count, source, visitor_id, display_order, created_at
		FROM candidate
		WHERE code_id = $1`
	args := []any{codeID}

	if f.CategoryID != "" {
		query += fmt.Sprintf(`
		AND id IN (SELECT candidate_id FROM candidate_category WHERE category_id = $%d)`, len(args)+1)
		args = append(args, f.CategoryID)
	}
	if f.ApprovedOnly {
		query += `
		AND is_approved = TRUE`
	}
	if f.FinalistsOnly {
		query += `
		AND is_finalist = TRUE`
	}
	if f.ExcludeHidden {
		query += `
		AND is_hidden = FALSE`
	}
	if f.OrderByVotes {
		if f.Round == models.RoundFinals {
			query += `
		ORDER BY finals_vote_count DESC, display_order ASC, created_at ASC`
		} else {
			query += `
		ORDER BY vote_count DESC, display_order ASC, created_at ASC`
		}
	} else {
		query += `
		ORDER BY display_order ASC, created_at ASC`
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	cands := []models.Candidate{}
	for rows.Next() {
		var cand models.Candidate
		if err := rows.Scan(&cand.ID, &cand.CodeID, &cand.Name, &cand.IsApproved,
			&cand.IsFinalist, &cand.IsHidden, &cand.VoteCount, &cand.FinalsVoteCount,
			&cand.Source, &cand.VisitorID, &cand.DisplayOrder, &cand.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		cands = append(cands, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}

	for i := range cands {
		if err := s.loadDetails(&cands[i]); err != nil {
			return nil, err
		}
	}
	return cands, nil
}

func (s *Store) loadDetails(cand *models.Candidate) error {
	rows, err := s.db.Query(`
		SELECT id, url, thumbnail_url, photo_order, uploaded_at
		FROM candidate_photo WHERE candidate_id = $1 ORDER BY photo_order ASC
	`, cand.ID)
	if err != nil {
		return fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Photo
		var thumb sql.NullString
		if err := rows.Scan(&p.ID, &p.URL, &thumb, &p.Order, &p.UploadedAt); err != nil {
			return fmt.Errorf("failed to scan photo: %w", err)
		}
		p.ThumbnailURL = thumb.String
		cand.Photos = append(cand.Photos, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate photos: %w", err)
	}

	catRows, err := s.db.Query(`
		SELECT category_id FROM candidate_category WHERE candidate_id = $1
	`, cand.ID)
	if err != nil {
		return fmt.Errorf("failed to query categories: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var catID string
		if err := catRows.Scan(&catID); err != nil {
			return fmt.Errorf("failed to scan category: %w", err)
		}
		cand.CategoryIDs = append(cand.CategoryIDs, catID)
	}
	if err := catRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate categories: %w", err)
	}

	fvRows, err := s.db.Query(`
		SELECT field_id, value FROM candidate_form_value WHERE candidate_id = $1
	`, cand.ID)
	if err != nil {
		return fmt.Errorf("failed to query form values: %w", err)
	}
	defer fvRows.Close()
	for fvRows.Next() {
		var fieldID, value string
		if err := fvRows.Scan(&fieldID, &value); err != nil {
			return fmt.Errorf("failed to scan form value: %w", err)
		}
		if cand.FormData == nil {
			cand.FormData = map[string]string{}
		}
		cand.FormData[fieldID] = value
	}
	return fvRows.Err()
}

// Update applies a partial patch to a candidate.
func (s *Store) Update(id string, req models.UpdateCandidateRequest) error {
	cand, err := s.GetByID(id)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if req.Name != nil {
		if _, err := tx.Exec(`UPDATE candidate SET name = $1 WHERE id = $2`, *req.Name, id); err != nil {
			return fmt.Errorf("failed to update name: %w", err)
		}
	}
	if req.DisplayOrder != nil {
		if _, err := tx.Exec(`UPDATE candidate SET display_order = $1 WHERE id = $2`, *req.DisplayOrder, id); err != nil {
			return fmt.Errorf("failed to update display order: %w", err)
		}
	}
	if err := applyStatusPatch(tx, cand, req.IsApproved, req.IsFinalist, req.IsHidden); err != nil {
		return err
	}
	if req.FormData != nil {
		if _, err := tx.Exec(`DELETE FROM candidate_form_value WHERE candidate_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear form values: %w", err)
		}
		for fieldID, value := range req.FormData {
			if _, err := tx.Exec(`
				INSERT INTO candidate_form_value (candidate_id, field_id, value)
				VALUES ($1, $2, $3)
			`, id, fieldID, value); err != nil {
				return fmt.Errorf("failed to insert form value: %w", err)
			}
		}
	}
	if req.CategoryIDs != nil {
		if _, err := tx.Exec(`DELETE FROM candidate_category WHERE candidate_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear categories: %w", err)
		}
		for _, catID := range req.CategoryIDs {
			if _, err := tx.Exec(`
				INSERT INTO candidate_category (candidate_id, category_id)
				VALUES ($1, $2)
			`, id, catID); err != nil {
				return fmt.Errorf("failed to link category: %w", err)
			}
		}
	}

	return tx.Commit()
}

// applyStatusPatch updates status flags and keeps approved_candidates in sync.
func applyStatusPatch(tx *sql.Tx, cand *models.Candidate, approved, finalist, hidden *bool) error {
	if approved != nil && *approved != cand.IsApproved {
		if _, err := tx.Exec(`UPDATE candidate SET is_approved = $1 WHERE id = $2`, *approved, cand.ID); err != nil {
			return fmt.Errorf("failed to update approval: %w", err)
		}
		delta := `approved_candidates + 1`
		if !*approved {
			delta = `CASE WHEN approved_candidates > 0 THEN approved_candidates - 1 ELSE 0 END`
		}
		if _, err := tx.Exec(`UPDATE qvote_config SET approved_candidates = `+delta+` WHERE code_id = $1`, cand.CodeID); err != nil {
			return fmt.Errorf("failed to update approved stats: %w", err)
		}
	}
	if finalist != nil {
		if _, err := tx.Exec(`UPDATE candidate SET is_finalist = $1 WHERE id = $2`, *finalist, cand.ID); err != nil {
			return fmt.Errorf("failed to update finalist flag: %w", err)
		}
	}
	if hidden != nil {
		if _, err := tx.Exec(`UPDATE candidate SET is_hidden = $1 WHERE id = $2`, *hidden, cand.ID); err != nil {
			return fmt.Errorf("failed to update hidden flag: %w", err)
		}
	}
	return nil
}

// BatchUpdateStatus applies a status patch to each candidate independently.
// Best-effort: a failure on one candidate does not roll back the others.
func (s *Store) BatchUpdateStatus(ids []string, req models.BatchStatusRequest) (updated int, failed []string) {
	for _, id := range ids {
		err := s.Update(id, models.UpdateCandidateRequest{
			IsApproved: req.IsApproved,
			IsFinalist: req.IsFinalist,
			IsHidden:   req.IsHidden,
		})
		if err != nil {
			slog.Warn("batch status update failed for candidate", "candidate_id", id, "error", err)
			failed = append(failed, id)
			continue
		}
		updated++
	}
	return updated, failed
}

// Delete removes a candidate and cascade-decrements ledger state: its
// selections are removed from active votes, vote totals are reduced, and
// ledger entries left empty are dropped (their voters may vote again).
func (s *Store) Delete(id string) error {
	cand, err := s.GetByID(id)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Count affected selections per round before removing them
	rows, err := tx.Query(`
		SELECT v.id, v.round,
		       (SELECT COUNT(*) FROM vote_selection vs2 WHERE vs2.vote_id = v.id) AS selections
		FROM vote v
		JOIN vote_selection vs ON vs.vote_id = v.id
		WHERE vs.candidate_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to query affected votes: %w", err)
	}

	type affected struct {
		voteID     string
		round      int
		selections int
	}
	var affectedVotes []affected
	for rows.Next() {
		var a affected
		if err := rows.Scan(&a.voteID, &a.round, &a.selections); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan affected vote: %w", err)
		}
		affectedVotes = append(affectedVotes, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate affected votes: %w", err)
	}

	removedByRound := map[int]int{}
	emptiedByRound := map[int]int{}
	for _, a := range affectedVotes {
		if _, err := tx.Exec(`
			DELETE FROM vote_selection WHERE vote_id = $1 AND candidate_id = $2
		`, a.voteID, id); err != nil {
			return fmt.Errorf("failed to remove selection: %w", err)
		}
		removedByRound[a.round]++
		if a.selections == 1 {
			// Last selection gone: drop the ledger entry entirely
			if _, err := tx.Exec(`DELETE FROM vote WHERE id = $1`, a.voteID); err != nil {
				return fmt.Errorf("failed to remove emptied vote: %w", err)
			}
			emptiedByRound[a.round]++
		}
	}

	if err := AdjustVoteStats(tx, cand.CodeID, models.RoundVoting, -removedByRound[models.RoundVoting], -emptiedByRound[models.RoundVoting]); err != nil {
		return err
	}
	if err := AdjustVoteStats(tx, cand.CodeID, models.RoundFinals, -removedByRound[models.RoundFinals], -emptiedByRound[models.RoundFinals]); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM candidate WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}

	decr := `CASE WHEN total_candidates > 0 THEN total_candidates - 1 ELSE 0 END`
	if _, err := tx.Exec(`UPDATE qvote_config SET total_candidates = `+decr+`, stats_updated_at = $1 WHERE code_id = $2`,
		time.Now(), cand.CodeID); err != nil {
		return fmt.Errorf("failed to update candidate stats: %w", err)
	}
	if cand.IsApproved {
		adecr := `CASE WHEN approved_candidates > 0 THEN approved_candidates - 1 ELSE 0 END`
		if _, err := tx.Exec(`UPDATE qvote_config SET approved_candidates = `+adecr+` WHERE code_id = $1`, cand.CodeID); err != nil {
			return fmt.Errorf("failed to update approved stats: %w", err)
		}
	}

	return tx.Commit()
}

// AdjustVoteStats shifts the cached vote/voter totals for a round by the
// given (possibly negative) deltas, clamping at zero.
func AdjustVoteStats(ex Execer, codeID string, round, votesDelta, votersDelta int) error {
	votesCol, votersCol := "total_votes", "total_voters"
	if round == models.RoundFinals {
		votesCol, votersCol = "finals_votes", "finals_voters"
	}
	for col, delta := range map[string]int{votesCol: votesDelta, votersCol: votersDelta} {
		if delta == 0 {
			continue
		}
		var expr string
		if delta > 0 {
			expr = fmt.Sprintf("%s + %d", col, delta)
		} else {
			expr = fmt.Sprintf("CASE WHEN %s >= %d THEN %s - %d ELSE 0 END", col, -delta, col, -delta)
		}
		query := fmt.Sprintf(`UPDATE qvote_config SET %s = %s, stats_updated_at = $1 WHERE code_id = $2`, col, expr)
		if _, err := ex.Exec(query, time.Now(), codeID); err != nil {
			return fmt.Errorf("failed to adjust %s: %w", col, err)
		}
	}
	return nil
}

// IncrementVoteCounts bumps the round's counter for each candidate.
// Always an atomic in-place UPDATE, never read-modify-write.
func IncrementVoteCounts(ex Execer, candidateIDs []string, round int) error {
	col := "vote_count"
	if round == models.RoundFinals {
		col = "finals_vote_count"
	}
	for _, id := range candidateIDs {
		query := fmt.Sprintf(`UPDATE candidate SET %s = %s + 1 WHERE id = $1`, col, col)
		if _, err := ex.Exec(query, id); err != nil {
			return fmt.Errorf("failed to increment vote count: %w", err)
		}
	}
	return nil
}

// DecrementVoteCounts lowers the round's counter for each candidate,
// clamping at zero so a concurrent double-reset cannot underflow.
func DecrementVoteCounts(ex Execer, candidateIDs []string, round int) error {
	col := "vote_count"
	if round == models.RoundFinals {
		col = "finals_vote_count"
	}
	for _, id := range candidateIDs {
		query := fmt.Sprintf(`UPDATE candidate SET %s = CASE WHEN %s > 0 THEN %s - 1 ELSE 0 END WHERE id = $1`, col, col, col)
		if _, err := ex.Exec(query, id); err != nil {
			return fmt.Errorf("failed to decrement vote count: %w", err)
		}
	}
	return nil
}
