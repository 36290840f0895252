// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package phase

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ranidpz/qrinfo-sub000/models"
)

// LoadConfig reads the full QVoteConfig document for a code: the config
// row plus schedule, categories, and form fields.
func LoadConfig(db *sql.DB, codeID string) (*models.QVoteConfig, error) {
	cfg := &models.QVoteConfig{CodeID: codeID}
	var phaseStr string
	var verification models.VerificationConfig
	var tablet models.TabletModeConfig
	var statsUpdated sql.NullTime

	err := db.QueryRow(`
		SELECT current_phase, max_selections, enable_finals,
		       verification_enabled, max_votes_per_phone, max_sends_per_phone, attempt_limit,
		       tablet_mode, tablet_reset_delay,
		       total_candidates, approved_candidates, total_voters, total_votes,
		       finals_voters, finals_votes, stats_updated_at
		FROM qvote_config WHERE code_id = $1
	`, codeID).Scan(&phaseStr, &cfg.MaxSelectionsPerVoter, &cfg.EnableFinals,
		&verification.Enabled, &verification.MaxVotesPerPhone, &verification.MaxSendsPerPhone, &verification.AttemptLimit,
		&tablet.Enabled, &tablet.ResetDelaySeconds,
		&cfg.Stats.TotalCandidates, &cfg.Stats.ApprovedCandidates, &cfg.Stats.TotalVoters,
		&cfg.Stats.TotalVotes, &cfg.Stats.FinalsVoters, &cfg.Stats.FinalsVotes, &statsUpdated)
	if err == sql.ErrNoRows {
		return nil, models.NewVoteError(models.ErrCodeNotFound, "no Q.Vote configuration for this code")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query qvote config: %w", err)
	}

	cfg.CurrentPhase = models.Phase(phaseStr)
	if statsUpdated.Valid {
		cfg.Stats.LastUpdated = statsUpdated.Time
	}
	if verification.Enabled {
		cfg.Verification = &verification
	}
	if tablet.Enabled {
		cfg.TabletMode = &tablet
	}

	schedRows, err := db.Query(`
		SELECT phase, scheduled_at FROM qvote_schedule WHERE code_id = $1
	`, codeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer schedRows.Close()
	for schedRows.Next() {
		var p string
		var at time.Time
		if err := schedRows.Scan(&p, &at); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		if cfg.Schedule == nil {
			cfg.Schedule = map[models.Phase]time.Time{}
		}
		cfg.Schedule[models.Phase(p)] = at
	}
	if err := schedRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule: %w", err)
	}

	catRows, err := db.Query(`
		SELECT id, name, display_order FROM qvote_category
		WHERE code_id = $1 ORDER BY display_order ASC, name ASC
	`, codeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var cat models.Category
		if err := catRows.Scan(&cat.ID, &cat.Name, &cat.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cfg.Categories = append(cfg.Categories, cat)
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	fieldRows, err := db.Query(`
		SELECT id, label, field_type, required, display_order FROM qvote_form_field
		WHERE code_id = $1 ORDER BY display_order ASC, label ASC
	`, codeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query form fields: %w", err)
	}
	defer fieldRows.Close()
	for fieldRows.Next() {
		var f models.FormField
		if err := fieldRows.Scan(&f.ID, &f.Label, &f.FieldType, &f.Required, &f.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan form field: %w", err)
		}
		cfg.FormFields = append(cfg.FormFields, f)
	}
	if err := fieldRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate form fields: %w", err)
	}

	return cfg, nil
}

// ValidateSchedule rejects schedules whose timestamps are not monotone in
// lifecycle order. The runtime tie-break tolerates out-of-order rows for
// legacy data, but new configuration must be well-formed.
func ValidateSchedule(schedule map[models.Phase]time.Time) error {
	var prev models.Phase
	var prevAt time.Time
	for _, p := range models.PhaseOrder {
		at, ok := schedule[p]
		if !ok {
			continue
		}
		if prev != "" && at.Before(prevAt) {
			return models.NewVoteError(models.ErrCodeInvalidSelection,
				fmt.Sprintf("schedule for %s precedes %s", p, prev))
		}
		prev, prevAt = p, at
	}
	return nil
}

// Configure creates or replaces the Q.Vote configuration for a code.
// Schedule timestamps are RFC3339 strings keyed by phase name.
func Configure(db *sql.DB, codeID string, req models.ConfigureQVoteRequest) error {
	if req.MaxSelectionsPerVoter <= 0 {
		return models.NewVoteError(models.ErrCodeInvalidSelection, "max_selections_per_voter must be positive")
	}

	schedule := map[models.Phase]time.Time{}
	for phaseStr, tsStr := range req.Schedule {
		p, err := models.ParsePhase(phaseStr)
		if err != nil {
			return models.NewVoteError(models.ErrCodeInvalidSelection, err.Error())
		}
		if p == models.PhaseFinals && !req.EnableFinals {
			return models.NewVoteError(models.ErrCodeInvalidSelection, "finals scheduled but finals are disabled")
		}
		at, err := time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return models.NewVoteError(models.ErrCodeInvalidSelection, fmt.Sprintf("bad timestamp for %s: %v", phaseStr, err))
		}
		schedule[p] = at
	}
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	verification := models.VerificationConfig{MaxVotesPerPhone: 1, MaxSendsPerPhone: 3, AttemptLimit: 5}
	if req.Verification != nil {
		verification = *req.Verification
		if verification.MaxVotesPerPhone <= 0 {
			verification.MaxVotesPerPhone = 1
		}
		if verification.MaxSendsPerPhone <= 0 {
			verification.MaxSendsPerPhone = 3
		}
		if verification.AttemptLimit <= 0 {
			verification.AttemptLimit = 5
		}
	}
	tablet := models.TabletModeConfig{ResetDelaySeconds: 5}
	if req.TabletMode != nil {
		tablet = *req.TabletMode
		if tablet.ResetDelaySeconds <= 0 {
			tablet.ResetDelaySeconds = 5
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM qvote_config WHERE code_id = $1)
	`, codeID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check config: %w", err)
	}

	if exists {
		_, err = tx.Exec(`
			UPDATE qvote_config
			SET max_selections = $1, enable_finals = $2,
			    verification_enabled = $3, max_votes_per_phone = $4, max_sends_per_phone = $5, attempt_limit = $6,
			    tablet_mode = $7, tablet_reset_delay = $8
			WHERE code_id = $9
		`, req.MaxSelectionsPerVoter, req.EnableFinals,
			verification.Enabled, verification.MaxVotesPerPhone, verification.MaxSendsPerPhone, verification.AttemptLimit,
			tablet.Enabled, tablet.ResetDelaySeconds, codeID)
	} else {
		_, err = tx.Exec(`
			INSERT INTO qvote_config (code_id, max_selections, enable_finals,
			    verification_enabled, max_votes_per_phone, max_sends_per_phone, attempt_limit,
			    tablet_mode, tablet_reset_delay, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, codeID, req.MaxSelectionsPerVoter, req.EnableFinals,
			verification.Enabled, verification.MaxVotesPerPhone, verification.MaxSendsPerPhone, verification.AttemptLimit,
			tablet.Enabled, tablet.ResetDelaySeconds, time.Now())
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM qvote_schedule WHERE code_id = $1`, codeID); err != nil {
		return fmt.Errorf("failed to clear schedule: %w", err)
	}
	for p, at := range schedule {
		if _, err := tx.Exec(`
			INSERT INTO qvote_schedule (code_id, phase, scheduled_at)
			VALUES ($1, $2, $3)
		`, codeID, string(p), at); err != nil {
			return fmt.Errorf("failed to insert schedule row: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM qvote_category WHERE code_id = $1`, codeID); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}
	for i, cat := range req.Categories {
		id := cat.ID
		if id == "" {
			id = uuid.NewString()
		}
		order := cat.DisplayOrder
		if order == 0 {
			order = i
		}
		if _, err := tx.Exec(`
			INSERT INTO qvote_category (id, code_id, name, display_order)
			VALUES ($1, $2, $3, $4)
		`, id, codeID, cat.Name, order); err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM qvote_form_field WHERE code_id = $1`, codeID); err != nil {
		return fmt.Errorf("failed to clear form fields: %w", err)
	}
	for i, f := range req.FormFields {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		fieldType := f.FieldType
		if fieldType == "" {
			fieldType = "text"
		}
		order := f.DisplayOrder
		if order == 0 {
			order = i
		}
		if _, err := tx.Exec(`
			INSERT INTO qvote_form_field (id, code_id, label, field_type, required, display_order)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, codeID, f.Label, fieldType, f.Required, order); err != nil {
			return fmt.Errorf("failed to insert form field: %w", err)
		}
	}

	return tx.Commit()
}
