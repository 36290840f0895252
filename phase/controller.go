// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package phase

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ranidpz/qrinfo-sub000/candidates"
	"github.com/Ranidpz/qrinfo-sub000/metrics"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// Notifier receives the refreshed config document after a phase change.
// Satisfied by livesync.Hub; nil disables fan-out (tests, CLI tools).
type Notifier interface {
	PublishConfig(cfg *models.QVoteConfig)
}

// Controller owns currentPhase and the phase schedule. It is a dumb
// setter by design: operators may move phases in any order, and legality
// is their concern. Entry side effects are the controller's concern.
type Controller struct {
	db       *sql.DB
	cands    *candidates.Store
	notifier Notifier
	metrics  *metrics.Service
}

func NewController(db *sql.DB, cands *candidates.Store, notifier Notifier, ms *metrics.Service) *Controller {
	return &Controller{db: db, cands: cands, notifier: notifier, metrics: ms}
}

// AdvancePhase unconditionally sets the current phase and runs entry side
// effects: entering calculating or results snapshots the closing round's
// winners. Finalist flags are the operator's responsibility before finals.
func (c *Controller) AdvancePhase(codeID string, target models.Phase) (*models.QVoteConfig, error) {
	cfg, err := LoadConfig(c.db, codeID)
	if err != nil {
		return nil, err
	}
	if target == models.PhaseFinals && !cfg.EnableFinals {
		return nil, models.NewVoteError(models.ErrCodeInvalidSelection, "finals are disabled for this code")
	}
	if target == cfg.CurrentPhase {
		return cfg, nil
	}

	if target == models.PhaseCalculating || target == models.PhaseResults {
		if err := c.snapshotWinners(cfg); err != nil {
			return nil, err
		}
	}

	res, err := c.db.Exec(`
		UPDATE qvote_config SET current_phase = $1 WHERE code_id = $2
	`, string(target), codeID)
	if err != nil {
		return nil, fmt.Errorf("failed to set phase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.NewVoteError(models.ErrCodeNotFound, "no Q.Vote configuration for this code")
	}

	slog.Info("phase advanced", "code_id", codeID, "from", cfg.CurrentPhase, "to", target)
	c.metrics.IncPhaseTransition(string(target))

	cfg.CurrentPhase = target
	if c.notifier != nil {
		c.notifier.PublishConfig(cfg)
	}
	return cfg, nil
}

// snapshotWinners persists the ranking of the round that is closing.
func (c *Controller) snapshotWinners(cfg *models.QVoteConfig) error {
	round := models.RoundVoting
	if cfg.EnableFinals {
		round = models.RoundFinals
	}
	rankings, err := c.cands.ComputeWinners(cfg.CodeID, round, cfg.Categories)
	if err != nil {
		return fmt.Errorf("failed to compute winners: %w", err)
	}
	if _, err := c.cands.SaveSnapshot(cfg.CodeID, round, rankings); err != nil {
		return err
	}
	slog.Info("winner snapshot computed", "code_id", cfg.CodeID, "round", round, "candidates", len(rankings))
	return nil
}

// CheckScheduledTransition is pure: given the schedule and the current
// time it returns the latest phase whose scheduled time has elapsed and
// that differs from the currently-adopted phase. When several elapsed
// entries share a timestamp the one later in lifecycle order wins.
func CheckScheduledTransition(cfg *models.QVoteConfig, now time.Time) (models.Phase, bool) {
	if len(cfg.Schedule) == 0 {
		return "", false
	}

	var best models.Phase
	var bestAt time.Time
	found := false
	for p, at := range cfg.Schedule {
		if at.After(now) {
			continue
		}
		if !found || at.After(bestAt) || (at.Equal(bestAt) && p.Rank() > best.Rank()) {
			best, bestAt, found = p, at, true
		}
	}
	if !found || best == cfg.CurrentPhase {
		return "", false
	}
	return best, true
}
