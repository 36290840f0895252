// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package phase

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultPollInterval matches the coarse granularity of phase schedules;
// schedules are minutes apart, so a 10s poll is plenty.
const DefaultPollInterval = 10 * time.Second

// Scheduler periodically applies elapsed scheduled phase transitions.
type Scheduler struct {
	db       *sql.DB
	ctrl     *Controller
	interval time.Duration
}

func NewScheduler(db *sql.DB, ctrl *Controller, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{db: db, ctrl: ctrl, interval: interval}
}

// Run polls until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("phase scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("phase scheduler stopped")
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick checks every code with a schedule and applies elapsed transitions.
func (s *Scheduler) tick(now time.Time) {
	rows, err := s.db.Query(`SELECT DISTINCT code_id FROM qvote_schedule`)
	if err != nil {
		slog.Error("scheduler failed to list scheduled codes", "error", err)
		return
	}
	var codeIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			slog.Error("scheduler failed to scan code id", "error", err)
			return
		}
		codeIDs = append(codeIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		slog.Error("scheduler failed to iterate scheduled codes", "error", err)
		return
	}

	for _, codeID := range codeIDs {
		cfg, err := LoadConfig(s.db, codeID)
		if err != nil {
			slog.Error("scheduler failed to load config", "code_id", codeID, "error", err)
			continue
		}
		target, ok := CheckScheduledTransition(cfg, now)
		if !ok {
			continue
		}
		updated, err := s.ctrl.AdvancePhase(codeID, target)
		if err != nil {
			slog.Error("scheduled phase transition failed", "code_id", codeID, "target", target, "error", err)
			continue
		}
		slog.Info("scheduled phase transition applied",
			"code_id", codeID,
			"phase", target,
			"total_votes", humanize.Comma(int64(updated.Stats.TotalVotes)),
			"total_voters", humanize.Comma(int64(updated.Stats.TotalVoters)),
		)
	}
}
