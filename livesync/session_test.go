// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package livesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ranidpz/qrinfo-sub000/models"
)

func viewCfg(p models.Phase, voters, votes int) *models.QVoteConfig {
	return &models.QVoteConfig{
		CodeID:                "c1",
		CurrentPhase:          p,
		MaxSelectionsPerVoter: 1,
		Stats:                 models.QVoteStats{TotalVoters: voters, TotalVotes: votes},
	}
}

func TestSession_AdoptsUpdatesImmediatelyWithoutSelection(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 0, 0), false)

	s.ApplyConfig(viewCfg(models.PhaseCalculating, 5, 5))
	assert.Equal(t, models.PhaseCalculating, s.Phase())
	assert.False(t, s.InGrace())
}

func TestSession_GracePeriodLastsExactlyTenTicks(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 0, 0), false)
	s.Select("", []string{"cand-1"})

	s.ApplyConfig(viewCfg(models.PhaseCalculating, 5, 5))
	require.True(t, s.InGrace())
	assert.Equal(t, models.PhaseVoting, s.Phase(), "close must be deferred")

	for i := 0; i < GracePeriodTicks-1; i++ {
		s.Tick()
		assert.Equal(t, models.PhaseVoting, s.Phase(), "tick %d", i+1)
	}
	s.Tick() // the tenth
	assert.Equal(t, models.PhaseCalculating, s.Phase())
	assert.False(t, s.InGrace())
}

func TestSession_FirstCloseWins(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 0, 0), false)
	s.Select("", []string{"cand-1"})

	s.ApplyConfig(viewCfg(models.PhaseCalculating, 5, 5))
	require.True(t, s.InGrace())

	for i := 0; i < 6; i++ {
		s.Tick()
	}
	// A later update must not restart the countdown, only freshen the
	// pending document
	s.ApplyConfig(viewCfg(models.PhaseResults, 6, 6))
	require.True(t, s.InGrace())

	for i := 0; i < 4; i++ {
		s.Tick()
	}
	assert.Equal(t, models.PhaseResults, s.Phase(), "adopts the freshest pending document")
	assert.False(t, s.InGrace())
}

func TestSession_BackwardMoveSkipsGrace(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 3, 3), false)
	s.Select("", []string{"cand-1"})

	// Reopening for more registrations is not a close: the ballot will
	// not count either way, so the update is adopted immediately
	s.ApplyConfig(viewCfg(models.PhasePreparation, 3, 3))
	assert.False(t, s.InGrace())
	assert.Equal(t, models.PhasePreparation, s.Phase())
}

func TestSession_SubmitResolvedEndsGrace(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 0, 0), false)
	s.Select("", []string{"cand-1"})
	s.ApplyConfig(viewCfg(models.PhaseCalculating, 5, 5))
	require.True(t, s.InGrace())

	s.SubmitResolved("", true)
	assert.False(t, s.InGrace())
	assert.Equal(t, models.PhaseCalculating, s.Phase())
	assert.True(t, s.HasVoted(""))
}

func TestSession_RejectedSubmitAlsoEndsGrace(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 0, 0), false)
	s.Select("", []string{"cand-1"})
	s.ApplyConfig(viewCfg(models.PhaseResults, 5, 5))
	require.True(t, s.InGrace())

	s.SubmitResolved("", false)
	assert.False(t, s.InGrace())
	assert.Equal(t, models.PhaseResults, s.Phase())
	assert.False(t, s.HasVoted(""))
}

func TestSession_WipeDetectionClearsLocalState(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 8, 12), false)
	s.SubmitResolved("cat-1", true)
	s.Select("cat-2", []string{"cand-9"})
	require.True(t, s.HasVoted("cat-1"))

	// Vote totals dropping to zero is the wipe signal
	s.ApplyConfig(viewCfg(models.PhaseVoting, 0, 0))
	assert.False(t, s.HasVoted("cat-1"))

	// The cleared selection must not trigger a grace period afterwards
	s.ApplyConfig(viewCfg(models.PhaseResults, 0, 0))
	assert.Equal(t, models.PhaseResults, s.Phase())
	assert.False(t, s.InGrace())
}

func TestSession_WipeOverridesGrace(t *testing.T) {
	s := NewSession(viewCfg(models.PhaseVoting, 8, 12), false)
	s.Select("", []string{"cand-1"})
	s.ApplyConfig(viewCfg(models.PhaseCalculating, 9, 13))
	require.True(t, s.InGrace())

	wiped := viewCfg(models.PhaseVoting, 0, 0)
	s.ApplyConfig(wiped)
	assert.False(t, s.InGrace(), "wipe cancels the grace period")
	assert.Equal(t, models.PhaseVoting, s.Phase())
}

func TestSession_KioskNeverSuppressesAndAutoResets(t *testing.T) {
	cfg := viewCfg(models.PhaseVoting, 0, 0)
	cfg.TabletMode = &models.TabletModeConfig{Enabled: true, ResetDelaySeconds: 3}
	s := NewSession(cfg, true)

	s.SubmitResolved("", true)
	assert.False(t, s.HasVoted(""), "kiosks never suppress the ballot")

	// Internal voted state is cleared after the reset delay
	s.Tick()
	s.Tick()
	s.Tick()

	s2 := NewSession(cfg, false)
	s2.SubmitResolved("", true)
	assert.True(t, s2.HasVoted(""), "non-kiosk sessions suppress")
}
