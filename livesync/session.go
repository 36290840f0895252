// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package livesync

import (
	"sync"

	"github.com/Ranidpz/qrinfo-sub000/models"
)

// GracePeriodTicks is how many ticks a voting close is held back while
// the viewer has an unsubmitted selection on screen.
const GracePeriodTicks = 10

// Session is the viewer-side automaton that mediates between the
// authoritative config stream and what the screen shows.
//
// The one place it deliberately lags the server is the grace period:
// when an update closes voting while the viewer is mid-selection, the
// close is deferred for GracePeriodTicks so an in-flight submission can
// land. The first deferred close wins; later updates during grace only
// replace the pending document, never restart the countdown.
type Session struct {
	mu sync.Mutex

	displayed *models.QVoteConfig
	pending   *models.QVoteConfig
	graceLeft int

	selections      map[string][]string // category -> picked candidate ids, unsubmitted
	votedCategories map[string]bool

	kiosk          bool
	resetCountdown int
}

func NewSession(cfg *models.QVoteConfig, kiosk bool) *Session {
	return &Session{
		displayed:       cfg,
		selections:      map[string][]string{},
		votedCategories: map[string]bool{},
		kiosk:           kiosk,
	}
}

// Config returns the currently-displayed config document.
func (s *Session) Config() *models.QVoteConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed
}

// Phase returns the currently-displayed phase.
func (s *Session) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.displayed == nil {
		return ""
	}
	return s.displayed.CurrentPhase
}

// InGrace reports whether a voting close is currently deferred.
func (s *Session) InGrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graceLeft > 0
}

// Select records an in-progress, unsubmitted pick for a category.
// An empty candidate list clears the pick.
func (s *Session) Select(categoryID string, candidateIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(candidateIDs) == 0 {
		delete(s.selections, categoryID)
		return
	}
	s.selections[categoryID] = candidateIDs
}

// HasVoted reports whether the viewer already voted in a category, for
// ballot suppression. Kiosks never suppress: the next person in line is
// a different voter.
func (s *Session) HasVoted(categoryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kiosk {
		return false
	}
	return s.votedCategories[categoryID]
}

// ApplyConfig feeds an authoritative update into the automaton.
func (s *Session) ApplyConfig(cfg *models.QVoteConfig) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isWipe(cfg) {
		// An administrative wipe invalidates everything local, grace
		// included: the votes being protected no longer exist.
		s.selections = map[string][]string{}
		s.votedCategories = map[string]bool{}
		s.pending = nil
		s.graceLeft = 0
		s.displayed = cfg
		return
	}

	if s.graceLeft > 0 {
		// Countdown already running; only the document freshens
		s.pending = cfg
		return
	}

	if s.closesVoting(cfg) && len(s.selections) > 0 {
		s.pending = cfg
		s.graceLeft = GracePeriodTicks
		return
	}

	s.displayed = cfg
}

// Tick advances the automaton's clock: the grace countdown and, on
// kiosks, the post-submit reset countdown.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graceLeft > 0 {
		s.graceLeft--
		if s.graceLeft == 0 {
			s.adoptPending()
		}
	}

	if s.resetCountdown > 0 {
		s.resetCountdown--
		if s.resetCountdown == 0 {
			s.selections = map[string][]string{}
			s.votedCategories = map[string]bool{}
		}
	}
}

// SubmitResolved tells the session the in-flight submission finished.
// Either way the grace period has served its purpose and any deferred
// close is adopted immediately.
func (s *Session) SubmitResolved(categoryID string, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.selections, categoryID)
	if accepted {
		s.votedCategories[categoryID] = true
		if s.kiosk && s.displayed != nil && s.displayed.TabletMode != nil && s.displayed.TabletMode.Enabled {
			s.resetCountdown = s.displayed.TabletMode.ResetDelaySeconds
		}
	}
	if s.graceLeft > 0 {
		s.graceLeft = 0
		s.adoptPending()
	}
}

// adoptPending must be called with the lock held.
func (s *Session) adoptPending() {
	if s.pending != nil {
		s.displayed = s.pending
		s.pending = nil
	}
}

// isWipe detects an administrative vote wipe: previously non-zero vote
// totals all dropping to zero. Must be called with the lock held.
func (s *Session) isWipe(cfg *models.QVoteConfig) bool {
	if s.displayed == nil {
		return false
	}
	prev := s.displayed.Stats
	next := cfg.Stats
	hadVotes := prev.TotalVoters > 0 || prev.TotalVotes > 0 || prev.FinalsVoters > 0 || prev.FinalsVotes > 0
	return hadVotes &&
		next.TotalVoters == 0 && next.TotalVotes == 0 &&
		next.FinalsVoters == 0 && next.FinalsVotes == 0
}

// closesVoting reports whether adopting cfg would close the viewer's
// open ballot for good. Only forward moves into calculating or results
// qualify: a backward move (say voting to preparation) means the ballot
// never counted, so deferring it would just invite a rejected submit.
// Must be called with the lock held.
func (s *Session) closesVoting(cfg *models.QVoteConfig) bool {
	if s.displayed == nil || !s.displayed.CurrentPhase.AllowsVoting() {
		return false
	}
	return cfg.CurrentPhase == models.PhaseCalculating || cfg.CurrentPhase == models.PhaseResults
}
