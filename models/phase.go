// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "fmt"

// Phase is one stage of the Q.Vote lifecycle.
type Phase string

const (
	PhaseRegistration Phase = "registration"
	PhasePreparation  Phase = "preparation"
	PhaseVoting       Phase = "voting"
	PhaseFinals       Phase = "finals"
	PhaseCalculating  Phase = "calculating"
	PhaseResults      Phase = "results"
)

// PhaseOrder is the canonical lifecycle order. The controller does not
// enforce it (operators may jump phases freely); schedule validation does.
var PhaseOrder = []Phase{
	PhaseRegistration,
	PhasePreparation,
	PhaseVoting,
	PhaseFinals,
	PhaseCalculating,
	PhaseResults,
}

var phaseRank = map[Phase]int{
	PhaseRegistration: 0,
	PhasePreparation:  1,
	PhaseVoting:       2,
	PhaseFinals:       3,
	PhaseCalculating:  4,
	PhaseResults:      5,
}

// ParsePhase validates a phase string from the wire.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if _, ok := phaseRank[p]; !ok {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Rank returns the position of p in the canonical lifecycle order.
func (p Phase) Rank() int {
	return phaseRank[p]
}

// AllowsVoting reports whether ballots are accepted while p is displayed.
func (p Phase) AllowsVoting() bool {
	return p == PhaseVoting || p == PhaseFinals
}

// Round returns the counter bucket for votes cast during p.
func (p Phase) Round() int {
	if p == PhaseFinals {
		return RoundFinals
	}
	return RoundVoting
}
