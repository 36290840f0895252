// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the Q.Vote API.

# Domain Types

Internal data structures:

  - Code: the shareable entity a QR points at
  - QVoteConfig: per-code configuration and live state (phase, schedule, stats)
  - Candidate: a votable option with photos and status flags
  - Vote: one ledger entry per (voter, round, category)
  - VerificationSession: phone-bound vote credential
  - ResultSnapshot: immutable ranking computed when voting closes

# Phases

The Q.Vote lifecycle:

	registration → preparation → voting → finals → calculating → results

Phase is a typed string with helpers (Rank, AllowsVoting, Round). The
finals phase is optional; with enable_finals off the lifecycle skips it.

# Error Codes

VoteError carries a stable machine-readable code (ALREADY_VOTED,
SESSION_EXPIRED, BLOCKED, ...). Contention and idempotency outcomes are
VoteErrors, not transport failures: callers branch on Code to drive UI
state. The verification gate additionally populates AttemptsRemaining
and BlockedUntil.

# Rounds

Round 1 covers normal voting, round 2 finals. Each round has its own
denormalized counter on Candidate (VoteCount, FinalsVoteCount).
*/
package models
