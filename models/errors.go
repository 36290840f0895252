// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Error codes surfaced by the vote submission API.
const (
	ErrCodeVerificationRequired = "VERIFICATION_REQUIRED"
	ErrCodeNotVerified          = "NOT_VERIFIED"
	ErrCodeInvalidSession       = "INVALID_SESSION"
	ErrCodeSessionExpired       = "SESSION_EXPIRED"
	ErrCodeVoteLimitReached     = "VOTE_LIMIT_REACHED"
	ErrCodeAlreadyVotedCategory = "ALREADY_VOTED_CATEGORY"
	ErrCodeAlreadyVoted         = "ALREADY_VOTED"
	ErrCodeInvalidSelection     = "INVALID_SELECTION"
	ErrCodeVotingClosed         = "VOTING_CLOSED"
)

// Error codes surfaced by the verification gate.
const (
	ErrCodeInvalidPhone    = "INVALID_PHONE"
	ErrCodeQuotaExceeded   = "QUOTA_EXCEEDED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeAlreadyVotedAll = "ALREADY_VOTED_ALL"
	ErrCodeInvalidCode     = "INVALID_CODE"
	ErrCodeExpired         = "EXPIRED"
	ErrCodeBlocked         = "BLOCKED"
	ErrCodeNoCode          = "NO_CODE"
)

// Error codes surfaced by the candidate store.
const (
	ErrCodeAlreadyRegistered = "ALREADY_REGISTERED"
	ErrCodeNotFound          = "NOT_FOUND"
)

// VoteError is an expected-outcome error: callers branch on Code rather
// than treating it as an exception. Transient I/O failures are plain
// wrapped errors, never VoteErrors.
type VoteError struct {
	Code    string
	Message string
	// Verification extras, populated only by the gate
	AttemptsRemaining *int
	BlockedUntil      *time.Time
}

func (e *VoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// NewVoteError builds a coded error with a human-readable message.
func NewVoteError(code, message string) *VoteError {
	return &VoteError{Code: code, Message: message}
}
