// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Candidate source constants
const (
	SourceSelf     = "self"
	SourceOperator = "operator"
)

// OTP delivery method constants
const (
	MethodWhatsApp = "whatsapp"
	MethodSMS      = "sms"
)

// Voting rounds. Finals votes land in a separate counter bucket.
const (
	RoundVoting = 1
	RoundFinals = 2
)

// Platform constants for visitor registration
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
	PlatformKiosk   = "kiosk"
)

// Request types

type CreateCodeRequest struct {
	Title string `json:"title"`
}

type ConfigureQVoteRequest struct {
	MaxSelectionsPerVoter int                 `json:"max_selections_per_voter"`
	EnableFinals          bool                `json:"enable_finals"`
	Categories            []Category          `json:"categories,omitempty"`
	FormFields            []FormField         `json:"form_fields,omitempty"`
	Verification          *VerificationConfig `json:"verification,omitempty"`
	TabletMode            *TabletModeConfig   `json:"tablet_mode,omitempty"`
	Schedule              map[string]string   `json:"schedule,omitempty"` // phase -> RFC3339 timestamp
}

type AdvancePhaseRequest struct {
	Phase string `json:"phase"`
}

type RegisterCandidateRequest struct {
	Name        string            `json:"name"`
	FormData    map[string]string `json:"form_data,omitempty"`
	CategoryIDs []string          `json:"category_ids,omitempty"`
	Photos      []PhotoUpload     `json:"photos,omitempty"`
}

type UpdateCandidateRequest struct {
	Name         *string           `json:"name,omitempty"`
	FormData     map[string]string `json:"form_data,omitempty"`
	CategoryIDs  []string          `json:"category_ids,omitempty"`
	IsApproved   *bool             `json:"is_approved,omitempty"`
	IsFinalist   *bool             `json:"is_finalist,omitempty"`
	IsHidden     *bool             `json:"is_hidden,omitempty"`
	DisplayOrder *int              `json:"display_order,omitempty"`
}

type BatchStatusRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
	IsApproved   *bool    `json:"is_approved,omitempty"`
	IsFinalist   *bool    `json:"is_finalist,omitempty"`
	IsHidden     *bool    `json:"is_hidden,omitempty"`
}

type SubmitVotesRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
	// Round defaults to the round the current phase is collecting
	Round        int    `json:"round,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
	Phone        string `json:"phone,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

type ResetVoteRequest struct {
	Round      int    `json:"round"`
	CategoryID string `json:"category_id,omitempty"`
}

type SendCodeRequest struct {
	Phone  string `json:"phone"`
	Locale string `json:"locale,omitempty"`
}

type VerifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type RegisterVisitorRequest struct {
	Platform string `json:"platform"`
	Kiosk    bool   `json:"kiosk,omitempty"`
}

// PhotoUpload carries blob-storage results for a candidate photo. The blob
// service itself is external; we only persist what it returned.
type PhotoUpload struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Response types

type CreateCodeResponse struct {
	CodeID      string `json:"code_id"`
	ShortID     string `json:"short_id"`
	OperatorKey string `json:"operator_key"`
}

type AdvancePhaseResponse struct {
	Phase     string    `json:"phase"`
	ChangedAt time.Time `json:"changed_at"`
}

type RegisterCandidateResponse struct {
	CandidateID string `json:"candidate_id"`
}

type BatchStatusResponse struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

type SubmitVotesResponse struct {
	VoteID         string `json:"vote_id"`
	VotesRemaining *int   `json:"votes_remaining,omitempty"`
}

type ResetVoteResponse struct {
	Success        bool `json:"success"`
	NewChangeCount int  `json:"new_change_count"`
}

type SendCodeResponse struct {
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyCodeResponse struct {
	SessionToken   string `json:"session_token"`
	VotesRemaining int    `json:"votes_remaining"`
	MaxVotes       int    `json:"max_votes"`
}

type RegisterVisitorResponse struct {
	VisitorID string `json:"visitor_id"`
	IsNew     bool   `json:"is_new"`
}

// Domain types

type Code struct {
	ID        string    `json:"id"`
	ShortID   string    `json:"short_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

type FormField struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	FieldType    string `json:"field_type"`
	Required     bool   `json:"required"`
	DisplayOrder int    `json:"display_order"`
}

type Photo struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Order        int       `json:"order"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type Candidate struct {
	ID              string            `json:"id"`
	CodeID          string            `json:"code_id"`
	Name            string            `json:"name"`
	FormData        map[string]string `json:"form_data,omitempty"`
	Photos          []Photo           `json:"photos,omitempty"`
	CategoryIDs     []string          `json:"category_ids,omitempty"`
	IsApproved      bool              `json:"is_approved"`
	IsFinalist      bool              `json:"is_finalist"`
	IsHidden        bool              `json:"is_hidden"`
	VoteCount       int               `json:"vote_count"`
	FinalsVoteCount int               `json:"finals_vote_count"`
	Source          string            `json:"source"`
	VisitorID       *string           `json:"-"` // Never expose in JSON
	DisplayOrder    int               `json:"display_order"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Vote is one ledger entry: the active vote-set of a single voter for a
// single (round, category). At most one exists per identity.
type Vote struct {
	ID           string    `json:"id"`
	CodeID       string    `json:"code_id"`
	VoterID      string    `json:"-"` // Never expose in JSON
	Round        int       `json:"round"`
	CategoryID   string    `json:"category_id,omitempty"`
	CandidateIDs []string  `json:"candidate_ids"`
	ChangeCount  int       `json:"change_count"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// QVoteStats is a denormalized cache over the candidate and vote tables.
// Zeroed voter/vote totals signal an administrative wipe to live viewers.
type QVoteStats struct {
	TotalCandidates    int       `json:"total_candidates"`
	ApprovedCandidates int       `json:"approved_candidates"`
	TotalVoters        int       `json:"total_voters"`
	TotalVotes         int       `json:"total_votes"`
	FinalsVoters       int       `json:"finals_voters"`
	FinalsVotes        int       `json:"finals_votes"`
	LastUpdated        time.Time `json:"last_updated"`
}

type VerificationConfig struct {
	Enabled          bool `json:"enabled"`
	MaxVotesPerPhone int  `json:"max_votes_per_phone"`
	MaxSendsPerPhone int  `json:"max_sends_per_phone"`
	AttemptLimit     int  `json:"attempt_limit"`
}

type TabletModeConfig struct {
	Enabled           bool `json:"enabled"`
	ResetDelaySeconds int  `json:"reset_delay_seconds"`
}

// QVoteConfig is the full per-code configuration and live state document
// fanned out to every subscribed viewer session.
type QVoteConfig struct {
	CodeID                string              `json:"code_id"`
	CurrentPhase          Phase               `json:"current_phase"`
	MaxSelectionsPerVoter int                 `json:"max_selections_per_voter"`
	EnableFinals          bool                `json:"enable_finals"`
	Categories            []Category          `json:"categories,omitempty"`
	FormFields            []FormField         `json:"form_fields,omitempty"`
	Verification          *VerificationConfig `json:"verification,omitempty"`
	TabletMode            *TabletModeConfig   `json:"tablet_mode,omitempty"`
	Schedule              map[Phase]time.Time `json:"schedule,omitempty"`
	Stats                 QVoteStats          `json:"stats"`
}

// VerificationEnabled reports whether the verification gate applies.
func (c *QVoteConfig) VerificationEnabled() bool {
	return c.Verification != nil && c.Verification.Enabled
}

// VerificationSession is a phone-bound credential granting a bounded
// number of votes. The row is authoritative; the JWT only names it.
type VerificationSession struct {
	ID             string    `json:"id"`
	CodeID         string    `json:"code_id"`
	Phone          string    `json:"phone"`
	VotesRemaining int       `json:"votes_remaining"`
	MaxVotes       int       `json:"max_votes"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type VisitorInfo struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`
	Kiosk      bool      `json:"kiosk"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// RankedCandidate is one row of a winner snapshot or live standings.
type RankedCandidate struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	CategoryID  string `json:"category_id,omitempty"`
	Votes       int    `json:"votes"`
	Rank        int    `json:"rank"` // 1-indexed
}

// ResultSnapshot is the immutable ranking computed when voting closes.
type ResultSnapshot struct {
	ID         string            `json:"id"`
	CodeID     string            `json:"code_id"`
	Round      int               `json:"round"`
	ComputedAt time.Time         `json:"computed_at"`
	Rankings   []RankedCandidate `json:"rankings"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	// Verification extras, present only when relevant
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
}
