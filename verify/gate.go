// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verify

import (
	"context"
	"crypto/hmac"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/Ranidpz/qrinfo-sub000/auth"
	"github.com/Ranidpz/qrinfo-sub000/metrics"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

const (
	// CodeTTL is how long a delivered code stays verifiable.
	CodeTTL = 5 * time.Minute
	// SendCooldown throttles repeat sends to the same phone.
	SendCooldown = 60 * time.Second
	// BlockDuration is the lockout after exhausting verify attempts.
	BlockDuration = 15 * time.Minute
	// SessionTTL bounds how long a verified session stays usable.
	SessionTTL = 24 * time.Hour
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// Gate is the phone verification gate: it sends one-time codes, checks
// them, and mints verification sessions the ledger consumes.
type Gate struct {
	db            *sql.DB
	sessionSecret string
	otpSalt       string
	sender        Sender
	metrics       *metrics.Service
}

func NewGate(db *sql.DB, sessionSecret, otpSalt string, sender Sender, ms *metrics.Service) *Gate {
	return &Gate{db: db, sessionSecret: sessionSecret, otpSalt: otpSalt, sender: sender, metrics: ms}
}

// SendCode delivers a one-time code to the phone, subject to the
// per-phone cooldown, the send quota, and the vote quota.
func (g *Gate) SendCode(ctx context.Context, cfg *models.QVoteConfig, phone, locale string) (*models.SendCodeResponse, error) {
	if !cfg.VerificationEnabled() {
		return nil, models.NewVoteError(models.ErrCodeInvalidSelection, "verification is not enabled for this code")
	}
	if !phonePattern.MatchString(phone) {
		return nil, models.NewVoteError(models.ErrCodeInvalidPhone, "phone number is not valid")
	}

	// A phone whose quota is spent gets told so before we burn a send
	var votesRemaining int
	err := g.db.QueryRow(`
		SELECT votes_remaining FROM verification_session WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, phone).Scan(&votesRemaining)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check verification session: %w", err)
	}
	if err == nil && votesRemaining <= 0 {
		// ALREADY_VOTED_ALL is reserved for multi-category ballots
		if len(cfg.Categories) == 0 {
			return nil, models.NewVoteError(models.ErrCodeAlreadyVoted, "this phone has already voted")
		}
		return nil, models.NewVoteError(models.ErrCodeAlreadyVotedAll, "this phone has voted in every category")
	}

	now := time.Now()
	var blockedUntil, lastSentAt sql.NullTime
	var sendCount int
	err = g.db.QueryRow(`
		SELECT blocked_until, last_sent_at, send_count FROM verification_code
		WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, phone).Scan(&blockedUntil, &lastSentAt, &sendCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check verification code: %w", err)
	}
	if blockedUntil.Valid && blockedUntil.Time.After(now) {
		ve := models.NewVoteError(models.ErrCodeBlocked, "too many failed attempts")
		ve.BlockedUntil = &blockedUntil.Time
		return nil, ve
	}
	if lastSentAt.Valid && now.Sub(lastSentAt.Time) < SendCooldown {
		return nil, models.NewVoteError(models.ErrCodeRateLimited, "please wait before requesting another code")
	}
	if sendCount >= cfg.Verification.MaxSendsPerPhone {
		return nil, models.NewVoteError(models.ErrCodeQuotaExceeded, "send limit reached for this phone")
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return nil, err
	}
	method, err := deliver(ctx, g.sender, phone, code, locale)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(CodeTTL)
	_, err = g.db.Exec(`
		INSERT INTO verification_code (code_id, phone, code_hash, expires_at, attempts_remaining, blocked_until, last_sent_at, send_count)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, 1)
		ON CONFLICT (code_id, phone) DO UPDATE SET
			code_hash = excluded.code_hash,
			expires_at = excluded.expires_at,
			attempts_remaining = excluded.attempts_remaining,
			blocked_until = NULL,
			last_sent_at = excluded.last_sent_at,
			send_count = verification_code.send_count + 1
	`, cfg.CodeID, phone, auth.HashOTP(code, g.otpSalt), expiresAt, cfg.Verification.AttemptLimit, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	slog.Info("verification code sent", "code_id", cfg.CodeID, "method", method)
	g.metrics.IncOTPSent(method)
	return &models.SendCodeResponse{Method: method, ExpiresAt: expiresAt}, nil
}

// VerifyCode checks a submitted code. On success it mints (or renews)
// the phone's verification session and returns a signed session token.
// Failures burn an attempt; exhausting them blocks the phone.
func (g *Gate) VerifyCode(cfg *models.QVoteConfig, phone, code string) (*models.VerifyCodeResponse, error) {
	if !cfg.VerificationEnabled() {
		return nil, models.NewVoteError(models.ErrCodeInvalidSelection, "verification is not enabled for this code")
	}

	now := time.Now()
	var codeHash string
	var expiresAt time.Time
	var attemptsRemaining int
	var blockedUntil sql.NullTime
	err := g.db.QueryRow(`
		SELECT code_hash, expires_at, attempts_remaining, blocked_until FROM verification_code
		WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, phone).Scan(&codeHash, &expiresAt, &attemptsRemaining, &blockedUntil)
	if err == sql.ErrNoRows {
		return nil, models.NewVoteError(models.ErrCodeNoCode, "no code was sent to this phone")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verification code: %w", err)
	}

	if blockedUntil.Valid {
		if blockedUntil.Time.After(now) {
			ve := models.NewVoteError(models.ErrCodeBlocked, "too many failed attempts")
			ve.BlockedUntil = &blockedUntil.Time
			return nil, ve
		}
		// Block elapsed: clear it and restore the attempt budget
		attemptsRemaining = cfg.Verification.AttemptLimit
		if _, err := g.db.Exec(`
			UPDATE verification_code SET blocked_until = NULL, attempts_remaining = $1
			WHERE code_id = $2 AND phone = $3
		`, attemptsRemaining, cfg.CodeID, phone); err != nil {
			return nil, fmt.Errorf("failed to clear block: %w", err)
		}
	}

	if now.After(expiresAt) {
		return nil, models.NewVoteError(models.ErrCodeExpired, "the code has expired")
	}

	if !hmac.Equal([]byte(auth.HashOTP(code, g.otpSalt)), []byte(codeHash)) {
		g.metrics.IncOTPVerifyFailed()
		attemptsRemaining--
		if attemptsRemaining <= 0 {
			blockUntil := now.Add(BlockDuration)
			if _, err := g.db.Exec(`
				UPDATE verification_code SET attempts_remaining = 0, blocked_until = $1
				WHERE code_id = $2 AND phone = $3
			`, blockUntil, cfg.CodeID, phone); err != nil {
				return nil, fmt.Errorf("failed to block phone: %w", err)
			}
			slog.Warn("phone blocked after failed attempts", "code_id", cfg.CodeID)
			ve := models.NewVoteError(models.ErrCodeBlocked, "too many failed attempts")
			ve.BlockedUntil = &blockUntil
			return nil, ve
		}
		if _, err := g.db.Exec(`
			UPDATE verification_code SET attempts_remaining = $1
			WHERE code_id = $2 AND phone = $3
		`, attemptsRemaining, cfg.CodeID, phone); err != nil {
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}
		ve := models.NewVoteError(models.ErrCodeInvalidCode, "the code is not correct")
		ve.AttemptsRemaining = &attemptsRemaining
		return nil, ve
	}

	// Correct code: consume it and mint the session
	if _, err := g.db.Exec(`
		DELETE FROM verification_code WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, phone); err != nil {
		return nil, fmt.Errorf("failed to consume verification code: %w", err)
	}

	session, err := g.ensureSession(cfg, phone, now)
	if err != nil {
		return nil, err
	}
	token, err := auth.IssueSessionToken(session.ID, cfg.CodeID, phone, session.ExpiresAt, g.sessionSecret)
	if err != nil {
		return nil, err
	}

	slog.Info("phone verified", "code_id", cfg.CodeID, "votes_remaining", session.VotesRemaining)
	g.metrics.IncOTPVerified()
	return &models.VerifyCodeResponse{
		SessionToken:   token,
		VotesRemaining: session.VotesRemaining,
		MaxVotes:       session.MaxVotes,
	}, nil
}

// ensureSession creates the phone's session on first verification and
// renews its expiry on re-verification. Re-verifying never refills the
// vote quota.
func (g *Gate) ensureSession(cfg *models.QVoteConfig, phone string, now time.Time) (*models.VerificationSession, error) {
	expiresAt := now.Add(SessionTTL)
	session := &models.VerificationSession{CodeID: cfg.CodeID, Phone: phone}

	err := g.db.QueryRow(`
		SELECT id, votes_remaining, max_votes FROM verification_session
		WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, phone).Scan(&session.ID, &session.VotesRemaining, &session.MaxVotes)
	if err == sql.ErrNoRows {
		session.ID = uuid.NewString()
		session.VotesRemaining = cfg.Verification.MaxVotesPerPhone
		session.MaxVotes = cfg.Verification.MaxVotesPerPhone
		session.CreatedAt = now
		session.ExpiresAt = expiresAt
		_, err = g.db.Exec(`
			INSERT INTO verification_session (id, code_id, phone, votes_remaining, max_votes, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, session.ID, cfg.CodeID, phone, session.VotesRemaining, session.MaxVotes, now, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create verification session: %w", err)
		}
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verification session: %w", err)
	}

	session.ExpiresAt = expiresAt
	if _, err := g.db.Exec(`
		UPDATE verification_session SET expires_at = $1 WHERE id = $2
	`, expiresAt, session.ID); err != nil {
		return nil, fmt.Errorf("failed to renew verification session: %w", err)
	}
	return session, nil
}
