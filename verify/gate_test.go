// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verify

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ranidpz/qrinfo-sub000/auth"
	"github.com/Ranidpz/qrinfo-sub000/models"
	"github.com/Ranidpz/qrinfo-sub000/phase"
	"github.com/Ranidpz/qrinfo-sub000/testutil"
)

const (
	testPhone  = "+15550001111"
	testSecret = "gate-test-secret"
)

// captureSender records deliveries; optionally refuses WhatsApp so the
// SMS fallback can be observed.
type captureSender struct {
	lastCode     string
	lastMethod   string
	failWhatsApp bool
}

func (c *captureSender) Send(ctx context.Context, method, phone, code, locale string) error {
	if c.failWhatsApp && method == models.MethodWhatsApp {
		return errors.New("whatsapp unavailable")
	}
	c.lastCode = code
	c.lastMethod = method
	return nil
}

func setupGate(t *testing.T, vc models.VerificationConfig, cats ...models.Category) (*sql.DB, *Gate, *captureSender, *models.QVoteConfig) {
	t.Helper()
	conn := testutil.NewTestDB(t)
	codeID := testutil.CreateCode(t, conn, "contest")
	vc.Enabled = true
	testutil.ConfigureQVote(t, conn, codeID, models.ConfigureQVoteRequest{
		MaxSelectionsPerVoter: 1,
		Verification:          &vc,
		Categories:            cats,
	})
	cfg, err := phase.LoadConfig(conn, codeID)
	require.NoError(t, err)

	sender := &captureSender{}
	gate := NewGate(conn, testSecret, testSecret, sender, nil)
	return conn, gate, sender, cfg
}

func backdateSend(t *testing.T, conn *sql.DB, codeID string, by time.Duration) {
	t.Helper()
	_, err := conn.Exec(`
		UPDATE verification_code SET last_sent_at = $1 WHERE code_id = $2 AND phone = $3
	`, time.Now().Add(-by), codeID, testPhone)
	require.NoError(t, err)
}

func TestSendCode_RejectsBadPhone(t *testing.T) {
	_, gate, _, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 1, MaxSendsPerPhone: 3, AttemptLimit: 5})

	for _, phone := range []string{"", "abc", "+1", "12345678901234567890"} {
		_, err := gate.SendCode(context.Background(), cfg, phone, "")
		var ve *models.VoteError
		require.ErrorAs(t, err, &ve, "phone %q", phone)
		assert.Equal(t, models.ErrCodeInvalidPhone, ve.Code)
	}
}

func TestSendCode_CooldownAndSendQuota(t *testing.T) {
	conn, gate, sender, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 1, MaxSendsPerPhone: 2, AttemptLimit: 5})

	resp, err := gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)
	assert.Equal(t, models.MethodWhatsApp, resp.Method)
	assert.Len(t, sender.lastCode, 4)

	// Immediate resend hits the cooldown
	_, err = gate.SendCode(context.Background(), cfg, testPhone, "")
	var ve *models.VoteError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeRateLimited, ve.Code)

	// Past the cooldown a second send is fine
	backdateSend(t, conn, cfg.CodeID, SendCooldown+time.Second)
	_, err = gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)

	// The third exceeds the per-phone send quota
	backdateSend(t, conn, cfg.CodeID, SendCooldown+time.Second)
	_, err = gate.SendCode(context.Background(), cfg, testPhone, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeQuotaExceeded, ve.Code)
}

func TestSendCode_FallsBackToSMS(t *testing.T) {
	_, gate, sender, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 1, MaxSendsPerPhone: 3, AttemptLimit: 5})
	sender.failWhatsApp = true

	resp, err := gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)
	assert.Equal(t, models.MethodSMS, resp.Method)
	assert.Equal(t, models.MethodSMS, sender.lastMethod)
}

func TestVerifyCode_NoCodeSent(t *testing.T) {
	_, gate, _, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 1, MaxSendsPerPhone: 3, AttemptLimit: 5})

	_, err := gate.VerifyCode(cfg, testPhone, "0000")
	var ve *models.VoteError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeNoCode, ve.Code)
}

func TestVerifyCode_Expired(t *testing.T) {
	conn, gate, _, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 1, MaxSendsPerPhone: 3, AttemptLimit: 5})
	_, err := gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)

	_, err = conn.Exec(`
		UPDATE verification_code SET expires_at = $1 WHERE code_id = $2 AND phone = $3
	`, time.Now().Add(-time.Minute), cfg.CodeID, testPhone)
	require.NoError(t, err)

	_, err = gate.VerifyCode(cfg, testPhone, "0000")
	var ve *models.VoteError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeExpired, ve.Code)
}

func TestVerifyCode_LockoutAndRecovery(t *testing.T) {
	conn, gate, sender, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 2, MaxSendsPerPhone: 3, AttemptLimit: 3})
	_, err := gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)

	wrong := "0000"
	if sender.lastCode == wrong {
		wrong = "0001"
	}

	// Two misses burn attempts and report the remainder
	for want := 2; want >= 1; want-- {
		_, err = gate.VerifyCode(cfg, testPhone, wrong)
		var ve *models.VoteError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, models.ErrCodeInvalidCode, ve.Code)
		require.NotNil(t, ve.AttemptsRemaining)
		assert.Equal(t, want, *ve.AttemptsRemaining)
	}

	// The third locks the phone
	_, err = gate.VerifyCode(cfg, testPhone, wrong)
	var ve *models.VoteError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeBlocked, ve.Code)
	require.NotNil(t, ve.BlockedUntil)
	assert.WithinDuration(t, time.Now().Add(BlockDuration), *ve.BlockedUntil, 5*time.Second)

	// Still blocked, even with the right code
	_, err = gate.VerifyCode(cfg, testPhone, sender.lastCode)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeBlocked, ve.Code)

	// Once the block elapses, evaluation resumes normally
	_, err = conn.Exec(`
		UPDATE verification_code SET blocked_until = $1 WHERE code_id = $2 AND phone = $3
	`, time.Now().Add(-time.Second), cfg.CodeID, testPhone)
	require.NoError(t, err)

	resp, err := gate.VerifyCode(cfg, testPhone, sender.lastCode)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.VotesRemaining)
	assert.Equal(t, 2, resp.MaxVotes)

	claims, err := auth.ParseSessionToken(resp.SessionToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, cfg.CodeID, claims.CodeID)
	assert.Equal(t, testPhone, claims.Phone)
}

func TestVerifyCode_ReVerifyDoesNotRefillQuota(t *testing.T) {
	conn, gate, sender, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 2, MaxSendsPerPhone: 3, AttemptLimit: 5})

	_, err := gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)
	resp, err := gate.VerifyCode(cfg, testPhone, sender.lastCode)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.VotesRemaining)

	// One vote gets spent
	_, err = conn.Exec(`
		UPDATE verification_session SET votes_remaining = 1 WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, testPhone)
	require.NoError(t, err)

	_, err = gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)
	resp, err = gate.VerifyCode(cfg, testPhone, sender.lastCode)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.VotesRemaining, "re-verification must not refill the quota")
}

func TestSendCode_RefusedWhenQuotaSpent(t *testing.T) {
	conn, gate, sender, cfg := setupGate(t, models.VerificationConfig{MaxVotesPerPhone: 1, MaxSendsPerPhone: 5, AttemptLimit: 5})

	_, err := gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)
	_, err = gate.VerifyCode(cfg, testPhone, sender.lastCode)
	require.NoError(t, err)

	_, err = conn.Exec(`
		UPDATE verification_session SET votes_remaining = 0 WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, testPhone)
	require.NoError(t, err)

	_, err = gate.SendCode(context.Background(), cfg, testPhone, "")
	var ve *models.VoteError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeAlreadyVoted, ve.Code, "single ballot, no categories")
}

func TestSendCode_RefusedWhenAllCategoriesSpent(t *testing.T) {
	conn, gate, sender, cfg := setupGate(t,
		models.VerificationConfig{MaxVotesPerPhone: 2, MaxSendsPerPhone: 5, AttemptLimit: 5},
		models.Category{ID: "taste", Name: "Best Taste"},
		models.Category{ID: "looks", Name: "Best Looks"},
	)

	_, err := gate.SendCode(context.Background(), cfg, testPhone, "")
	require.NoError(t, err)
	_, err = gate.VerifyCode(cfg, testPhone, sender.lastCode)
	require.NoError(t, err)

	_, err = conn.Exec(`
		UPDATE verification_session SET votes_remaining = 0 WHERE code_id = $1 AND phone = $2
	`, cfg.CodeID, testPhone)
	require.NoError(t, err)

	_, err = gate.SendCode(context.Background(), cfg, testPhone, "")
	var ve *models.VoteError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, models.ErrCodeAlreadyVotedAll, ve.Code)
}
