// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidOperatorKey  = errors.New("invalid operator key")
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrSessionTokenExpired = errors.New("session token expired")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateOperatorKey creates an HMAC-based operator key for a code.
// This is deterministic and verifiable.
func GenerateOperatorKey(codeID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(codeID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateOperatorKey checks if the provided operator key is valid for the code
func ValidateOperatorKey(codeID, operatorKey, salt string) error {
	expected := GenerateOperatorKey(codeID, salt)
	if !hmac.Equal([]byte(operatorKey), []byte(expected)) {
		return ErrInvalidOperatorKey
	}
	return nil
}

// GenerateVoterID creates a random secure identity for an anonymous voter
func GenerateVoterID() (string, error) {
	b := make([]byte, 24) // 24 bytes = 192 bits of entropy
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate voter id: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// GenerateShortID creates the short, deterministic ID a QR code encodes.
// Uses HMAC for determinism and base62 encoding for URL-friendliness.
func GenerateShortID(codeID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(codeID))
	sum := h.Sum(nil)

	// Take first 8 bytes for a shorter id
	return base62Encode(sum[:8])
}

// base62Encode converts bytes to base62 (0-9, a-z, A-Z)
func base62Encode(data []byte) string {
	const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	var num uint64
	for i := 0; i < len(data) && i < 8; i++ {
		num = num<<8 | uint64(data[i])
	}

	if num == 0 {
		return "0"
	}

	result := make([]byte, 0, 11) // max length for uint64
	for num > 0 {
		result = append(result, base62Chars[num%62])
		num /= 62
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	return string(result)
}

// GenerateOTP creates a 4-digit numeric one-time code
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// HashOTP creates a keyed hash of an OTP code for at-rest storage.
// The plaintext code only ever travels to the delivery provider.
func HashOTP(code, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

// HashIP creates a one-way hash of an IP address for privacy
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// First 16 hex chars (64 bits) - enough for deduplication
	return hex.EncodeToString(sum[:8])
}

// SessionClaims are the JWT claims of a verification session token.
// The token only names the session row; vote quota lives in the store.
type SessionClaims struct {
	SessionID string `json:"sid"`
	CodeID    string `json:"cid"`
	Phone     string `json:"phn"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a verification session token.
func IssueSessionToken(sessionID, codeID, phone string, expiresAt time.Time, secret string) (string, error) {
	claims := SessionClaims{
		SessionID: sessionID,
		CodeID:    codeID,
		Phone:     phone,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates a session token and returns its claims.
// Returns ErrSessionTokenExpired for expired-but-otherwise-valid tokens
// so callers can distinguish re-verify from reject.
func ParseSessionToken(tokenStr, secret string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionTokenExpired
		}
		return nil, ErrInvalidSessionToken
	}
	if claims.SessionID == "" || claims.CodeID == "" {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}
