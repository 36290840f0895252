// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation and validation.

# Operator Keys

Operator keys are HMAC(code_id, salt), deterministic and verifiable
without storage:

	key := auth.GenerateOperatorKey(codeID, cfg.OperatorKeySalt)
	err := auth.ValidateOperatorKey(codeID, key, cfg.OperatorKeySalt)

# Short IDs

GenerateShortID derives the base62 short identifier a QR code encodes,
HMAC-keyed so short IDs are not guessable from code IDs.

# Verification Session Tokens

Session tokens are HS256 JWTs naming a verification_session row:

	tok, err := auth.IssueSessionToken(sessionID, codeID, phone, exp, secret)
	claims, err := auth.ParseSessionToken(tok, secret)

ParseSessionToken returns ErrSessionTokenExpired for expired tokens and
ErrInvalidSessionToken for everything else, so the gate can map them to
SESSION_EXPIRED vs INVALID_SESSION. The quota (votes remaining) is never
in the token - it is read from the session row on every use.

# OTP

GenerateOTP produces the 4-digit code; HashOTP stores it keyed so a
database leak does not expose live codes.
*/
package auth
