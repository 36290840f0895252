// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3418)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: "postgres" or "sqlite" (default: sqlite)
  - OperatorKeySalt: Secret for operator key HMAC (required)
  - ShortIDSalt: Secret for code short-id generation (required)
  - SessionSecret: Signing secret for verification session tokens (required)
  - OTPSalt: Secret for hashing OTP codes at rest (required)
  - OTPGatewayURL: OTP delivery gateway endpoint (optional)

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type
	-operator-salt   Operator key salt
	-shortid-salt    Short ID salt
	-session-secret  Session signing secret
	-otp-salt        OTP hashing salt
	-otp-gateway     OTP gateway URL

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	OPERATOR_KEY_SALT → -operator-salt
	SHORT_ID_SALT    → -shortid-salt
	SESSION_SECRET   → -session-secret
	OTP_SALT         → -otp-salt
	OTP_GATEWAY_URL  → -otp-gateway

CLI flags take precedence over environment variables. main also loads a
.env file via godotenv before parsing, so a local .env works for dev.

# Validation

ParseFlags returns an error if required values are missing:

  - DATABASE_URL must be provided
  - OPERATOR_KEY_SALT must be provided
  - SHORT_ID_SALT must be provided
  - SESSION_SECRET must be provided
  - OTP_SALT must be provided
*/
package cliparse
