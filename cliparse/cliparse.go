package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
)

type Config struct {
	Port            int
	DatabaseURL     string
	DatabaseType    string
	OperatorKeySalt string
	ShortIDSalt     string
	SessionSecret   string
	OTPSalt         string
	OTPGatewayURL   string
}

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("qrinfo-qvote", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.OTPGatewayURL, "otp-gateway", "", "OTP delivery gateway URL (optional)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.OperatorKeySalt, "operator-salt", "", "Operator key salt (prefer env)")
	fs.StringVar(&cfg.ShortIDSalt, "shortid-salt", "", "Short ID salt (prefer env)")
	fs.StringVar(&cfg.SessionSecret, "session-secret", "", "Verification session signing secret (prefer env)")
	fs.StringVar(&cfg.OTPSalt, "otp-salt", "", "OTP hashing salt (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3418 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("DATABASE_TYPE must be sqlite or postgres")
	}

	if cfg.OTPGatewayURL == "" {
		cfg.OTPGatewayURL = os.Getenv("OTP_GATEWAY_URL")
	}

	// Secrets - MUST be provided
	if cfg.OperatorKeySalt == "" {
		cfg.OperatorKeySalt = os.Getenv("OPERATOR_KEY_SALT")
	}
	if cfg.OperatorKeySalt == "" {
		return Config{}, errors.New("OPERATOR_KEY_SALT required")
	}

	if cfg.ShortIDSalt == "" {
		cfg.ShortIDSalt = os.Getenv("SHORT_ID_SALT")
	}
	if cfg.ShortIDSalt == "" {
		return Config{}, errors.New("SHORT_ID_SALT required")
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET required")
	}

	if cfg.OTPSalt == "" {
		cfg.OTPSalt = os.Getenv("OTP_SALT")
	}
	if cfg.OTPSalt == "" {
		return Config{}, errors.New("OTP_SALT required")
	}

	return cfg, nil
}

// DriverName maps the configured database type to its sql driver name.
func (c Config) DriverName() string {
	if c.DatabaseType == "postgres" {
		return "postgres"
	}
	return "sqlite"
}
