// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Q.Vote API server.

Q.Vote is the live-voting subsystem of a QR-code content platform: a
code (the thing a QR points at) carries a voting configuration, a
candidate roster, a phone verification gate, and a phased lifecycle from
candidate registration through live voting to published results. Live
viewers follow state over an SSE stream fed by an in-process hub.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=file:qvote.db OPERATOR_KEY_SALT=... SHORT_ID_SALT=... SESSION_SECRET=... go run .

Or with flags:

	go run . -p 3418 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): postgres connection string or sqlite path
  - OPERATOR_KEY_SALT (-operator-salt): secret for operator key HMAC
  - SHORT_ID_SALT (-shortid-salt): secret for code short-id generation
  - SESSION_SECRET (-session-secret): verification token signing secret

Optional settings:

  - PORT (-p): server port (default: 3418)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - OTP_GATEWAY_URL (-otp-gateway): delivery gateway; codes are logged
    when unset

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (operator and visitor surfaces)
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers, coded error mapping
  - models: domain and request/response types, phase machine, error codes
  - candidates: candidate store, counters, rankings, snapshots
  - ledger: the vote ledger
  - phase: phase controller, schedules, background scheduler
  - verify: phone verification gate and OTP delivery
  - livesync: fan-out hub and the viewer session automaton
  - metrics: prometheus counters and gauges
  - auth: keys, ids, OTP hashing, session tokens
  - db: schema creation
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
