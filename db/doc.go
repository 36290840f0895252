// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The DDL sticks to the dialect both supported databases (postgres, sqlite)
accept, and queries throughout the codebase use $1..$n placeholders in
first-occurrence order for the same reason.

# Tables

  - code: the shareable entity a QR points at
  - qvote_config: per-code phase, limits, verification config, cached stats
  - qvote_schedule: scheduled phase transitions
  - qvote_category / qvote_form_field: voting categories and form schema
  - candidate (+ candidate_photo, candidate_category, candidate_form_value)
  - vote (+ vote_selection): the append-only vote ledger
  - verification_session / verification_code: phone verification state
  - result_snapshot: immutable winner rankings

# Key Constraints

  - vote UNIQUE (code_id, voter_id, round, category_id): the idempotency
    backstop for exactly-once counting. category_id stores '' instead of
    NULL so uncategorized votes are covered.
  - candidate partial unique index on (code_id, visitor_id) for
    source='self': one self-registration per visitor per code.
  - vote_count / finals_vote_count CHECK >= 0: counters never go negative.
*/
package db
