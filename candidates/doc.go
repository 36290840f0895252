// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package candidates implements the candidate store.

# Queries

List takes independent, composable filters:

	cands, err := store.List(codeID, candidates.Filters{
		ApprovedOnly:  true,
		ExcludeHidden: true,
		OrderByVotes:  true,
	})

Default ordering is display_order ascending, then creation time.
A hidden candidate is never shown to voters regardless of approval or
finalist state; a non-approved candidate is excluded from voting and
results queries. Both are filter responsibilities of the caller-facing
paths (voter listings always set ApprovedOnly + ExcludeHidden).

# Counters

VoteCount and FinalsVoteCount are mutated only through
IncrementVoteCounts / DecrementVoteCounts, which issue atomic in-place
UPDATEs (never read-modify-write) and clamp decrements at zero. They
accept an Execer so the vote ledger can run them inside its transaction.

# Self-Registration

Create enforces at most one source='self' candidate per (code, visitor);
a duplicate fails with ALREADY_REGISTERED. A partial unique index is the
backstop for racing registrations from the same visitor.

# Deletes

Delete cascade-decrements: the candidate's selections are removed from
active ledger entries, vote totals are reduced, and ledger entries left
with no selections are dropped so their voters may vote again. This keeps
the cached stats re-derivable from the store after a delete.

# Results

Standings ranks by the round's counter (descending), breaking ties by
display_order then creation time. ComputeWinners ranks per category when
categories exist. SaveSnapshot/LatestSnapshot persist the immutable
ranking computed when voting closes.
*/
package candidates
