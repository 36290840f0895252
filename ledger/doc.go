// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger records votes.

One ledger entry exists per (code, voter, round, category). Submitting
is all-or-nothing: either every selection lands and every counter moves
exactly once, or nothing changes. A second submission without an
intervening reset is rejected with ALREADY_VOTED (ALREADY_VOTED_CATEGORY
for categorized votes) and mutates nothing.

Resetting a vote clears the selections and reverses the counters but
keeps the row as a tombstone, so the change counter survives across
change-your-vote cycles. A revived submission reuses the tombstone.

When verification is enabled a submission must carry a session token;
the session row in the store is authoritative for the remaining quota,
and a reset hands the quota back (capped at the maximum) so changing a
vote works even with a quota of one.

Submissions are accepted during voting, finals, and calculating; the
calculating phase is the server-side grace window for viewers that have
not yet observed the close. Everything else is VOTING_CLOSED.
*/
package ledger
