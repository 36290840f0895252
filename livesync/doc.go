// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package livesync is the bridge between the server's authoritative state
and live viewers.

Hub is the server half: a per-code fan-out of config documents and
candidate lists. Publishing never blocks; a subscriber that cannot keep
up loses intermediate updates, which is fine because only the latest
state matters to a display. Cancel guarantees no sends after it returns.

Session is the viewer half: a small automaton deciding what the screen
shows. It adopts server updates immediately except for one case: a
voting close arriving while the viewer is mid-selection is deferred for
GracePeriodTicks so an in-flight submission can land (the ledger's
calculating-phase window is the matching server-side allowance). Wipe
detection watches for vote totals dropping to zero and clears all local
voting state when it fires. Kiosk sessions never suppress the ballot
and auto-reset a few seconds after each accepted vote, ready for the
next person in line.
*/
package livesync
