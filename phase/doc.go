// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package phase implements the phase controller and schedule handling.

# Lifecycle

	registration → preparation → voting → finals → calculating → results

The controller is a dumb setter: AdvancePhase never forbids a transition
(operators may move backward). What it does own are entry side effects:

  - entering calculating or results snapshots the closing round's winners
  - entering finals assumes finalist flags are already set by the operator
  - entering results logically closes the ledger (enforced by the ledger)

With enable_finals off the lifecycle skips finals, and AdvancePhase
rejects finals as a target.

# Schedules

A schedule maps phases to timestamps. CheckScheduledTransition is a pure
function; the latest elapsed entry wins, so a process that was down for
an hour lands directly on the right phase instead of replaying the ones
in between. ValidateSchedule rejects non-monotone schedules at write
time; the runtime tie-break still tolerates legacy out-of-order rows.

Scheduler polls every 10 seconds (DefaultPollInterval) and applies
elapsed transitions through the controller, so scheduled changes get the
same side effects and fan-out as manual ones.

# Config Document

LoadConfig/Configure read and write the QVoteConfig document (config row,
schedule, categories, form fields) that the live sync bridge fans out.
*/
package phase
