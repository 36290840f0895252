// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package verify implements the phone verification gate.

Per phone the gate moves through unverified → code sent → verified,
with a blocked detour after too many wrong guesses. Codes are 4 digits,
stored only as a keyed hash, and expire after CodeTTL. Sends are
throttled by a per-phone cooldown and a per-phone send quota; a phone
whose vote quota is already spent is refused a code outright.

Delivery goes WhatsApp-first with SMS fallback, each channel retried a
few times. The dev LogSender stands in when no gateway is configured.

A successful verification consumes the code and mints a verification
session: a store row holding the phone's remaining vote quota plus a
signed token naming that row. Re-verifying renews the session's expiry
but never refills the quota.
*/
package verify
