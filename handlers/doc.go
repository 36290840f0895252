// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP handlers.

Two surfaces share the package: the operator surface under /codes,
authenticated per-code by the X-Operator-Key header, and the visitor
surface under /q/{shortId}, identified by the anonymous X-Visitor-ID
device header. Handlers stay thin; domain rules live in the candidates,
ledger, phase, and verify packages, and expected rejections travel as
coded errors the middleware maps to HTTP statuses.
*/
package handlers
