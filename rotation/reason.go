// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package rotation

// Reason explains the outcome of a pack application attempt.
type Reason uint8

const (
	// ReasonNone means the pack was accepted.
	ReasonNone Reason = iota

	// ReasonBadSignature means the signature did not verify.
	ReasonBadSignature

	// ReasonFuture means issued_at is further in the future than the
	// tolerated clock skew.
	ReasonFuture

	// ReasonReplay means the (channel, rotation id) pair was already
	// consumed.
	ReasonReplay

	// ReasonExpired means the validity window has passed.
	ReasonExpired

	// ReasonStale means a legacy pack without a validity window exceeded
	// the maximum age fallback.
	ReasonStale

	// ReasonMalformedPayload means the pack could not be decoded, is not
	// well formed, or names an unrecognized parameter.
	ReasonMalformedPayload

	// ReasonStoreUnavailable means the window store failed, the pack is
	// rejected fail-closed.
	ReasonStoreUnavailable
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBadSignature:
		return "bad_signature"
	case ReasonFuture:
		return "future"
	case ReasonReplay:
		return "replay"
	case ReasonExpired:
		return "expired"
	case ReasonStale:
		return "stale"
	case ReasonMalformedPayload:
		return "malformed_payload"
	case ReasonStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}
