// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package rotation

import (
	"time"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/shaping"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/signer"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/window"
)

const (
	// DefaultClockSkew is the tolerated forward clock skew on issued_at.
	DefaultClockSkew = 30 * time.Second

	// DefaultMaxPackAge is the acceptance age bound for legacy packs
	// without a validity window.
	DefaultMaxPackAge = 24 * time.Hour
)

// ApplyOpts parameterizes a pack application attempt.
type ApplyOpts struct {
	// Provider is the signature scheme to verify with.
	Provider signer.Provider

	// PublicKey is the authority public key.
	PublicKey []byte

	// Now is the decision time; zero means time.Now.
	Now time.Time

	// ClockSkew is the tolerated forward skew on issued_at; zero means
	// DefaultClockSkew.
	ClockSkew time.Duration

	// MaxPackAge is the legacy age fallback; zero means
	// DefaultMaxPackAge.
	MaxPackAge time.Duration
}

// Apply runs the acceptance pipeline against the window store and, on
// success, atomically applies the pack's parameter delta to the live
// shaping configuration and records the rotation id as consumed.  The
// checks run in a fixed order and the first failing check decides the
// returned reason.  On any rejection the shaping configuration is
// untouched.
//
// The window store and the configuration commit together: the store
// insert is the single atomic replay arbiter, and the staged parameter
// set only becomes visible after the insert succeeded.  Store failures
// reject the pack fail-closed.
func (p *Pack) Apply(st window.Store, cfg *shaping.Config, o *ApplyOpts) (bool, Reason) {
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}
	skew := o.ClockSkew
	if skew == 0 {
		skew = DefaultClockSkew
	}
	maxAge := o.MaxPackAge
	if maxAge == 0 {
		maxAge = DefaultMaxPackAge
	}
	nowSec := uint64(now.Unix())

	// 1. Authenticity.
	if err := p.wellFormed(); err != nil {
		return false, ReasonMalformedPayload
	}
	if !p.Verify(o.Provider, o.PublicKey) {
		return false, ReasonBadSignature
	}

	// 2. Issued in the future beyond the tolerated skew.
	if p.IssuedAt > nowSec+uint64(skew/time.Second) {
		return false, ReasonFuture
	}

	// 3. Already consumed.
	exists, err := st.Exists(p.ChannelID, p.RotationID)
	if err != nil {
		return false, ReasonStoreUnavailable
	}
	if exists {
		return false, ReasonReplay
	}

	// 4. Validity window passed.
	if p.ValidUntil != 0 && p.ValidUntil < nowSec {
		return false, ReasonExpired
	}

	// 5. Legacy pack older than the age fallback.  A legacy pack whose
	// issued_at is ahead of now (but within the skew tolerated above) has
	// no age yet.
	if p.ValidUntil == 0 && p.IssuedAt <= nowSec && nowSec-p.IssuedAt > uint64(maxAge/time.Second) {
		return false, ReasonStale
	}

	// 6. Every parameter must be recognized, there is no partial
	// application.  Stage holds the shaping write lock through the
	// store insert below.
	staged, err := cfg.Stage(p.Parameters)
	if err != nil {
		return false, ReasonMalformedPayload
	}

	// 7. Atomic commit: the insert is the replay test-and-set, losing
	// the race means some concurrent caller applied these exact bytes
	// first.
	guardUntil := p.ValidUntil
	if guardUntil == 0 {
		guardUntil = p.IssuedAt + uint64(maxAge/time.Second)
	}
	added, err := st.Add(p.ChannelID, p.RotationID, p.IssuedAt, guardUntil)
	if err != nil {
		staged.Discard()
		return false, ReasonStoreUnavailable
	}
	if !added {
		staged.Discard()
		return false, ReasonReplay
	}
	staged.Commit()

	return true, ReasonNone
}
