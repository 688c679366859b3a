// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package rotation implements signed parameter rotation packs: their
// creation by the authority, and their verification, anti-replay checking
// and application by forwarding nodes.
package rotation

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/signer"
)

// PackVersion is the rotation pack format tag.
const PackVersion = "1.0"

var (
	ccbor cbor.EncMode

	// ErrMalformedPack is returned when a serialized pack cannot be
	// decoded or is not well formed.
	ErrMalformedPack = errors.New("rotation: malformed pack")
)

func init() {
	// The signed payload requires one fixed byte representation, any two
	// encodings of the same logical pack must be identical or signature
	// verification breaks between authority and node.
	opts := cbor.CanonicalEncOptions()
	var err error
	ccbor, err = opts.EncMode()
	if err != nil {
		panic(err)
	}
}

// Pack is a signed, time bounded configuration delta.  Packs are
// immutable once signed, every field except Signature is covered by the
// signature.
type Pack struct {
	// Version is the pack format tag.
	Version string

	// RotationID is a 128 bit random identifier, unique per pack, the
	// anti-replay key within a channel.
	RotationID string

	// ChannelID scopes replay detection and validity.  Channels are
	// disjoint namespaces.
	ChannelID string

	// IssuedAt is the issue time in seconds since the epoch.
	IssuedAt uint64

	// ValidUntil is the end of the validity window in seconds since the
	// epoch.  Zero means absent (legacy format), which switches
	// acceptance to the maximum age fallback.
	ValidUntil uint64

	// Parameters is the delta to apply, recognized parameter name to
	// value.
	Parameters map[string]interface{}

	// Signature covers the canonical encoding of all preceding fields.
	Signature []byte
}

// signedPack is the canonical signed payload layout.  Field tags pin the
// encoded map keys; canonical CBOR encoding pins their order and the
// numeric representation.
type signedPack struct {
	Version    string                 `cbor:"version"`
	RotationID string                 `cbor:"rotation_id"`
	ChannelID  string                 `cbor:"channel_id"`
	IssuedAt   uint64                 `cbor:"issued_at"`
	ValidUntil uint64                 `cbor:"valid_until,omitempty"`
	Parameters map[string]interface{} `cbor:"parameters"`
}

// packWire is the serialized pack layout.
type packWire struct {
	Version    string                 `cbor:"version"`
	RotationID string                 `cbor:"rotation_id"`
	ChannelID  string                 `cbor:"channel_id"`
	IssuedAt   uint64                 `cbor:"issued_at"`
	ValidUntil uint64                 `cbor:"valid_until,omitempty"`
	Parameters map[string]interface{} `cbor:"parameters"`
	Signature  []byte                 `cbor:"signature"`
}

// New creates a signed rotation pack for the given channel, carrying the
// given parameter delta, valid from now for the given validity duration.
func New(p signer.Provider, privateKey []byte, channel string, parameters map[string]interface{}, validity time.Duration) (*Pack, error) {
	if channel == "" {
		return nil, errors.New("rotation: channel must not be empty")
	}
	if validity <= 0 {
		return nil, errors.New("rotation: validity must be positive")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	now := uint64(time.Now().Unix())

	pk := &Pack{
		Version:    PackVersion,
		RotationID: id.String(),
		ChannelID:  channel,
		IssuedAt:   now,
		ValidUntil: now + uint64(validity/time.Second),
		Parameters: parameters,
	}
	payload, err := pk.signedPayload()
	if err != nil {
		return nil, err
	}
	pk.Signature, err = p.Sign(payload, privateKey)
	if err != nil {
		return nil, err
	}
	return pk, nil
}

func (p *Pack) signedPayload() ([]byte, error) {
	return ccbor.Marshal(&signedPack{
		Version:    p.Version,
		RotationID: p.RotationID,
		ChannelID:  p.ChannelID,
		IssuedAt:   p.IssuedAt,
		ValidUntil: p.ValidUntil,
		Parameters: p.Parameters,
	})
}

// Verify recomputes the canonical signed payload from the pack's current
// field values and checks the signature against the authority public key.
// Any mutation of a signed field after signing invalidates verification.
func (p *Pack) Verify(prov signer.Provider, publicKey []byte) bool {
	payload, err := p.signedPayload()
	if err != nil {
		return false
	}
	return prov.Verify(payload, p.Signature, publicKey)
}

// Bytes serializes the pack for transport.
func (p *Pack) Bytes() ([]byte, error) {
	return ccbor.Marshal(&packWire{
		Version:    p.Version,
		RotationID: p.RotationID,
		ChannelID:  p.ChannelID,
		IssuedAt:   p.IssuedAt,
		ValidUntil: p.ValidUntil,
		Parameters: p.Parameters,
		Signature:  p.Signature,
	})
}

// FromBytes deserializes a pack and checks that it is well formed.  It
// does NOT verify the signature.
func FromBytes(b []byte) (*Pack, error) {
	w := new(packWire)
	if err := cbor.Unmarshal(b, w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPack, err)
	}
	p := &Pack{
		Version:    w.Version,
		RotationID: w.RotationID,
		ChannelID:  w.ChannelID,
		IssuedAt:   w.IssuedAt,
		ValidUntil: w.ValidUntil,
		Parameters: w.Parameters,
		Signature:  w.Signature,
	}
	if err := p.wellFormed(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pack) wellFormed() error {
	if p.Version != PackVersion {
		return fmt.Errorf("%w: unsupported version '%v'", ErrMalformedPack, p.Version)
	}
	if p.RotationID == "" {
		return fmt.Errorf("%w: missing rotation_id", ErrMalformedPack)
	}
	if p.ChannelID == "" {
		return fmt.Errorf("%w: missing channel_id", ErrMalformedPack)
	}
	if p.IssuedAt == 0 {
		return fmt.Errorf("%w: missing issued_at", ErrMalformedPack)
	}
	if p.ValidUntil != 0 && p.ValidUntil <= p.IssuedAt {
		return fmt.Errorf("%w: valid_until precedes issued_at", ErrMalformedPack)
	}
	if len(p.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", ErrMalformedPack)
	}
	return nil
}
