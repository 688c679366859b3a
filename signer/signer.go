// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package signer provides the signature scheme used to authenticate
// rotation packs.
package signer

import (
	"errors"
)

var (
	// ErrKeySize is returned when a key is not the exact length the
	// scheme contract requires.  Wrong sized keys are rejected outright,
	// never truncated or padded.
	ErrKeySize = errors.New("signer: wrong key size")

	// ErrSignatureSize is returned when a signature is not the exact
	// length the scheme contract requires.
	ErrSignatureSize = errors.New("signer: wrong signature size")
)

// Provider is a signature scheme instance.
//
// Verify implementations compare signatures in constant time on the
// mismatch path, so a caller never leaks how much of a forged signature
// matched.
type Provider interface {
	// Name returns the scheme name.
	Name() string

	// GenerateKeypair creates a new keypair.
	GenerateKeypair() (publicKey, privateKey []byte, err error)

	// Sign signs payload with privateKey and returns the signature.
	Sign(payload, privateKey []byte) ([]byte, error)

	// Verify checks that signature is a valid signature of payload by
	// the holder of publicKey.  Malformed input of any kind returns
	// false.
	Verify(payload, signature, publicKey []byte) bool

	// PublicKeySize returns the exact public key length in bytes.
	PublicKeySize() int

	// PrivateKeySize returns the exact private key length in bytes.
	PrivateKeySize() int

	// SignatureSize returns the exact signature length in bytes.
	SignatureSize() int

	// TestMode returns true iff this provider does NOT provide real
	// cryptographic signatures and must never be used in production.
	TestMode() bool
}
