// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDilithiumSizes(t *testing.T) {
	require := require.New(t)
	p := NewDilithiumProvider()

	require.Equal(SchemeDilithium3, p.Name())
	require.False(p.TestMode())
	require.Equal(1952, p.PublicKeySize())
	require.Equal(4000, p.PrivateKeySize())
	require.Equal(3293, p.SignatureSize())
}

func TestDilithiumSignVerify(t *testing.T) {
	require := require.New(t)
	p := NewDilithiumProvider()

	pub, priv, err := p.GenerateKeypair()
	require.NoError(err)
	require.Len(pub, p.PublicKeySize())
	require.Len(priv, p.PrivateKeySize())

	payload := []byte("rotation pack payload")
	sig, err := p.Sign(payload, priv)
	require.NoError(err)
	require.Len(sig, p.SignatureSize())

	require.True(p.Verify(payload, sig, pub))

	// Tampered payload fails.
	require.False(p.Verify([]byte("rotation pack payloae"), sig, pub))

	// A single flipped signature bit fails.
	sig[17] ^= 0x01
	require.False(p.Verify(payload, sig, pub))
	sig[17] ^= 0x01

	// The wrong public key fails.
	otherPub, _, err := p.GenerateKeypair()
	require.NoError(err)
	require.False(p.Verify(payload, sig, otherPub))
}

func TestDilithiumLengthChecks(t *testing.T) {
	require := require.New(t)
	p := NewDilithiumProvider()

	pub, priv, err := p.GenerateKeypair()
	require.NoError(err)

	payload := []byte("payload")

	_, err = p.Sign(payload, priv[:len(priv)-1])
	require.ErrorIs(err, ErrKeySize)
	_, err = p.Sign(payload, nil)
	require.ErrorIs(err, ErrKeySize)

	sig, err := p.Sign(payload, priv)
	require.NoError(err)

	require.False(p.Verify(payload, sig[:len(sig)-1], pub))
	require.False(p.Verify(payload, sig, pub[:len(pub)-1]))
	require.False(p.Verify(payload, nil, pub))
}

func TestTestProvider(t *testing.T) {
	require := require.New(t)
	p := NewTestProvider(nil)

	require.Equal(SchemeTestMode, p.Name())
	require.True(p.TestMode())
	require.Equal(32, p.PublicKeySize())
	require.Equal(32, p.PrivateKeySize())
	require.Equal(32, p.SignatureSize())

	pub, priv, err := p.GenerateKeypair()
	require.NoError(err)
	require.Len(pub, 32)
	require.Len(priv, 32)

	payload := []byte("rotation pack payload")
	sig, err := p.Sign(payload, priv)
	require.NoError(err)
	require.True(p.Verify(payload, sig, pub))

	require.False(p.Verify([]byte("other"), sig, pub))
	sig[0] ^= 0x01
	require.False(p.Verify(payload, sig, pub))
	sig[0] ^= 0x01

	otherPub, _, err := p.GenerateKeypair()
	require.NoError(err)
	require.False(p.Verify(payload, sig, otherPub))

	_, err = p.Sign(payload, priv[:16])
	require.ErrorIs(err, ErrKeySize)
	require.False(p.Verify(payload, sig[:16], pub))
	require.False(p.Verify(payload, sig, pub[:16]))
}
