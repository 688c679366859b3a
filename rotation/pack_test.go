// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/signer"
)

func TestNewAndVerify(t *testing.T) {
	require := require.New(t)
	prov := signer.NewTestProvider(nil)
	pub, priv, err := prov.GenerateKeypair()
	require.NoError(err)

	p, err := New(prov, priv, "channel1", map[string]interface{}{
		"size.mean_bytes": int64(1100),
	}, 5*time.Minute)
	require.NoError(err)

	require.Equal(PackVersion, p.Version)
	require.Len(p.RotationID, 36) // UUID string form.
	require.Equal("channel1", p.ChannelID)
	require.NotZero(p.IssuedAt)
	require.Equal(p.IssuedAt+300, p.ValidUntil)
	require.Len(p.Signature, prov.SignatureSize())

	require.True(p.Verify(prov, pub))
}

func TestVerifyRejectsMutation(t *testing.T) {
	require := require.New(t)
	prov := signer.NewTestProvider(nil)
	pub, priv, err := prov.GenerateKeypair()
	require.NoError(err)

	mutations := []func(*Pack){
		func(p *Pack) { p.ChannelID = "channel2" },
		func(p *Pack) { p.RotationID = "00000000-0000-0000-0000-000000000000" },
		func(p *Pack) { p.IssuedAt++ },
		func(p *Pack) { p.ValidUntil += 3600 },
		func(p *Pack) { p.Parameters["size.mean_bytes"] = int64(9999) },
		func(p *Pack) { p.Parameters["cover.base_ratio"] = 0.9 },
		func(p *Pack) { p.Signature[3] ^= 0x01 },
	}
	for i, mutate := range mutations {
		p, err := New(prov, priv, "channel1", map[string]interface{}{
			"size.mean_bytes": int64(1100),
		}, 5*time.Minute)
		require.NoError(err)
		require.True(p.Verify(prov, pub))
		mutate(p)
		require.False(p.Verify(prov, pub), "mutation %d must invalidate the signature", i)
	}
}

func TestVerifyDilithium(t *testing.T) {
	require := require.New(t)
	prov := signer.NewDilithiumProvider()
	pub, priv, err := prov.GenerateKeypair()
	require.NoError(err)

	p, err := New(prov, priv, "channel1", map[string]interface{}{
		"fte.format": "http_post",
	}, time.Minute)
	require.NoError(err)
	require.Len(p.Signature, prov.SignatureSize())
	require.True(p.Verify(prov, pub))

	p.ChannelID = "channel2"
	require.False(p.Verify(prov, pub))
}

func TestWireRoundTrip(t *testing.T) {
	require := require.New(t)
	prov := signer.NewTestProvider(nil)
	pub, priv, err := prov.GenerateKeypair()
	require.NoError(err)

	p, err := New(prov, priv, "channel1", map[string]interface{}{
		"size.mean_bytes":            int64(1100),
		"cover.base_ratio":           0.42,
		"timing.deperiodize_enabled": false,
		"fte.ja3":                    "firefox-esr-115",
	}, 5*time.Minute)
	require.NoError(err)

	b, err := p.Bytes()
	require.NoError(err)

	p2, err := FromBytes(b)
	require.NoError(err)
	require.Equal(p.Version, p2.Version)
	require.Equal(p.RotationID, p2.RotationID)
	require.Equal(p.ChannelID, p2.ChannelID)
	require.Equal(p.IssuedAt, p2.IssuedAt)
	require.Equal(p.ValidUntil, p2.ValidUntil)
	require.Equal(p.Signature, p2.Signature)
	require.Len(p2.Parameters, 4)

	// The signature survives the trip through the wire format.
	require.True(p2.Verify(prov, pub))
}

func TestLegacyWireRoundTrip(t *testing.T) {
	require := require.New(t)
	prov := signer.NewTestProvider(nil)
	pub, priv, err := prov.GenerateKeypair()
	require.NoError(err)

	// Legacy format: no validity window.
	p := &Pack{
		Version:    PackVersion,
		RotationID: "8f14e45f-ceea-467f-a8e9-d9b3c1f2a6b1",
		ChannelID:  "channel1",
		IssuedAt:   uint64(time.Now().Unix()),
		Parameters: map[string]interface{}{"size.mean_bytes": int64(1100)},
	}
	payload, err := p.signedPayload()
	require.NoError(err)
	p.Signature, err = prov.Sign(payload, priv)
	require.NoError(err)

	b, err := p.Bytes()
	require.NoError(err)
	p2, err := FromBytes(b)
	require.NoError(err)
	require.Zero(p2.ValidUntil)
	require.True(p2.Verify(prov, pub))
}

func TestFromBytesMalformed(t *testing.T) {
	require := require.New(t)
	prov := signer.NewTestProvider(nil)
	_, priv, err := prov.GenerateKeypair()
	require.NoError(err)

	_, err = FromBytes([]byte("not cbor at all"))
	require.ErrorIs(err, ErrMalformedPack)
	_, err = FromBytes(nil)
	require.ErrorIs(err, ErrMalformedPack)

	good, err := New(prov, priv, "channel1", map[string]interface{}{
		"size.mean_bytes": int64(1100),
	}, 5*time.Minute)
	require.NoError(err)

	reserialize := func(mutate func(*Pack)) error {
		p := *good
		mutate(&p)
		b, err := p.Bytes()
		require.NoError(err)
		_, err = FromBytes(b)
		return err
	}

	require.ErrorIs(reserialize(func(p *Pack) { p.Version = "2.0" }), ErrMalformedPack)
	require.ErrorIs(reserialize(func(p *Pack) { p.RotationID = "" }), ErrMalformedPack)
	require.ErrorIs(reserialize(func(p *Pack) { p.ChannelID = "" }), ErrMalformedPack)
	require.ErrorIs(reserialize(func(p *Pack) { p.Signature = nil }), ErrMalformedPack)
	require.ErrorIs(reserialize(func(p *Pack) { p.ValidUntil = p.IssuedAt - 1 }), ErrMalformedPack)
}

func TestNewRejectsBadArguments(t *testing.T) {
	require := require.New(t)
	prov := signer.NewTestProvider(nil)
	_, priv, err := prov.GenerateKeypair()
	require.NoError(err)

	_, err = New(prov, priv, "", map[string]interface{}{"size.mean_bytes": int64(1)}, time.Minute)
	require.Error(err)
	_, err = New(prov, priv, "channel1", nil, 0)
	require.Error(err)
	_, err = New(prov, priv, "channel1", nil, -time.Minute)
	require.Error(err)
}

func TestReasonStrings(t *testing.T) {
	require := require.New(t)

	for r, s := range map[Reason]string{
		ReasonNone:             "none",
		ReasonBadSignature:     "bad_signature",
		ReasonFuture:           "future",
		ReasonReplay:           "replay",
		ReasonExpired:          "expired",
		ReasonStale:            "stale",
		ReasonMalformedPayload: "malformed_payload",
		ReasonStoreUnavailable: "store_unavailable",
	} {
		require.Equal(s, r.String())
	}
}
