// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package signer

import (
	"crypto/rand"

	"github.com/katzenpost/circl/sign/dilithium/mode3"
)

// SchemeDilithium3 is the production signature scheme name.
const SchemeDilithium3 = "Dilithium3"

type dilithiumProvider struct{}

// NewDilithiumProvider returns the production Dilithium3 provider.
func NewDilithiumProvider() Provider {
	return &dilithiumProvider{}
}

func (p *dilithiumProvider) Name() string {
	return SchemeDilithium3
}

func (p *dilithiumProvider) GenerateKeypair() ([]byte, []byte, error) {
	pk, sk, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return pkBytes, skBytes, nil
}

func (p *dilithiumProvider) Sign(payload, privateKey []byte) ([]byte, error) {
	if len(privateKey) != mode3.PrivateKeySize {
		return nil, ErrKeySize
	}
	sk := new(mode3.PrivateKey)
	if err := sk.UnmarshalBinary(privateKey); err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(sk, payload, sig)
	return sig, nil
}

func (p *dilithiumProvider) Verify(payload, signature, publicKey []byte) bool {
	if len(signature) != mode3.SignatureSize {
		return false
	}
	if len(publicKey) != mode3.PublicKeySize {
		return false
	}
	pk := new(mode3.PublicKey)
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return false
	}
	return mode3.Verify(pk, payload, signature)
}

func (p *dilithiumProvider) PublicKeySize() int {
	return mode3.PublicKeySize
}

func (p *dilithiumProvider) PrivateKeySize() int {
	return mode3.PrivateKeySize
}

func (p *dilithiumProvider) SignatureSize() int {
	return mode3.SignatureSize
}

func (p *dilithiumProvider) TestMode() bool {
	return false
}
