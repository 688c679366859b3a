// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package signer

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/op/go-logging.v1"
)

// SchemeTestMode is the test mode scheme name.
const SchemeTestMode = "testmode-blake2b"

const testKeySize = 32

type testProvider struct{}

// NewTestProvider returns a provider producing unkeyed blake2b digests in
// place of signatures.  It provides NO authentication whatsoever and
// exists so the pack pipeline can be exercised without Dilithium3 key
// material.  Constructing one is an explicit configuration choice and is
// logged loudly, there is no code path that falls back to it.
func NewTestProvider(log *logging.Logger) Provider {
	if log != nil {
		log.Warning("TEST MODE signatures enabled: packs are NOT cryptographically authenticated")
	}
	return &testProvider{}
}

func (p *testProvider) Name() string {
	return SchemeTestMode
}

func (p *testProvider) GenerateKeypair() ([]byte, []byte, error) {
	sk := make([]byte, testKeySize)
	if _, err := rand.Read(sk); err != nil {
		return nil, nil, err
	}
	pk := p.derivePublic(sk)
	return pk, sk, nil
}

func (p *testProvider) derivePublic(sk []byte) []byte {
	sum := blake2b.Sum256(sk)
	return sum[:]
}

func (p *testProvider) digest(payload, publicKey []byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	h.Write(publicKey)
	h.Write(payload)
	return h.Sum(nil)
}

func (p *testProvider) Sign(payload, privateKey []byte) ([]byte, error) {
	if len(privateKey) != testKeySize {
		return nil, ErrKeySize
	}
	return p.digest(payload, p.derivePublic(privateKey)), nil
}

func (p *testProvider) Verify(payload, signature, publicKey []byte) bool {
	if len(signature) != blake2b.Size256 {
		return false
	}
	if len(publicKey) != testKeySize {
		return false
	}
	expected := p.digest(payload, publicKey)
	return subtle.ConstantTimeCompare(expected, signature) == 1
}

func (p *testProvider) PublicKeySize() int {
	return testKeySize
}

func (p *testProvider) PrivateKeySize() int {
	return testKeySize
}

func (p *testProvider) SignatureSize() int {
	return blake2b.Size256
}

func (p *testProvider) TestMode() bool {
	return true
}
