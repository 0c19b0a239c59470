// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

func TestPolicyResolvesKnownURIs(t *testing.T) {
	p, err := Policy(ua.SecurityPolicyURINone)
	require.NoError(t, err)
	assert.Equal(t, ua.SecurityPolicyURINone, p.URI())

	p, err = Policy("Basic256Sha256")
	require.NoError(t, err)
	assert.Equal(t, ua.SecurityPolicyURIBasic256Sha256, p.URI())
}

func TestPolicyRejectsUnknownURI(t *testing.T) {
	_, err := Policy("NotARealPolicy")
	assert.ErrorIs(t, err, ua.StatusBadSecurityPolicyRejected)
}

func TestNoneCryptoRoundTrip(t *testing.T) {
	p, err := Policy(ua.SecurityPolicyURINone)
	require.NoError(t, err)
	c := p.Asymmetric(nil, nil)

	sig, err := c.Sign([]byte("data"))
	require.NoError(t, err)
	assert.Empty(t, sig)
	assert.NoError(t, c.Verify([]byte("data"), nil))
	assert.Error(t, c.Verify([]byte("data"), []byte{1}))

	ct, err := c.Encrypt([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), ct)
}

func TestRSACryptoSignAndVerifyRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)

	cert := &x509.Certificate{PublicKey: &key.PublicKey}
	signer := p.Asymmetric(key, nil)

	sig, err := signer.Sign([]byte("message"))
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	verifier := p.Asymmetric(nil, cert)
	require.NoError(t, verifier.Verify([]byte("message"), sig))
	assert.Error(t, verifier.Verify([]byte("tampered"), sig))
}

func TestRSACryptoSignWithoutKeyFails(t *testing.T) {
	p, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)
	signer := p.Asymmetric(nil, nil)
	_, err = signer.Sign([]byte("data"))
	assert.ErrorIs(t, err, ua.StatusBadSecurityChecksFailed)
}

func TestDeriveKeysIsDeterministicAndRespectsLength(t *testing.T) {
	secret := []byte("secret")
	seed := []byte("seed")

	a := deriveKeys(crypto.SHA256, secret, seed, 48)
	b := deriveKeys(crypto.SHA256, secret, seed, 48)
	assert.Equal(t, a, b)
	assert.Len(t, a, 48)

	shorter := deriveKeys(crypto.SHA256, secret, seed, 16)
	assert.Equal(t, a[:16], shorter)

	differentSeed := deriveKeys(crypto.SHA256, secret, []byte("other"), 48)
	assert.NotEqual(t, a, differentSeed)
}
