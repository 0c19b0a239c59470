// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

// selfSignedCert returns a DER-encoded self-signed certificate and the
// private key backing it, for tests that need something x509.ParseCertificate
// accepts.
func selfSignedCert(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return der, key
}

func TestNewAndVerifySessionSignatureRoundTrip(t *testing.T) {
	// VerifySessionSignature checks a signature over (clientCert||nonce)
	// made with the private key matching the certificate passed as its
	// first argument. Build that same signature here with NewSessionSignature
	// (which signs whatever (cert||nonce) pair it's given) using the
	// server's own key, then verify it from the "client" side.
	serverDER, serverKey := selfSignedCert(t)
	clientDER, _ := selfSignedCert(t)

	p, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)

	clientCert, err := x509.ParseCertificate(clientDER)
	require.NoError(t, err)
	nonce := []byte("client-nonce")

	signer := &SecureChannel{policy: p, localKey: serverKey}
	sig, alg, err := signer.NewSessionSignature(clientDER, nonce)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	assert.NotEmpty(t, alg)

	verifier := &SecureChannel{policy: p, localCert: clientCert}
	err = verifier.VerifySessionSignature(serverDER, nonce, sig)
	assert.NoError(t, err)

	err = verifier.VerifySessionSignature(serverDER, []byte("wrong-nonce"), sig)
	assert.Error(t, err)
}

func TestNewSessionSignatureInvalidCertificate(t *testing.T) {
	p, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)
	sc := &SecureChannel{policy: p}
	_, _, err = sc.NewSessionSignature([]byte("not-a-cert"), []byte("nonce"))
	assert.ErrorIs(t, err, ua.StatusBadCertificateInvalid)
}

func TestEncryptUserPasswordNonePolicyPassesThrough(t *testing.T) {
	sc := &SecureChannel{}
	ct, alg, err := sc.EncryptUserPassword(ua.SecurityPolicyURINone, "hunter2", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(ct))
	assert.Empty(t, alg)
}

func TestEncryptUserPasswordEncryptsUnderRealPolicy(t *testing.T) {
	der, key := selfSignedCert(t)
	p, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)
	sc := &SecureChannel{policy: p, localKey: key}

	ct, alg, err := sc.EncryptUserPassword(ua.SecurityPolicyURIBasic256Sha256, "hunter2", der, []byte("nonce"))
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", string(ct))
	assert.NotEmpty(t, alg)
}

func TestTokenPolicyFallsBackToChannelPolicy(t *testing.T) {
	p, err := Policy(ua.SecurityPolicyURINone)
	require.NoError(t, err)
	sc := &SecureChannel{policy: p}

	got, err := sc.tokenPolicy("")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	got, err = sc.tokenPolicy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)
	assert.Equal(t, ua.SecurityPolicyURIBasic256Sha256, got.URI())
}
