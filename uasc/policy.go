// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto"
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/gopcua/opcua/ua"
)

// SecurityPolicy implements the asymmetric crypto operations a SecureChannel
// needs during OpenSecureChannel and session activation, built directly on
// crypto/rsa and crypto/x509, plus the per-token symmetric pipeline used to
// seal and open every MSG chunk sent under the channel once it's open.
type SecurityPolicy interface {
	URI() string
	Asymmetric(localKey *rsa.PrivateKey, remoteCert *x509.Certificate) AsymmetricCrypto

	// KeySizes reports the signing key, encryption key, and block (IV)
	// lengths the symmetric key derivation must produce for this policy.
	KeySizes() (signingKeyLen, encryptionKeyLen, blockLen int)
	// Symmetric builds the chunk sign/encrypt pipeline from derived key
	// material of the lengths KeySizes reports.
	Symmetric(signingKey, encryptionKey, iv []byte) SymmetricCrypto
	// deriveKeyMaterial runs this policy's PRF (HMAC under its signing
	// hash) to stretch a (secret, seed) nonce pair into length bytes of
	// key material, per the derive_keys construction below.
	deriveKeyMaterial(secret, seed []byte, length int) []byte
}

// AsymmetricCrypto signs/verifies and encrypts/decrypts using the local
// private key and the peer's certificate public key.
type AsymmetricCrypto interface {
	SignatureAlgorithm() string
	EncryptionAlgorithm() string
	Sign(data []byte) ([]byte, error)
	Verify(data, sig []byte) error
	Encrypt(plaintext []byte) ([]byte, error)
}

type nonePolicy struct{}

func (nonePolicy) URI() string { return ua.SecurityPolicyURINone }
func (nonePolicy) Asymmetric(*rsa.PrivateKey, *x509.Certificate) AsymmetricCrypto {
	return noneCrypto{}
}
func (nonePolicy) KeySizes() (int, int, int) { return 0, 0, 0 }
func (nonePolicy) Symmetric(_, _, _ []byte) SymmetricCrypto {
	return noneSymmetricCrypto{}
}
func (nonePolicy) deriveKeyMaterial(_, _ []byte, length int) []byte {
	return make([]byte, length)
}

type noneCrypto struct{}

func (noneCrypto) SignatureAlgorithm() string  { return "" }
func (noneCrypto) EncryptionAlgorithm() string { return "" }
func (noneCrypto) Sign([]byte) ([]byte, error) { return nil, nil }
func (noneCrypto) Verify(_, sig []byte) error {
	if len(sig) != 0 {
		return fmt.Errorf("%w: signature present under SecurityPolicy#None", ua.StatusBadSecurityChecksFailed)
	}
	return nil
}
func (noneCrypto) Encrypt(p []byte) ([]byte, error) { return p, nil }

// rsaPolicy covers the five non-None policies. They differ in key size and
// hash function but share the RSA-PKCS1v15 signature / RSA-OAEP encryption
// shape, which is all the session-activation paths in client.go need.
type rsaPolicy struct {
	uri  string
	hash crypto.Hash
	oaep crypto.Hash
	// symKeyLen is the AES key length (16 or 32 bytes) this policy's
	// symmetric pipeline uses once the channel is open.
	symKeyLen int
}

func (p rsaPolicy) URI() string { return p.uri }

func (p rsaPolicy) Asymmetric(localKey *rsa.PrivateKey, remoteCert *x509.Certificate) AsymmetricCrypto {
	return rsaCrypto{policy: p, localKey: localKey, remoteCert: remoteCert}
}

func (p rsaPolicy) KeySizes() (int, int, int) {
	return p.hash.Size(), p.symKeyLen, aes.BlockSize
}

func (p rsaPolicy) Symmetric(signingKey, encryptionKey, iv []byte) SymmetricCrypto {
	return &aesCBCHMAC{
		hash:          p.hash.New,
		signingKey:    signingKey,
		encryptionKey: encryptionKey,
		iv:            iv,
	}
}

func (p rsaPolicy) deriveKeyMaterial(secret, seed []byte, length int) []byte {
	return deriveKeys(p.hash, secret, seed, length)
}

type rsaCrypto struct {
	policy     rsaPolicy
	localKey   *rsa.PrivateKey
	remoteCert *x509.Certificate
}

func (c rsaCrypto) SignatureAlgorithm() string {
	switch c.policy.hash {
	case crypto.SHA256:
		return "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	default:
		return "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	}
}

func (c rsaCrypto) EncryptionAlgorithm() string {
	switch c.policy.oaep {
	case crypto.SHA256:
		return "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	default:
		return "http://www.w3.org/2001/04/xmlenc#rsa-oaep"
	}
}

func (c rsaCrypto) digest(data []byte) []byte {
	h := c.policy.hash.New()
	h.Write(data)
	return h.Sum(nil)
}

func (c rsaCrypto) Sign(data []byte) ([]byte, error) {
	if c.localKey == nil {
		return nil, fmt.Errorf("%w: no local private key configured", ua.StatusBadSecurityChecksFailed)
	}
	return rsa.SignPKCS1v15(rand.Reader, c.localKey, c.policy.hash, c.digest(data))
}

func (c rsaCrypto) Verify(data, sig []byte) error {
	if c.remoteCert == nil {
		return fmt.Errorf("%w: no remote certificate to verify against", ua.StatusBadSecurityChecksFailed)
	}
	pub, ok := c.remoteCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: remote certificate is not RSA", ua.StatusBadCertificateInvalid)
	}
	if err := rsa.VerifyPKCS1v15(pub, c.policy.hash, c.digest(data), sig); err != nil {
		return fmt.Errorf("%w: %v", ua.StatusBadSecurityChecksFailed, err)
	}
	return nil
}

func (c rsaCrypto) Encrypt(plaintext []byte) ([]byte, error) {
	if c.remoteCert == nil {
		return nil, fmt.Errorf("%w: no remote certificate to encrypt for", ua.StatusBadSecurityChecksFailed)
	}
	pub, ok := c.remoteCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: remote certificate is not RSA", ua.StatusBadCertificateInvalid)
	}
	return rsa.EncryptOAEP(c.policy.oaep.New(), rand.Reader, pub, plaintext, nil)
}

var policies = map[string]SecurityPolicy{
	ua.SecurityPolicyURINone:               nonePolicy{},
	ua.SecurityPolicyURIBasic128Rsa15:       rsaPolicy{uri: ua.SecurityPolicyURIBasic128Rsa15, hash: crypto.SHA1, oaep: crypto.SHA1, symKeyLen: 16},
	ua.SecurityPolicyURIBasic256:            rsaPolicy{uri: ua.SecurityPolicyURIBasic256, hash: crypto.SHA1, oaep: crypto.SHA1, symKeyLen: 32},
	ua.SecurityPolicyURIBasic256Sha256:      rsaPolicy{uri: ua.SecurityPolicyURIBasic256Sha256, hash: crypto.SHA256, oaep: crypto.SHA1, symKeyLen: 32},
	ua.SecurityPolicyURIAes128Sha256RsaOaep: rsaPolicy{uri: ua.SecurityPolicyURIAes128Sha256RsaOaep, hash: crypto.SHA256, oaep: crypto.SHA256, symKeyLen: 16},
	ua.SecurityPolicyURIAes256Sha256RsaPss:  rsaPolicy{uri: ua.SecurityPolicyURIAes256Sha256RsaPss, hash: crypto.SHA256, oaep: crypto.SHA256, symKeyLen: 32},
}

// Policy resolves a security policy by URI (bare suffix or full URI).
// Unknown URIs fail with BadSecurityPolicyRejected.
func Policy(uri string) (SecurityPolicy, error) {
	full := ua.FormatSecurityPolicyURI(uri)
	p, ok := policies[full]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ua.StatusBadSecurityPolicyRejected, uri)
	}
	return p, nil
}

// deriveKeys implements the PSHA1/PSHA256 key derivation Part 4 6.7.5
// describes: HMAC(hash, secret, seed) stretched to the requested length via
// the standard TLS-1.0-style P_hash construction.
func deriveKeys(hash crypto.Hash, secret, seed []byte, length int) []byte {
	out := make([]byte, 0, length)
	a := hmacSum(hash, secret, seed)
	for len(out) < length {
		out = append(out, hmacSum(hash, secret, append(a, seed...))...)
		a = hmacSum(hash, secret, a)
	}
	return out[:length]
}

func hmacSum(hash crypto.Hash, key, data []byte) []byte {
	h := hmac.New(hash.New, key)
	h.Write(data)
	return h.Sum(nil)
}
