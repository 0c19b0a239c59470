// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto/x509"
	"encoding/binary"
	"fmt"

	"github.com/gopcua/opcua/ua"
)

// VerifySessionSignature checks the ServerSignature returned by
// CreateSession: the server must sign (clientCertificate || clientNonce)
// with the private key matching serverCert.
func (sc *SecureChannel) VerifySessionSignature(serverCert, clientNonce, signature []byte) error {
	cert, err := x509.ParseCertificate(serverCert)
	if err != nil {
		return fmt.Errorf("%w: %v", ua.StatusBadCertificateInvalid, err)
	}
	data := append(append([]byte{}, sc.localCertBytes()...), clientNonce...)
	return sc.policy.Asymmetric(sc.localKey, cert).Verify(data, signature)
}

// NewSessionSignature produces the ClientSignature ActivateSession needs:
// a signature over (serverCertificate || serverNonce) using the channel's
// private key (Part 4 §5.6.3).
func (sc *SecureChannel) NewSessionSignature(serverCert, serverNonce []byte) (sig []byte, algorithm string, err error) {
	cert, err := x509.ParseCertificate(serverCert)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ua.StatusBadCertificateInvalid, err)
	}
	asym := sc.policy.Asymmetric(sc.localKey, cert)
	data := append(append([]byte{}, serverCert...), serverNonce...)
	s, err := asym.Sign(data)
	if err != nil {
		return nil, "", err
	}
	return s, asym.SignatureAlgorithm(), nil
}

// NewUserTokenSignature signs (serverCertificate || serverNonce) under the
// policy used specifically for the user identity token, which may differ
// from the channel's SecurityPolicyURI (Part 4 §7.36.3, X509IdentityToken).
func (sc *SecureChannel) NewUserTokenSignature(policyURI string, serverCert, serverNonce []byte) (sig []byte, algorithm string, err error) {
	policy, err := sc.tokenPolicy(policyURI)
	if err != nil {
		return nil, "", err
	}
	cert, err := x509.ParseCertificate(serverCert)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ua.StatusBadCertificateInvalid, err)
	}
	asym := policy.Asymmetric(sc.localKey, cert)
	data := append(append([]byte{}, serverCert...), serverNonce...)
	s, err := asym.Sign(data)
	if err != nil {
		return nil, "", err
	}
	return s, asym.SignatureAlgorithm(), nil
}

// EncryptUserPassword encrypts a UserNameIdentityToken's password for the
// wire, per Part 4 §7.36.4: the plaintext is length-prefixed password
// bytes followed by the server nonce, RSA-OAEP encrypted against the
// server's certificate under the given policy.
func (sc *SecureChannel) EncryptUserPassword(policyURI, password string, serverCert, serverNonce []byte) (encrypted []byte, algorithm string, err error) {
	policy, err := sc.tokenPolicy(policyURI)
	if err != nil {
		return nil, "", err
	}
	if policy.URI() == ua.SecurityPolicyURINone {
		return []byte(password), "", nil
	}
	cert, err := x509.ParseCertificate(serverCert)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ua.StatusBadCertificateInvalid, err)
	}
	asym := policy.Asymmetric(sc.localKey, cert)

	plain := make([]byte, 0, 4+len(password)+len(serverNonce))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(password)+len(serverNonce)))
	plain = append(plain, lenBuf[:]...)
	plain = append(plain, password...)
	plain = append(plain, serverNonce...)

	ct, err := asym.Encrypt(plain)
	if err != nil {
		return nil, "", err
	}
	return ct, asym.EncryptionAlgorithm(), nil
}

// tokenPolicy resolves uri to a SecurityPolicy, falling back to the
// channel's own policy when uri is empty.
func (sc *SecureChannel) tokenPolicy(uri string) (SecurityPolicy, error) {
	if uri == "" {
		return sc.policy, nil
	}
	return Policy(uri)
}

func (sc *SecureChannel) localCertBytes() []byte {
	if sc.localCert == nil {
		return nil
	}
	return sc.localCert.Raw
}
