// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"time"

	"github.com/gopcua/opcua/ua"
)

// Config configures a SecureChannel: which security policy/mode to run
// under, the local application identity, and the channel's lifetime
// negotiation defaults.
type Config struct {
	// SecurityPolicyURI selects the asymmetric crypto used for
	// OpenSecureChannel.
	SecurityPolicyURI string
	SecurityMode      ua.MessageSecurityMode

	// Certificate is the client's DER-encoded application instance
	// certificate, sent as ClientCertificate/ClientNonce material.
	Certificate []byte
	// LocalKey is the private key matching Certificate, used to sign/decrypt.
	LocalKey []byte

	// RequestedLifetime is the channel lifetime requested in
	// OpenSecureChannelRequest; the server may revise it down.
	RequestedLifetime time.Duration

	// AutoRenew renews the token automatically once a request is an
	// estimated 75% through RevisedLifetime.
	AutoRenew bool
}

// DefaultClientConfig returns a Config for an unsecured channel, the shape
// client.go falls back to when no security Option is supplied.
func DefaultClientConfig() *Config {
	return &Config{
		SecurityPolicyURI: ua.SecurityPolicyURINone,
		SecurityMode:      ua.MessageSecurityModeNone,
		RequestedLifetime: 60 * time.Minute,
		AutoRenew:         true,
	}
}

// SessionConfig configures the CreateSession/ActivateSession pair.
type SessionConfig struct {
	SessionTimeout     time.Duration
	ClientDescription  *ua.ApplicationDescription
	LocaleIDs          []string
	UserIdentityToken  interface{} // *ua.AnonymousIdentityToken | *ua.UserNameIdentityToken | *ua.X509IdentityToken | *ua.IssuedIdentityToken
	UserTokenSignature *ua.SignatureData
	AuthPolicyURI      string
	AuthPassword       string
}

// DefaultSessionConfig returns a SessionConfig with a 20 minute session
// timeout and an anonymous application description, mirroring the values
// Client used before any Option is applied.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		SessionTimeout: 20 * time.Minute,
		ClientDescription: &ua.ApplicationDescription{
			ApplicationURI:  "urn:gopcua:client",
			ProductURI:      "urn:gopcua",
			ApplicationName: ua.NewLocalizedText("gopcua"),
			ApplicationType: 0, // Client
		},
		LocaleIDs: []string{"en"},
	}
}
