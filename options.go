// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/gopcua/opcua/uasc"
)

// Option configures a Client's secure channel and session. Options are
// applied in order, so a later option overrides an earlier one for the
// same field.
type Option func(*uasc.Config, *uasc.SessionConfig)

// SecurityPolicy selects the OpenSecureChannel asymmetric crypto policy,
// by URI suffix ("Basic256Sha256") or full URI.
func SecurityPolicy(uri string) Option {
	return func(c *uasc.Config, _ *uasc.SessionConfig) {
		c.SecurityPolicyURI = ua.FormatSecurityPolicyURI(uri)
	}
}

// SecurityModeOption selects sign/encrypt for the secure channel.
func SecurityModeOption(mode ua.MessageSecurityMode) Option {
	return func(c *uasc.Config, _ *uasc.SessionConfig) {
		c.SecurityMode = mode
	}
}

// Certificate sets the client's application instance certificate (DER) and
// matching private key (PEM/DER, policy-dependent).
func Certificate(cert, key []byte) Option {
	return func(c *uasc.Config, _ *uasc.SessionConfig) {
		c.Certificate = cert
		c.LocalKey = key
	}
}

// SessionTimeout requests a session timeout from the server.
func SessionTimeout(d time.Duration) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		s.SessionTimeout = d
	}
}

// ApplicationName sets the client application's display name.
func ApplicationName(name string) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		if s.ClientDescription == nil {
			s.ClientDescription = &ua.ApplicationDescription{}
		}
		s.ClientDescription.ApplicationName = ua.NewLocalizedText(name)
	}
}

// Locales sets the LocaleIDs sent with CreateSession/ActivateSession.
func Locales(ids ...string) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		s.LocaleIDs = ids
	}
}

// AuthAnonymous configures anonymous authentication. This is the default
// when no auth Option is given.
func AuthAnonymous() Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		s.UserIdentityToken = &ua.AnonymousIdentityToken{}
	}
}

// AuthUsername configures username/password authentication. The password
// is encrypted against the server's public key during ActivateSession
// using the policy set by AuthPolicyURI, or the channel's SecurityPolicy
// when no AuthPolicyURI is set.
func AuthUsername(user, pass string) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		s.UserIdentityToken = &ua.UserNameIdentityToken{UserName: user}
		s.AuthPassword = pass
	}
}

// AuthCertificate configures X509 certificate authentication.
func AuthCertificate(cert []byte) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		s.UserIdentityToken = &ua.X509IdentityToken{CertificateData: cert}
	}
}

// AuthIssuedToken configures a server-issued token (e.g. a SAML assertion).
func AuthIssuedToken(token []byte) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		s.UserIdentityToken = &ua.IssuedIdentityToken{TokenData: token}
	}
}

// AuthPolicyID overrides the PolicyID on whichever identity token is
// currently configured, matching it to a specific UserTokenPolicy
// advertised by the server's endpoint.
func AuthPolicyID(id string) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		switch t := s.UserIdentityToken.(type) {
		case *ua.AnonymousIdentityToken:
			t.PolicyID = id
		case *ua.UserNameIdentityToken:
			t.PolicyID = id
		case *ua.X509IdentityToken:
			t.PolicyID = id
		case *ua.IssuedIdentityToken:
			t.PolicyID = id
		}
	}
}

// AuthPolicyURI sets the security policy used to encrypt the user
// identity token, independent of the channel's SecurityPolicy.
func AuthPolicyURI(uri string) Option {
	return func(_ *uasc.Config, s *uasc.SessionConfig) {
		s.AuthPolicyURI = ua.FormatSecurityPolicyURI(uri)
	}
}
