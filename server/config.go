// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package server implements the server-side session manager, node-manager
// dispatch, and subscription/monitored-item engine on top of uacp and
// uasc. Where the client side has one secure channel talking to one
// server, the server side fans one listener out to many connections, each
// potentially carrying many sessions and subscriptions.
package server

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gopcua/opcua/uasc"
)

// Config holds server-wide tunables, following the functional-options
// idiom uasc.Config/SessionConfig already use on the client side.
type Config struct {
	Endpoint string

	// Transport/channel limits handed to uacp.Listen.
	ReceiveBufSize uint32
	SendBufSize    uint32
	MaxMessageSize uint32
	MaxChunkCount  uint32

	// SecurityPolicyAllowList holds the SecurityPolicyURIs set by
	// WithSecurityPolicies. The server does not consult it: OpenSecureChannel
	// accepts every policy uasc.Policy knows about.
	SecurityPolicyAllowList []string

	ChannelLifetime   time.Duration
	DefaultSessionTimeout time.Duration
	MaxSessionTimeout time.Duration

	// MaxContinuationPoints bounds the per-session map of outstanding
	// Browse/HistoryRead continuation points.
	MaxContinuationPoints int

	Logger *logrus.Logger
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig uses uacp.DefaultConfig's buffer and message sizes on the
// server side, caps chunks at 64 (uacp leaves that limit at 0), and picks
// conservative session/channel lifetimes.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:              "opc.tcp://0.0.0.0:4840",
		ReceiveBufSize:        65536,
		SendBufSize:           65536,
		MaxMessageSize:        16 * 1024 * 1024,
		MaxChunkCount:         64,
		ChannelLifetime:       60 * time.Minute,
		DefaultSessionTimeout: 60 * time.Second,
		MaxSessionTimeout:     10 * time.Minute,
		MaxContinuationPoints: 64,
		Logger:                logrus.StandardLogger(),
	}
}

// WithEndpoint sets the opc.tcp:// address to listen on.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) { c.Endpoint = endpoint }
}

// WithSecurityPolicies sets SecurityPolicyAllowList; it does not restrict
// which policies OpenSecureChannel accepts.
func WithSecurityPolicies(uris ...string) Option {
	return func(c *Config) { c.SecurityPolicyAllowList = uris }
}

// WithLogger overrides the default logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithSessionTimeouts sets the default and maximum session_timeout_ms a
// CreateSession may be revised to.
func WithSessionTimeouts(def, max time.Duration) Option {
	return func(c *Config) { c.DefaultSessionTimeout = def; c.MaxSessionTimeout = max }
}

// channelLifetime returns ChannelLifetime, or the uasc client default
// lifetime when it is not set.
func (c *Config) channelLifetime() time.Duration {
	if c.ChannelLifetime <= 0 {
		return uasc.DefaultClientConfig().RequestedLifetime
	}
	return c.ChannelLifetime
}
