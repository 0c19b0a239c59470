// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.DefaultSessionTimeout = 50 * time.Millisecond
	cfg.MaxSessionTimeout = time.Second
	cfg.MaxContinuationPoints = 2
	return cfg
}

func TestSessionManagerCreateActivateLookup(t *testing.T) {
	m := NewSessionManager(testConfig())
	req := &ua.CreateSessionRequest{SessionName: "s1", RequestedSessionTimeout: 1000}
	s := m.Create(req, 1)

	assert.Equal(t, SessionStateCreating, s.State())

	got, ok := m.Lookup(s.AuthenticationToken())
	require.True(t, ok)
	assert.Same(t, s, got)

	activated, status := m.Activate(s.AuthenticationToken(), 1, nil, nil)
	require.Equal(t, ua.StatusOK, status)
	assert.Equal(t, SessionStateActivated, activated.State())
}

func TestSessionManagerActivateUnknownToken(t *testing.T) {
	m := NewSessionManager(testConfig())
	_, status := m.Activate(ua.NewGUIDNodeID(0, ua.NewGUID()), 1, nil, nil)
	assert.Equal(t, ua.StatusBadSessionIDInvalid, status)
}

func TestSessionManagerCloseRemovesSession(t *testing.T) {
	m := NewSessionManager(testConfig())
	s := m.Create(&ua.CreateSessionRequest{RequestedSessionTimeout: 1000}, 1)
	m.Close(s.AuthenticationToken())

	_, ok := m.Lookup(s.AuthenticationToken())
	assert.False(t, ok)
	assert.Equal(t, SessionStateClosed, s.State())
}

func TestSessionManagerSweepExpired(t *testing.T) {
	m := NewSessionManager(testConfig())
	s := m.Create(&ua.CreateSessionRequest{RequestedSessionTimeout: 0}, 1)

	time.Sleep(100 * time.Millisecond)
	expired := m.SweepExpired()
	require.Len(t, expired, 1)
	assert.Same(t, s, expired[0])

	_, ok := m.Lookup(s.AuthenticationToken())
	assert.False(t, ok)
}

func TestSessionTimeoutClampedToMax(t *testing.T) {
	m := NewSessionManager(testConfig())
	s := m.Create(&ua.CreateSessionRequest{RequestedSessionTimeout: float64(time.Hour / time.Millisecond)}, 1)
	assert.Equal(t, m.cfg.MaxSessionTimeout, s.Timeout())
}

func TestSessionContinuationPointSingleUse(t *testing.T) {
	m := NewSessionManager(testConfig())
	s := m.Create(&ua.CreateSessionRequest{RequestedSessionTimeout: 1000}, 1)

	cp := &continuationPoint{references: nil}
	token, status := s.addContinuationPoint(cp)
	require.Equal(t, ua.StatusOK, status)

	got, ok := s.takeContinuationPoint(token)
	require.True(t, ok)
	assert.Same(t, cp, got)

	_, ok = s.takeContinuationPoint(token)
	assert.False(t, ok)
}

func TestSessionContinuationPointBound(t *testing.T) {
	m := NewSessionManager(testConfig())
	s := m.Create(&ua.CreateSessionRequest{RequestedSessionTimeout: 1000}, 1)

	_, status1 := s.addContinuationPoint(&continuationPoint{})
	_, status2 := s.addContinuationPoint(&continuationPoint{})
	require.Equal(t, ua.StatusOK, status1)
	require.Equal(t, ua.StatusOK, status2)

	_, status3 := s.addContinuationPoint(&continuationPoint{})
	assert.Equal(t, ua.StatusBadNoContinuationPoints, status3)
}

func TestSessionSubscriptionTracking(t *testing.T) {
	m := NewSessionManager(testConfig())
	s := m.Create(&ua.CreateSessionRequest{RequestedSessionTimeout: 1000}, 1)

	s.addSubscription(1)
	s.addSubscription(2)
	assert.ElementsMatch(t, []uint32{1, 2}, s.subscriptionIDList())

	s.removeSubscription(1)
	assert.ElementsMatch(t, []uint32{2}, s.subscriptionIDList())
}
