// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gopcua/opcua/ua"
)

// SessionState is a server-side Session's lifecycle state.
type SessionState int

const (
	SessionStateCreating SessionState = iota
	SessionStateActivated
	SessionStateClosed
)

// continuationPoint is the opaque server-side cursor a Browse/HistoryRead
// call returns when it has more results than fit in one response. The
// state it carries is service-specific; Browse stores the remaining
// references here.
type continuationPoint struct {
	nodeID     *ua.NodeID
	references []*ua.ReferenceDescription
}

// Session is the server-side counterpart of a client session: it survives
// across secure channels as long as the client presents its
// AuthenticationToken, and owns continuation points and subscriptions
// independent of which channel currently carries it.
type Session struct {
	mu sync.Mutex

	id            *ua.NodeID
	authToken     *ua.NodeID
	name          string
	state         SessionState
	timeout       time.Duration
	lastContact   time.Time
	userIdentity  interface{}
	localeIDs     []string

	channelID uint32 // the secure channel this session is currently bound to

	continuationPoints map[string]*continuationPoint
	maxContinuation    int

	subscriptionIDs map[uint32]bool
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastContact = time.Now()
	s.mu.Unlock()
}

// Expired reports whether the session has gone silent longer than its
// negotiated timeout.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastContact) > s.timeout
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the session's NodeID.
func (s *Session) ID() *ua.NodeID { return s.id }

// AuthenticationToken returns the token clients must present to rebind to
// this session on a new secure channel.
func (s *Session) AuthenticationToken() *ua.NodeID { return s.authToken }

// Timeout returns the session's negotiated timeout.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// addSubscription records that id belongs to this session, so
// CloseSession's DeleteSubscriptions flag knows what to tear down.
func (s *Session) addSubscription(id uint32) {
	s.mu.Lock()
	s.subscriptionIDs[id] = true
	s.mu.Unlock()
}

// removeSubscription forgets id, e.g. after DeleteSubscriptions.
func (s *Session) removeSubscription(id uint32) {
	s.mu.Lock()
	delete(s.subscriptionIDs, id)
	s.mu.Unlock()
}

// subscriptionIDList returns every subscription id this session owns.
func (s *Session) subscriptionIDList() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint32, 0, len(s.subscriptionIDs))
	for id := range s.subscriptionIDs {
		ids = append(ids, id)
	}
	return ids
}

// addContinuationPoint stores cp under a fresh id, failing with
// BadNoContinuationPoints once the bound is reached.
func (s *Session) addContinuationPoint(cp *continuationPoint) (string, ua.StatusCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.continuationPoints) >= s.maxContinuation {
		return "", ua.StatusBadNoContinuationPoints
	}
	id := ua.NewGUID().String()
	s.continuationPoints[id] = cp
	return id, ua.StatusOK
}

// takeContinuationPoint consumes (removes) the continuation point named by
// token; each point is single-use.
func (s *Session) takeContinuationPoint(token string) (*continuationPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.continuationPoints[token]
	if ok {
		delete(s.continuationPoints, token)
	}
	return cp, ok
}

// SessionManager tracks all sessions a server process currently owns,
// keyed by authentication token so ActivateSession on a new channel (a
// session transfer) can find the existing Session.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[ua.NodeIDKey]*Session

	log *logrus.Logger
	cfg *Config
}

// NewSessionManager returns an empty manager using cfg's default/max
// session timeout bounds.
func NewSessionManager(cfg *Config) *SessionManager {
	return &SessionManager{
		sessions: make(map[ua.NodeIDKey]*Session),
		log:      cfg.Logger,
		cfg:      cfg,
	}
}

// Create handles CreateSession: allocates a session id and authentication
// token, replaces a non-positive requested timeout with
// DefaultSessionTimeout, caps the timeout at MaxSessionTimeout, and
// leaves the session in SessionStateCreating until ActivateSession.
func (m *SessionManager) Create(req *ua.CreateSessionRequest, channelID uint32) *Session {
	timeout := time.Duration(req.RequestedSessionTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = m.cfg.DefaultSessionTimeout
	}
	if timeout > m.cfg.MaxSessionTimeout {
		timeout = m.cfg.MaxSessionTimeout
	}

	sessionID := ua.NewNumericNodeID(1, sessionCounter.next())
	authToken := ua.NewGUIDNodeID(0, ua.NewGUID())

	s := &Session{
		id:                 sessionID,
		authToken:          authToken,
		name:               req.SessionName,
		state:              SessionStateCreating,
		timeout:            timeout,
		lastContact:        time.Now(),
		channelID:          channelID,
		continuationPoints: make(map[string]*continuationPoint),
		maxContinuation:    m.cfg.MaxContinuationPoints,
		subscriptionIDs:    make(map[uint32]bool),
	}

	m.mu.Lock()
	m.sessions[authToken.Key()] = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"session": sessionID.String(), "timeout": timeout}).Info("session created")
	return s
}

// Activate handles ActivateSession: looks the session up by the
// AuthenticationToken the request header carries, records the user
// identity as given (no signature is verified here), and allows rebinding
// to a different channelID -- the session-transfer case.
func (m *SessionManager) Activate(authToken *ua.NodeID, channelID uint32, identity interface{}, locales []string) (*Session, ua.StatusCode) {
	m.mu.RLock()
	s, ok := m.sessions[authToken.Key()]
	m.mu.RUnlock()
	if !ok {
		return nil, ua.StatusBadSessionIDInvalid
	}

	s.mu.Lock()
	if s.state == SessionStateClosed {
		s.mu.Unlock()
		return nil, ua.StatusBadSessionClosed
	}
	s.state = SessionStateActivated
	s.channelID = channelID
	s.userIdentity = identity
	s.localeIDs = locales
	s.lastContact = time.Now()
	s.mu.Unlock()

	return s, ua.StatusOK
}

// Lookup finds a session by its authentication token without touching its
// last-contact clock (used by services to locate the caller's session).
func (m *SessionManager) Lookup(authToken *ua.NodeID) (*Session, bool) {
	if authToken == nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[authToken.Key()]
	return s, ok
}

// Close removes the session. Callers decide separately whether to delete
// or transfer its subscriptions (CloseSessionRequest.DeleteSubscriptions).
func (m *SessionManager) Close(authToken *ua.NodeID) {
	m.mu.Lock()
	s, ok := m.sessions[authToken.Key()]
	if ok {
		delete(m.sessions, authToken.Key())
	}
	m.mu.Unlock()
	if ok {
		s.mu.Lock()
		s.state = SessionStateClosed
		s.mu.Unlock()
		m.log.WithField("session", s.id.String()).Info("session closed")
	}
}

// SweepExpired closes every session whose last contact exceeds its
// timeout, returning the closed sessions so the caller can orphan their
// subscriptions.
func (m *SessionManager) SweepExpired() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []*Session
	for k, s := range m.sessions {
		if s.Expired() {
			s.mu.Lock()
			s.state = SessionStateClosed
			s.mu.Unlock()
			expired = append(expired, s)
			delete(m.sessions, k)
		}
	}
	return expired
}

// idCounter hands out increasing numeric ids (session, subscription and
// monitored item ids), starting at 1.
type idCounter struct {
	mu  sync.Mutex
	cur uint32
}

func (c *idCounter) next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur++
	return c.cur
}

var sessionCounter idCounter
