// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gopcua/opcua/ua"
	"github.com/gopcua/opcua/uacp"
	"github.com/gopcua/opcua/uasc"
)

// Server fans one uacp.Listener out to many connections, each carrying one
// uasc.ServerChannel, and dispatches the service requests those channels
// decode to the shared SessionManager, node-manager Dispatcher, and
// SubscriptionManager.
type Server struct {
	cfg *Config

	Sessions      *SessionManager
	Dispatcher    *Dispatcher
	Subscriptions *SubscriptionManager
	TypeTree      *TypeTree

	ln *uacp.Listener

	stopCh   chan struct{}
	stopOnce sync.Once
	log      *logrus.Logger
}

// New builds a Server from cfg (DefaultConfig() if nil), applying opts and
// wiring up empty session/dispatch/subscription layers. Node managers still
// need to be registered with Dispatcher before ListenAndServe.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Server{
		cfg:           cfg,
		Sessions:      NewSessionManager(cfg),
		Dispatcher:    NewDispatcher(),
		Subscriptions: NewSubscriptionManager(cfg),
		TypeTree:      NewTypeTree(),
		stopCh:        make(chan struct{}),
		log:           cfg.Logger,
	}
}

// ListenAndServe binds cfg.Endpoint and accepts connections until Close is
// called or the listener errors.
func (s *Server) ListenAndServe() error {
	ln, err := uacp.Listen(s.cfg.Endpoint, &uacp.Config{
		ReceiveBufSize: s.cfg.ReceiveBufSize,
		SendBufSize:    s.cfg.SendBufSize,
		MaxMessageSize: s.cfg.MaxMessageSize,
		MaxChunkCount:  s.cfg.MaxChunkCount,
	})
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Endpoint, err)
	}
	s.ln = ln
	s.log.WithField("endpoint", s.cfg.Endpoint).Info("server listening")

	go s.sweepExpiredSessions()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
				return err
			}
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections. Connections already being served
// run until their clients close them.
func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) serveConn(conn *uacp.Conn) {
	sc, err := uasc.AcceptSecureChannel(conn, s.cfg.channelLifetime())
	if err != nil {
		s.log.WithError(err).Debug("secure channel handshake failed")
		conn.Close()
		return
	}
	channelID := sc.ChannelID()
	err = sc.Serve(func(req interface{}, authToken *ua.NodeID) (interface{}, error) {
		return s.handle(req, authToken, channelID)
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"channel": channelID, "error": err}).Debug("secure channel closed")
	}
}

// sweepExpiredSessions periodically closes sessions that have gone silent
// past their negotiated timeout. Their subscriptions are left running,
// orphaned, so a TransferSubscriptions on a fresh session can still pick
// them up before the subscription's own lifetime counter expires them.
func (s *Server) sweepExpiredSessions() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for _, sess := range s.Sessions.SweepExpired() {
				s.log.WithField("session", sess.ID().String()).Warn("session expired")
			}
		}
	}
}

// requestContext builds the RequestContext a NodeManager call needs from an
// active session.
func (s *Server) requestContext(sess *Session) *RequestContext {
	return &RequestContext{
		Context:       context.Background(),
		SessionID:     sess.ID(),
		UserIdentity:  sess.userIdentity,
		TypeTree:      s.TypeTree,
		Subscriptions: s.Subscriptions,
	}
}

// handle type-switches a decoded service request to its handler. authToken
// is whatever the request's RequestHeader carried; channelID is the secure
// channel it arrived on.
func (s *Server) handle(req interface{}, authToken *ua.NodeID, channelID uint32) (interface{}, error) {
	switch r := req.(type) {
	case *ua.CreateSessionRequest:
		return s.createSession(r, channelID)
	case *ua.ActivateSessionRequest:
		return s.activateSession(r, authToken, channelID)
	case *ua.CloseSessionRequest:
		return s.closeSession(r, authToken)
	case *ua.ReadRequest:
		return s.read(r, authToken)
	case *ua.WriteRequest:
		return s.write(r, authToken)
	case *ua.BrowseRequest:
		return s.browse(r, authToken)
	case *ua.BrowseNextRequest:
		return s.browseNext(r, authToken)
	case *ua.TranslateBrowsePathsToNodeIdsRequest:
		return s.translateBrowsePaths(r, authToken)
	case *ua.RegisterNodesRequest:
		return s.registerNodes(r)
	case *ua.UnregisterNodesRequest:
		return s.unregisterNodes(r)
	case *ua.CallRequest:
		return s.call(r, authToken)
	case *ua.CreateSubscriptionRequest:
		return s.createSubscription(r, authToken)
	case *ua.ModifySubscriptionRequest:
		return s.modifySubscription(r)
	case *ua.SetPublishingModeRequest:
		return s.setPublishingMode(r)
	case *ua.DeleteSubscriptionsRequest:
		return s.deleteSubscriptions(r, authToken)
	case *ua.TransferSubscriptionsRequest:
		return s.transferSubscriptions(r, authToken)
	case *ua.PublishRequest:
		return s.publish(r, authToken)
	case *ua.RepublishRequest:
		return s.republish(r)
	case *ua.CreateMonitoredItemsRequest:
		return s.createMonitoredItems(r, authToken)
	case *ua.ModifyMonitoredItemsRequest:
		return s.modifyMonitoredItems(r)
	case *ua.SetMonitoringModeRequest:
		return s.setMonitoringMode(r)
	case *ua.SetTriggeringRequest:
		return s.setTriggering(r)
	case *ua.DeleteMonitoredItemsRequest:
		return s.deleteMonitoredItems(r)
	case *ua.HistoryReadRequest:
		return s.historyRead(r, authToken)
	default:
		s.log.WithField("type", fmt.Sprintf("%T", req)).Warn("unsupported service request")
		return &ua.ServiceFault{ResponseHeader: ua.NewResponseHeader(nil, ua.StatusBadServiceUnsupported)}, nil
	}
}

func newNonce() []byte {
	nonce := make([]byte, 32)
	_, _ = rand.Read(nonce)
	return nonce
}

// --- Session lifecycle -----------------------------------------------

func (s *Server) createSession(req *ua.CreateSessionRequest, channelID uint32) (*ua.CreateSessionResponse, error) {
	sess := s.Sessions.Create(req, channelID)
	return &ua.CreateSessionResponse{
		ResponseHeader:        ua.NewResponseHeader(req.RequestHeader, ua.StatusOK),
		SessionID:             sess.ID(),
		AuthenticationToken:   sess.AuthenticationToken(),
		RevisedSessionTimeout: float64(sess.Timeout() / time.Millisecond),
		ServerNonce:           newNonce(),
		MaxRequestMessageSize: s.cfg.MaxMessageSize,
	}, nil
}

// activateSession binds the session to channelID -- a no-op rebind on the
// channel that created it, or a session transfer when the client presents
// the authentication token on a different channel entirely. Full
// certificate/signature verification of ClientSignature is out of scope:
// this server trusts the identity token the way its in-memory node
// managers trust everything else.
func (s *Server) activateSession(req *ua.ActivateSessionRequest, authToken *ua.NodeID, channelID uint32) (*ua.ActivateSessionResponse, error) {
	var identity interface{}
	if req.UserIdentityToken != nil {
		identity = req.UserIdentityToken.Value
	}
	_, status := s.Sessions.Activate(authToken, channelID, identity, req.LocaleIDs)
	if status != ua.StatusOK {
		return &ua.ActivateSessionResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, status)}, nil
	}
	return &ua.ActivateSessionResponse{
		ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK),
		ServerNonce:    newNonce(),
	}, nil
}

func (s *Server) closeSession(req *ua.CloseSessionRequest, authToken *ua.NodeID) (*ua.CloseSessionResponse, error) {
	if sess, ok := s.Sessions.Lookup(authToken); ok {
		if req.DeleteSubscriptions {
			s.Subscriptions.Delete(sess.subscriptionIDList())
		}
		s.Sessions.Close(authToken)
	}
	return &ua.CloseSessionResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)}, nil
}

// --- Read / Write / Call -----------------------------------------------

func (s *Server) read(req *ua.ReadRequest, authToken *ua.NodeID) (*ua.ReadResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.ReadResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	ctx := s.requestContext(sess)
	results := s.Dispatcher.Read(ctx, req.NodesToRead, req.MaxAge, req.TimestampsToReturn)
	return &ua.ReadResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

func (s *Server) write(req *ua.WriteRequest, authToken *ua.NodeID) (*ua.WriteResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.WriteResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	ctx := s.requestContext(sess)
	results := s.Dispatcher.Write(ctx, req.NodesToWrite)
	return &ua.WriteResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

func (s *Server) call(req *ua.CallRequest, authToken *ua.NodeID) (*ua.CallResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.CallResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	ctx := s.requestContext(sess)
	results := s.Dispatcher.Call(ctx, req.MethodsToCall)
	return &ua.CallResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

// --- Browse / BrowseNext / TranslateBrowsePaths -------------------------

// browse runs the Dispatcher's Browse pass, then slices off whatever
// exceeds RequestedMaxReferencesPerNode into a session continuation point
// the way BrowseNext expects to consume it.
func (s *Server) browse(req *ua.BrowseRequest, authToken *ua.NodeID) (*ua.BrowseResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.BrowseResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	ctx := s.requestContext(sess)
	max := req.RequestedMaxReferencesPerNode
	results := s.Dispatcher.Browse(ctx, req.NodesToBrowse, max)
	for _, r := range results {
		s.pageBrowseResult(sess, r, max)
	}
	return &ua.BrowseResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

func (s *Server) pageBrowseResult(sess *Session, r *ua.BrowseResult, max uint32) {
	if max == 0 || uint32(len(r.References)) <= max {
		return
	}
	remaining := r.References[max:]
	r.References = r.References[:max]
	token, status := sess.addContinuationPoint(&continuationPoint{references: remaining})
	if status == ua.StatusOK {
		r.ContinuationPoint = []byte(token)
	}
}

const browseNextPageSize = 1000

func (s *Server) browseNext(req *ua.BrowseNextRequest, authToken *ua.NodeID) (*ua.BrowseNextResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.BrowseNextResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	results := make([]*ua.BrowseResult, len(req.ContinuationPoints))
	for i, cpBytes := range req.ContinuationPoints {
		cp, ok := sess.takeContinuationPoint(string(cpBytes))
		if !ok {
			results[i] = &ua.BrowseResult{StatusCode: ua.StatusBadNoContinuationPoints}
			continue
		}
		if req.ReleaseContinuationPoints {
			results[i] = &ua.BrowseResult{StatusCode: ua.StatusOK}
			continue
		}
		refs := cp.references
		result := &ua.BrowseResult{StatusCode: ua.StatusOK}
		if len(refs) > browseNextPageSize {
			result.References = refs[:browseNextPageSize]
			token, status := sess.addContinuationPoint(&continuationPoint{references: refs[browseNextPageSize:]})
			if status == ua.StatusOK {
				result.ContinuationPoint = []byte(token)
			}
		} else {
			result.References = refs
		}
		results[i] = result
	}
	return &ua.BrowseNextResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

// translateBrowsePaths walks each RelativePath one reference hop at a time
// using the same Dispatcher.Browse a plain Browse call would use, matching
// TargetName at each hop and following every matching reference in parallel
// (a relative path element may be ambiguous).
func (s *Server) translateBrowsePaths(req *ua.TranslateBrowsePathsToNodeIdsRequest, authToken *ua.NodeID) (*ua.TranslateBrowsePathsToNodeIdsResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.TranslateBrowsePathsToNodeIdsResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	ctx := s.requestContext(sess)
	results := make([]*ua.BrowsePathResult, len(req.BrowsePaths))
	for i, bp := range req.BrowsePaths {
		results[i] = s.translateOne(ctx, bp)
	}
	return &ua.TranslateBrowsePathsToNodeIdsResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

func (s *Server) translateOne(ctx *RequestContext, bp *ua.BrowsePath) *ua.BrowsePathResult {
	if bp.StartingNode == nil || bp.RelativePath == nil {
		return &ua.BrowsePathResult{StatusCode: ua.StatusBadNodeIDUnknown}
	}
	current := []*ua.NodeID{bp.StartingNode}
	for _, elem := range bp.RelativePath.Elements {
		var next []*ua.NodeID
		for _, node := range current {
			dir := ua.BrowseDirectionForward
			if elem.IsInverse {
				dir = ua.BrowseDirectionInverse
			}
			desc := &ua.BrowseDescription{
				NodeID:          node,
				BrowseDirection: dir,
				ReferenceTypeID: elem.ReferenceTypeID,
				IncludeSubtypes: elem.IncludeSubtypes,
				ResultMask:      0xFF,
			}
			res := s.Dispatcher.Browse(ctx, []*ua.BrowseDescription{desc}, 0)[0]
			for _, ref := range res.References {
				if elem.TargetName != nil && (ref.BrowseName == nil || *ref.BrowseName != *elem.TargetName) {
					continue
				}
				if ref.NodeID != nil && ref.NodeID.NodeID != nil {
					next = append(next, ref.NodeID.NodeID)
				}
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	if len(current) == 0 {
		return &ua.BrowsePathResult{StatusCode: ua.StatusBadNoMatch}
	}
	targets := make([]*ua.BrowsePathTarget, len(current))
	for i, n := range current {
		targets[i] = &ua.BrowsePathTarget{TargetID: &ua.ExpandedNodeID{NodeID: n}, RemainingPathIndex: 0xFFFFFFFF}
	}
	return &ua.BrowsePathResult{StatusCode: ua.StatusOK, Targets: targets}
}

// --- RegisterNodes / UnregisterNodes ------------------------------------

// registerNodes and unregisterNodes are no-ops beyond echoing the request:
// this server's node ids are already cheap to address directly, so there's
// no alias table to build.
func (s *Server) registerNodes(req *ua.RegisterNodesRequest) (*ua.RegisterNodesResponse, error) {
	return &ua.RegisterNodesResponse{
		ResponseHeader:    ua.NewResponseHeader(req.RequestHeader, ua.StatusOK),
		RegisteredNodeIDs: req.NodesToRegister,
	}, nil
}

func (s *Server) unregisterNodes(req *ua.UnregisterNodesRequest) (*ua.UnregisterNodesResponse, error) {
	return &ua.UnregisterNodesResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)}, nil
}

// --- HistoryRead ---------------------------------------------------------

// historyRead routes each node to the manager that owns it and implements
// HistoryNodeManager, the same unhandled-default pattern Dispatcher uses
// for the core services.
func (s *Server) historyRead(req *ua.HistoryReadRequest, authToken *ua.NodeID) (*ua.HistoryReadResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.HistoryReadResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	ctx := s.requestContext(sess)

	var details *ua.ReadRawModifiedDetails
	if req.HistoryReadDetails != nil {
		details, _ = req.HistoryReadDetails.Value.(*ua.ReadRawModifiedDetails)
	}

	results := make([]*ua.HistoryReadResult, len(req.NodesToRead))
	handled := make([]bool, len(req.NodesToRead))
	for _, m := range s.Dispatcher.snapshot() {
		hm, ok := m.(HistoryNodeManager)
		if !ok {
			continue
		}
		var pending []*ua.HistoryReadValueID
		var idxs []int
		for i, item := range req.NodesToRead {
			if !handled[i] && m.Owns(item.NodeID) {
				pending = append(pending, item)
				idxs = append(idxs, i)
			}
		}
		if len(pending) == 0 {
			continue
		}
		res := hm.HistoryRead(ctx, details, pending)
		for j, r := range res {
			if j >= len(idxs) {
				break
			}
			results[idxs[j]] = r
			handled[idxs[j]] = true
		}
	}
	for i, ok := range handled {
		if !ok {
			results[i] = &ua.HistoryReadResult{StatusCode: ua.StatusBadNodeIDUnknown}
		}
	}
	return &ua.HistoryReadResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

// --- Subscriptions --------------------------------------------------------

func (s *Server) createSubscription(req *ua.CreateSubscriptionRequest, authToken *ua.NodeID) (*ua.CreateSubscriptionResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.CreateSubscriptionResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	sub := s.Subscriptions.Create(authToken, req)
	sess.addSubscription(sub.ID)

	sub.mu.Lock()
	pubInterval, lifetimeCount, maxKeepAlive := sub.publishingInterval, sub.lifetimeCount, sub.maxKeepAlive
	sub.mu.Unlock()

	return &ua.CreateSubscriptionResponse{
		ResponseHeader:            ua.NewResponseHeader(req.RequestHeader, ua.StatusOK),
		SubscriptionID:            sub.ID,
		RevisedPublishingInterval: float64(pubInterval / time.Millisecond),
		RevisedLifetimeCount:      lifetimeCount,
		RevisedMaxKeepAliveCount:  maxKeepAlive,
	}, nil
}

func (s *Server) modifySubscription(req *ua.ModifySubscriptionRequest) (*ua.ModifySubscriptionResponse, error) {
	sub, ok := s.Subscriptions.lookup(req.SubscriptionID)
	if !ok {
		return &ua.ModifySubscriptionResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSubscriptionIDInvalid)}, nil
	}
	interval := req.RequestedPublishingInterval
	if interval <= 0 {
		interval = 1000
	}

	sub.mu.Lock()
	sub.publishingInterval = time.Duration(interval) * time.Millisecond
	sub.lifetimeCount = req.RequestedLifetimeCount
	sub.maxKeepAlive = req.RequestedMaxKeepAliveCount
	sub.maxNotifications = req.MaxNotificationsPerPublish
	sub.priority = req.Priority
	if sub.lifetimeCount < 3*sub.maxKeepAlive {
		sub.lifetimeCount = 3 * sub.maxKeepAlive
	}
	pubInterval, lifetimeCount, maxKeepAlive := sub.publishingInterval, sub.lifetimeCount, sub.maxKeepAlive
	sub.mu.Unlock()

	sub.rearm(pubInterval)

	return &ua.ModifySubscriptionResponse{
		ResponseHeader:            ua.NewResponseHeader(req.RequestHeader, ua.StatusOK),
		RevisedPublishingInterval: float64(pubInterval / time.Millisecond),
		RevisedLifetimeCount:      lifetimeCount,
		RevisedMaxKeepAliveCount:  maxKeepAlive,
	}, nil
}

func (s *Server) setPublishingMode(req *ua.SetPublishingModeRequest) (*ua.SetPublishingModeResponse, error) {
	results := s.Subscriptions.SetPublishingMode(req.PublishingEnabled, req.SubscriptionIDs)
	return &ua.SetPublishingModeResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

func (s *Server) deleteSubscriptions(req *ua.DeleteSubscriptionsRequest, authToken *ua.NodeID) (*ua.DeleteSubscriptionsResponse, error) {
	results := s.Subscriptions.Delete(req.SubscriptionIDs)
	if sess, ok := s.Sessions.Lookup(authToken); ok {
		for _, id := range req.SubscriptionIDs {
			sess.removeSubscription(id)
		}
	}
	return &ua.DeleteSubscriptionsResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

func (s *Server) transferSubscriptions(req *ua.TransferSubscriptionsRequest, authToken *ua.NodeID) (*ua.TransferSubscriptionsResponse, error) {
	results := s.Subscriptions.Transfer(authToken, req.SubscriptionIDs)
	if sess, ok := s.Sessions.Lookup(authToken); ok {
		for i, id := range req.SubscriptionIDs {
			if results[i].StatusCode == ua.StatusOK {
				sess.addSubscription(id)
			}
		}
	}
	return &ua.TransferSubscriptionsResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusOK), Results: results}, nil
}

// defaultPublishTimeout bounds how long a Publish call blocks when the
// request carries no TimeoutHint, so a dropped connection's goroutines
// still unwind instead of blocking on their respCh forever.
const defaultPublishTimeout = 2 * time.Minute

func (s *Server) publish(req *ua.PublishRequest, authToken *ua.NodeID) (*ua.PublishResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.PublishResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()

	timeout := defaultPublishTimeout
	if req.RequestHeader != nil && req.RequestHeader.TimeoutHint > 0 {
		timeout = time.Duration(req.RequestHeader.TimeoutHint) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, status := s.Subscriptions.Publish(ctx, authToken, req)
	if status != ua.StatusOK {
		return &ua.PublishResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, status)}, nil
	}
	resp.ResponseHeader = ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)
	return resp, nil
}

func (s *Server) republish(req *ua.RepublishRequest) (*ua.RepublishResponse, error) {
	msg, status := s.Subscriptions.Republish(req.SubscriptionID, req.RetransmitSequenceNumber)
	return &ua.RepublishResponse{
		ResponseHeader:      ua.NewResponseHeader(req.RequestHeader, status),
		NotificationMessage: msg,
	}, nil
}

// --- Monitored items -------------------------------------------------

func (s *Server) createMonitoredItems(req *ua.CreateMonitoredItemsRequest, authToken *ua.NodeID) (*ua.CreateMonitoredItemsResponse, error) {
	sess, ok := s.Sessions.Lookup(authToken)
	if !ok {
		return &ua.CreateMonitoredItemsResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.StatusBadSessionIDInvalid)}, nil
	}
	sess.touch()
	ctx := s.requestContext(sess)
	resp := s.Subscriptions.CreateMonitoredItems(ctx, s.Dispatcher, s.TypeTree, req)
	resp.ResponseHeader = ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)
	return resp, nil
}

func (s *Server) modifyMonitoredItems(req *ua.ModifyMonitoredItemsRequest) (*ua.ModifyMonitoredItemsResponse, error) {
	resp := s.Subscriptions.ModifyMonitoredItems(req)
	resp.ResponseHeader = ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)
	return resp, nil
}

func (s *Server) setMonitoringMode(req *ua.SetMonitoringModeRequest) (*ua.SetMonitoringModeResponse, error) {
	resp := s.Subscriptions.SetMonitoringMode(req)
	resp.ResponseHeader = ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)
	return resp, nil
}

func (s *Server) setTriggering(req *ua.SetTriggeringRequest) (*ua.SetTriggeringResponse, error) {
	resp := s.Subscriptions.SetTriggering(req)
	resp.ResponseHeader = ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)
	return resp, nil
}

func (s *Server) deleteMonitoredItems(req *ua.DeleteMonitoredItemsRequest) (*ua.DeleteMonitoredItemsResponse, error) {
	resp := s.Subscriptions.DeleteMonitoredItems(req)
	resp.ResponseHeader = ua.NewResponseHeader(req.RequestHeader, ua.StatusOK)
	return resp, nil
}
