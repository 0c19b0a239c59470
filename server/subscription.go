// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gopcua/opcua/ua"
)

// Subscription is one client subscription: a publishing-interval timer
// driving the keep-alive/lifetime state machine, a bounded retransmission
// queue, and the set of MonitoredItems it samples on behalf of.
type Subscription struct {
	mu sync.Mutex

	ID           uint32
	sessionToken *ua.NodeID

	publishingInterval time.Duration
	lifetimeCount      uint32
	maxKeepAlive       uint32
	maxNotifications   uint32
	priority           byte
	publishingEnabled  bool

	state ua.SubscriptionState

	keepAliveCounter uint32
	lifetimeCounter  uint32
	lastPublished    time.Time

	nextSeq         uint32
	retransmit      map[uint32]*ua.NotificationMessage
	retransmitOrder []uint32
	maxRetransmit   int

	outbox []*ua.NotificationMessage

	items   map[uint32]*MonitoredItem
	itemIDs *idCounter

	resetCh  chan time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// rearm tells run to apply a new publishing interval on its ticker,
// e.g. after ModifySubscription. Non-blocking: a pending reset that hasn't
// been picked up yet is simply replaced.
func (s *Subscription) rearm(interval time.Duration) {
	select {
	case s.resetCh <- interval:
	default:
		select {
		case <-s.resetCh:
		default:
		}
		select {
		case s.resetCh <- interval:
		default:
		}
	}
}

func (s *Subscription) nextSequenceNumber() uint32 {
	s.nextSeq++
	return s.nextSeq
}

// collectNotifications drains the items' queues, up to maxNotifications
// entries when that is non-zero (the rest stay queued for a later cycle),
// merging data and event notifications into the two NotificationData
// payloads a NotificationMessage carries.
func (s *Subscription) collectNotifications() (*ua.DataChangeNotification, *ua.EventNotificationList) {
	var dataItems []*ua.MonitoredItemNotification
	var events []*ua.EventFieldList
	sent := uint32(0)
	for _, mi := range s.items {
		if s.maxNotifications > 0 && sent >= s.maxNotifications {
			break
		}
		d, e := mi.drain()
		if room := int(s.maxNotifications - sent); s.maxNotifications > 0 && len(d)+len(e) > room {
			var keepD []*ua.MonitoredItemNotification
			var keepE []*ua.EventFieldList
			if len(d) > room {
				d, keepD = d[:room], d[room:]
			}
			if room -= len(d); len(e) > room {
				e, keepE = e[:room], e[room:]
			}
			mi.mu.Lock()
			mi.dataQueue, mi.eventQueue = append(keepD, mi.dataQueue...), append(keepE, mi.eventQueue...)
			mi.mu.Unlock()
		}
		dataItems = append(dataItems, d...)
		events = append(events, e...)
		sent += uint32(len(d) + len(e))
	}
	var dc *ua.DataChangeNotification
	if len(dataItems) > 0 {
		dc = &ua.DataChangeNotification{MonitoredItems: dataItems}
	}
	var el *ua.EventNotificationList
	if len(events) > 0 {
		el = &ua.EventNotificationList{Events: events}
	}
	return dc, el
}

// buildMessage wraps the collected notification data (nil for a bare
// keep-alive) in a NotificationMessage with the next sequence number.
func (s *Subscription) buildMessage(dc *ua.DataChangeNotification, el *ua.EventNotificationList) *ua.NotificationMessage {
	var data []*ua.ExtensionObject
	if dc != nil {
		data = append(data, ua.NewExtensionObject(dc))
	}
	if el != nil {
		data = append(data, ua.NewExtensionObject(el))
	}
	return &ua.NotificationMessage{
		SequenceNumber:   s.nextSequenceNumber(),
		PublishTime:      s.lastPublished,
		NotificationData: data,
	}
}

// tick evaluates one publishing-interval cycle of the state machine
// described for the subscription engine: keep-alive counting, dequeueing up
// to max_notifications_per_publish, and the lifetime counter. It appends at
// most one message to the outbox; delivery happens separately in pump, so a
// subscription with no available PublishRequest keeps accumulating outbox
// entries instead of losing notifications.
func (s *Subscription) tick() (expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dc, el := s.collectNotifications()
	hasNotifications := dc != nil || el != nil

	switch {
	case !s.publishingEnabled && !hasNotifications:
		s.state = ua.SubscriptionStateKeepAlive
	case !hasNotifications:
		if s.keepAliveCounter < s.maxKeepAlive {
			s.keepAliveCounter++
		} else {
			s.keepAliveCounter = 0
			s.lastPublished = time.Now()
			s.outbox = append(s.outbox, s.buildMessage(nil, nil))
		}
	default:
		s.keepAliveCounter = 0
		s.lastPublished = time.Now()
		s.outbox = append(s.outbox, s.buildMessage(dc, el))
	}

	s.lifetimeCounter++
	return s.lifetimeCounter >= s.lifetimeCount
}

// storeForRetransmission records msg in the bounded retransmit queue,
// dropping the oldest entry once maxRetransmit is reached.
func (s *Subscription) storeForRetransmission(msg *ua.NotificationMessage) {
	s.retransmit[msg.SequenceNumber] = msg
	s.retransmitOrder = append(s.retransmitOrder, msg.SequenceNumber)
	if len(s.retransmitOrder) > s.maxRetransmit {
		oldest := s.retransmitOrder[0]
		s.retransmitOrder = s.retransmitOrder[1:]
		delete(s.retransmit, oldest)
	}
}

func (s *Subscription) acknowledge(seqs []*ua.SubscriptionAcknowledgement) []ua.StatusCode {
	results := make([]ua.StatusCode, len(seqs))
	for i, ack := range seqs {
		if ack.SubscriptionID != s.ID {
			results[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		if _, ok := s.retransmit[ack.SequenceNumber]; !ok {
			results[i] = ua.StatusBadSequenceNumberUnknown
			continue
		}
		delete(s.retransmit, ack.SequenceNumber)
		results[i] = ua.StatusOK
	}
	return results
}

func (s *Subscription) availableSeqNumbers() []uint32 {
	out := make([]uint32, len(s.retransmitOrder))
	copy(out, s.retransmitOrder)
	return out
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	for _, mi := range s.items {
		mi.stop()
	}
}

// pendingPublish is one client PublishRequest parked on a session's queue,
// awaiting a subscription with something to send.
type pendingPublish struct {
	req    *ua.PublishRequest
	respCh chan *publishResult
}

type publishResult struct {
	resp   *ua.PublishResponse
	status ua.StatusCode
}

// SubscriptionManager owns every Subscription a server process currently
// serves plus the per-session queue of outstanding PublishRequests those
// subscriptions draw from.
type SubscriptionManager struct {
	mu   sync.RWMutex
	subs map[uint32]*Subscription

	pubMu   sync.Mutex
	publish map[ua.NodeIDKey][]*pendingPublish

	idCounter     idCounter
	maxRetransmit int
	log           *logrus.Logger
}

// NewSubscriptionManager returns an empty manager.
func NewSubscriptionManager(cfg *Config) *SubscriptionManager {
	return &SubscriptionManager{
		subs:          make(map[uint32]*Subscription),
		publish:       make(map[ua.NodeIDKey][]*pendingPublish),
		maxRetransmit: 64,
		log:           cfg.Logger,
	}
}

// Create handles CreateSubscription: allocates a subscription id, starts
// its publishing-interval ticker, and returns the revised parameters the
// server settled on.
func (sm *SubscriptionManager) Create(sessionToken *ua.NodeID, req *ua.CreateSubscriptionRequest) *Subscription {
	interval := req.RequestedPublishingInterval
	if interval <= 0 {
		interval = 1000
	}
	sub := &Subscription{
		ID:                 sm.idCounter.next(),
		sessionToken:       sessionToken,
		publishingInterval: time.Duration(interval) * time.Millisecond,
		lifetimeCount:      req.RequestedLifetimeCount,
		maxKeepAlive:       req.RequestedMaxKeepAliveCount,
		maxNotifications:   req.MaxNotificationsPerPublish,
		priority:           req.Priority,
		publishingEnabled:  req.PublishingEnabled,
		state:              ua.SubscriptionStateCreating,
		retransmit:         make(map[uint32]*ua.NotificationMessage),
		maxRetransmit:      sm.maxRetransmit,
		items:              make(map[uint32]*MonitoredItem),
		itemIDs:            &idCounter{},
		resetCh:            make(chan time.Duration, 1),
		stopCh:             make(chan struct{}),
		lastPublished:      time.Now(),
	}
	if sub.lifetimeCount < 3*sub.maxKeepAlive {
		sub.lifetimeCount = 3 * sub.maxKeepAlive
	}

	sm.mu.Lock()
	sm.subs[sub.ID] = sub
	sm.mu.Unlock()

	go sm.run(sub)
	return sub
}

func (sm *SubscriptionManager) lookup(id uint32) (*Subscription, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.subs[id]
	return s, ok
}

// run drives one subscription's publishing-interval ticker until Delete or
// lifetime expiry.
func (sm *SubscriptionManager) run(sub *Subscription) {
	ticker := time.NewTicker(sub.publishingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sub.stopCh:
			return
		case d := <-sub.resetCh:
			ticker.Reset(d)
		case <-ticker.C:
			expired := sub.tick()
			sm.pump(sub)
			if expired {
				sm.expire(sub)
				return
			}
		}
	}
}

// pump flushes as much of sub's outbox as there are available PublishRequests
// for its owning session, updating Normal/Late state as it goes.
func (sm *SubscriptionManager) pump(sub *Subscription) {
	for {
		sub.mu.Lock()
		if len(sub.outbox) == 0 {
			sub.mu.Unlock()
			return
		}
		msg := sub.outbox[0]
		sub.mu.Unlock()

		pub, ok := sm.takePublishRequest(sub.sessionToken)
		if !ok {
			sub.mu.Lock()
			sub.state = ua.SubscriptionStateLate
			sub.mu.Unlock()
			return
		}

		sub.mu.Lock()
		sub.outbox = sub.outbox[1:]
		sub.state = ua.SubscriptionStateNormal
		sub.lifetimeCounter = 0
		sub.storeForRetransmission(msg)
		var ackResults []ua.StatusCode
		if pub.req != nil {
			ackResults = sub.acknowledge(pub.req.SubscriptionAcknowledgements)
		}
		resp := &ua.PublishResponse{
			SubscriptionID:           sub.ID,
			AvailableSequenceNumbers: sub.availableSeqNumbers(),
			MoreNotifications:        len(sub.outbox) > 0,
			NotificationMessage:      msg,
			Results:                  ackResults,
		}
		sub.mu.Unlock()

		pub.respCh <- &publishResult{resp: resp, status: ua.StatusOK}
	}
}

// expire tears down a subscription whose lifetime counter ran out,
// delivering a StatusChangeNotification(BadTimeout) to any session waiting
// on it before removing it.
func (sm *SubscriptionManager) expire(sub *Subscription) {
	sm.deleteSubscription(sub, ua.StatusBadTimeout)
	sm.log.WithField("subscription", sub.ID).Warn("subscription lifetime expired")
}

func (sm *SubscriptionManager) deleteSubscription(sub *Subscription, statusChange ua.StatusCode) {
	sm.mu.Lock()
	delete(sm.subs, sub.ID)
	sm.mu.Unlock()
	sub.stop()

	pub, ok := sm.takePublishRequest(sub.sessionToken)
	if !ok {
		return
	}
	msg := &ua.NotificationMessage{
		SequenceNumber:   sub.nextSequenceNumber(),
		PublishTime:      time.Now(),
		NotificationData: []*ua.ExtensionObject{ua.NewExtensionObject(&ua.StatusChangeNotification{Status: statusChange})},
	}
	resp := &ua.PublishResponse{SubscriptionID: sub.ID, NotificationMessage: msg}
	pub.respCh <- &publishResult{resp: resp, status: ua.StatusOK}
}

// Publish handles the PublishRequest/Response service: it parks req on the
// session's queue, immediately tries to drain every subscription that
// belongs to that session (highest priority first, ties broken by
// least-recently-published), and blocks until one of them has something to
// send or ctx is cancelled.
func (sm *SubscriptionManager) Publish(ctx context.Context, sessionToken *ua.NodeID, req *ua.PublishRequest) (*ua.PublishResponse, ua.StatusCode) {
	pub := &pendingPublish{req: req, respCh: make(chan *publishResult, 1)}
	sm.enqueuePublishRequest(sessionToken, pub)

	for _, sub := range sm.sessionSubscriptionsByPriority(sessionToken) {
		sm.pump(sub)
	}

	select {
	case res := <-pub.respCh:
		return res.resp, res.status
	case <-ctx.Done():
		sm.dropPublishRequest(sessionToken, pub)
		return nil, ua.StatusBadTimeout
	}
}

func (sm *SubscriptionManager) sessionSubscriptionsByPriority(sessionToken *ua.NodeID) []*Subscription {
	sm.mu.RLock()
	var subs []*Subscription
	for _, s := range sm.subs {
		if s.sessionToken.Equal(sessionToken) {
			subs = append(subs, s)
		}
	}
	sm.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		return subs[i].lastPublished.Before(subs[j].lastPublished)
	})
	return subs
}

func (sm *SubscriptionManager) enqueuePublishRequest(token *ua.NodeID, pub *pendingPublish) {
	sm.pubMu.Lock()
	defer sm.pubMu.Unlock()
	sm.publish[token.Key()] = append(sm.publish[token.Key()], pub)
}

func (sm *SubscriptionManager) takePublishRequest(token *ua.NodeID) (*pendingPublish, bool) {
	sm.pubMu.Lock()
	defer sm.pubMu.Unlock()
	q := sm.publish[token.Key()]
	if len(q) == 0 {
		return nil, false
	}
	sm.publish[token.Key()] = q[1:]
	return q[0], true
}

func (sm *SubscriptionManager) dropPublishRequest(token *ua.NodeID, pub *pendingPublish) {
	sm.pubMu.Lock()
	defer sm.pubMu.Unlock()
	q := sm.publish[token.Key()]
	for i, p := range q {
		if p == pub {
			sm.publish[token.Key()] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// Republish replays a retained notification, or BadMessageNotAvailable if
// it has already scrolled out of the retransmission queue.
func (sm *SubscriptionManager) Republish(subID, seq uint32) (*ua.NotificationMessage, ua.StatusCode) {
	sub, ok := sm.lookup(subID)
	if !ok {
		return nil, ua.StatusBadSubscriptionIDInvalid
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	msg, ok := sub.retransmit[seq]
	if !ok {
		return nil, ua.StatusBadMessageNotAvailable
	}
	return msg, ua.StatusOK
}

// SetPublishingMode handles SetPublishingMode for the given subscription
// ids.
func (sm *SubscriptionManager) SetPublishingMode(enabled bool, ids []uint32) []ua.StatusCode {
	out := make([]ua.StatusCode, len(ids))
	for i, id := range ids {
		sub, ok := sm.lookup(id)
		if !ok {
			out[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		sub.mu.Lock()
		sub.publishingEnabled = enabled
		sub.mu.Unlock()
		out[i] = ua.StatusOK
	}
	return out
}

// Delete handles DeleteSubscriptions.
func (sm *SubscriptionManager) Delete(ids []uint32) []ua.StatusCode {
	out := make([]ua.StatusCode, len(ids))
	for i, id := range ids {
		sub, ok := sm.lookup(id)
		if !ok {
			out[i] = ua.StatusBadSubscriptionIDInvalid
			continue
		}
		sm.mu.Lock()
		delete(sm.subs, id)
		sm.mu.Unlock()
		sub.stop()
		out[i] = ua.StatusOK
	}
	return out
}

// Transfer atomically re-parents the given subscriptions to newToken,
// preserving their retransmission queues, and tells the old session's
// waiting PublishRequest (if any) that the subscription moved.
func (sm *SubscriptionManager) Transfer(newToken *ua.NodeID, ids []uint32) []*ua.TransferResult {
	out := make([]*ua.TransferResult, len(ids))
	for i, id := range ids {
		sub, ok := sm.lookup(id)
		if !ok {
			out[i] = &ua.TransferResult{StatusCode: ua.StatusBadSubscriptionIDInvalid}
			continue
		}
		sub.mu.Lock()
		oldToken := sub.sessionToken
		sub.sessionToken = newToken
		seqs := sub.availableSeqNumbers()
		sub.mu.Unlock()

		if pub, ok := sm.takePublishRequest(oldToken); ok {
			msg := &ua.NotificationMessage{
				SequenceNumber:   sub.nextSequenceNumber(),
				PublishTime:      time.Now(),
				NotificationData: []*ua.ExtensionObject{ua.NewExtensionObject(&ua.StatusChangeNotification{Status: ua.StatusGoodSubscriptionTransferred})},
			}
			resp := &ua.PublishResponse{SubscriptionID: sub.ID, NotificationMessage: msg}
			pub.respCh <- &publishResult{resp: resp, status: ua.StatusOK}
		}

		out[i] = &ua.TransferResult{StatusCode: ua.StatusOK, AvailableSequenceNumbers: seqs}
	}
	return out
}

// CreateMonitoredItems handles CreateMonitoredItems: it builds one
// MonitoredItem per request element, looks up its EURange for percent
// deadband if the owning manager carries one, and starts its sampler.
func (sm *SubscriptionManager) CreateMonitoredItems(ctx *RequestContext, dispatcher *Dispatcher, tt *TypeTree, req *ua.CreateMonitoredItemsRequest) *ua.CreateMonitoredItemsResponse {
	sub, ok := sm.lookup(req.SubscriptionID)
	if !ok {
		return &ua.CreateMonitoredItemsResponse{Results: badCreateResults(len(req.ItemsToCreate), ua.StatusBadSubscriptionIDInvalid)}
	}

	results := make([]*ua.MonitoredItemCreateResult, len(req.ItemsToCreate))
	for i, item := range req.ItemsToCreate {
		mi := newMonitoredItem(sub.itemIDs.next(), sub.ID, item, req.TimestampsToReturn)

		if mgr, ok := dispatcher.ManagerFor(item.ItemToMonitor.NodeID); ok {
			if er, ok := mgr.(EURangeNodeManager); ok {
				if low, high, ok := er.EURange(ctx, item.ItemToMonitor.NodeID); ok {
					mi.setEURange(low, high)
				}
			}
		}

		sub.mu.Lock()
		sub.items[mi.ID] = mi
		sub.mu.Unlock()

		sm.startSampler(ctx, dispatcher, tt, sub, mi)

		results[i] = &ua.MonitoredItemCreateResult{
			StatusCode:               ua.StatusOK,
			MonitoredItemID:          mi.ID,
			RevisedSamplingInterval:  item.RequestedParameters.SamplingInterval,
			RevisedQueueSize:         mi.queueSize,
		}
	}
	return &ua.CreateMonitoredItemsResponse{Results: results}
}

// startSampler runs mi's per-item sampling loop: on each tick it asks the
// owning manager for a fresh value, applies the DataChangeFilter, and fires
// any linked triggering items.
func (sm *SubscriptionManager) startSampler(ctx *RequestContext, dispatcher *Dispatcher, tt *TypeTree, sub *Subscription, mi *MonitoredItem) {
	if mi.isEvent {
		return // event items are fed by RaiseEvent, not polled
	}
	go func() {
		ticker := time.NewTicker(mi.currentInterval())
		defer ticker.Stop()
		for {
			select {
			case <-mi.stopCh:
				return
			case <-sub.stopCh:
				return
			case <-ticker.C:
				mode := mi.currentMode()
				if mode != ua.MonitoringModeDisabled {
					if mgr, ok := dispatcher.ManagerFor(mi.Node.NodeID); ok {
						if mim, ok := mgr.(MonitoredItemNodeManager); ok {
							if dv, err := mim.SampleValue(ctx, mi.Node); err == nil {
								if mi.pushData(dv, false) {
									sm.fireTriggers(sub, mi)
								}
							}
						}
					}
				}
				ticker.Reset(mi.currentInterval())
			}
		}
	}()
}

// fireTriggers forces every item linked to mi (via SetTriggering) to report
// its current value once, independent of its own monitoring mode.
func (sm *SubscriptionManager) fireTriggers(sub *Subscription, mi *MonitoredItem) {
	for _, id := range mi.triggerIDs() {
		sub.mu.Lock()
		target, ok := sub.items[id]
		sub.mu.Unlock()
		if !ok {
			continue
		}
		target.mu.Lock()
		lv := target.lastValue
		target.mu.Unlock()
		if lv != nil {
			target.pushData(lv, true)
		}
	}
}

// RaiseEvent feeds ev to every event-monitored item across every
// subscription whose EventFilter it qualifies under.
func (sm *SubscriptionManager) RaiseEvent(tt *TypeTree, ev *EventData) {
	sm.mu.RLock()
	subs := make([]*Subscription, 0, len(sm.subs))
	for _, s := range sm.subs {
		subs = append(subs, s)
	}
	sm.mu.RUnlock()

	for _, sub := range subs {
		sub.mu.Lock()
		items := make([]*MonitoredItem, 0, len(sub.items))
		for _, mi := range sub.items {
			if mi.isEvent {
				items = append(items, mi)
			}
		}
		sub.mu.Unlock()
		for _, mi := range items {
			mi.pushEvent(tt, ev)
		}
	}
}

// ModifyMonitoredItems handles ModifyMonitoredItems.
func (sm *SubscriptionManager) ModifyMonitoredItems(req *ua.ModifyMonitoredItemsRequest) *ua.ModifyMonitoredItemsResponse {
	sub, ok := sm.lookup(req.SubscriptionID)
	if !ok {
		return &ua.ModifyMonitoredItemsResponse{Results: badModifyResults(len(req.ItemsToModify), ua.StatusBadSubscriptionIDInvalid)}
	}

	results := make([]*ua.MonitoredItemModifyResult, len(req.ItemsToModify))
	for i, item := range req.ItemsToModify {
		sub.mu.Lock()
		mi, ok := sub.items[item.MonitoredItemID]
		sub.mu.Unlock()
		if !ok {
			results[i] = &ua.MonitoredItemModifyResult{StatusCode: ua.StatusBadMonitoredItemIDInvalid}
			continue
		}

		p := item.RequestedParameters
		mi.mu.Lock()
		mi.ClientHandle = p.ClientHandle
		mi.samplingInterval = time.Duration(p.SamplingInterval) * time.Millisecond
		queueSize := p.QueueSize
		if queueSize == 0 {
			queueSize = 1
		}
		mi.queueSize = queueSize
		mi.discardOldest = p.DiscardOldest
		if p.Filter != nil {
			switch f := p.Filter.Value.(type) {
			case *ua.DataChangeFilter:
				mi.dataFilter = f
			case *ua.EventFilter:
				mi.eventFilter = f
			}
		}
		mi.mu.Unlock()

		results[i] = &ua.MonitoredItemModifyResult{
			StatusCode:              ua.StatusOK,
			RevisedSamplingInterval: p.SamplingInterval,
			RevisedQueueSize:        queueSize,
		}
	}
	return &ua.ModifyMonitoredItemsResponse{Results: results}
}

// SetMonitoringMode handles SetMonitoringMode.
func (sm *SubscriptionManager) SetMonitoringMode(req *ua.SetMonitoringModeRequest) *ua.SetMonitoringModeResponse {
	sub, ok := sm.lookup(req.SubscriptionID)
	if !ok {
		return &ua.SetMonitoringModeResponse{Results: badStatusList(len(req.MonitoredItemIDs), ua.StatusBadSubscriptionIDInvalid)}
	}
	results := make([]ua.StatusCode, len(req.MonitoredItemIDs))
	for i, id := range req.MonitoredItemIDs {
		sub.mu.Lock()
		mi, ok := sub.items[id]
		sub.mu.Unlock()
		if !ok {
			results[i] = ua.StatusBadMonitoredItemIDInvalid
			continue
		}
		mi.setMode(req.MonitoringMode)
		results[i] = ua.StatusOK
	}
	return &ua.SetMonitoringModeResponse{Results: results}
}

// SetTriggering handles SetTriggering: req.TriggeringItemID gains/loses
// links to the item ids in LinksToAdd/LinksToRemove.
func (sm *SubscriptionManager) SetTriggering(req *ua.SetTriggeringRequest) *ua.SetTriggeringResponse {
	sub, ok := sm.lookup(req.SubscriptionID)
	if !ok {
		return &ua.SetTriggeringResponse{
			AddResults:    badStatusList(len(req.LinksToAdd), ua.StatusBadSubscriptionIDInvalid),
			RemoveResults: badStatusList(len(req.LinksToRemove), ua.StatusBadSubscriptionIDInvalid),
		}
	}
	sub.mu.Lock()
	trigger, ok := sub.items[req.TriggeringItemID]
	sub.mu.Unlock()
	if !ok {
		return &ua.SetTriggeringResponse{
			AddResults:    badStatusList(len(req.LinksToAdd), ua.StatusBadMonitoredItemIDInvalid),
			RemoveResults: badStatusList(len(req.LinksToRemove), ua.StatusBadMonitoredItemIDInvalid),
		}
	}

	addResults := make([]ua.StatusCode, len(req.LinksToAdd))
	for i, id := range req.LinksToAdd {
		sub.mu.Lock()
		_, ok := sub.items[id]
		sub.mu.Unlock()
		if !ok {
			addResults[i] = ua.StatusBadMonitoredItemIDInvalid
			continue
		}
		trigger.addTrigger(id)
		addResults[i] = ua.StatusOK
	}
	removeResults := make([]ua.StatusCode, len(req.LinksToRemove))
	for i, id := range req.LinksToRemove {
		trigger.removeTrigger(id)
		removeResults[i] = ua.StatusOK
	}
	return &ua.SetTriggeringResponse{AddResults: addResults, RemoveResults: removeResults}
}

// DeleteMonitoredItems handles DeleteMonitoredItems.
func (sm *SubscriptionManager) DeleteMonitoredItems(req *ua.DeleteMonitoredItemsRequest) *ua.DeleteMonitoredItemsResponse {
	sub, ok := sm.lookup(req.SubscriptionID)
	if !ok {
		return &ua.DeleteMonitoredItemsResponse{Results: badStatusList(len(req.MonitoredItemIDs), ua.StatusBadSubscriptionIDInvalid)}
	}
	results := make([]ua.StatusCode, len(req.MonitoredItemIDs))
	for i, id := range req.MonitoredItemIDs {
		sub.mu.Lock()
		mi, ok := sub.items[id]
		if ok {
			delete(sub.items, id)
		}
		sub.mu.Unlock()
		if !ok {
			results[i] = ua.StatusBadMonitoredItemIDInvalid
			continue
		}
		mi.stop()
		results[i] = ua.StatusOK
	}
	return &ua.DeleteMonitoredItemsResponse{Results: results}
}

func badStatusList(n int, code ua.StatusCode) []ua.StatusCode {
	out := make([]ua.StatusCode, n)
	for i := range out {
		out[i] = code
	}
	return out
}

func badCreateResults(n int, code ua.StatusCode) []*ua.MonitoredItemCreateResult {
	out := make([]*ua.MonitoredItemCreateResult, n)
	for i := range out {
		out[i] = &ua.MonitoredItemCreateResult{StatusCode: code}
	}
	return out
}

func badModifyResults(n int, code ua.StatusCode) []*ua.MonitoredItemModifyResult {
	out := make([]*ua.MonitoredItemModifyResult, n)
	for i := range out {
		out[i] = &ua.MonitoredItemModifyResult{StatusCode: code}
	}
	return out
}
