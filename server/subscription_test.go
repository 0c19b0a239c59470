// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

// samplingManager is a NodeManager that also implements
// MonitoredItemNodeManager, reporting whatever value is currently stashed
// in val.
type samplingManager struct {
	ns  uint16
	val float64
}

func (m *samplingManager) Owns(id *ua.NodeID) bool { return id != nil && id.Namespace() == m.ns }
func (m *samplingManager) Read(ctx *RequestContext, items []*ReadItem)   {}
func (m *samplingManager) Write(ctx *RequestContext, items []*WriteItem) {}
func (m *samplingManager) Browse(ctx *RequestContext, items []*BrowseItem) {}
func (m *samplingManager) Call(ctx *RequestContext, items []*CallItem)   {}
func (m *samplingManager) ResolveExternalReferences(ctx *RequestContext, refs []*ExternalRef) {}

func (m *samplingManager) SampleValue(ctx *RequestContext, node *ua.ReadValueID) (*ua.DataValue, error) {
	return ua.NewDataValue(m.val, ua.StatusOK, time.Now())
}

func newBareSubscription() *Subscription {
	return &Subscription{
		retransmit: make(map[uint32]*ua.NotificationMessage),
		items:      make(map[uint32]*MonitoredItem),
		itemIDs:    &idCounter{},
		resetCh:    make(chan time.Duration, 1),
		stopCh:     make(chan struct{}),
	}
}

func TestSubscriptionStoreForRetransmissionBounded(t *testing.T) {
	s := newBareSubscription()
	s.maxRetransmit = 2
	for i := uint32(1); i <= 3; i++ {
		s.storeForRetransmission(&ua.NotificationMessage{SequenceNumber: i})
	}
	assert.Len(t, s.retransmit, 2)
	_, ok := s.retransmit[1]
	assert.False(t, ok, "oldest sequence number should have been dropped")
	assert.ElementsMatch(t, []uint32{2, 3}, s.availableSeqNumbers())
}

func TestSubscriptionAcknowledgeKnownAndUnknown(t *testing.T) {
	s := newBareSubscription()
	s.ID = 42
	s.storeForRetransmission(&ua.NotificationMessage{SequenceNumber: 1})

	results := s.acknowledge([]*ua.SubscriptionAcknowledgement{
		{SubscriptionID: 42, SequenceNumber: 1},
		{SubscriptionID: 42, SequenceNumber: 99},
		{SubscriptionID: 7, SequenceNumber: 1},
	})
	require.Len(t, results, 3)
	assert.Equal(t, ua.StatusOK, results[0])
	assert.Equal(t, ua.StatusBadSequenceNumberUnknown, results[1])
	assert.Equal(t, ua.StatusBadSubscriptionIDInvalid, results[2])
	_, stillThere := s.retransmit[1]
	assert.False(t, stillThere)
}

func TestSubscriptionTickEmitsKeepAliveAfterMaxCount(t *testing.T) {
	s := newBareSubscription()
	s.publishingEnabled = true
	s.maxKeepAlive = 1
	s.lifetimeCount = 1000

	s.tick() // keepAliveCounter 0 -> 1, no message yet
	assert.Empty(t, s.outbox)

	s.tick() // counter reaches max -> keep-alive emitted
	require.Len(t, s.outbox, 1)
	assert.Empty(t, s.outbox[0].NotificationData)
}

func TestSubscriptionTickCollectsDataChangeNotification(t *testing.T) {
	s := newBareSubscription()
	s.publishingEnabled = true
	s.maxKeepAlive = 1000
	s.lifetimeCount = 1000

	mi := &MonitoredItem{ID: 1, Mode: ua.MonitoringModeReporting, queueSize: 10}
	v, err := ua.NewDataValue(3.5, ua.StatusOK, time.Now())
	require.NoError(t, err)
	mi.pushData(v, true)
	s.items[mi.ID] = mi

	s.tick()
	require.Len(t, s.outbox, 1)
	assert.Len(t, s.outbox[0].NotificationData, 1)
}

func TestSubscriptionTickReturnsExpiredAtLifetimeCount(t *testing.T) {
	s := newBareSubscription()
	s.lifetimeCount = 2

	assert.False(t, s.tick())
	assert.True(t, s.tick())
}

func TestSubscriptionManagerCreateRevisesLifetimeCount(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	token := ua.NewNumericNodeID(1, 1)
	sub := sm.Create(token, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 10000,
		RequestedMaxKeepAliveCount:  5,
		RequestedLifetimeCount:      1,
	})
	defer sub.stop()
	assert.Equal(t, uint32(15), sub.lifetimeCount)
}

func TestSubscriptionManagerSetPublishingModeAndDelete(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	token := ua.NewNumericNodeID(1, 1)
	sub := sm.Create(token, &ua.CreateSubscriptionRequest{RequestedPublishingInterval: 10000, RequestedMaxKeepAliveCount: 5})

	results := sm.SetPublishingMode(false, []uint32{sub.ID, 9999})
	require.Len(t, results, 2)
	assert.Equal(t, ua.StatusOK, results[0])
	assert.Equal(t, ua.StatusBadSubscriptionIDInvalid, results[1])
	assert.False(t, sub.publishingEnabled)

	delResults := sm.Delete([]uint32{sub.ID})
	require.Len(t, delResults, 1)
	assert.Equal(t, ua.StatusOK, delResults[0])
	_, ok := sm.lookup(sub.ID)
	assert.False(t, ok)
}

func TestSubscriptionManagerPublishDeliversKeepAlive(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	token := ua.NewNumericNodeID(1, 1)
	sub := sm.Create(token, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 15,
		RequestedMaxKeepAliveCount:  1,
		RequestedLifetimeCount:      100000,
		PublishingEnabled:           true,
	})
	defer sub.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, status := sm.Publish(ctx, token, &ua.PublishRequest{})
	require.Equal(t, ua.StatusOK, status)
	require.NotNil(t, resp.NotificationMessage)
	assert.Equal(t, sub.ID, resp.SubscriptionID)
}

func TestSubscriptionManagerPublishContextCancelReturnsBadTimeout(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	token := ua.NewNumericNodeID(1, 1)
	// No subscription registered for this token: nothing will ever pump.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, status := sm.Publish(ctx, token, &ua.PublishRequest{})
	assert.Equal(t, ua.StatusBadTimeout, status)
}

func TestSubscriptionManagerCreateMonitoredItemsAndDeliverDataChange(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	dispatcher := NewDispatcher()
	mgr := &samplingManager{ns: 1, val: 1.0}
	dispatcher.Register(mgr)
	tt := NewTypeTree()

	token := ua.NewNumericNodeID(1, 777)
	sub := sm.Create(token, &ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 15,
		RequestedMaxKeepAliveCount:  100000,
		RequestedLifetimeCount:      100000,
		PublishingEnabled:           true,
	})
	defer sub.stop()

	createReq := &ua.CreateMonitoredItemsRequest{
		SubscriptionID:     sub.ID,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		ItemsToCreate: []*ua.MonitoredItemCreateRequest{
			{
				ItemToMonitor:  &ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1)},
				MonitoringMode: ua.MonitoringModeReporting,
				RequestedParameters: &ua.MonitoringParameters{
					SamplingInterval: 15,
					QueueSize:        10,
				},
			},
		},
	}
	createResp := sm.CreateMonitoredItems(newTestContext(), dispatcher, tt, createReq)
	require.Len(t, createResp.Results, 1)
	require.Equal(t, ua.StatusOK, createResp.Results[0].StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, status := sm.Publish(ctx, token, &ua.PublishRequest{})
	require.Equal(t, ua.StatusOK, status)
	require.NotNil(t, resp.NotificationMessage)
	require.Len(t, resp.NotificationMessage.NotificationData, 1)
}

func TestSubscriptionManagerTransferMovesToken(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	oldToken := ua.NewNumericNodeID(1, 1)
	newToken := ua.NewNumericNodeID(1, 2)
	sub := sm.Create(oldToken, &ua.CreateSubscriptionRequest{RequestedPublishingInterval: 10000, RequestedMaxKeepAliveCount: 5})
	defer sub.stop()

	results := sm.Transfer(newToken, []uint32{sub.ID, 9999})
	require.Len(t, results, 2)
	assert.Equal(t, ua.StatusOK, results[0].StatusCode)
	assert.Equal(t, ua.StatusBadSubscriptionIDInvalid, results[1].StatusCode)

	got, ok := sm.lookup(sub.ID)
	require.True(t, ok)
	assert.True(t, got.sessionToken.Equal(newToken))
}

func TestSubscriptionManagerSetTriggeringUnknownItems(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	token := ua.NewNumericNodeID(1, 1)
	sub := sm.Create(token, &ua.CreateSubscriptionRequest{RequestedPublishingInterval: 10000, RequestedMaxKeepAliveCount: 5})
	defer sub.stop()

	resp := sm.SetTriggering(&ua.SetTriggeringRequest{SubscriptionID: sub.ID, TriggeringItemID: 1, LinksToAdd: []uint32{2}})
	require.Len(t, resp.AddResults, 1)
	assert.Equal(t, ua.StatusBadMonitoredItemIDInvalid, resp.AddResults[0])
}

func TestSubscriptionManagerRepublishUnknownSequence(t *testing.T) {
	sm := NewSubscriptionManager(DefaultConfig())
	token := ua.NewNumericNodeID(1, 1)
	sub := sm.Create(token, &ua.CreateSubscriptionRequest{RequestedPublishingInterval: 10000, RequestedMaxKeepAliveCount: 5})
	defer sub.stop()

	_, status := sm.Republish(sub.ID, 1)
	assert.Equal(t, ua.StatusBadMessageNotAvailable, status)

	_, status = sm.Republish(9999, 1)
	assert.Equal(t, ua.StatusBadSubscriptionIDInvalid, status)
}
