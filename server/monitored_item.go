// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"sync"
	"time"

	"github.com/gopcua/opcua/ua"
)

// MonitoredItem is a server-side monitored item: an independent sampler
// feeding a bounded, overflow-tracking queue, reporting under its own
// MonitoringMode and optionally forcing other items to report via
// triggering links.
type MonitoredItem struct {
	mu sync.Mutex

	ID             uint32
	SubscriptionID uint32
	Node           *ua.ReadValueID
	ClientHandle   uint32
	Mode           ua.MonitoringMode
	TSR            ua.TimestampsToReturn

	samplingInterval time.Duration
	queueSize        uint32
	discardOldest    bool

	dataFilter  *ua.DataChangeFilter
	eventFilter *ua.EventFilter
	isEvent     bool
	euLow       float64
	euHigh      float64

	lastValue *ua.DataValue

	dataQueue    []*ua.MonitoredItemNotification
	eventQueue   []*ua.EventFieldList
	queueHasLost bool

	triggers map[uint32]bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// newMonitoredItem builds a MonitoredItem from a CreateMonitoredItems
// request element. A 0 queue size clamps to 1; a 0 sampling interval is
// kept as 0 and is sampled by polling (see currentInterval), with no push
// delivery from the data source.
func newMonitoredItem(id, subID uint32, req *ua.MonitoredItemCreateRequest, tsr ua.TimestampsToReturn) *MonitoredItem {
	p := req.RequestedParameters
	queueSize := p.QueueSize
	if queueSize == 0 {
		queueSize = 1
	}
	mi := &MonitoredItem{
		ID:               id,
		SubscriptionID:   subID,
		Node:             req.ItemToMonitor,
		ClientHandle:     p.ClientHandle,
		Mode:             req.MonitoringMode,
		TSR:              tsr,
		samplingInterval: time.Duration(p.SamplingInterval) * time.Millisecond,
		queueSize:        queueSize,
		discardOldest:    p.DiscardOldest,
		triggers:         make(map[uint32]bool),
		stopCh:           make(chan struct{}),
	}
	if p.Filter != nil {
		switch f := p.Filter.Value.(type) {
		case *ua.DataChangeFilter:
			mi.dataFilter = f
		case *ua.EventFilter:
			mi.eventFilter = f
			mi.isEvent = true
		}
	}
	return mi
}

// setEURange records the node's EURange (low, high) so percent-deadband
// filtering can be evaluated; zero-value if the node has none, which
// valueExceedsDeadband treats as "deadband not exceeded-able, any change
// reports".
func (mi *MonitoredItem) setEURange(low, high float64) {
	mi.mu.Lock()
	mi.euLow, mi.euHigh = low, high
	mi.mu.Unlock()
}

// setMode applies a new MonitoringMode, clearing the queue on transition to
// Disabled as the mode table requires.
func (mi *MonitoredItem) setMode(mode ua.MonitoringMode) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.Mode = mode
	if mode == ua.MonitoringModeDisabled {
		mi.dataQueue = nil
		mi.eventQueue = nil
		mi.queueHasLost = false
	}
}

// stop halts the item's sampler goroutine, if running.
func (mi *MonitoredItem) stop() {
	mi.stopOnce.Do(func() { close(mi.stopCh) })
}

// currentMode returns the item's mode under lock, for the sampler
// goroutine to check without racing setMode/ModifyMonitoredItems.
func (mi *MonitoredItem) currentMode() ua.MonitoringMode {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.Mode
}

// currentInterval returns the item's sampling interval, falling back to a
// fast poll when it is 0 (event-driven): the in-memory node managers this
// server ships have no push channel of their own, so 0 degrades to polling
// instead of true push delivery.
func (mi *MonitoredItem) currentInterval() time.Duration {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if mi.samplingInterval <= 0 {
		return 100 * time.Millisecond
	}
	return mi.samplingInterval
}

// addTrigger / removeTrigger implement SetTriggering's link list: other
// item ids this item forces to report once when it reports itself.
func (mi *MonitoredItem) addTrigger(id uint32) {
	mi.mu.Lock()
	mi.triggers[id] = true
	mi.mu.Unlock()
}

func (mi *MonitoredItem) removeTrigger(id uint32) {
	mi.mu.Lock()
	delete(mi.triggers, id)
	mi.mu.Unlock()
}

func (mi *MonitoredItem) triggerIDs() []uint32 {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	ids := make([]uint32, 0, len(mi.triggers))
	for id := range mi.triggers {
		ids = append(ids, id)
	}
	return ids
}

// pushData runs the DataChangeFilter against the sample and, if it passes
// (or is forced, for a triggered report), enqueues a notification. Returns
// true if something was enqueued.
func (mi *MonitoredItem) pushData(dv *ua.DataValue, forced bool) bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	passes := forced
	if !forced {
		euLow, euHigh := mi.euLow, mi.euHigh
		passes = passesDataChangeFilter(mi.lastValue, dv, mi.dataFilter, euLow, euHigh)
	}
	mi.lastValue = dv

	if (!forced && mi.Mode != ua.MonitoringModeReporting) || !passes {
		return false
	}

	n := &ua.MonitoredItemNotification{ClientHandle: mi.ClientHandle, Value: dv}
	mi.dataQueue, mi.queueHasLost = enqueueDataNotification(mi.dataQueue, n, mi.queueSize, mi.discardOldest)
	if mi.queueHasLost && len(mi.dataQueue) > 0 {
		mi.dataQueue[0].Value.HasStatus = true
		mi.dataQueue[0].Value.Status |= ua.StatusCode(infoOverflowBit)
	}
	return true
}

// pushEvent runs the EventFilter against ev and, if it qualifies, enqueues
// the select_clauses projection.
func (mi *MonitoredItem) pushEvent(tt *TypeTree, ev *EventData) bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if mi.Mode != ua.MonitoringModeReporting || !matchesEventFilter(tt, ev, mi.eventFilter) {
		return false
	}
	var clauses []*ua.SimpleAttributeOperand
	if mi.eventFilter != nil {
		clauses = mi.eventFilter.SelectClauses
	}
	efl := projectEventFields(ev, clauses)
	var lost bool
	mi.eventQueue, lost = enqueueEventField(mi.eventQueue, efl, mi.queueSize, mi.discardOldest)
	mi.queueHasLost = mi.queueHasLost || lost
	return true
}

// drain removes and returns everything queued, for the subscription
// publish cycle to fold into a NotificationMessage.
func (mi *MonitoredItem) drain() ([]*ua.MonitoredItemNotification, []*ua.EventFieldList) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	d, e := mi.dataQueue, mi.eventQueue
	mi.dataQueue, mi.eventQueue, mi.queueHasLost = nil, nil, false
	return d, e
}

func (mi *MonitoredItem) hasPending() bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return len(mi.dataQueue) > 0 || len(mi.eventQueue) > 0
}

// infoOverflowBit is StatusCode's InfoBits_Overflow flag (Part 4 Table 140).
const infoOverflowBit = 0x0080

// enqueueDataNotification appends n to q, dropping the oldest queued entry
// or the incoming one (newest) once q reaches size, per discard_oldest.
func enqueueDataNotification(q []*ua.MonitoredItemNotification, n *ua.MonitoredItemNotification, size uint32, discardOldest bool) ([]*ua.MonitoredItemNotification, bool) {
	if uint32(len(q)) < size {
		return append(q, n), false
	}
	if discardOldest {
		return append(q[1:], n), true
	}
	return q, true // discard newest: queue unchanged, overflow recorded
}

// enqueueEventField is enqueueDataNotification's counterpart for the event
// queue.
func enqueueEventField(q []*ua.EventFieldList, efl *ua.EventFieldList, size uint32, discardOldest bool) ([]*ua.EventFieldList, bool) {
	if uint32(len(q)) < size {
		return append(q, efl), false
	}
	if discardOldest {
		return append(q[1:], efl), true
	}
	return q, true
}
