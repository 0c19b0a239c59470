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

func newTestMonitoredItem(t *testing.T, queueSize uint32, discardOldest bool) *MonitoredItem {
	t.Helper()
	req := &ua.MonitoredItemCreateRequest{
		ItemToMonitor:  &ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1)},
		MonitoringMode: ua.MonitoringModeReporting,
		RequestedParameters: &ua.MonitoringParameters{
			ClientHandle:  7,
			QueueSize:     queueSize,
			DiscardOldest: discardOldest,
		},
	}
	return newMonitoredItem(1, 1, req, ua.TimestampsToReturnBoth)
}

func TestNewMonitoredItemZeroQueueSizeClampsToOne(t *testing.T) {
	req := &ua.MonitoredItemCreateRequest{
		ItemToMonitor:       &ua.ReadValueID{NodeID: ua.NewNumericNodeID(1, 1)},
		RequestedParameters: &ua.MonitoringParameters{},
	}
	mi := newMonitoredItem(1, 1, req, ua.TimestampsToReturnBoth)
	assert.Equal(t, uint32(1), mi.queueSize)
}

func TestMonitoredItemPushDataReportsWhenModeReporting(t *testing.T) {
	mi := newTestMonitoredItem(t, 10, false)
	v, err := ua.NewDataValue(1.0, ua.StatusOK, time.Now())
	require.NoError(t, err)

	ok := mi.pushData(v, false)
	assert.True(t, ok)

	d, _ := mi.drain()
	require.Len(t, d, 1)
	assert.Equal(t, uint32(7), d[0].ClientHandle)
}

func TestMonitoredItemPushDataDisabledNeverReports(t *testing.T) {
	mi := newTestMonitoredItem(t, 10, false)
	mi.setMode(ua.MonitoringModeDisabled)
	v, err := ua.NewDataValue(1.0, ua.StatusOK, time.Now())
	require.NoError(t, err)

	ok := mi.pushData(v, false)
	assert.False(t, ok)
	d, _ := mi.drain()
	assert.Empty(t, d)
}

func TestMonitoredItemQueueOverflowDiscardOldest(t *testing.T) {
	mi := newTestMonitoredItem(t, 2, true)
	for i := 0; i < 3; i++ {
		v, err := ua.NewDataValue(float64(i), ua.StatusOK, time.Now())
		require.NoError(t, err)
		mi.pushData(v, false)
	}
	d, _ := mi.drain()
	require.Len(t, d, 2)
	assert.Equal(t, float64(1), d[0].Value.Value.Value)
	assert.Equal(t, float64(2), d[1].Value.Value.Value)
	assert.True(t, d[0].Value.HasStatus)
	assert.NotZero(t, d[0].Value.Status&ua.StatusCode(infoOverflowBit))
}

func TestMonitoredItemQueueOverflowDiscardNewest(t *testing.T) {
	mi := newTestMonitoredItem(t, 2, false)
	for i := 0; i < 3; i++ {
		v, err := ua.NewDataValue(float64(i), ua.StatusOK, time.Now())
		require.NoError(t, err)
		mi.pushData(v, false)
	}
	d, _ := mi.drain()
	require.Len(t, d, 2)
	assert.Equal(t, float64(0), d[0].Value.Value.Value)
	assert.Equal(t, float64(1), d[1].Value.Value.Value)
}

func TestMonitoredItemSetModeDisabledClearsQueue(t *testing.T) {
	mi := newTestMonitoredItem(t, 10, false)
	v, err := ua.NewDataValue(1.0, ua.StatusOK, time.Now())
	require.NoError(t, err)
	mi.pushData(v, false)
	require.True(t, mi.hasPending())

	mi.setMode(ua.MonitoringModeDisabled)
	assert.False(t, mi.hasPending())
}

func TestMonitoredItemTriggerLinks(t *testing.T) {
	mi := newTestMonitoredItem(t, 10, false)
	mi.addTrigger(5)
	mi.addTrigger(6)
	assert.ElementsMatch(t, []uint32{5, 6}, mi.triggerIDs())

	mi.removeTrigger(5)
	assert.ElementsMatch(t, []uint32{6}, mi.triggerIDs())
}

func TestMonitoredItemCurrentIntervalFallsBackWhenZero(t *testing.T) {
	mi := newTestMonitoredItem(t, 10, false)
	assert.Equal(t, 100*time.Millisecond, mi.currentInterval())

	mi.samplingInterval = 500 * time.Millisecond
	assert.Equal(t, 500*time.Millisecond, mi.currentInterval())
}

func TestMonitoredItemPushEventAppliesFilterAndProjection(t *testing.T) {
	req := &ua.MonitoredItemCreateRequest{
		ItemToMonitor:  &ua.ReadValueID{NodeID: ua.NewNumericNodeID(0, 2253)},
		MonitoringMode: ua.MonitoringModeReporting,
		RequestedParameters: &ua.MonitoringParameters{
			QueueSize: 10,
			Filter: ua.NewExtensionObject(&ua.EventFilter{
				SelectClauses: []*ua.SimpleAttributeOperand{sao("Severity")},
			}),
		},
	}
	mi := newMonitoredItem(1, 1, req, ua.TimestampsToReturnBoth)
	require.True(t, mi.isEvent)

	sev, err := ua.NewVariant(int32(500))
	require.NoError(t, err)
	ev := &EventData{Fields: map[string]*ua.Variant{"Severity": sev}}

	ok := mi.pushEvent(nil, ev)
	assert.True(t, ok)

	_, e := mi.drain()
	require.Len(t, e, 1)
	require.Len(t, e[0].EventFields, 1)
	assert.Equal(t, int32(500), e[0].EventFields[0].Value)
}
