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

func dv(t *testing.T, v interface{}, status ua.StatusCode, ts time.Time) *ua.DataValue {
	t.Helper()
	d, err := ua.NewDataValue(v, status, ts)
	require.NoError(t, err)
	return d
}

func TestPassesDataChangeFilterFirstSampleAlwaysReports(t *testing.T) {
	now := time.Now()
	assert.True(t, passesDataChangeFilter(nil, dv(t, 1.0, ua.StatusOK, now), nil, 0, 0))
}

func TestPassesDataChangeFilterStatusChange(t *testing.T) {
	now := time.Now()
	old := dv(t, 1.0, ua.StatusOK, now)
	changed := dv(t, 1.0, ua.StatusBadTimeout, now)

	f := &ua.DataChangeFilter{Trigger: DataChangeTriggerStatus}
	assert.True(t, passesDataChangeFilter(old, changed, f, 0, 0))

	unchanged := dv(t, 2.0, ua.StatusOK, now)
	assert.False(t, passesDataChangeFilter(old, unchanged, f, 0, 0))
}

func TestPassesDataChangeFilterAbsoluteDeadband(t *testing.T) {
	now := time.Now()
	old := dv(t, 10.0, ua.StatusOK, now)
	f := &ua.DataChangeFilter{Trigger: DataChangeTriggerStatusValue, DeadbandType: DeadbandAbsolute, DeadbandValue: 2}

	within := dv(t, 11.0, ua.StatusOK, now)
	assert.False(t, passesDataChangeFilter(old, within, f, 0, 0))

	beyond := dv(t, 13.0, ua.StatusOK, now)
	assert.True(t, passesDataChangeFilter(old, beyond, f, 0, 0))
}

func TestPassesDataChangeFilterPercentDeadband(t *testing.T) {
	now := time.Now()
	old := dv(t, 0.0, ua.StatusOK, now)
	f := &ua.DataChangeFilter{Trigger: DataChangeTriggerStatusValue, DeadbandType: DeadbandPercent, DeadbandValue: 10}

	// range is [0, 100]; 5% change should not pass a 10% deadband.
	within := dv(t, 5.0, ua.StatusOK, now)
	assert.False(t, passesDataChangeFilter(old, within, f, 0, 100))

	beyond := dv(t, 20.0, ua.StatusOK, now)
	assert.True(t, passesDataChangeFilter(old, beyond, f, 0, 100))
}

func TestPassesDataChangeFilterNonNumericAlwaysComparesEquality(t *testing.T) {
	now := time.Now()
	old := dv(t, "a", ua.StatusOK, now)
	f := &ua.DataChangeFilter{Trigger: DataChangeTriggerStatusValue, DeadbandType: DeadbandAbsolute, DeadbandValue: 100}

	same := dv(t, "a", ua.StatusOK, now)
	assert.False(t, passesDataChangeFilter(old, same, f, 0, 0))

	different := dv(t, "b", ua.StatusOK, now)
	assert.True(t, passesDataChangeFilter(old, different, f, 0, 0))
}

func TestPassesDataChangeFilterStatusValueTimestampTrigger(t *testing.T) {
	now := time.Now()
	old := dv(t, 1.0, ua.StatusOK, now)
	laterTS := dv(t, 1.0, ua.StatusOK, now.Add(time.Second))

	f := &ua.DataChangeFilter{Trigger: DataChangeTriggerStatusValueTimestamp}
	assert.True(t, passesDataChangeFilter(old, laterTS, f, 0, 0))
}
