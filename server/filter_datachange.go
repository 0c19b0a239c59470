// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"math"

	"github.com/gopcua/opcua/ua"
)

// DataChangeFilter deadband kinds. The wire value is carried in
// ua.DataChangeFilter.DeadbandType.
const (
	DeadbandNone    uint32 = 0
	DeadbandAbsolute uint32 = 1
	DeadbandPercent uint32 = 2
)

// DataChangeFilter trigger kinds.
const (
	DataChangeTriggerStatus             uint32 = 0
	DataChangeTriggerStatusValue        uint32 = 1
	DataChangeTriggerStatusValueTimestamp uint32 = 2
)

// passesDataChangeFilter decides whether newVal should be reported given
// the item's previous sample, its filter, and (for percent deadband) the
// node's EURange (low, high). A nil filter behaves as
// trigger=StatusValue, deadband=None.
func passesDataChangeFilter(old, new *ua.DataValue, f *ua.DataChangeFilter, euLow, euHigh float64) bool {
	if old == nil {
		return true // first sample always reports
	}
	trigger := DataChangeTriggerStatusValue
	if f != nil {
		trigger = f.Trigger
	}

	statusChanged := old.Status != new.Status
	switch trigger {
	case DataChangeTriggerStatus:
		return statusChanged
	case DataChangeTriggerStatusValueTimestamp:
		if statusChanged {
			return true
		}
		if !old.SourceTimestamp.Equal(new.SourceTimestamp) {
			return true
		}
	default: // StatusValue
		if statusChanged {
			return true
		}
	}

	return valueExceedsDeadband(old.Value, new.Value, f, euLow, euHigh)
}

// valueExceedsDeadband implements the absolute/percent deadband math:
// |new - old| > epsilon (absolute), or |new - old| / (high - low) >
// percent/100. Array-valued Variants unconditionally pass on a size or
// dimension change; otherwise every element is compared independently and
// any element exceeding the deadband passes the whole value.
func valueExceedsDeadband(oldV, newV *ua.Variant, f *ua.DataChangeFilter, euLow, euHigh float64) bool {
	if oldV == nil || newV == nil {
		return true
	}
	if oldV.IsArray || newV.IsArray {
		oa, na := oldV.Array, newV.Array
		if oldV.IsArray != newV.IsArray || len(oa) != len(na) || len(oldV.Dimensions) != len(newV.Dimensions) {
			return true
		}
		for i := range oldV.Dimensions {
			if oldV.Dimensions[i] != newV.Dimensions[i] {
				return true
			}
		}
		for i := range oa {
			if scalarExceedsDeadband(oa[i], na[i], f, euLow, euHigh) {
				return true
			}
		}
		return false
	}
	return scalarExceedsDeadband(oldV.Value, newV.Value, f, euLow, euHigh)
}

func scalarExceedsDeadband(oldV, newV interface{}, f *ua.DataChangeFilter, euLow, euHigh float64) bool {
	of, oOK := toFloat(oldV)
	nf, nOK := toFloat(newV)
	if !oOK || !nOK {
		// non-numeric types (strings, NodeIds, ...): any change reports,
		// deadband does not apply.
		return oldV != newV
	}

	if f == nil || f.DeadbandType == DeadbandNone {
		return of != nf
	}

	diff := math.Abs(nf - of)
	switch f.DeadbandType {
	case DeadbandAbsolute:
		return diff > f.DeadbandValue
	case DeadbandPercent:
		rng := euHigh - euLow
		if rng <= 0 {
			return of != nf
		}
		return (diff/rng)*100 > f.DeadbandValue
	default:
		return of != nf
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
