// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// fileTimeEpochDelta is the number of 100ns ticks between the OPC UA/Windows
// FILETIME epoch (1601-01-01 UTC) and the Unix epoch (1970-01-01 UTC).
const fileTimeEpochDelta = 116444736000000000

// TimeToFileTime converts t to an OPC UA DateTime (100ns ticks since
// 1601-01-01 UTC). The zero time.Time encodes as 0, matching the "null
// DateTime" convention used throughout the standard namespace.
func TimeToFileTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()/100 + fileTimeEpochDelta
}

// FileTimeToTime converts an OPC UA DateTime back to a time.Time in UTC.
func FileTimeToTime(ft int64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return time.Unix(0, (ft-fileTimeEpochDelta)*100).UTC()
}
