// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeSeverity(t *testing.T) {
	assert.True(t, StatusOK.IsGood())
	assert.False(t, StatusOK.IsBad())

	assert.True(t, StatusBadNodeIDUnknown.IsBad())
	assert.False(t, StatusBadNodeIDUnknown.IsGood())

	assert.True(t, StatusUncertainReferenceOutOfServer.IsUncertain())
}

func TestStatusCodeString(t *testing.T) {
	assert.Equal(t, "BadNodeIdUnknown", StatusBadNodeIDUnknown.String())
	assert.Equal(t, "BadNoMatch", StatusBadNoMatch.String())

	unknown := StatusCode(0x7EADBEEF)
	assert.Contains(t, unknown.String(), "0x7EADBEEF")
}

func TestStatusCodeIsError(t *testing.T) {
	var err error = StatusBadTimeout
	assert.True(t, errors.Is(err, StatusBadTimeout))
	assert.EqualError(t, err, "BadTimeout")
}

func TestStatusCodeNamesHaveNoHexCollisions(t *testing.T) {
	seen := make(map[StatusCode]string)
	for code, name := range statusCodeNames {
		if other, ok := seen[code]; ok {
			t.Fatalf("status code 0x%08X used by both %q and %q", uint32(code), other, name)
		}
		seen[code] = name
	}
}
