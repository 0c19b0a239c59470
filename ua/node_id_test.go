// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   *NodeID
	}{
		{"two-byte", NewNumericNodeID(0, 42)},
		{"four-byte", NewNumericNodeID(10, 1000)},
		{"numeric", NewNumericNodeID(10, 100000)},
		{"string", NewStringNodeID(2, "some.node")},
		{"guid", NewGUIDNodeID(3, NewGUID())},
		{"byte-string", NewByteStringNodeID(4, []byte{1, 2, 3, 4})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.id)
			require.NoError(t, err)

			got := &NodeID{}
			require.NoError(t, Decode(b, got))
			assert.True(t, tt.id.Equal(got), "want %s, got %s", tt.id, got)
		})
	}
}

func TestNodeIDEqual(t *testing.T) {
	a := NewNumericNodeID(1, 100)
	b := NewNumericNodeID(1, 100)
	c := NewNumericNodeID(1, 101)
	d := NewStringNodeID(1, "100")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))

	var nilID *NodeID
	assert.True(t, nilID.Equal(nil))
	assert.False(t, a.Equal(nil))
}

func TestNodeIDKeyDistinguishesTypes(t *testing.T) {
	num := NewNumericNodeID(1, 100)
	str := NewStringNodeID(1, "100")
	assert.NotEqual(t, num.Key(), str.Key())

	m := map[NodeIDKey]string{num.Key(): "numeric"}
	m[str.Key()] = "string"
	assert.Len(t, m, 2)
}

func TestNodeIDStringFormat(t *testing.T) {
	assert.Equal(t, "ns=0;i=42", NewNumericNodeID(0, 42).String())
	assert.Equal(t, "ns=2;s=foo", NewStringNodeID(2, "foo").String())
}
