// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codecFixture struct {
	A uint32
	B string
	C []uint16
	D bool
}

func TestEncodeDecodeStruct(t *testing.T) {
	want := codecFixture{A: 7, B: "hello", C: []uint16{1, 2, 3}, D: true}

	b, err := Encode(&want)
	require.NoError(t, err)

	var got codecFixture
	require.NoError(t, Decode(b, &got))
	assert.Equal(t, want, got)
}

func TestEncodeEmptyStringIsNullString(t *testing.T) {
	e := NewEncoder()
	e.WriteString("")
	require.NoError(t, e.Err())
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, e.Bytes())
}

func TestDecodeStringExceedsLimit(t *testing.T) {
	e := NewEncoder()
	e.WriteString("too long")
	require.NoError(t, e.Err())

	d := NewDecoder(e.Bytes(), DecodeLimits{MaxStringLength: 2, MaxArrayLength: 1, MaxDepth: 8})
	got := d.ReadString()
	assert.Empty(t, got)
	assert.ErrorIs(t, d.Err(), StatusBadEncodingLimitsExceeded)
}

func TestDecodeRecursionDepthExceeded(t *testing.T) {
	type node struct {
		Next *node
	}
	var head *node
	for i := 0; i < 40; i++ {
		head = &node{Next: head}
	}
	b, err := Encode(head)
	require.NoError(t, err)

	var got node
	d := NewDecoder(b, DecodeLimits{MaxStringLength: 1 << 10, MaxArrayLength: 1 << 10, MaxDepth: 4})
	d.Decode(&got)
	assert.ErrorIs(t, d.Err(), StatusBadDecodingError)
}

func TestTimeRoundTrip(t *testing.T) {
	want := time.Date(2020, time.March, 1, 12, 0, 0, 0, time.UTC)
	e := NewEncoder()
	e.WriteTime(want)
	require.NoError(t, e.Err())

	d := NewDecoder(e.Bytes(), DefaultDecodeLimits)
	got := d.ReadTime()
	require.NoError(t, d.Err())
	assert.True(t, want.Equal(got))
}
