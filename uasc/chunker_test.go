// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

func TestSplitMSGSingleChunkWhenBodyFitsUnbounded(t *testing.T) {
	body := []byte("hello world")
	seq := uint32(0)
	next := func() uint32 { seq++; return seq }

	chunks, err := splitMSG(body, []byte{1, 2, 3}, 1, 42, 0, next)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, uint32(0), seq, "nextSeq should not be called for a single-chunk payload")

	hdr := &SequenceHeader{}
	require.NoError(t, ua.Decode(chunks[0][3:3+sequenceHeaderLen], hdr))
	assert.Equal(t, uint32(1), hdr.SequenceNumber)
	assert.Equal(t, uint32(42), hdr.RequestID)
}

func TestSplitMSGMultipleChunksAdvancesSequence(t *testing.T) {
	body := make([]byte, 100)
	for i := range body {
		body[i] = byte(i)
	}
	secHdr := []byte{9, 9}
	maxChunkSize := uint32(uacpHeaderLen + len(secHdr) + sequenceHeaderLen + 30)

	seq := uint32(5)
	next := func() uint32 { seq++; return seq }

	chunks, err := splitMSG(body, secHdr, 1, 7, maxChunkSize, next)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var reassembled []byte
	overhead := len(secHdr) + sequenceHeaderLen
	lastSeq := uint32(0)
	for _, c := range chunks {
		hdr := &SequenceHeader{}
		require.NoError(t, ua.Decode(c[len(secHdr):len(secHdr)+sequenceHeaderLen], hdr))
		assert.Greater(t, hdr.SequenceNumber, lastSeq)
		lastSeq = hdr.SequenceNumber
		assert.Equal(t, uint32(7), hdr.RequestID)
		reassembled = append(reassembled, c[overhead:]...)
	}
	assert.Equal(t, body, reassembled)
}

func TestSplitMSGRejectsOverheadLargerThanMaxChunkSize(t *testing.T) {
	_, err := splitMSG([]byte("x"), make([]byte, 100), 1, 1, 10, func() uint32 { return 0 })
	assert.ErrorIs(t, err, ua.StatusBadTcpMessageTooLarge)
}

func TestSplitMSGEmptyBodyProducesOneChunk(t *testing.T) {
	chunks, err := splitMSG(nil, []byte{1}, 1, 1, 0, func() uint32 { return 0 })
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestAssemblerAccumulatesUntilFinal(t *testing.T) {
	a := &assembler{}
	done, aborted := a.addChunk('C', []byte("foo"))
	assert.False(t, done)
	assert.False(t, aborted)

	done, aborted = a.addChunk('C', []byte("bar"))
	assert.False(t, done)
	assert.False(t, aborted)

	done, aborted = a.addChunk('F', []byte("baz"))
	assert.True(t, done)
	assert.False(t, aborted)
	assert.Equal(t, []byte("foobarbaz"), a.bytes())
}

func TestAssemblerAbortReportsAborted(t *testing.T) {
	a := &assembler{}
	a.addChunk('C', []byte("partial"))
	done, aborted := a.addChunk('A', nil)
	assert.True(t, done)
	assert.True(t, aborted)
}

func TestAssemblerResetClearsBuffer(t *testing.T) {
	a := &assembler{}
	a.addChunk('F', []byte("data"))
	require.NotEmpty(t, a.bytes())
	a.reset()
	assert.Empty(t, a.bytes())
}
