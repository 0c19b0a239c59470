// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"fmt"

	"github.com/gopcua/opcua/ua"
)

// splitMSG splits an already-encoded service body into one or more MSG
// chunks, each no larger than maxChunkSize (the negotiated SendBufSize),
// 's "payload larger than one chunk's capacity is split
// across Continue chunks, terminated by a Final chunk". The header+security
// header+sequence header overhead is accounted per-chunk.
func splitMSG(body []byte, secHdr []byte, firstSeq uint32, requestID uint32, maxChunkSize uint32, nextSeq func() uint32) ([][]byte, error) {
	const headerOverhead = uacpHeaderLen
	overhead := headerOverhead + len(secHdr) + sequenceHeaderLen
	if maxChunkSize == 0 {
		maxChunkSize = uint32(overhead + len(body))
	}
	capacity := int(maxChunkSize) - overhead
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: send buffer too small for chunk overhead", ua.StatusBadTcpMessageTooLarge)
	}

	var chunks [][]byte
	seq := firstSeq
	for offset := 0; offset < len(body) || (offset == 0 && len(body) == 0); {
		end := offset + capacity
		final := true
		if end >= len(body) {
			end = len(body)
		} else {
			final = false
		}
		part := body[offset:end]

		seqHdr, err := ua.Encode(&SequenceHeader{SequenceNumber: seq, RequestID: requestID})
		if err != nil {
			return nil, err
		}
		chunkBody := append(append(append([]byte{}, secHdr...), seqHdr...), part...)
		chunks = append(chunks, chunkBody)

		offset = end
		if offset >= len(body) {
			break
		}
		seq = nextSeq()
		_ = final
	}
	return chunks, nil
}

const uacpHeaderLen = 8
const sequenceHeaderLen = 8

// assembler accumulates Continue chunks for a single request/response
// group until a Final (or Abort) chunk completes it.
type assembler struct {
	buf []byte
}

func (a *assembler) addChunk(chunkType byte, payload []byte) (done bool, aborted bool) {
	a.buf = append(a.buf, payload...)
	switch chunkType {
	case 'F':
		return true, false
	case 'A':
		return true, true
	default: // 'C' continue
		return false, false
	}
}

func (a *assembler) bytes() []byte { return a.buf }

func (a *assembler) reset() { a.buf = a.buf[:0] }
