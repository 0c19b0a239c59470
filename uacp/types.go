// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uacp implements the UA TCP transport: the
// HEL/ACK/ERR handshake and the chunk framing that the secure channel and
// chunker layers build on.
package uacp

import (
	"fmt"

	"github.com/gopcua/opcua/ua"
)

// MessageType is the 3-byte ASCII tag identifying a chunk's message kind.
type MessageType [3]byte

var (
	MessageTypeHello        = MessageType{'H', 'E', 'L'}
	MessageTypeAck          = MessageType{'A', 'C', 'K'}
	MessageTypeError        = MessageType{'E', 'R', 'R'}
	MessageTypeOpenSecureChannel  = MessageType{'O', 'P', 'N'}
	MessageTypeCloseSecureChannel = MessageType{'C', 'L', 'O'}
	MessageTypeMessage      = MessageType{'M', 'S', 'G'}
)

// ChunkType is the 1-byte final/continue/abort marker.
type ChunkType byte

const (
	ChunkTypeFinal    ChunkType = 'F'
	ChunkTypeContinue ChunkType = 'C'
	ChunkTypeAbort    ChunkType = 'A'
)

// Header is the common 8-byte prefix of every chunk on the wire: 3-byte
// message type, 1-byte chunk type, 4-byte little-endian total chunk size
// (including this header).
type Header struct {
	MessageType MessageType
	ChunkType   ChunkType
	MessageSize uint32
}

const HeaderLen = 8

func (h *Header) MarshalOPCUA(e *ua.Encoder) error {
	e.WriteBytes(h.MessageType[:])
	e.WriteByte(byte(h.ChunkType))
	e.WriteUint32(h.MessageSize)
	return e.Err()
}

func (h *Header) UnmarshalOPCUA(d *ua.Decoder) error {
	copy(h.MessageType[:], []byte{d.ReadByte(), d.ReadByte(), d.ReadByte()})
	h.ChunkType = ChunkType(d.ReadByte())
	h.MessageSize = d.ReadUint32()
	return d.Err()
}

// Hello is the client's opening handshake message.
type Hello struct {
	Version        uint32
	ReceiveBufSize uint32
	SendBufSize    uint32
	MaxMessageSize uint32
	MaxChunkCount  uint32
	EndpointURL    string
}

// Acknowledge is the server's reply to Hello. Per , the
// effective limit for each parameter is the minimum of the client's and
// server's values.
type Acknowledge struct {
	Version        uint32
	ReceiveBufSize uint32
	SendBufSize    uint32
	MaxMessageSize uint32
	MaxChunkCount  uint32
}

// Error is sent in place of Acknowledge, or at any later point, to abort
// the connection with a reason.
type Error struct {
	ErrorCode ua.StatusCode
	Reason    string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("uacp: %s: %s", e.ErrorCode, e.Reason)
	}
	return fmt.Sprintf("uacp: %s", e.ErrorCode)
}

func min32(a, b uint32) uint32 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}
