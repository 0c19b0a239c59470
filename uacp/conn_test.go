// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uacp

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

func pipeConns() (*Conn, *Conn) {
	a, b := net.Pipe()
	return &Conn{conn: a}, &Conn{conn: b}
}

func TestMin32(t *testing.T) {
	assert.Equal(t, uint32(5), min32(5, 10))
	assert.Equal(t, uint32(5), min32(10, 5))
	assert.Equal(t, uint32(7), min32(0, 7))
	assert.Equal(t, uint32(7), min32(7, 0))
}

func TestHeaderRoundTrip(t *testing.T) {
	hdr := &Header{MessageType: MessageTypeMessage, ChunkType: ChunkTypeFinal, MessageSize: 123}
	buf, err := ua.Encode(hdr)
	require.NoError(t, err)

	got := &Header{}
	require.NoError(t, ua.Decode(buf, got))
	assert.Equal(t, hdr.MessageType, got.MessageType)
	assert.Equal(t, hdr.ChunkType, got.ChunkType)
	assert.Equal(t, hdr.MessageSize, got.MessageSize)
}

func TestHelloAcknowledgeRoundTrip(t *testing.T) {
	hello := &Hello{Version: 0, ReceiveBufSize: 65536, SendBufSize: 65536, MaxMessageSize: 1 << 20, MaxChunkCount: 10, EndpointURL: "opc.tcp://localhost:4840"}
	buf, err := ua.Encode(hello)
	require.NoError(t, err)
	got := &Hello{}
	require.NoError(t, ua.Decode(buf, got))
	assert.Equal(t, hello.EndpointURL, got.EndpointURL)
	assert.Equal(t, hello.ReceiveBufSize, got.ReceiveBufSize)

	ack := &Acknowledge{Version: 0, ReceiveBufSize: 32768, SendBufSize: 32768, MaxMessageSize: 1 << 18, MaxChunkCount: 5}
	buf, err = ua.Encode(ack)
	require.NoError(t, err)
	gotAck := &Acknowledge{}
	require.NoError(t, ua.Decode(buf, gotAck))
	assert.Equal(t, ack.MaxChunkCount, gotAck.MaxChunkCount)
}

func TestErrorImplementsError(t *testing.T) {
	e := &Error{ErrorCode: ua.StatusBadTcpMessageTypeInvalid, Reason: "bad frame"}
	assert.Contains(t, e.Error(), "bad frame")

	bare := &Error{ErrorCode: ua.StatusBadTcpMessageTypeInvalid}
	assert.Equal(t, "uacp: "+ua.StatusBadTcpMessageTypeInvalid.String(), bare.Error())
}

func TestConnHandshakeNegotiatesMinimumLimits(t *testing.T) {
	client, server := pipeConns()

	clientCfg := &Config{ReceiveBufSize: 8192, SendBufSize: 4096, MaxMessageSize: 1 << 20, MaxChunkCount: 0}
	serverCfg := &Config{ReceiveBufSize: 4096, SendBufSize: 8192, MaxMessageSize: 1 << 18, MaxChunkCount: 10}

	errCh := make(chan error, 1)
	go func() { errCh <- server.serverHandshake(serverCfg) }()

	err := client.clientHandshake("opc.tcp://localhost:4840", clientCfg)
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, uint32(4096), client.ReceiveBufSize)
	assert.Equal(t, uint32(4096), client.SendBufSize)
	assert.Equal(t, uint32(1<<18), client.MaxMessageSize)
	assert.Equal(t, uint32(10), client.MaxChunkCount)

	assert.Equal(t, uint32(4096), server.ReceiveBufSize)
	assert.Equal(t, uint32(8192), server.SendBufSize)
}

func TestConnWriteChunkReadChunkRoundTrip(t *testing.T) {
	client, server := pipeConns()
	client.MaxMessageSize = 1 << 20
	server.MaxMessageSize = 1 << 20

	hdr := &Header{MessageType: MessageTypeMessage, ChunkType: ChunkTypeFinal, MessageSize: HeaderLen + 4}
	hdrBuf, err := ua.Encode(hdr)
	require.NoError(t, err)
	frame := append(hdrBuf, []byte{1, 2, 3, 4}...)

	done := make(chan struct{})
	var got []byte
	var readErr error
	go func() {
		got, readErr = server.ReadChunk()
		close(done)
	}()

	require.NoError(t, client.WriteChunk(frame))
	<-done
	require.NoError(t, readErr)
	assert.Equal(t, frame, got)
}

func TestConnReadChunkRejectsOversizedMessage(t *testing.T) {
	client, server := pipeConns()
	server.MaxMessageSize = 16

	hdr := &Header{MessageType: MessageTypeMessage, ChunkType: ChunkTypeFinal, MessageSize: HeaderLen + 100}
	hdrBuf, err := ua.Encode(hdr)
	require.NoError(t, err)

	go client.WriteChunk(hdrBuf)

	_, err = server.ReadChunk()
	assert.ErrorIs(t, err, ua.StatusBadTcpMessageTooLarge)
}

func TestListenerAcceptCompletesHandshake(t *testing.T) {
	ln, err := Listen("opc.tcp://127.0.0.1:0", nil)
	require.NoError(t, err)
	defer ln.Close()

	addr := "opc.tcp://" + ln.Addr().String()

	acceptCh := make(chan *Conn, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		acceptCh <- c
		acceptErrCh <- err
	}()

	cliConn, err := Dial(context.Background(), addr, nil)
	require.NoError(t, err)
	defer cliConn.Close()

	require.NoError(t, <-acceptErrCh)
	srvConn := <-acceptCh
	require.NotNil(t, srvConn)
	defer srvConn.Close()

	assert.Equal(t, DefaultConfig().ReceiveBufSize, cliConn.ReceiveBufSize)
	assert.Equal(t, DefaultConfig().MaxMessageSize, srvConn.MaxMessageSize)
}
