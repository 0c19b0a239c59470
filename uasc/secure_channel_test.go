// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
	"github.com/gopcua/opcua/uacp"
)

// dialedPair performs a real UACP HEL/ACK handshake over loopback TCP and
// returns the resulting client/server uacp.Conn pair, ready for
// OpenSecureChannel on top.
func dialedPair(t *testing.T) (client, server *uacp.Conn) {
	t.Helper()
	ln, err := uacp.Listen("opc.tcp://127.0.0.1:0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	addr := "opc.tcp://" + ln.Addr().String()
	acceptCh := make(chan *uacp.Conn, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		acceptCh <- c
		acceptErrCh <- err
	}()

	cli, err := uacp.Dial(context.Background(), addr, nil)
	require.NoError(t, err)

	require.NoError(t, <-acceptErrCh)
	srv := <-acceptCh
	require.NotNil(t, srv)
	return cli, srv
}

func TestSecureChannelOpenAndServe(t *testing.T) {
	clientConn, serverConn := dialedPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	sc, err := NewSecureChannel("opc.tcp://localhost:4840", clientConn, DefaultClientConfig())
	require.NoError(t, err)

	type acceptResult struct {
		srv *ServerChannel
		err error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		srv, err := AcceptSecureChannel(serverConn, time.Minute)
		acceptCh <- acceptResult{srv, err}
	}()

	require.NoError(t, sc.Open())
	defer sc.Close()

	res := <-acceptCh
	require.NoError(t, res.err)
	require.NotNil(t, res.srv)
	defer res.srv.Close()

	assert.Equal(t, StateOpen, sc.State())
	assert.NotZero(t, res.srv.ChannelID())

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- res.srv.Serve(func(req interface{}, authToken *ua.NodeID) (interface{}, error) {
			switch r := req.(type) {
			case *ua.ReadRequest:
				v, err := ua.NewVariant(int32(42))
				if err != nil {
					return nil, err
				}
				return &ua.ReadResponse{
					ResponseHeader: ua.NewResponseHeader(r.RequestHeader, ua.StatusOK),
					Results:        []*ua.DataValue{{Value: v}},
				}, nil
			case *ua.CloseSecureChannelRequest:
				return &ua.CloseSecureChannelResponse{ResponseHeader: ua.NewResponseHeader(r.RequestHeader, ua.StatusOK)}, nil
			default:
				return nil, ua.StatusBadDecodingError
			}
		})
	}()

	var gotResp *ua.ReadResponse
	req := &ua.ReadRequest{
		RequestHeader: ua.NewRequestHeader(nil, 0, 5000),
		NodesToRead:   []*ua.ReadValueID{{NodeID: ua.NewNumericNodeID(0, 2258)}},
	}
	err = sc.Send(req, nil, func(v interface{}) error {
		r, ok := v.(*ua.ReadResponse)
		require.True(t, ok)
		gotResp = r
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, gotResp)
	assert.Len(t, gotResp.Results, 1)

	require.NoError(t, sc.Close())
	assert.Equal(t, StateClosed, sc.State())
	<-serveErrCh
}

func TestSecureChannelSendBeforeOpenFails(t *testing.T) {
	clientConn, serverConn := dialedPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	sc, err := NewSecureChannel("opc.tcp://localhost:4840", clientConn, DefaultClientConfig())
	require.NoError(t, err)

	err = sc.Send(&ua.ReadRequest{RequestHeader: ua.NewRequestHeader(nil, 0, 1000)}, nil, func(interface{}) error { return nil })
	assert.ErrorIs(t, err, ua.StatusBadSecureChannelClosed)
}
