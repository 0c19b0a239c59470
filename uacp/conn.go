// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uacp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gopcua/opcua/debug"
	"github.com/gopcua/opcua/ua"
)

// HelloTimeout bounds how long a server waits for a Hello after accepting a
// TCP connection (: "Hello must be received within a fixed
// bound (default 5s) or the connection is aborted").
var HelloTimeout = 5 * time.Second

// Config negotiates the buffer/message limits exchanged during the
// HEL/ACK handshake.
type Config struct {
	ReceiveBufSize uint32
	SendBufSize    uint32
	MaxMessageSize uint32
	MaxChunkCount  uint32
}

// DefaultConfig mirrors the values client.go implicitly
// assumes (64KiB buffers, 16MiB messages).
func DefaultConfig() *Config {
	return &Config{
		ReceiveBufSize: 65536,
		SendBufSize:    65536,
		MaxMessageSize: 16 * 1024 * 1024,
		MaxChunkCount:  0, //  Open Question (a): 0 means "use the negotiated default"
	}
}

// Conn is a negotiated UACP connection: a raw TCP socket plus the limits
// the HEL/ACK handshake agreed on. It knows how to frame/deframe chunks
// but has no notion of secure channels or
// sessions -- those live in uasc.
type Conn struct {
	conn net.Conn

	ReceiveBufSize uint32
	SendBufSize    uint32
	MaxMessageSize uint32
	MaxChunkCount  uint32

	mu        sync.Mutex
	closeOnce sync.Once
}

// Dial opens a TCP connection to endpoint ("opc.tcp://host:port/path") and
// performs the client-side HEL/ACK handshake.
func Dial(ctx context.Context, endpoint string, cfg *Config) (*Conn, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("uacp: invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "opc.tcp" {
		return nil, fmt.Errorf("uacp: unsupported scheme %q", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "4840")
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, err
	}
	c := &Conn{conn: raw}
	if err := c.clientHandshake(endpoint, cfg); err != nil {
		raw.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) clientHandshake(endpoint string, cfg *Config) error {
	hello := &Hello{
		Version:        0,
		ReceiveBufSize: cfg.ReceiveBufSize,
		SendBufSize:    cfg.SendBufSize,
		MaxMessageSize: cfg.MaxMessageSize,
		MaxChunkCount:  cfg.MaxChunkCount,
		EndpointURL:    endpoint,
	}
	if err := c.writeFrame(MessageTypeHello, ChunkTypeFinal, hello); err != nil {
		return err
	}
	debug.Printf("uacp: sent HEL")

	hdr, body, err := c.readFrame()
	if err != nil {
		return err
	}
	switch hdr.MessageType {
	case MessageTypeAck:
		ack := &Acknowledge{}
		if err := ua.Decode(body, ack); err != nil {
			return err
		}
		c.ReceiveBufSize = min32(cfg.ReceiveBufSize, ack.ReceiveBufSize)
		c.SendBufSize = min32(cfg.SendBufSize, ack.SendBufSize)
		c.MaxMessageSize = min32(cfg.MaxMessageSize, ack.MaxMessageSize)
		c.MaxChunkCount = min32(cfg.MaxChunkCount, ack.MaxChunkCount)
		debug.Printf("uacp: received ACK: recv=%d send=%d msg=%d chunks=%d",
			c.ReceiveBufSize, c.SendBufSize, c.MaxMessageSize, c.MaxChunkCount)
		return nil
	case MessageTypeError:
		uaErr := &Error{}
		if err := ua.Decode(body, uaErr); err != nil {
			return err
		}
		return uaErr
	default:
		return fmt.Errorf("uacp: unexpected message type %q during handshake", hdr.MessageType)
	}
}

// serverHandshake reads the client's Hello and replies with Acknowledge,
// taking the minimum of each pair of parameters as the effective limit.
func (c *Conn) serverHandshake(local *Config) error {
	c.conn.SetReadDeadline(time.Now().Add(HelloTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	hdr, body, err := c.readFrame()
	if err != nil {
		return fmt.Errorf("uacp: waiting for HEL: %w", err)
	}
	if hdr.MessageType != MessageTypeHello {
		return c.abort(ua.StatusBadTcpMessageTypeInvalid, "expected HEL")
	}
	hello := &Hello{}
	if err := ua.Decode(body, hello); err != nil {
		return c.abort(ua.StatusBadDecodingError, err.Error())
	}

	c.ReceiveBufSize = min32(local.ReceiveBufSize, hello.SendBufSize)
	c.SendBufSize = min32(local.SendBufSize, hello.ReceiveBufSize)
	c.MaxMessageSize = min32(local.MaxMessageSize, hello.MaxMessageSize)
	c.MaxChunkCount = min32(local.MaxChunkCount, hello.MaxChunkCount)

	ack := &Acknowledge{
		Version:        0,
		ReceiveBufSize: c.ReceiveBufSize,
		SendBufSize:    c.SendBufSize,
		MaxMessageSize: c.MaxMessageSize,
		MaxChunkCount:  c.MaxChunkCount,
	}
	return c.writeFrame(MessageTypeAck, ChunkTypeFinal, ack)
}

func (c *Conn) abort(code ua.StatusCode, reason string) error {
	errMsg := &Error{ErrorCode: code, Reason: reason}
	c.writeFrame(MessageTypeError, ChunkTypeFinal, errMsg)
	return errMsg
}

// writeFrame frames and writes a single chunk carrying a HEL/ACK/ERR body.
func (c *Conn) writeFrame(mt MessageType, ct ChunkType, body interface{}) error {
	payload, err := ua.Encode(body)
	if err != nil {
		return err
	}
	hdr := &Header{MessageType: mt, ChunkType: ct, MessageSize: uint32(HeaderLen + len(payload))}
	buf, err := ua.Encode(hdr)
	if err != nil {
		return err
	}
	buf = append(buf, payload...)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(buf)
	return err
}

// readFrame reads exactly one chunk: an 8-byte Header followed by
// MessageSize-HeaderLen bytes of body.
func (c *Conn) readFrame() (*Header, []byte, error) {
	hdrBuf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(c.conn, hdrBuf); err != nil {
		return nil, nil, err
	}
	hdr := &Header{}
	if err := ua.Decode(hdrBuf, hdr); err != nil {
		return nil, nil, err
	}
	if hdr.MessageSize < HeaderLen {
		return nil, nil, fmt.Errorf("%w: chunk size %d smaller than header", ua.StatusBadDecodingError, hdr.MessageSize)
	}
	body := make([]byte, hdr.MessageSize-HeaderLen)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, nil, err
	}
	return hdr, body, nil
}

// WriteChunk writes a pre-framed chunk (header+body) produced by the
// chunker/secure channel layers.
func (c *Conn) WriteChunk(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// ReadChunk reads one raw chunk (header+body, still signed/encrypted) for
// the secure channel layer to process.
func (c *Conn) ReadChunk() ([]byte, error) {
	hdrBuf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(c.conn, hdrBuf); err != nil {
		return nil, err
	}
	hdr := &Header{}
	if err := ua.Decode(hdrBuf, hdr); err != nil {
		return nil, err
	}
	if c.MaxMessageSize != 0 && hdr.MessageSize > c.MaxMessageSize {
		return nil, ua.StatusBadTcpMessageTooLarge
	}
	rest := make([]byte, hdr.MessageSize-HeaderLen)
	if _, err := io.ReadFull(c.conn, rest); err != nil {
		return nil, err
	}
	return append(hdrBuf, rest...), nil
}

// SetDeadline sets the read/write deadline on the underlying socket,
// backing the transport's channel_lifetime timeout.
func (c *Conn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}

func (c *Conn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
