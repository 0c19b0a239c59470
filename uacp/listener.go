// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uacp

import (
	"fmt"
	"net"
	"net/url"

	"github.com/gopcua/opcua/debug"
)

// Listener accepts incoming UACP connections, running the server side of
// the HEL/ACK handshake before handing a negotiated *Conn
// to the caller.
type Listener struct {
	ln  net.Listener
	cfg *Config
}

// Listen binds endpoint ("opc.tcp://host:port/path") and returns a
// Listener ready to Accept.
func Listen(endpoint string, cfg *Config) (*Listener, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("uacp: invalid endpoint %q: %w", endpoint, err)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "4840")
	}
	ln, err := net.Listen("tcp", host)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, cfg: cfg}, nil
}

// Accept blocks until a client dials in, completes the HEL/ACK handshake
// on the new connection, and returns the resulting *Conn. A client that
// fails the handshake (bad Hello, timeout) never reaches the caller; the
// failure is logged and the listener keeps waiting for the next peer.
func (l *Listener) Accept() (*Conn, error) {
	for {
		raw, err := l.ln.Accept()
		if err != nil {
			return nil, err
		}
		c := &Conn{conn: raw}
		if err := c.serverHandshake(l.cfg); err != nil {
			debug.Printf("uacp: handshake with %s failed: %v", raw.RemoteAddr(), err)
			raw.Close()
			continue
		}
		return c, nil
	}
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error { return l.ln.Close() }
