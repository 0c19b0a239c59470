// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uasc implements the UA Secure Conversation layer:
// the secure channel lifecycle (Negotiating/Open/Renewing/Closed), the
// per-chunk security header, and request/response correlation over a
// uacp.Conn.
package uasc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopcua/opcua/debug"
	"github.com/gopcua/opcua/ua"
	"github.com/gopcua/opcua/uacp"
)

// State is the SecureChannel lifecycle state.
type State int32

const (
	StateClosed State = iota
	StateNegotiating
	StateOpen
	StateRenewing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateNegotiating:
		return "negotiating"
	case StateOpen:
		return "open"
	case StateRenewing:
		return "renewing"
	default:
		return "unknown"
	}
}

// pendingRequest is a request awaiting its correlated response.
type pendingRequest struct {
	resp chan interface{}
	err  chan error
}

// SecureChannel is a negotiated UASC channel over a uacp.Conn: it owns
// chunk framing, sequence numbers, the current security token, and
// request/response correlation.
type SecureChannel struct {
	endpointURL string
	conn        *uacp.Conn
	cfg         *Config
	policy      SecurityPolicy
	localKey    *rsa.PrivateKey
	localCert   *x509.Certificate

	state int32 // State, accessed atomically

	mu        sync.Mutex
	channelID uint32
	tokenID   uint32
	lifetime  time.Duration

	seqNum    uint32 // atomic
	requestID uint32 // atomic

	keys symmetricKeyring

	pendingMu sync.Mutex
	pending   map[uint32]*pendingRequest

	closeOnce sync.Once
	done      chan struct{}
	renewStop chan struct{}
}

// NewSecureChannel negotiates nothing yet -- it just prepares the crypto
// context for conn. Call Open to perform the OpenSecureChannel exchange.
func NewSecureChannel(endpointURL string, conn *uacp.Conn, cfg *Config) (*SecureChannel, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	policy, err := Policy(cfg.SecurityPolicyURI)
	if err != nil {
		return nil, err
	}
	sc := &SecureChannel{
		endpointURL: endpointURL,
		conn:        conn,
		cfg:         cfg,
		policy:      policy,
		pending:     make(map[uint32]*pendingRequest),
		done:        make(chan struct{}),
	}
	if len(cfg.Certificate) > 0 {
		cert, err := x509.ParseCertificate(cfg.Certificate)
		if err != nil {
			return nil, fmt.Errorf("uasc: invalid local certificate: %w", err)
		}
		sc.localCert = cert
	}
	if len(cfg.LocalKey) > 0 {
		key, err := x509.ParsePKCS1PrivateKey(cfg.LocalKey)
		if err != nil {
			return nil, fmt.Errorf("uasc: invalid local private key: %w", err)
		}
		sc.localKey = key
	}
	atomic.StoreInt32(&sc.state, int32(StateClosed))
	return sc, nil
}

func (sc *SecureChannel) State() State { return State(atomic.LoadInt32(&sc.state)) }

// Open performs the initial OpenSecureChannel exchange, then starts the background
// reader and, if AutoRenew is set, the renewal timer.
func (sc *SecureChannel) Open() error {
	atomic.StoreInt32(&sc.state, int32(StateNegotiating))
	if err := sc.openInternal(ua.SecurityTokenRequestTypeIssue); err != nil {
		atomic.StoreInt32(&sc.state, int32(StateClosed))
		return err
	}
	atomic.StoreInt32(&sc.state, int32(StateOpen))
	go sc.readLoop()
	if sc.cfg.AutoRenew {
		sc.renewStop = make(chan struct{})
		go sc.renewLoop()
	}
	return nil
}

func (sc *SecureChannel) openInternal(reqType ua.SecurityTokenRequestType) error {
	nonce := make([]byte, 32)
	if sc.policy.URI() != ua.SecurityPolicyURINone {
		if _, err := rand.Read(nonce); err != nil {
			return err
		}
	}

	req := &ua.OpenSecureChannelRequest{
		RequestHeader:         ua.NewRequestHeader(nil, sc.nextRequestHandle(), 10000),
		ClientProtocolVersion: 0,
		RequestType:           reqType,
		SecurityMode:          sc.cfg.SecurityMode,
		ClientNonce:           nonce,
		RequestedLifetime:     uint32(sc.cfg.RequestedLifetime / time.Millisecond),
	}

	body, err := ua.EncodeService(req)
	if err != nil {
		return err
	}

	secHdr := &AsymmetricSecurityHeader{SecurityPolicyURI: sc.policy.URI()}
	if sc.localCert != nil {
		secHdr.SenderCertificate = sc.localCert.Raw
	}
	secHdrBytes, err := ua.Encode(secHdr)
	if err != nil {
		return err
	}

	seqHdr := &SequenceHeader{SequenceNumber: sc.nextSequenceNumber(), RequestID: req.RequestHeader.RequestHandle}
	seqHdrBytes, err := ua.Encode(seqHdr)
	if err != nil {
		return err
	}

	chunkBody := append(append(secHdrBytes, seqHdrBytes...), body...)
	hdr := &uacp.Header{MessageType: uacp.MessageTypeOpenSecureChannel, ChunkType: uacp.ChunkTypeFinal, MessageSize: uint32(uacp.HeaderLen + len(chunkBody))}
	hdrBytes, err := ua.Encode(hdr)
	if err != nil {
		return err
	}
	if err := sc.conn.WriteChunk(append(hdrBytes, chunkBody...)); err != nil {
		return err
	}

	raw, err := sc.conn.ReadChunk()
	if err != nil {
		return err
	}
	respHdr, rest, err := decodeUACPHeader(raw)
	if err != nil {
		return err
	}
	if respHdr.MessageType == uacp.MessageTypeError {
		errMsg := &uacp.Error{}
		ua.Decode(rest, errMsg)
		return errMsg
	}
	if respHdr.MessageType != uacp.MessageTypeOpenSecureChannel {
		return fmt.Errorf("uasc: expected OPN response, got %q", respHdr.MessageType)
	}
	d := ua.NewDecoder(rest, ua.DefaultDecodeLimits)
	ahdr := &AsymmetricSecurityHeader{}
	d.Decode(ahdr)
	shdr := &SequenceHeader{}
	d.Decode(shdr)
	var res *ua.OpenSecureChannelResponse
	if err := d.Err(); err != nil {
		return err
	}
	v, err := ua.DecodeService(rest[len(rest)-d.Len():])
	if err != nil {
		return err
	}
	r, ok := v.(*ua.OpenSecureChannelResponse)
	if !ok {
		if fault, ok := v.(*ua.ServiceFault); ok {
			return fault.ResponseHeader.ServiceResult
		}
		return fmt.Errorf("uasc: unexpected OPN response type %T", v)
	}
	res = r

	sc.mu.Lock()
	sc.channelID = res.SecurityToken.ChannelID
	sc.tokenID = res.SecurityToken.TokenID
	sc.lifetime = time.Duration(res.SecurityToken.RevisedLifetime) * time.Millisecond
	sc.mu.Unlock()

	// ClientKeys sign/encrypt what this end sends, ServerKeys verify/decrypt
	// what the server sends back, per the nonce pair just exchanged.
	clientKeys, serverKeys := deriveTokenCrypto(sc.policy, nonce, res.ServerNonce)
	sc.keys.set(sc.tokenID, clientKeys, serverKeys)

	debug.Printf("uasc: secure channel open: channel=%d token=%d lifetime=%s", sc.channelID, sc.tokenID, sc.lifetime)
	return nil
}

func (sc *SecureChannel) renewLoop() {
	for {
		sc.mu.Lock()
		lifetime := sc.lifetime
		sc.mu.Unlock()
		if lifetime <= 0 {
			lifetime = sc.cfg.RequestedLifetime
		}
		wait := lifetime * 3 / 4
		select {
		case <-time.After(wait):
		case <-sc.renewStop:
			return
		case <-sc.done:
			return
		}
		atomic.StoreInt32(&sc.state, int32(StateRenewing))
		if err := sc.openInternal(ua.SecurityTokenRequestTypeRenew); err != nil {
			debug.Printf("uasc: renew failed: %v", err)
			atomic.StoreInt32(&sc.state, int32(StateOpen))
			continue
		}
		atomic.StoreInt32(&sc.state, int32(StateOpen))
	}
}

func (sc *SecureChannel) nextRequestHandle() uint32 { return atomic.AddUint32(&sc.requestID, 1) }
func (sc *SecureChannel) nextSequenceNumber() uint32 { return atomic.AddUint32(&sc.seqNum, 1) }

// Send encodes req, frames it as a MSG chunk under the current security
// token, and blocks until the correlated response arrives.
func (sc *SecureChannel) Send(req interface{}, authToken *ua.NodeID, handler func(interface{}) error) error {
	if sc.State() == StateClosed {
		return ua.StatusBadSecureChannelClosed
	}

	handle := sc.nextRequestHandle()
	if rh, ok := requestHeaderOf(req); ok {
		rh.AuthenticationToken = authToken
		rh.RequestHandle = handle
	}

	body, err := ua.EncodeService(req)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	secHdr := &SymmetricSecurityHeader{ChannelID: sc.channelID, TokenID: sc.tokenID}
	sc.mu.Unlock()
	secHdrBytes, err := ua.Encode(secHdr)
	if err != nil {
		return err
	}

	firstSeq := sc.nextSequenceNumber()
	chunks, err := splitMSG(body, secHdrBytes, firstSeq, handle, sc.conn.SendBufSize, sc.nextSequenceNumber)
	if err != nil {
		return err
	}

	pr := &pendingRequest{resp: make(chan interface{}, 1), err: make(chan error, 1)}
	sc.pendingMu.Lock()
	sc.pending[handle] = pr
	sc.pendingMu.Unlock()
	defer func() {
		sc.pendingMu.Lock()
		delete(sc.pending, handle)
		sc.pendingMu.Unlock()
	}()

	for i, chunkBody := range chunks {
		sealed, err := sc.keys.seal(chunkBody[len(secHdrBytes):])
		if err != nil {
			return err
		}
		frame := append(append([]byte{}, secHdrBytes...), sealed...)

		ct := uacp.ChunkTypeContinue
		if i == len(chunks)-1 {
			ct = uacp.ChunkTypeFinal
		}
		hdr := &uacp.Header{MessageType: uacp.MessageTypeMessage, ChunkType: ct, MessageSize: uint32(uacp.HeaderLen + len(frame))}
		hdrBytes, err := ua.Encode(hdr)
		if err != nil {
			return err
		}
		if err := sc.conn.WriteChunk(append(hdrBytes, frame...)); err != nil {
			return err
		}
	}

	select {
	case v := <-pr.resp:
		return handler(v)
	case err := <-pr.err:
		return err
	case <-sc.done:
		return ua.StatusBadSecureChannelClosed
	}
}

// readLoop dispatches MSG responses to their waiting Send call, assembling
// Continue chunks per request id until a Final chunk completes the group.
func (sc *SecureChannel) readLoop() {
	assemblers := map[uint32]*assembler{}
	for {
		raw, err := sc.conn.ReadChunk()
		if err != nil {
			sc.failAllPending(err)
			return
		}
		hdr, rest, err := decodeUACPHeader(raw)
		if err != nil {
			continue
		}
		switch hdr.MessageType {
		case uacp.MessageTypeMessage, uacp.MessageTypeCloseSecureChannel:
			d := ua.NewDecoder(rest, ua.DefaultDecodeLimits)
			shdr := &SymmetricSecurityHeader{}
			d.Decode(shdr)
			if d.Err() != nil {
				continue
			}
			sealed := rest[len(rest)-d.Len():]

			plain, err := sc.keys.unseal(shdr.TokenID, sealed)
			if err != nil {
				sc.failAllPending(err)
				return
			}

			pd := ua.NewDecoder(plain, ua.DefaultDecodeLimits)
			seqHdr := &SequenceHeader{}
			pd.Decode(seqHdr)
			if pd.Err() != nil {
				continue
			}
			payload := plain[len(plain)-pd.Len():]

			a, ok := assemblers[seqHdr.RequestID]
			if !ok {
				a = &assembler{}
				assemblers[seqHdr.RequestID] = a
			}
			done, aborted := a.addChunk(byte(hdr.ChunkType), payload)
			if !done {
				continue
			}
			delete(assemblers, seqHdr.RequestID)
			if aborted {
				sc.dispatch(seqHdr.RequestID, nil, fmt.Errorf("%w: chunk sequence aborted by peer", ua.StatusBadCommunicationError))
				continue
			}
			v, err := ua.DecodeService(a.bytes())
			sc.dispatch(seqHdr.RequestID, v, err)
		case uacp.MessageTypeError:
			errMsg := &uacp.Error{}
			ua.Decode(rest, errMsg)
			sc.failAllPending(errMsg)
			return
		default:
			debug.Printf("uasc: ignoring unexpected message type %q", hdr.MessageType)
		}
	}
}

func (sc *SecureChannel) dispatch(requestID uint32, v interface{}, err error) {
	sc.pendingMu.Lock()
	pr, ok := sc.pending[requestID]
	sc.pendingMu.Unlock()
	if !ok {
		debug.Printf("uasc: response for unknown request id %d", requestID)
		return
	}
	if err != nil {
		pr.err <- err
		return
	}
	if fault, ok := v.(*ua.ServiceFault); ok {
		pr.err <- fault.ResponseHeader.ServiceResult
		return
	}
	pr.resp <- v
}

func (sc *SecureChannel) failAllPending(err error) {
	sc.pendingMu.Lock()
	defer sc.pendingMu.Unlock()
	for id, pr := range sc.pending {
		pr.err <- err
		delete(sc.pending, id)
	}
}

// Close sends CloseSecureChannelRequest and tears down the channel.
func (sc *SecureChannel) Close() error {
	var err error
	sc.closeOnce.Do(func() {
		if sc.State() != StateClosed {
			req := &ua.CloseSecureChannelRequest{RequestHeader: ua.NewRequestHeader(nil, sc.nextRequestHandle(), 5000)}
			_ = sc.Send(req, nil, func(interface{}) error { return nil })
		}
		atomic.StoreInt32(&sc.state, int32(StateClosed))
		if sc.renewStop != nil {
			close(sc.renewStop)
		}
		close(sc.done)
		err = sc.conn.Close()
	})
	return err
}

// decodeUACPHeader splits raw (as returned by uacp.Conn.ReadChunk) into its
// Header and the remaining chunk body.
func decodeUACPHeader(raw []byte) (*uacp.Header, []byte, error) {
	if len(raw) < uacp.HeaderLen {
		return nil, nil, fmt.Errorf("%w: short chunk", ua.StatusBadDecodingError)
	}
	hdr := &uacp.Header{}
	if err := ua.Decode(raw[:uacp.HeaderLen], hdr); err != nil {
		return nil, nil, err
	}
	return hdr, raw[uacp.HeaderLen:], nil
}

// requestHeaderOf extracts the embedded *ua.RequestHeader from a service
// request by field name. Every request message has RequestHeader as its
// first field, so one reflective lookup covers every
// request type instead of a type switch naming each of them.
func requestHeaderOf(req interface{}) (*ua.RequestHeader, bool) {
	rv := reflect.ValueOf(req)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return nil, false
	}
	f := rv.Elem().FieldByName("RequestHeader")
	if !f.IsValid() || f.Type() != reflect.TypeOf(&ua.RequestHeader{}) {
		return nil, false
	}
	if f.IsNil() {
		f.Set(reflect.ValueOf(ua.NewRequestHeader(nil, 0, 0)))
	}
	return f.Interface().(*ua.RequestHeader), true
}
