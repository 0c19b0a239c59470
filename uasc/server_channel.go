// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopcua/opcua/debug"
	"github.com/gopcua/opcua/ua"
	"github.com/gopcua/opcua/uacp"
)

// nextChannelID hands out process-unique secure channel ids, the server
// side of the OpenSecureChannel exchange.
var nextChannelID uint32

// Handler answers one decoded service request. authToken is whatever the
// request's RequestHeader carried; resp must be a registered service
// response type or *ua.ServiceFault.
type Handler func(req interface{}, authToken *ua.NodeID) (resp interface{}, err error)

// ServerChannel is the server-side counterpart of SecureChannel: it accepts
// one client's OpenSecureChannel handshake, then serves MSG requests
// through a Handler until the client sends CloseSecureChannel or the
// connection drops.
type ServerChannel struct {
	conn      *uacp.Conn
	channelID uint32
	policy    SecurityPolicy

	mu       sync.Mutex
	tokenID  uint32
	lifetime time.Duration

	keys symmetricKeyring

	seqNum uint32 // atomic
}

// AcceptSecureChannel performs the server side of the OpenSecureChannel
// handshake on conn, then returns a ServerChannel ready to Serve requests.
func AcceptSecureChannel(conn *uacp.Conn, requestedLifetime time.Duration) (*ServerChannel, error) {
	raw, err := conn.ReadChunk()
	if err != nil {
		return nil, err
	}
	hdr, rest, err := decodeUACPHeader(raw)
	if err != nil {
		return nil, err
	}
	if hdr.MessageType != uacp.MessageTypeOpenSecureChannel {
		return nil, fmt.Errorf("%w: expected OPN, got %q", ua.StatusBadTcpMessageTypeInvalid, hdr.MessageType)
	}

	d := ua.NewDecoder(rest, ua.DefaultDecodeLimits)
	secHdr := &AsymmetricSecurityHeader{}
	d.Decode(secHdr)
	seqHdr := &SequenceHeader{}
	d.Decode(seqHdr)
	if err := d.Err(); err != nil {
		return nil, err
	}
	v, err := ua.DecodeService(rest[len(rest)-d.Len():])
	if err != nil {
		return nil, err
	}
	req, ok := v.(*ua.OpenSecureChannelRequest)
	if !ok {
		return nil, fmt.Errorf("%w: expected OpenSecureChannelRequest, got %T", ua.StatusBadDecodingError, v)
	}
	policy, err := Policy(secHdr.SecurityPolicyURI)
	if err != nil {
		return nil, err
	}

	lifetime := requestedLifetime
	if req.RequestedLifetime > 0 && time.Duration(req.RequestedLifetime)*time.Millisecond < lifetime {
		lifetime = time.Duration(req.RequestedLifetime) * time.Millisecond
	}

	sc := &ServerChannel{
		conn:      conn,
		channelID: atomic.AddUint32(&nextChannelID, 1),
		policy:    policy,
		tokenID:   1,
		lifetime:  lifetime,
	}

	serverNonce := make([]byte, 32)
	if policy.URI() != ua.SecurityPolicyURINone {
		if _, err := rand.Read(serverNonce); err != nil {
			return nil, err
		}
	}
	clientKeys, serverKeys := deriveTokenCrypto(policy, req.ClientNonce, serverNonce)
	sc.keys.set(sc.tokenID, serverKeys, clientKeys)

	res := &ua.OpenSecureChannelResponse{
		ResponseHeader:        ua.NewResponseHeader(req.RequestHeader, ua.StatusOK),
		ServerProtocolVersion: 0,
		SecurityToken: &ua.ChannelSecurityToken{
			ChannelID:       sc.channelID,
			TokenID:         sc.tokenID,
			CreatedAt:       ua.TimeToFileTime(time.Now()),
			RevisedLifetime: uint32(lifetime / time.Millisecond),
		},
		ServerNonce: serverNonce,
	}
	if err := sc.writeOPN(res, seqHdr.RequestID); err != nil {
		return nil, err
	}
	debug.Printf("uasc: accepted secure channel %d", sc.channelID)
	return sc, nil
}

func (sc *ServerChannel) writeOPN(res *ua.OpenSecureChannelResponse, requestID uint32) error {
	body, err := ua.EncodeService(res)
	if err != nil {
		return err
	}
	secHdrBytes, err := ua.Encode(&AsymmetricSecurityHeader{})
	if err != nil {
		return err
	}
	seqHdrBytes, err := ua.Encode(&SequenceHeader{SequenceNumber: sc.nextSequenceNumber(), RequestID: requestID})
	if err != nil {
		return err
	}
	chunkBody := append(append(secHdrBytes, seqHdrBytes...), body...)
	hdr := &uacp.Header{MessageType: uacp.MessageTypeOpenSecureChannel, ChunkType: uacp.ChunkTypeFinal, MessageSize: uint32(uacp.HeaderLen + len(chunkBody))}
	hdrBytes, err := ua.Encode(hdr)
	if err != nil {
		return err
	}
	return sc.conn.WriteChunk(append(hdrBytes, chunkBody...))
}

func (sc *ServerChannel) nextSequenceNumber() uint32 { return atomic.AddUint32(&sc.seqNum, 1) }

// handleRenew services a mid-stream OpenSecureChannelRequest: it issues a
// fresh token and server nonce while keeping the outgoing token's keys
// registered in sc.keys as the "previous" token, so a chunk the client
// signed under the old token just before seeing the new one is still
// accepted for one generation.
func (sc *ServerChannel) handleRenew(rest []byte) error {
	d := ua.NewDecoder(rest, ua.DefaultDecodeLimits)
	secHdr := &AsymmetricSecurityHeader{}
	d.Decode(secHdr)
	seqHdr := &SequenceHeader{}
	d.Decode(seqHdr)
	if err := d.Err(); err != nil {
		return err
	}
	v, err := ua.DecodeService(rest[len(rest)-d.Len():])
	if err != nil {
		return err
	}
	req, ok := v.(*ua.OpenSecureChannelRequest)
	if !ok {
		return fmt.Errorf("%w: expected OpenSecureChannelRequest, got %T", ua.StatusBadDecodingError, v)
	}
	if req.RequestType != ua.SecurityTokenRequestTypeRenew {
		return fmt.Errorf("%w: unexpected request type on an already-open channel", ua.StatusBadSecurityModeInsufficient)
	}

	sc.mu.Lock()
	lifetime := sc.lifetime
	sc.mu.Unlock()
	if req.RequestedLifetime > 0 && time.Duration(req.RequestedLifetime)*time.Millisecond < lifetime {
		lifetime = time.Duration(req.RequestedLifetime) * time.Millisecond
	}

	serverNonce := make([]byte, 32)
	if sc.policy.URI() != ua.SecurityPolicyURINone {
		if _, err := rand.Read(serverNonce); err != nil {
			return err
		}
	}

	sc.mu.Lock()
	sc.tokenID++
	tokenID := sc.tokenID
	sc.lifetime = lifetime
	sc.mu.Unlock()

	clientKeys, serverKeys := deriveTokenCrypto(sc.policy, req.ClientNonce, serverNonce)
	sc.keys.set(tokenID, serverKeys, clientKeys)

	res := &ua.OpenSecureChannelResponse{
		ResponseHeader:        ua.NewResponseHeader(req.RequestHeader, ua.StatusOK),
		ServerProtocolVersion: 0,
		SecurityToken: &ua.ChannelSecurityToken{
			ChannelID:       sc.channelID,
			TokenID:         tokenID,
			CreatedAt:       ua.TimeToFileTime(time.Now()),
			RevisedLifetime: uint32(lifetime / time.Millisecond),
		},
		ServerNonce: serverNonce,
	}
	if err := sc.writeOPN(res, seqHdr.RequestID); err != nil {
		return err
	}
	debug.Printf("uasc: server channel %d renewed to token %d", sc.channelID, tokenID)
	return nil
}

// Serve reads MSG requests until the client closes the channel or the
// connection errors, dispatching each decoded request to handler and
// writing back whatever it returns.
func (sc *ServerChannel) Serve(handler Handler) error {
	assemblers := map[uint32]*assembler{}
	for {
		raw, err := sc.conn.ReadChunk()
		if err != nil {
			return err
		}
		hdr, rest, err := decodeUACPHeader(raw)
		if err != nil {
			continue
		}
		switch hdr.MessageType {
		case uacp.MessageTypeCloseSecureChannel:
			return nil
		case uacp.MessageTypeOpenSecureChannel:
			if err := sc.handleRenew(rest); err != nil {
				debug.Printf("uasc: server channel %d renewal failed: %v", sc.channelID, err)
				return err
			}
		case uacp.MessageTypeMessage:
			d := ua.NewDecoder(rest, ua.DefaultDecodeLimits)
			shdr := &SymmetricSecurityHeader{}
			d.Decode(shdr)
			if d.Err() != nil {
				continue
			}
			if shdr.ChannelID != sc.channelID {
				continue
			}
			sealed := rest[len(rest)-d.Len():]

			plain, err := sc.keys.unseal(shdr.TokenID, sealed)
			if err != nil {
				debug.Printf("uasc: server channel %d chunk rejected: %v", sc.channelID, err)
				return err
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
				continue
			}
			v, err := ua.DecodeService(a.bytes())
			if err != nil {
				continue
			}
			go sc.handle(v, seqHdr.RequestID, handler)
		default:
			debug.Printf("uasc: server channel %d ignoring message type %q", sc.channelID, hdr.MessageType)
		}
	}
}

func (sc *ServerChannel) handle(req interface{}, requestID uint32, handler Handler) {
	rh, _ := requestHeaderOf(req)
	var tok *ua.NodeID
	if rh != nil {
		tok = rh.AuthenticationToken
	}
	res, err := handler(req, tok)
	if err != nil {
		debug.Printf("uasc: server channel %d request failed: %v", sc.channelID, err)
		return
	}
	body, err := ua.EncodeService(res)
	if err != nil {
		debug.Printf("uasc: server channel %d cannot encode response: %v", sc.channelID, err)
		return
	}
	sc.mu.Lock()
	secHdr := &SymmetricSecurityHeader{ChannelID: sc.channelID, TokenID: sc.tokenID}
	sc.mu.Unlock()
	secHdrBytes, err := ua.Encode(secHdr)
	if err != nil {
		return
	}
	seqHdrBytes, err := ua.Encode(&SequenceHeader{SequenceNumber: sc.nextSequenceNumber(), RequestID: requestID})
	if err != nil {
		return
	}
	sealed, err := sc.keys.seal(append(seqHdrBytes, body...))
	if err != nil {
		debug.Printf("uasc: server channel %d cannot seal response: %v", sc.channelID, err)
		return
	}
	chunkBody := append(secHdrBytes, sealed...)
	hdr := &uacp.Header{MessageType: uacp.MessageTypeMessage, ChunkType: uacp.ChunkTypeFinal, MessageSize: uint32(uacp.HeaderLen + len(chunkBody))}
	hdrBytes, err := ua.Encode(hdr)
	if err != nil {
		return
	}
	if err := sc.conn.WriteChunk(append(hdrBytes, chunkBody...)); err != nil {
		debug.Printf("uasc: server channel %d write failed: %v", sc.channelID, err)
	}
}

// Close closes the underlying connection.
func (sc *ServerChannel) Close() error { return sc.conn.Close() }

// ChannelID returns the channel id assigned during Accept.
func (sc *ServerChannel) ChannelID() uint32 { return sc.channelID }
