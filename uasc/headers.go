// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import "github.com/gopcua/opcua/ua"

// AsymmetricSecurityHeader precedes an OPN/first-CLO chunk's body: the
// policy URI plus the sender/receiver certificate material used to
// bootstrap the symmetric keys.
type AsymmetricSecurityHeader struct {
	SecurityPolicyURI            string
	SenderCertificate             []byte
	ReceiverCertificateThumbprint []byte
}

func (h *AsymmetricSecurityHeader) MarshalOPCUA(e *ua.Encoder) error {
	e.WriteString(h.SecurityPolicyURI)
	e.WriteByteString(h.SenderCertificate)
	e.WriteByteString(h.ReceiverCertificateThumbprint)
	return e.Err()
}

func (h *AsymmetricSecurityHeader) UnmarshalOPCUA(d *ua.Decoder) error {
	h.SecurityPolicyURI = d.ReadString()
	h.SenderCertificate = d.ReadByteString()
	h.ReceiverCertificateThumbprint = d.ReadByteString()
	return d.Err()
}

// SymmetricSecurityHeader precedes every MSG/renewed-CLO chunk's body: the
// channel and token id identifying which derived keys apply.
type SymmetricSecurityHeader struct {
	ChannelID uint32
	TokenID   uint32
}

func (h *SymmetricSecurityHeader) MarshalOPCUA(e *ua.Encoder) error {
	e.WriteUint32(h.ChannelID)
	e.WriteUint32(h.TokenID)
	return e.Err()
}

func (h *SymmetricSecurityHeader) UnmarshalOPCUA(d *ua.Decoder) error {
	h.ChannelID = d.ReadUint32()
	h.TokenID = d.ReadUint32()
	return d.Err()
}

// SequenceHeader carries the per-chunk sequence number and the request id
// correlating a chunk group with its response.
type SequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

func (h *SequenceHeader) MarshalOPCUA(e *ua.Encoder) error {
	e.WriteUint32(h.SequenceNumber)
	e.WriteUint32(h.RequestID)
	return e.Err()
}

func (h *SequenceHeader) UnmarshalOPCUA(d *ua.Decoder) error {
	h.SequenceNumber = d.ReadUint32()
	h.RequestID = d.ReadUint32()
	return d.Err()
}
