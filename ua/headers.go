// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// RequestHeader is embedded in every request variant.
type RequestHeader struct {
	AuthenticationToken *NodeID
	Timestamp           time.Time
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	AuditEntryID        string
	TimeoutHint         uint32
	AdditionalHeader    *ExtensionObject
}

// NewRequestHeader builds a RequestHeader with Timestamp set to now.
func NewRequestHeader(authToken *NodeID, handle uint32, timeoutHint uint32) *RequestHeader {
	return &RequestHeader{
		AuthenticationToken: authToken,
		Timestamp:           time.Now(),
		RequestHandle:       handle,
		TimeoutHint:         timeoutHint,
		AdditionalHeader:    NewExtensionObject(nil),
	}
}

// ResponseHeader is embedded in every response variant.
type ResponseHeader struct {
	Timestamp         time.Time
	RequestHandle     uint32
	ServiceResult     StatusCode
	ServiceDiagnostics *DiagnosticInfo
	StringTable       []string
	AdditionalHeader  *ExtensionObject
}

func (h *ResponseHeader) MarshalOPCUA(e *Encoder) error {
	e.WriteTime(h.Timestamp)
	e.WriteUint32(h.RequestHandle)
	e.WriteUint32(uint32(h.ServiceResult))
	e.Encode(h.ServiceDiagnostics)
	e.Encode(h.StringTable)
	e.Encode(h.AdditionalHeader)
	return e.Err()
}

func (h *ResponseHeader) UnmarshalOPCUA(d *Decoder) error {
	h.Timestamp = d.ReadTime()
	h.RequestHandle = d.ReadUint32()
	h.ServiceResult = StatusCode(d.ReadUint32())
	h.ServiceDiagnostics = &DiagnosticInfo{}
	d.Decode(h.ServiceDiagnostics)
	d.Decode(&h.StringTable)
	h.AdditionalHeader = &ExtensionObject{}
	d.Decode(h.AdditionalHeader)
	return d.Err()
}

// NewResponseHeader mirrors req's handle into the response, the common
// case for a successful service call.
func NewResponseHeader(req *RequestHeader, result StatusCode) *ResponseHeader {
	handle := uint32(0)
	if req != nil {
		handle = req.RequestHandle
	}
	return &ResponseHeader{
		Timestamp:        time.Now(),
		RequestHandle:    handle,
		ServiceResult:    result,
		AdditionalHeader: NewExtensionObject(nil),
	}
}

// SignatureData carries an algorithm URI and a signature, used by
// ActivateSession and X509 identity tokens.
type SignatureData struct {
	Algorithm string
	Signature []byte
}
