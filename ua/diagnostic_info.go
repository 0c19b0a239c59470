// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

const (
	diagSymbolicID         = 0x01
	diagNamespaceURI       = 0x02
	diagLocalizedText      = 0x04
	diagLocale             = 0x08
	diagAdditionalInfo     = 0x10
	diagInnerStatusCode    = 0x20
	diagInnerDiagnosticInfo = 0x40
)

// DiagnosticInfo carries optional server diagnostics for a per-item
// StatusCode when ReturnDiagnostics bits request it. It nests recursively via InnerDiagnosticInfo.
type DiagnosticInfo struct {
	SymbolicID         int32
	NamespaceURI       int32
	Locale             int32
	LocalizedText      int32
	AdditionalInfo     string
	InnerStatusCode    StatusCode
	InnerDiagnosticInfo *DiagnosticInfo

	HasSymbolicID          bool
	HasNamespaceURI        bool
	HasLocale              bool
	HasLocalizedText       bool
	HasAdditionalInfo      bool
	HasInnerStatusCode     bool
	HasInnerDiagnosticInfo bool
}

func (i *DiagnosticInfo) mask() byte {
	var m byte
	if i.HasSymbolicID {
		m |= diagSymbolicID
	}
	if i.HasNamespaceURI {
		m |= diagNamespaceURI
	}
	if i.HasLocalizedText {
		m |= diagLocalizedText
	}
	if i.HasLocale {
		m |= diagLocale
	}
	if i.HasAdditionalInfo {
		m |= diagAdditionalInfo
	}
	if i.HasInnerStatusCode {
		m |= diagInnerStatusCode
	}
	if i.HasInnerDiagnosticInfo {
		m |= diagInnerDiagnosticInfo
	}
	return m
}

func (i *DiagnosticInfo) MarshalOPCUA(e *Encoder) error {
	m := i.mask()
	e.WriteByte(m)
	if m&diagSymbolicID != 0 {
		e.WriteInt32(i.SymbolicID)
	}
	if m&diagNamespaceURI != 0 {
		e.WriteInt32(i.NamespaceURI)
	}
	if m&diagLocale != 0 {
		e.WriteInt32(i.Locale)
	}
	if m&diagLocalizedText != 0 {
		e.WriteInt32(i.LocalizedText)
	}
	if m&diagAdditionalInfo != 0 {
		e.WriteString(i.AdditionalInfo)
	}
	if m&diagInnerStatusCode != 0 {
		e.WriteUint32(uint32(i.InnerStatusCode))
	}
	if m&diagInnerDiagnosticInfo != 0 {
		e.Encode(i.InnerDiagnosticInfo)
	}
	return e.Err()
}

func (i *DiagnosticInfo) UnmarshalOPCUA(d *Decoder) error {
	m := d.ReadByte()
	i.HasSymbolicID = m&diagSymbolicID != 0
	i.HasNamespaceURI = m&diagNamespaceURI != 0
	i.HasLocale = m&diagLocale != 0
	i.HasLocalizedText = m&diagLocalizedText != 0
	i.HasAdditionalInfo = m&diagAdditionalInfo != 0
	i.HasInnerStatusCode = m&diagInnerStatusCode != 0
	i.HasInnerDiagnosticInfo = m&diagInnerDiagnosticInfo != 0
	if i.HasSymbolicID {
		i.SymbolicID = d.ReadInt32()
	}
	if i.HasNamespaceURI {
		i.NamespaceURI = d.ReadInt32()
	}
	if i.HasLocale {
		i.Locale = d.ReadInt32()
	}
	if i.HasLocalizedText {
		i.LocalizedText = d.ReadInt32()
	}
	if i.HasAdditionalInfo {
		i.AdditionalInfo = d.ReadString()
	}
	if i.HasInnerStatusCode {
		i.InnerStatusCode = StatusCode(d.ReadUint32())
	}
	if i.HasInnerDiagnosticInfo {
		i.InnerDiagnosticInfo = &DiagnosticInfo{}
		d.Decode(i.InnerDiagnosticInfo)
	}
	return d.Err()
}
