// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// QualifiedName is (namespace_index, name); names are case-sensitive
//. Its wire layout is the plain concatenation of its two
// fields, so the generic reflective codec needs no help here.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

func (q *QualifiedName) String() string {
	if q == nil {
		return ""
	}
	return q.Name
}

// localizedTextMask bits select which optional LocalizedText component
// follows.
const (
	localizedTextLocalePresent = 0x01
	localizedTextTextPresent   = 0x02
)

// LocalizedText carries an optional locale and an optional text value. A
// mask bit is set iff the corresponding component is present in the byte
// stream.
type LocalizedText struct {
	Locale string
	Text   string

	hasLocale bool
	hasText   bool
}

// NewLocalizedText builds a LocalizedText with only the text component
// present.
func NewLocalizedText(text string) *LocalizedText {
	return &LocalizedText{Text: text, hasText: true}
}

func (l *LocalizedText) MarshalOPCUA(e *Encoder) error {
	var mask byte
	hasLocale := l.hasLocale || l.Locale != ""
	hasText := l.hasText || l.Text != ""
	if hasLocale {
		mask |= localizedTextLocalePresent
	}
	if hasText {
		mask |= localizedTextTextPresent
	}
	e.WriteByte(mask)
	if hasLocale {
		e.WriteString(l.Locale)
	}
	if hasText {
		e.WriteString(l.Text)
	}
	return e.Err()
}

func (l *LocalizedText) UnmarshalOPCUA(d *Decoder) error {
	mask := d.ReadByte()
	l.hasLocale = mask&localizedTextLocalePresent != 0
	l.hasText = mask&localizedTextTextPresent != 0
	if l.hasLocale {
		l.Locale = d.ReadString()
	}
	if l.hasText {
		l.Text = d.ReadString()
	}
	return d.Err()
}
