// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

func variant(t *testing.T, v interface{}) *ua.Variant {
	t.Helper()
	vv, err := ua.NewVariant(v)
	require.NoError(t, err)
	return vv
}

func sao(name string) *ua.SimpleAttributeOperand {
	return &ua.SimpleAttributeOperand{BrowsePath: []*ua.QualifiedName{{Name: name}}}
}

func TestMatchesEventFilterNoWhereClauseMatchesAll(t *testing.T) {
	ev := &EventData{Fields: map[string]*ua.Variant{"Severity": variant(t, int32(500))}}
	assert.True(t, matchesEventFilter(nil, ev, nil))
	assert.True(t, matchesEventFilter(nil, ev, &ua.EventFilter{}))
}

func TestMatchesEventFilterGreaterThan(t *testing.T) {
	ev := &EventData{Fields: map[string]*ua.Variant{"Severity": variant(t, int32(500))}}
	f := &ua.EventFilter{
		WhereClause: &ua.ContentFilter{
			Elements: []*ua.ContentFilterElement{
				{
					Operator: ua.FilterOpGreaterThan,
					FilterOperands: []interface{}{
						sao("Severity"),
						&ua.LiteralOperand{Value: variant(t, int32(100))},
					},
				},
			},
		},
	}
	assert.True(t, matchesEventFilter(nil, ev, f))

	lowSeverity := &EventData{Fields: map[string]*ua.Variant{"Severity": variant(t, int32(50))}}
	assert.False(t, matchesEventFilter(nil, lowSeverity, f))
}

func TestMatchesEventFilterAndOr(t *testing.T) {
	ev := &EventData{Fields: map[string]*ua.Variant{
		"Severity": variant(t, int32(500)),
		"Message":  variant(t, "disk full"),
	}}
	and := &ua.ContentFilter{
		Elements: []*ua.ContentFilterElement{
			{Operator: ua.FilterOpAnd, FilterOperands: []interface{}{
				&ua.ElementOperand{Index: 1},
				&ua.ElementOperand{Index: 2},
			}},
			{Operator: ua.FilterOpGreaterThan, FilterOperands: []interface{}{
				sao("Severity"), &ua.LiteralOperand{Value: variant(t, int32(100))},
			}},
			{Operator: ua.FilterOpEquals, FilterOperands: []interface{}{
				sao("Message"), &ua.LiteralOperand{Value: variant(t, "disk full")},
			}},
		},
	}
	assert.True(t, matchesEventFilter(nil, ev, &ua.EventFilter{WhereClause: and}))
}

func TestMatchesEventFilterIsNull(t *testing.T) {
	ev := &EventData{Fields: map[string]*ua.Variant{}}
	f := &ua.EventFilter{
		WhereClause: &ua.ContentFilter{
			Elements: []*ua.ContentFilterElement{
				{Operator: ua.FilterOpIsNull, FilterOperands: []interface{}{sao("Missing")}},
			},
		},
	}
	assert.True(t, matchesEventFilter(nil, ev, f))
}

func TestMatchesEventFilterOfType(t *testing.T) {
	tt := NewTypeTree()
	base := ua.NewNumericNodeID(0, 2041)
	sub := ua.NewNumericNodeID(0, 3000)
	tt.AddSubtype(sub, base)

	ev := &EventData{TypeID: sub}
	f := &ua.EventFilter{
		WhereClause: &ua.ContentFilter{
			Elements: []*ua.ContentFilterElement{
				{Operator: ua.FilterOpOfType, FilterOperands: []interface{}{
					&ua.LiteralOperand{Value: &ua.Variant{Value: base}},
				}},
			},
		},
	}
	assert.True(t, matchesEventFilter(tt, ev, f))

	other := ua.NewNumericNodeID(0, 9999)
	evOther := &EventData{TypeID: other}
	assert.False(t, matchesEventFilter(tt, evOther, f))
}

func TestProjectEventFieldsMissingFieldProjectsNull(t *testing.T) {
	ev := &EventData{Fields: map[string]*ua.Variant{"Severity": variant(t, int32(1))}}
	efl := projectEventFields(ev, []*ua.SimpleAttributeOperand{sao("Severity"), sao("Missing")})
	require.Len(t, efl.EventFields, 2)
	assert.Equal(t, int32(1), efl.EventFields[0].Value)
	assert.Equal(t, ua.VariantTypeNull, efl.EventFields[1].Type)
}
