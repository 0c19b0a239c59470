// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package server

import (
	"strings"

	"github.com/gopcua/opcua/ua"
)

// EventData is one raised event as the filter evaluator sees it: a flat map
// from browse-path key to current value, plus the event's declared type so
// OfType and subtype-scoped monitored items can be checked.
type EventData struct {
	TypeID *ua.NodeID
	Fields map[string]*ua.Variant
}

// operandKey turns a SimpleAttributeOperand's BrowsePath into the same key
// EventData.Fields is keyed by.
func operandKey(path []*ua.QualifiedName) string {
	parts := make([]string, len(path))
	for i, q := range path {
		parts[i] = q.Name
	}
	return strings.Join(parts, "/")
}

// matchesEventFilter reports whether ev qualifies under f. A filter with no
// where_clause matches everything its select_clauses can be projected from.
func matchesEventFilter(tt *TypeTree, ev *EventData, f *ua.EventFilter) bool {
	if f == nil || f.WhereClause == nil || len(f.WhereClause.Elements) == 0 {
		return true
	}
	v, ok := evalElement(tt, ev, f.WhereClause, 0)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// projectEventFields builds the EventFieldList select_clauses projection
// for ev, in clause order. A field ev doesn't carry projects as a null
// Variant rather than failing the whole projection.
func projectEventFields(ev *EventData, clauses []*ua.SimpleAttributeOperand) *ua.EventFieldList {
	fields := make([]*ua.Variant, len(clauses))
	for i, c := range clauses {
		if v, ok := ev.Fields[operandKey(c.BrowsePath)]; ok {
			fields[i] = v
		} else {
			fields[i] = &ua.Variant{Type: ua.VariantTypeNull}
		}
	}
	return &ua.EventFieldList{EventFields: fields}
}

// evalOperand resolves one FilterOperand to its runtime value. The second
// return is false for a missing field (SimpleAttributeOperand) or an
// element index out of range -- both mean "this operand contributed
// nothing", which the caller's operator decides how to treat.
func evalOperand(tt *TypeTree, ev *EventData, cf *ua.ContentFilter, operand interface{}) (interface{}, bool) {
	switch op := operand.(type) {
	case *ua.SimpleAttributeOperand:
		v, ok := ev.Fields[operandKey(op.BrowsePath)]
		if !ok || v == nil {
			return nil, false
		}
		return v.Value, true
	case *ua.LiteralOperand:
		if op.Value == nil {
			return nil, false
		}
		return op.Value.Value, true
	case *ua.ElementOperand:
		return evalElement(tt, ev, cf, int(op.Index))
	default:
		return nil, false
	}
}

// evalElement evaluates the ContentFilterElement at idx, recursing into
// ElementOperand children for the logical operators.
func evalElement(tt *TypeTree, ev *EventData, cf *ua.ContentFilter, idx int) (interface{}, bool) {
	if idx < 0 || idx >= len(cf.Elements) {
		return nil, false
	}
	el := cf.Elements[idx]
	switch el.Operator {
	case ua.FilterOpAnd:
		for _, operand := range el.FilterOperands {
			v, ok := evalOperand(tt, ev, cf, operand)
			b, _ := v.(bool)
			if !ok || !b {
				return false, true
			}
		}
		return true, true

	case ua.FilterOpOr:
		for _, operand := range el.FilterOperands {
			if v, ok := evalOperand(tt, ev, cf, operand); ok {
				if b, _ := v.(bool); b {
					return true, true
				}
			}
		}
		return false, true

	case ua.FilterOpNot:
		if len(el.FilterOperands) != 1 {
			return nil, false
		}
		v, ok := evalOperand(tt, ev, cf, el.FilterOperands[0])
		if !ok {
			return nil, false
		}
		b, _ := v.(bool)
		return !b, true

	case ua.FilterOpIsNull:
		if len(el.FilterOperands) != 1 {
			return nil, false
		}
		_, ok := evalOperand(tt, ev, cf, el.FilterOperands[0])
		return !ok, true

	case ua.FilterOpOfType:
		if len(el.FilterOperands) != 1 || ev.TypeID == nil {
			return false, true
		}
		lit, ok := el.FilterOperands[0].(*ua.LiteralOperand)
		if !ok || lit.Value == nil {
			return false, true
		}
		want, ok := lit.Value.Value.(*ua.NodeID)
		if !ok || want == nil {
			return false, true
		}
		return tt.IsSubtypeOf(ev.TypeID, want), true

	case ua.FilterOpEquals, ua.FilterOpGreaterThan, ua.FilterOpLessThan,
		ua.FilterOpGreaterThanOrEqual, ua.FilterOpLessThanOrEqual:
		if len(el.FilterOperands) != 2 {
			return false, true
		}
		a, aok := evalOperand(tt, ev, cf, el.FilterOperands[0])
		b, bok := evalOperand(tt, ev, cf, el.FilterOperands[1])
		if !aok || !bok {
			return false, true
		}
		return compareOperands(el.Operator, a, b), true

	case ua.FilterOpBetween:
		if len(el.FilterOperands) != 3 {
			return false, true
		}
		v, vok := evalOperand(tt, ev, cf, el.FilterOperands[0])
		lo, lok := evalOperand(tt, ev, cf, el.FilterOperands[1])
		hi, hok := evalOperand(tt, ev, cf, el.FilterOperands[2])
		if !vok || !lok || !hok {
			return false, true
		}
		return compareOperands(ua.FilterOpGreaterThanOrEqual, v, lo) &&
			compareOperands(ua.FilterOpLessThanOrEqual, v, hi), true

	default:
		return nil, false
	}
}

// compareOperands implements the numeric (falling back to string equality)
// comparison operators; operands that are neither numeric nor both strings
// never compare true.
func compareOperands(op ua.FilterOperator, a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch op {
			case ua.FilterOpEquals:
				return af == bf
			case ua.FilterOpGreaterThan:
				return af > bf
			case ua.FilterOpLessThan:
				return af < bf
			case ua.FilterOpGreaterThanOrEqual:
				return af >= bf
			case ua.FilterOpLessThanOrEqual:
				return af <= bf
			}
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok && op == ua.FilterOpEquals {
			return as == bs
		}
	}
	return false
}
