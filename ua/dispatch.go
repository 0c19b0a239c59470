// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"fmt"
	"reflect"

	"github.com/gopcua/opcua/id"
)

// serviceTypeIDs maps a service message's concrete Go type to its
// DefaultBinary encoding id. The table is built once from a literal list
// rather than per-type methods, avoiding forty near-identical hand-written
// impls.
var serviceTypeIDs = map[reflect.Type]uint32{}
var serviceFactories = map[uint32]func() interface{}{}

func registerService(typeID uint32, zero interface{}) {
	t := reflect.TypeOf(zero)
	serviceTypeIDs[t] = typeID
	serviceFactories[typeID] = func() interface{} {
		return reflect.New(t.Elem()).Interface()
	}
}

func init() {
	registerService(id.OpenSecureChannelRequest_Encoding_DefaultBinary, &OpenSecureChannelRequest{})
	registerService(id.OpenSecureChannelResponse_Encoding_DefaultBinary, &OpenSecureChannelResponse{})
	registerService(id.CloseSecureChannelRequest_Encoding_DefaultBinary, &CloseSecureChannelRequest{})
	registerService(id.CloseSecureChannelResponse_Encoding_DefaultBinary, &CloseSecureChannelResponse{})

	registerService(id.FindServersRequest_Encoding_DefaultBinary, &FindServersRequest{})
	registerService(id.FindServersResponse_Encoding_DefaultBinary, &FindServersResponse{})
	registerService(id.GetEndpointsRequest_Encoding_DefaultBinary, &GetEndpointsRequest{})
	registerService(id.GetEndpointsResponse_Encoding_DefaultBinary, &GetEndpointsResponse{})

	registerService(id.CreateSessionRequest_Encoding_DefaultBinary, &CreateSessionRequest{})
	registerService(id.CreateSessionResponse_Encoding_DefaultBinary, &CreateSessionResponse{})
	registerService(id.ActivateSessionRequest_Encoding_DefaultBinary, &ActivateSessionRequest{})
	registerService(id.ActivateSessionResponse_Encoding_DefaultBinary, &ActivateSessionResponse{})
	registerService(id.CloseSessionRequest_Encoding_DefaultBinary, &CloseSessionRequest{})
	registerService(id.CloseSessionResponse_Encoding_DefaultBinary, &CloseSessionResponse{})

	registerService(id.ReadRequest_Encoding_DefaultBinary, &ReadRequest{})
	registerService(id.ReadResponse_Encoding_DefaultBinary, &ReadResponse{})
	registerService(id.WriteRequest_Encoding_DefaultBinary, &WriteRequest{})
	registerService(id.WriteResponse_Encoding_DefaultBinary, &WriteResponse{})

	registerService(id.BrowseRequest_Encoding_DefaultBinary, &BrowseRequest{})
	registerService(id.BrowseResponse_Encoding_DefaultBinary, &BrowseResponse{})
	registerService(id.BrowseNextRequest_Encoding_DefaultBinary, &BrowseNextRequest{})
	registerService(id.BrowseNextResponse_Encoding_DefaultBinary, &BrowseNextResponse{})

	registerService(id.TranslateBrowsePathsToNodeIdsRequest_Encoding_DefaultBinary, &TranslateBrowsePathsToNodeIdsRequest{})
	registerService(id.TranslateBrowsePathsToNodeIdsResponse_Encoding_DefaultBinary, &TranslateBrowsePathsToNodeIdsResponse{})

	registerService(id.RegisterNodesRequest_Encoding_DefaultBinary, &RegisterNodesRequest{})
	registerService(id.RegisterNodesResponse_Encoding_DefaultBinary, &RegisterNodesResponse{})
	registerService(id.UnregisterNodesRequest_Encoding_DefaultBinary, &UnregisterNodesRequest{})
	registerService(id.UnregisterNodesResponse_Encoding_DefaultBinary, &UnregisterNodesResponse{})

	registerService(id.CreateSubscriptionRequest_Encoding_DefaultBinary, &CreateSubscriptionRequest{})
	registerService(id.CreateSubscriptionResponse_Encoding_DefaultBinary, &CreateSubscriptionResponse{})
	registerService(id.ModifySubscriptionRequest_Encoding_DefaultBinary, &ModifySubscriptionRequest{})
	registerService(id.ModifySubscriptionResponse_Encoding_DefaultBinary, &ModifySubscriptionResponse{})
	registerService(id.SetPublishingModeRequest_Encoding_DefaultBinary, &SetPublishingModeRequest{})
	registerService(id.SetPublishingModeResponse_Encoding_DefaultBinary, &SetPublishingModeResponse{})
	registerService(id.DeleteSubscriptionsRequest_Encoding_DefaultBinary, &DeleteSubscriptionsRequest{})
	registerService(id.DeleteSubscriptionsResponse_Encoding_DefaultBinary, &DeleteSubscriptionsResponse{})
	registerService(id.TransferSubscriptionsRequest_Encoding_DefaultBinary, &TransferSubscriptionsRequest{})
	registerService(id.TransferSubscriptionsResponse_Encoding_DefaultBinary, &TransferSubscriptionsResponse{})

	registerService(id.PublishRequest_Encoding_DefaultBinary, &PublishRequest{})
	registerService(id.PublishResponse_Encoding_DefaultBinary, &PublishResponse{})
	registerService(id.RepublishRequest_Encoding_DefaultBinary, &RepublishRequest{})
	registerService(id.RepublishResponse_Encoding_DefaultBinary, &RepublishResponse{})

	registerService(id.CreateMonitoredItemsRequest_Encoding_DefaultBinary, &CreateMonitoredItemsRequest{})
	registerService(id.CreateMonitoredItemsResponse_Encoding_DefaultBinary, &CreateMonitoredItemsResponse{})
	registerService(id.ModifyMonitoredItemsRequest_Encoding_DefaultBinary, &ModifyMonitoredItemsRequest{})
	registerService(id.ModifyMonitoredItemsResponse_Encoding_DefaultBinary, &ModifyMonitoredItemsResponse{})
	registerService(id.SetMonitoringModeRequest_Encoding_DefaultBinary, &SetMonitoringModeRequest{})
	registerService(id.SetMonitoringModeResponse_Encoding_DefaultBinary, &SetMonitoringModeResponse{})
	registerService(id.SetTriggeringRequest_Encoding_DefaultBinary, &SetTriggeringRequest{})
	registerService(id.SetTriggeringResponse_Encoding_DefaultBinary, &SetTriggeringResponse{})
	registerService(id.DeleteMonitoredItemsRequest_Encoding_DefaultBinary, &DeleteMonitoredItemsRequest{})
	registerService(id.DeleteMonitoredItemsResponse_Encoding_DefaultBinary, &DeleteMonitoredItemsResponse{})

	registerService(id.CallRequest_Encoding_DefaultBinary, &CallRequest{})
	registerService(id.CallResponse_Encoding_DefaultBinary, &CallResponse{})

	registerService(id.HistoryReadRequest_Encoding_DefaultBinary, &HistoryReadRequest{})
	registerService(id.HistoryReadResponse_Encoding_DefaultBinary, &HistoryReadResponse{})

	registerService(id.ServiceFault_Encoding_DefaultBinary, &ServiceFault{})
}

// ServiceTypeID returns the DefaultBinary encoding id for v's concrete type.
func ServiceTypeID(v interface{}) (uint32, bool) {
	typeID, ok := serviceTypeIDs[reflect.TypeOf(v)]
	return typeID, ok
}

// NewService allocates a zero value for the service message identified by
// typeID. Returns (nil, false) for an unknown id -- callers must fail the
// request with BadDecodingError.
func NewService(typeID uint32) (interface{}, bool) {
	f, ok := serviceFactories[typeID]
	if !ok {
		return nil, false
	}
	return f(), true
}

// EncodeService encodes v prefixed with its DefaultBinary type id, the
// wire layout every MSG/OPN/CLO body uses.
func EncodeService(v interface{}) ([]byte, error) {
	typeID, ok := ServiceTypeID(v)
	if !ok {
		return nil, fmt.Errorf("ua: %T is not a registered service message", v)
	}
	e := NewEncoder()
	e.Encode(NewFourByteExpandedNodeID(0, typeID))
	e.Encode(v)
	return e.Bytes(), e.Err()
}

// DecodeService reads a type id prefix from b and decodes the remaining
// bytes into the matching service message. Unknown ids fail with
// BadDecodingError.
func DecodeService(b []byte) (interface{}, error) {
	d := NewDecoder(b, DefaultDecodeLimits)
	tid := &ExpandedNodeID{}
	d.Decode(tid)
	if d.Err() != nil {
		return nil, d.Err()
	}
	v, ok := NewService(tid.NodeID.IntID())
	if !ok {
		return nil, fmt.Errorf("%w: unknown service type id %d", StatusBadDecodingError, tid.NodeID.IntID())
	}
	d.Decode(v)
	return v, d.Err()
}
