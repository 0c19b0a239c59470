// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package id contains the numeric identifiers of standard namespace (ns=0)
// nodes and encoding ids referenced by this implementation. The full
// standard namespace node tree is out of scope; only the ids
// the codec and services need to dispatch on are defined here.
package id

// Well-known node ids in the standard namespace, used by the server's
// built-in ServerStatus variable and namespace/server arrays.
const (
	Server_NamespaceArray       = 2255
	Server_ServerStatus         = 2256
	Server_ServerStatus_State   = 2259
	Server_ServerArray          = 2254
	RootFolder                  = 84
	ObjectsFolder                = 85
	TypesFolder                 = 86
	ViewsFolder                 = 87
	HasTypeDefinition           = 40
	HasSubtype                  = 45
	Organizes                   = 35
	HasComponent                = 47
	HasProperty                 = 46
	BaseObjectType              = 58
	BaseVariableType            = 62
	BaseDataVariableType        = 63
)

// Binary-encoding object ids for the service request/response types this
// implementation supports. These are the "DefaultBinary" encoding ids used
// by ua.Services for type-id dispatch.
//
// The numeric values follow the OPC UA Part 6 Appendix A allocation scheme
// (1..=n per generated type); only the subset this module implements is
// enumerated, not the full standard set.
const (
	OpenSecureChannelRequest_Encoding_DefaultBinary  = 446
	OpenSecureChannelResponse_Encoding_DefaultBinary = 449
	CloseSecureChannelRequest_Encoding_DefaultBinary  = 452
	CloseSecureChannelResponse_Encoding_DefaultBinary = 455

	FindServersRequest_Encoding_DefaultBinary  = 422
	FindServersResponse_Encoding_DefaultBinary = 425
	GetEndpointsRequest_Encoding_DefaultBinary  = 428
	GetEndpointsResponse_Encoding_DefaultBinary = 431

	CreateSessionRequest_Encoding_DefaultBinary  = 461
	CreateSessionResponse_Encoding_DefaultBinary = 464
	ActivateSessionRequest_Encoding_DefaultBinary  = 467
	ActivateSessionResponse_Encoding_DefaultBinary = 470
	CloseSessionRequest_Encoding_DefaultBinary  = 473
	CloseSessionResponse_Encoding_DefaultBinary = 476

	ReadRequest_Encoding_DefaultBinary  = 631
	ReadResponse_Encoding_DefaultBinary = 634
	WriteRequest_Encoding_DefaultBinary  = 673
	WriteResponse_Encoding_DefaultBinary = 676

	BrowseRequest_Encoding_DefaultBinary  = 527
	BrowseResponse_Encoding_DefaultBinary = 530
	BrowseNextRequest_Encoding_DefaultBinary  = 533
	BrowseNextResponse_Encoding_DefaultBinary = 536

	TranslateBrowsePathsToNodeIdsRequest_Encoding_DefaultBinary  = 554
	TranslateBrowsePathsToNodeIdsResponse_Encoding_DefaultBinary = 557

	RegisterNodesRequest_Encoding_DefaultBinary    = 560
	RegisterNodesResponse_Encoding_DefaultBinary   = 563
	UnregisterNodesRequest_Encoding_DefaultBinary  = 566
	UnregisterNodesResponse_Encoding_DefaultBinary = 569

	CreateSubscriptionRequest_Encoding_DefaultBinary  = 787
	CreateSubscriptionResponse_Encoding_DefaultBinary = 790
	ModifySubscriptionRequest_Encoding_DefaultBinary  = 793
	ModifySubscriptionResponse_Encoding_DefaultBinary = 796
	SetPublishingModeRequest_Encoding_DefaultBinary  = 799
	SetPublishingModeResponse_Encoding_DefaultBinary = 802
	DeleteSubscriptionsRequest_Encoding_DefaultBinary  = 845
	DeleteSubscriptionsResponse_Encoding_DefaultBinary = 848
	TransferSubscriptionsRequest_Encoding_DefaultBinary  = 839
	TransferSubscriptionsResponse_Encoding_DefaultBinary = 842

	PublishRequest_Encoding_DefaultBinary  = 826
	PublishResponse_Encoding_DefaultBinary = 829
	RepublishRequest_Encoding_DefaultBinary  = 832
	RepublishResponse_Encoding_DefaultBinary = 835

	CreateMonitoredItemsRequest_Encoding_DefaultBinary  = 751
	CreateMonitoredItemsResponse_Encoding_DefaultBinary = 754
	ModifyMonitoredItemsRequest_Encoding_DefaultBinary  = 757
	ModifyMonitoredItemsResponse_Encoding_DefaultBinary = 760
	SetMonitoringModeRequest_Encoding_DefaultBinary  = 769
	SetMonitoringModeResponse_Encoding_DefaultBinary = 772
	SetTriggeringRequest_Encoding_DefaultBinary  = 775
	SetTriggeringResponse_Encoding_DefaultBinary = 778
	DeleteMonitoredItemsRequest_Encoding_DefaultBinary  = 781
	DeleteMonitoredItemsResponse_Encoding_DefaultBinary = 784

	CallRequest_Encoding_DefaultBinary  = 712
	CallResponse_Encoding_DefaultBinary = 715

	ServiceFault_Encoding_DefaultBinary = 397

	HistoryReadRequest_Encoding_DefaultBinary  = 663
	HistoryReadResponse_Encoding_DefaultBinary = 666

	ReadRawModifiedDetails_Encoding_DefaultBinary = 664

	DataChangeNotification_Encoding_DefaultBinary   = 811
	MonitoredItemNotification_Encoding_DefaultBinary = 808
	EventNotificationList_Encoding_DefaultBinary    = 916
	EventFieldList_Encoding_DefaultBinary           = 918
	StatusChangeNotification_Encoding_DefaultBinary = 820

	DataChangeFilter_Encoding_DefaultBinary = 724
	EventFilter_Encoding_DefaultBinary      = 727
)
