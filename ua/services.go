// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"time"

	"github.com/gopcua/opcua/id"
)

// This file defines the tagged union of request/response service messages:
// the minimum set a conforming implementation needs to support. Real OPC UA
// stacks generate ~80 such pairs from the XML type dictionary; this module
// hand-writes the subset the protocol core exercises and dispatches them
// by DefaultBinary encoding id the same way a generated stack would.

// ApplicationDescription describes a server or client application.
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     *LocalizedText
	ApplicationType     uint32
	GatewayServerURI    string
	DiscoveryProfileURI string
	DiscoveryURIs       []string
}

// UserTokenPolicy describes one way an endpoint will accept a user identity.
type UserTokenPolicy struct {
	PolicyID          string
	TokenType         UserTokenType
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

// EndpointDescription is one entry of a GetEndpoints response.
type EndpointDescription struct {
	EndpointURL         string
	Server              *ApplicationDescription
	ServerCertificate   []byte
	SecurityMode        MessageSecurityMode
	SecurityPolicyURI   string
	UserIdentityTokens  []*UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       byte
}

// --- Identity tokens -----------------------------------

type AnonymousIdentityToken struct {
	PolicyID string
}

type UserNameIdentityToken struct {
	PolicyID            string
	UserName             string
	Password             []byte
	EncryptionAlgorithm   string
}

type X509IdentityToken struct {
	PolicyID        string
	CertificateData []byte
}

type IssuedIdentityToken struct {
	PolicyID            string
	TokenData            []byte
	EncryptionAlgorithm   string
}

func init() {
	RegisterExtensionObjectType(0, 321, func() interface{} { return &AnonymousIdentityToken{} })
	RegisterExtensionObjectType(0, 324, func() interface{} { return &UserNameIdentityToken{} })
	RegisterExtensionObjectType(0, 327, func() interface{} { return &X509IdentityToken{} })
	RegisterExtensionObjectType(0, 938, func() interface{} { return &IssuedIdentityToken{} })
}

// --- OpenSecureChannel / CloseSecureChannel ---------------------------

type OpenSecureChannelRequest struct {
	RequestHeader           *RequestHeader
	ClientProtocolVersion   uint32
	RequestType             SecurityTokenRequestType
	SecurityMode            MessageSecurityMode
	ClientNonce             []byte
	RequestedLifetime       uint32
}

type ChannelSecurityToken struct {
	ChannelID       uint32
	TokenID         uint32
	CreatedAt       int64
	RevisedLifetime uint32
}

type OpenSecureChannelResponse struct {
	ResponseHeader        *ResponseHeader
	ServerProtocolVersion uint32
	SecurityToken         *ChannelSecurityToken
	ServerNonce           []byte
}

type CloseSecureChannelRequest struct {
	RequestHeader *RequestHeader
}

type CloseSecureChannelResponse struct {
	ResponseHeader *ResponseHeader
}

// --- FindServers / GetEndpoints ----------------------------------------

type FindServersRequest struct {
	RequestHeader *RequestHeader
	EndpointURL   string
	LocaleIDs     []string
	ServerURIs    []string
}

type FindServersResponse struct {
	ResponseHeader *ResponseHeader
	Servers        []*ApplicationDescription
}

type GetEndpointsRequest struct {
	RequestHeader *RequestHeader
	EndpointURL   string
	LocaleIDs     []string
	ProfileURIs   []string
}

type GetEndpointsResponse struct {
	ResponseHeader *ResponseHeader
	Endpoints      []*EndpointDescription
}

// --- Session layer ---------------------------------------

type CreateSessionRequest struct {
	RequestHeader           *RequestHeader
	ClientDescription       *ApplicationDescription
	ServerURI               string
	EndpointURL             string
	SessionName             string
	ClientNonce             []byte
	ClientCertificate       []byte
	RequestedSessionTimeout float64
	MaxResponseMessageSize  uint32
}

type CreateSessionResponse struct {
	ResponseHeader          *ResponseHeader
	SessionID               *NodeID
	AuthenticationToken      *NodeID
	RevisedSessionTimeout    float64
	ServerNonce              []byte
	ServerCertificate        []byte
	ServerEndpoints          []*EndpointDescription
	ServerSoftwareCertificates []*ExtensionObject
	ServerSignature          *SignatureData
	MaxRequestMessageSize    uint32
}

type ActivateSessionRequest struct {
	RequestHeader              *RequestHeader
	ClientSignature            *SignatureData
	ClientSoftwareCertificates []*ExtensionObject
	LocaleIDs                  []string
	UserIdentityToken          *ExtensionObject
	UserTokenSignature         *SignatureData
}

type ActivateSessionResponse struct {
	ResponseHeader  *ResponseHeader
	ServerNonce     []byte
	Results         []StatusCode
	DiagnosticInfos []*DiagnosticInfo
}

type CloseSessionRequest struct {
	RequestHeader       *RequestHeader
	DeleteSubscriptions bool
}

type CloseSessionResponse struct {
	ResponseHeader *ResponseHeader
}

// --- Read / Write ---------------------------------------------------------

type ReadValueID struct {
	NodeID       *NodeID
	AttributeID  AttributeID
	IndexRange   string
	DataEncoding *QualifiedName
}

type ReadRequest struct {
	RequestHeader      *RequestHeader
	MaxAge             float64
	TimestampsToReturn TimestampsToReturn
	NodesToRead        []*ReadValueID
}

type ReadResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*DataValue
	DiagnosticInfos []*DiagnosticInfo
}

type WriteValue struct {
	NodeID      *NodeID
	AttributeID AttributeID
	IndexRange  string
	Value       *DataValue
}

type WriteRequest struct {
	RequestHeader *RequestHeader
	NodesToWrite  []*WriteValue
}

type WriteResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []*DiagnosticInfo
}

// --- Browse / BrowseNext / TranslateBrowsePaths -----------------------

type BrowseDescription struct {
	NodeID          *NodeID
	BrowseDirection BrowseDirection
	ReferenceTypeID *NodeID
	IncludeSubtypes bool
	NodeClassMask   uint32
	ResultMask      uint32
}

type ReferenceDescription struct {
	ReferenceTypeID *NodeID
	IsForward       bool
	NodeID          *ExpandedNodeID
	BrowseName      *QualifiedName
	DisplayName     *LocalizedText
	NodeClass       NodeClass
	TypeDefinition  *ExpandedNodeID
}

type BrowseResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	References        []*ReferenceDescription
}

type BrowseRequest struct {
	RequestHeader             *RequestHeader
	View                      *NodeID
	RequestedMaxReferencesPerNode uint32
	NodesToBrowse             []*BrowseDescription
}

type BrowseResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*BrowseResult
	DiagnosticInfos []*DiagnosticInfo
}

type BrowseNextRequest struct {
	RequestHeader       *RequestHeader
	ReleaseContinuationPoints bool
	ContinuationPoints  [][]byte
}

type BrowseNextResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*BrowseResult
	DiagnosticInfos []*DiagnosticInfo
}

type RelativePathElement struct {
	ReferenceTypeID *NodeID
	IsInverse       bool
	IncludeSubtypes bool
	TargetName      *QualifiedName
}

type RelativePath struct {
	Elements []*RelativePathElement
}

type BrowsePath struct {
	StartingNode *NodeID
	RelativePath *RelativePath
}

type BrowsePathTarget struct {
	TargetID        *ExpandedNodeID
	RemainingPathIndex uint32
}

type BrowsePathResult struct {
	StatusCode StatusCode
	Targets    []*BrowsePathTarget
}

type TranslateBrowsePathsToNodeIdsRequest struct {
	RequestHeader *RequestHeader
	BrowsePaths   []*BrowsePath
}

type TranslateBrowsePathsToNodeIdsResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*BrowsePathResult
	DiagnosticInfos []*DiagnosticInfo
}

// --- RegisterNodes / UnregisterNodes -----------------------------------

type RegisterNodesRequest struct {
	RequestHeader  *RequestHeader
	NodesToRegister []*NodeID
}

type RegisterNodesResponse struct {
	ResponseHeader    *ResponseHeader
	RegisteredNodeIDs []*NodeID
}

type UnregisterNodesRequest struct {
	RequestHeader     *RequestHeader
	NodesToUnregister []*NodeID
}

type UnregisterNodesResponse struct {
	ResponseHeader *ResponseHeader
}

// --- Call -------------------------------------------------------------

type CallMethodRequest struct {
	ObjectID       *NodeID
	MethodID       *NodeID
	InputArguments []*Variant
}

type CallMethodResult struct {
	StatusCode          StatusCode
	InputArgumentResults []StatusCode
	InputArgumentDiagnosticInfos []*DiagnosticInfo
	OutputArguments     []*Variant
}

type CallRequest struct {
	RequestHeader  *RequestHeader
	MethodsToCall  []*CallMethodRequest
}

type CallResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*CallMethodResult
	DiagnosticInfos []*DiagnosticInfo
}

// --- Subscriptions --------------------------------------

type CreateSubscriptionRequest struct {
	RequestHeader                *RequestHeader
	RequestedPublishingInterval float64
	RequestedLifetimeCount       uint32
	RequestedMaxKeepAliveCount   uint32
	MaxNotificationsPerPublish   uint32
	PublishingEnabled            bool
	Priority                     byte
}

type CreateSubscriptionResponse struct {
	ResponseHeader            *ResponseHeader
	SubscriptionID            uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

type ModifySubscriptionRequest struct {
	RequestHeader                *RequestHeader
	SubscriptionID               uint32
	RequestedPublishingInterval float64
	RequestedLifetimeCount       uint32
	RequestedMaxKeepAliveCount   uint32
	MaxNotificationsPerPublish   uint32
	Priority                     byte
}

type ModifySubscriptionResponse struct {
	ResponseHeader            *ResponseHeader
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

type SetPublishingModeRequest struct {
	RequestHeader      *RequestHeader
	PublishingEnabled   bool
	SubscriptionIDs     []uint32
}

type SetPublishingModeResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []*DiagnosticInfo
}

type DeleteSubscriptionsRequest struct {
	RequestHeader  *RequestHeader
	SubscriptionIDs []uint32
}

type DeleteSubscriptionsResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []*DiagnosticInfo
}

type TransferSubscriptionsRequest struct {
	RequestHeader   *RequestHeader
	SubscriptionIDs []uint32
	SendInitialValues bool
}

type TransferResult struct {
	StatusCode        StatusCode
	AvailableSequenceNumbers []uint32
}

type TransferSubscriptionsResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*TransferResult
	DiagnosticInfos []*DiagnosticInfo
}

// --- Publish / Republish -------------------------------------------------

type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

type NotificationMessage struct {
	SequenceNumber   uint32
	PublishTime      time.Time
	NotificationData []*ExtensionObject
}

type PublishRequest struct {
	RequestHeader               *RequestHeader
	SubscriptionAcknowledgements []*SubscriptionAcknowledgement
}

type PublishResponse struct {
	ResponseHeader           *ResponseHeader
	SubscriptionID           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      *NotificationMessage
	Results                  []StatusCode
	DiagnosticInfos          []*DiagnosticInfo
}

type RepublishRequest struct {
	RequestHeader           *RequestHeader
	SubscriptionID          uint32
	RetransmitSequenceNumber uint32
}

type RepublishResponse struct {
	ResponseHeader      *ResponseHeader
	NotificationMessage *NotificationMessage
}

// --- Monitored items -------------------------------------

type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	Filter           *ExtensionObject
	QueueSize        uint32
	DiscardOldest    bool
}

type MonitoredItemCreateRequest struct {
	ItemToMonitor       *ReadValueID
	MonitoringMode      MonitoringMode
	RequestedParameters *MonitoringParameters
}

type MonitoredItemCreateResult struct {
	StatusCode                     StatusCode
	MonitoredItemID                 uint32
	RevisedSamplingInterval          float64
	RevisedQueueSize                 uint32
	FilterResult                     *ExtensionObject
}

type CreateMonitoredItemsRequest struct {
	RequestHeader      *RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToCreate      []*MonitoredItemCreateRequest
}

type CreateMonitoredItemsResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*MonitoredItemCreateResult
	DiagnosticInfos []*DiagnosticInfo
}

type MonitoredItemModifyRequest struct {
	MonitoredItemID     uint32
	RequestedParameters *MonitoringParameters
}

type MonitoredItemModifyResult struct {
	StatusCode               StatusCode
	RevisedSamplingInterval  float64
	RevisedQueueSize         uint32
	FilterResult             *ExtensionObject
}

type ModifyMonitoredItemsRequest struct {
	RequestHeader      *RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToModify      []*MonitoredItemModifyRequest
}

type ModifyMonitoredItemsResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*MonitoredItemModifyResult
	DiagnosticInfos []*DiagnosticInfo
}

type SetMonitoringModeRequest struct {
	RequestHeader    *RequestHeader
	SubscriptionID   uint32
	MonitoringMode   MonitoringMode
	MonitoredItemIDs []uint32
}

type SetMonitoringModeResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []*DiagnosticInfo
}

type SetTriggeringRequest struct {
	RequestHeader         *RequestHeader
	SubscriptionID        uint32
	TriggeringItemID      uint32
	LinksToAdd            []uint32
	LinksToRemove         []uint32
}

type SetTriggeringResponse struct {
	ResponseHeader  *ResponseHeader
	AddResults      []StatusCode
	AddDiagnosticInfos []*DiagnosticInfo
	RemoveResults   []StatusCode
	RemoveDiagnosticInfos []*DiagnosticInfo
}

type DeleteMonitoredItemsRequest struct {
	RequestHeader    *RequestHeader
	SubscriptionID   uint32
	MonitoredItemIDs []uint32
}

type DeleteMonitoredItemsResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []*DiagnosticInfo
}

// --- HistoryRead (minimum viable) ----------------------------------------

type HistoryReadValueID struct {
	NodeID            *NodeID
	IndexRange        string
	DataEncoding      *QualifiedName
	ContinuationPoint []byte
}

type ReadRawModifiedDetails struct {
	IsReadModified   bool
	StartTime        time.Time
	EndTime          time.Time
	NumValuesPerNode uint32
	ReturnBounds     bool
}

type HistoryReadResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	HistoryData       *ExtensionObject
}

type HistoryReadRequest struct {
	RequestHeader             *RequestHeader
	HistoryReadDetails        *ExtensionObject
	TimestampsToReturn        TimestampsToReturn
	ReleaseContinuationPoints bool
	NodesToRead               []*HistoryReadValueID
}

type HistoryReadResponse struct {
	ResponseHeader  *ResponseHeader
	Results         []*HistoryReadResult
	DiagnosticInfos []*DiagnosticInfo
}

// --- ServiceFault --------------------------------------------------------

// ServiceFault is returned instead of the expected response type when a
// request fails before a typed response can be produced.
type ServiceFault struct {
	ResponseHeader *ResponseHeader
}

func init() {
	RegisterExtensionObjectType(0, id.ReadRawModifiedDetails_Encoding_DefaultBinary, func() interface{} { return &ReadRawModifiedDetails{} })
}
