// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// MessageSecurityMode selects signing/encryption for a SecureChannel.
type MessageSecurityMode uint32

const (
	MessageSecurityModeInvalid MessageSecurityMode = 0
	MessageSecurityModeNone    MessageSecurityMode = 1
	MessageSecurityModeSign    MessageSecurityMode = 2
	MessageSecurityModeSignAndEncrypt MessageSecurityMode = 3
)

// SecurityTokenRequestType distinguishes an initial OpenSecureChannel from
// a renewal.
type SecurityTokenRequestType uint32

const (
	SecurityTokenRequestTypeIssue SecurityTokenRequestType = 0
	SecurityTokenRequestTypeRenew SecurityTokenRequestType = 1
)

// TimestampsToReturn controls which DataValue timestamps a Read/
// CreateMonitoredItems call wants populated.
type TimestampsToReturn uint32

const (
	TimestampsToReturnSource TimestampsToReturn = iota
	TimestampsToReturnServer
	TimestampsToReturnBoth
	TimestampsToReturnNeither
)

// MonitoringMode is a MonitoredItem's reporting state.
type MonitoringMode uint32

const (
	MonitoringModeDisabled MonitoringMode = iota
	MonitoringModeSampling
	MonitoringModeReporting
)

// AttributeID identifies a node attribute read/written by Read/Write.
type AttributeID uint32

const (
	AttributeIDNodeID AttributeID = iota + 1
	AttributeIDNodeClass
	AttributeIDBrowseName
	AttributeIDDisplayName
	AttributeIDDescription
	AttributeIDWriteMask
	AttributeIDUserWriteMask
	AttributeIDIsAbstract
	AttributeIDSymmetric
	AttributeIDInverseName
	AttributeIDContainsNoLoops
	AttributeIDEventNotifier
	AttributeIDValue
	AttributeIDDataType
	AttributeIDValueRank
	AttributeIDArrayDimensions
	AttributeIDAccessLevel
	AttributeIDUserAccessLevel
	AttributeIDMinimumSamplingInterval
	AttributeIDHistorizing
	AttributeIDExecutable
	AttributeIDUserExecutable
)

// NodeClass is the OPC UA node class bitmask (objects, variables, methods,
// ...). Only a Browse filter needs the mask form; nodes carry a single
// class.
type NodeClass uint32

const (
	NodeClassUnspecified NodeClass = 0
	NodeClassObject      NodeClass = 1
	NodeClassVariable    NodeClass = 2
	NodeClassMethod      NodeClass = 4
	NodeClassObjectType  NodeClass = 8
	NodeClassVariableType NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType    NodeClass = 64
	NodeClassView        NodeClass = 128
)

// BrowseDirection selects which references Browse follows.
type BrowseDirection uint32

const (
	BrowseDirectionForward BrowseDirection = iota
	BrowseDirectionInverse
	BrowseDirectionBoth
)

// UserTokenType selects the identity token kind an endpoint accepts.
type UserTokenType uint32

const (
	UserTokenTypeAnonymous UserTokenType = iota
	UserTokenTypeUserName
	UserTokenTypeCertificate
	UserTokenTypeIssuedToken
)

// SubscriptionState is the server-side Subscription lifecycle state.
type SubscriptionState uint8

const (
	SubscriptionStateCreating SubscriptionState = iota
	SubscriptionStateNormal
	SubscriptionStateLate
	SubscriptionStateKeepAlive
	SubscriptionStateClosed
)

func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateCreating:
		return "Creating"
	case SubscriptionStateNormal:
		return "Normal"
	case SubscriptionStateLate:
		return "Late"
	case SubscriptionStateKeepAlive:
		return "KeepAlive"
	case SubscriptionStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// SecurityPolicyURI is the well-known URI identifying an OPC UA
// security policy.
type SecurityPolicyURI = string

const (
	SecurityPolicyURINone                = "http://opcfoundation.org/UA/SecurityPolicy#None"
	SecurityPolicyURIBasic128Rsa15        = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	SecurityPolicyURIBasic256             = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	SecurityPolicyURIBasic256Sha256       = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
	SecurityPolicyURIAes128Sha256RsaOaep  = "http://opcfoundation.org/UA/SecurityPolicy#Aes128_Sha256_RsaOaep"
	SecurityPolicyURIAes256Sha256RsaPss   = "http://opcfoundation.org/UA/SecurityPolicy#Aes256_Sha256_RsaPss"
)

// FormatSecurityPolicyURI returns uri unchanged if it is one of the known
// full policy URIs, or prefixes the standard base otherwise -- so callers
// can pass either "Basic256Sha256" or the full URI.
func FormatSecurityPolicyURI(uri string) string {
	if uri == "" {
		return ""
	}
	const prefix = "http://opcfoundation.org/UA/SecurityPolicy#"
	for _, known := range []string{
		SecurityPolicyURINone, SecurityPolicyURIBasic128Rsa15, SecurityPolicyURIBasic256,
		SecurityPolicyURIBasic256Sha256, SecurityPolicyURIAes128Sha256RsaOaep, SecurityPolicyURIAes256Sha256RsaPss,
	} {
		if uri == known {
			return uri
		}
	}
	return prefix + uri
}
