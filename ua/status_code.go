// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "fmt"

// StatusCode is the 32-bit severity/sub-code/info bitfield used throughout
// the protocol. It implements error so service and channel failures can be
// returned, compared with errors.Is, and wrapped with %w directly.
type StatusCode uint32

// Severity returns the top two bits of the code.
func (s StatusCode) Severity() uint32 { return uint32(s) & 0xC0000000 }

// IsGood reports whether the code has Good severity (top two bits zero).
func (s StatusCode) IsGood() bool { return s.Severity() == 0 }

// IsBad reports whether the code has Bad severity.
func (s StatusCode) IsBad() bool { return s.Severity() == 0x80000000 }

// IsUncertain reports whether the code has Uncertain severity.
func (s StatusCode) IsUncertain() bool { return s.Severity() == 0x40000000 }

func (s StatusCode) Error() string { return s.String() }

func (s StatusCode) String() string {
	if name, ok := statusCodeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(0x%08X)", uint32(s))
}

// Status codes used by this implementation. Values follow the severity
// convention of the OPC UA status code table (00 = Good, 01 = Uncertain,
// 10 = Bad in the top two bits); the full ns=0 status code table is out of
// scope beyond the subset the protocol core itself raises.
const (
	StatusOK StatusCode = 0x00000000

	StatusBadDecodingError            StatusCode = 0x80060000
	StatusBadEncodingLimitsExceeded    StatusCode = 0x80080000
	StatusBadEncodingError             StatusCode = 0x80070000
	StatusBadUnexpectedError           StatusCode = 0x80010000
	StatusBadTcpMessageTooLarge        StatusCode = 0x80740000
	StatusBadTcpMessageTypeInvalid     StatusCode = 0x80730000
	StatusBadTcpNotEnoughResources     StatusCode = 0x80750000
	StatusBadTcpInternalError          StatusCode = 0x80760000
	StatusBadSecureChannelTokenUnknown StatusCode = 0x80570000
	StatusBadSecureChannelIDInvalid    StatusCode = 0x80250000
	StatusBadSecureChannelClosed       StatusCode = 0x80560000
	StatusBadSecurityChecksFailed      StatusCode = 0x80130000
	StatusBadCertificateInvalid        StatusCode = 0x80120000
	StatusBadSecurityPolicyRejected    StatusCode = 0x80550000
	StatusBadSecurityModeInsufficient  StatusCode = 0x80E60000
	StatusBadIdentityTokenInvalid      StatusCode = 0x80210000
	StatusBadIdentityTokenRejected     StatusCode = 0x80220000
	StatusBadUserAccessDenied          StatusCode = 0x801F0000
	StatusBadCertificateUntrusted      StatusCode = 0x80180000
	StatusBadNonceInvalid              StatusCode = 0x80310001
	StatusBadRequestTooLarge           StatusCode = 0x80B80000
	StatusBadResponseTooLarge          StatusCode = 0x80B90000
	StatusBadCommunicationError        StatusCode = 0x80050000
	StatusBadRequestHeaderInvalid      StatusCode = 0x802A0000
	StatusBadTimeout                   StatusCode = 0x800A0000
	StatusBadConnectionClosed          StatusCode = 0x80AE0000
	StatusBadNoSubscription            StatusCode = 0x80310000
	StatusBadSubscriptionIDInvalid     StatusCode = 0x80110000
	StatusBadSessionIDInvalid          StatusCode = 0x80250001
	StatusBadSessionClosed             StatusCode = 0x80260000
	StatusBadSessionNotActivated       StatusCode = 0x80270000
	StatusBadNoContinuationPoints      StatusCode = 0x804C0000
	StatusBadNodeIDUnknown             StatusCode = 0x80340000
	StatusBadNodeIDInvalid             StatusCode = 0x80330000
	StatusBadMessageNotAvailable       StatusCode = 0x803D0000
	StatusBadMonitoredItemIDInvalid    StatusCode = 0x80480000
	StatusBadMonitoringModeInvalid     StatusCode = 0x80470000
	StatusBadServiceUnsupported        StatusCode = 0x800B0000
	StatusBadRequestTimeout            StatusCode = 0x800C0000
	StatusBadNothingToDo               StatusCode = 0x80460000
	StatusBadSequenceNumberUnknown     StatusCode = 0x80470001
	StatusBadFilterNotAllowed          StatusCode = 0x80450000
	StatusBadNoMatch                   StatusCode = 0x80350000
	StatusGoodSubscriptionTransferred  StatusCode = 0x002D0000
	StatusUncertainReferenceOutOfServer StatusCode = 0x406C0000
)

var statusCodeNames = map[StatusCode]string{
	StatusOK:                            "Good",
	StatusBadDecodingError:               "BadDecodingError",
	StatusBadEncodingLimitsExceeded:      "BadEncodingLimitsExceeded",
	StatusBadEncodingError:               "BadEncodingError",
	StatusBadUnexpectedError:             "BadUnexpectedError",
	StatusBadTcpMessageTooLarge:          "BadTcpMessageTooLarge",
	StatusBadTcpMessageTypeInvalid:       "BadTcpMessageTypeInvalid",
	StatusBadTcpNotEnoughResources:       "BadTcpNotEnoughResources",
	StatusBadTcpInternalError:            "BadTcpInternalError",
	StatusBadSecureChannelTokenUnknown:   "BadSecureChannelTokenUnknown",
	StatusBadSecureChannelIDInvalid:      "BadSecureChannelIdInvalid",
	StatusBadSecureChannelClosed:         "BadSecureChannelClosed",
	StatusBadSecurityChecksFailed:        "BadSecurityChecksFailed",
	StatusBadCertificateInvalid:          "BadCertificateInvalid",
	StatusBadSecurityPolicyRejected:      "BadSecurityPolicyRejected",
	StatusBadSecurityModeInsufficient:    "BadSecurityModeInsufficient",
	StatusBadIdentityTokenInvalid:        "BadIdentityTokenInvalid",
	StatusBadIdentityTokenRejected:       "BadIdentityTokenRejected",
	StatusBadUserAccessDenied:            "BadUserAccessDenied",
	StatusBadCertificateUntrusted:        "BadCertificateUntrusted",
	StatusBadNonceInvalid:                "BadNonceInvalid",
	StatusBadRequestTooLarge:             "BadRequestTooLarge",
	StatusBadResponseTooLarge:            "BadResponseTooLarge",
	StatusBadCommunicationError:          "BadCommunicationError",
	StatusBadRequestHeaderInvalid:        "BadRequestHeaderInvalid",
	StatusBadTimeout:                     "BadTimeout",
	StatusBadConnectionClosed:            "BadConnectionClosed",
	StatusBadNoSubscription:              "BadNoSubscription",
	StatusBadSubscriptionIDInvalid:       "BadSubscriptionIdInvalid",
	StatusBadSessionIDInvalid:            "BadSessionIdInvalid",
	StatusBadSessionClosed:               "BadSessionClosed",
	StatusBadSessionNotActivated:         "BadSessionNotActivated",
	StatusBadNoContinuationPoints:        "BadNoContinuationPoints",
	StatusBadNodeIDUnknown:               "BadNodeIdUnknown",
	StatusBadNodeIDInvalid:               "BadNodeIdInvalid",
	StatusBadMessageNotAvailable:         "BadMessageNotAvailable",
	StatusBadMonitoredItemIDInvalid:      "BadMonitoredItemIdInvalid",
	StatusBadMonitoringModeInvalid:       "BadMonitoringModeInvalid",
	StatusBadServiceUnsupported:          "BadServiceUnsupported",
	StatusBadRequestTimeout:              "BadRequestTimeout",
	StatusBadNothingToDo:                 "BadNothingToDo",
	StatusBadSequenceNumberUnknown:       "BadSequenceNumberUnknown",
	StatusBadFilterNotAllowed:            "BadFilterNotAllowed",
	StatusBadNoMatch:                     "BadNoMatch",
	StatusGoodSubscriptionTransferred:    "GoodSubscriptionTransferred",
	StatusUncertainReferenceOutOfServer:  "UncertainReferenceOutOfServer",
}
