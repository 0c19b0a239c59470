// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopcua/opcua/ua"
)

func TestAsymmetricSecurityHeaderRoundTrip(t *testing.T) {
	h := &AsymmetricSecurityHeader{
		SecurityPolicyURI:             "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256",
		SenderCertificate:             []byte{1, 2, 3},
		ReceiverCertificateThumbprint: []byte{4, 5, 6, 7},
	}
	buf, err := ua.Encode(h)
	require.NoError(t, err)

	got := &AsymmetricSecurityHeader{}
	require.NoError(t, ua.Decode(buf, got))
	assert.Equal(t, h.SecurityPolicyURI, got.SecurityPolicyURI)
	assert.Equal(t, h.SenderCertificate, got.SenderCertificate)
	assert.Equal(t, h.ReceiverCertificateThumbprint, got.ReceiverCertificateThumbprint)
}

func TestSymmetricSecurityHeaderRoundTrip(t *testing.T) {
	h := &SymmetricSecurityHeader{ChannelID: 123, TokenID: 456}
	buf, err := ua.Encode(h)
	require.NoError(t, err)

	got := &SymmetricSecurityHeader{}
	require.NoError(t, ua.Decode(buf, got))
	assert.Equal(t, h.ChannelID, got.ChannelID)
	assert.Equal(t, h.TokenID, got.TokenID)
}

func TestSequenceHeaderRoundTrip(t *testing.T) {
	h := &SequenceHeader{SequenceNumber: 99, RequestID: 42}
	buf, err := ua.Encode(h)
	require.NoError(t, err)

	got := &SequenceHeader{}
	require.NoError(t, ua.Decode(buf, got))
	assert.Equal(t, h.SequenceNumber, got.SequenceNumber)
	assert.Equal(t, h.RequestID, got.RequestID)
}
