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

func TestNoneSymmetricCryptoPassesThrough(t *testing.T) {
	c := noneSymmetricCrypto{}
	assert.Equal(t, 0, c.SignatureSize())
	assert.Equal(t, 0, c.BlockSize())

	sig, err := c.Sign([]byte("data"))
	require.NoError(t, err)
	assert.Empty(t, sig)
	assert.NoError(t, c.Verify([]byte("data"), nil))
	assert.Error(t, c.Verify([]byte("data"), []byte{1}))

	pt, err := c.Encrypt([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), pt)
}

func TestAESCBCHMACSignAndEncryptRoundTrip(t *testing.T) {
	policy, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)

	crypto, _ := deriveTokenCrypto(policy, []byte("client-nonce"), []byte("server-nonce"))

	plain := padToBlock([]byte("sequence-header||service-body"), crypto.BlockSize())
	sig, err := crypto.Sign(plain)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureSize())

	ciphertext, err := crypto.Encrypt(append(plain, sig...))
	require.NoError(t, err)
	assert.NotEqual(t, append(plain, sig...), ciphertext)

	decrypted, err := crypto.Decrypt(ciphertext)
	require.NoError(t, err)
	unsigned, gotSig := decrypted[:len(decrypted)-crypto.SignatureSize()], decrypted[len(decrypted)-crypto.SignatureSize():]
	assert.NoError(t, crypto.Verify(unsigned, gotSig))

	unpadded, err := unpadFromBlock(unsigned, crypto.BlockSize())
	require.NoError(t, err)
	assert.Equal(t, []byte("sequence-header||service-body"), unpadded)
}

func TestAESCBCHMACVerifyFailsOnTamperedCiphertext(t *testing.T) {
	policy, err := Policy(ua.SecurityPolicyURIBasic256)
	require.NoError(t, err)

	crypto, _ := deriveTokenCrypto(policy, []byte("secret"), []byte("seed"))

	var k symmetricKeyring
	k.set(1, crypto, crypto)
	ciphertext, err := k.seal([]byte("chunk body"))
	require.NoError(t, err)
	require.Zero(t, len(ciphertext)%crypto.BlockSize())
	ciphertext[0] ^= 0xFF

	decrypted, err := crypto.Decrypt(ciphertext)
	require.NoError(t, err)
	unsigned, gotSig := decrypted[:len(decrypted)-crypto.SignatureSize()], decrypted[len(decrypted)-crypto.SignatureSize():]
	assert.ErrorIs(t, crypto.Verify(unsigned, gotSig), ua.StatusBadSecurityChecksFailed)
}

func TestDeriveTokenCryptoClientAndServerKeysAreCrossCompatible(t *testing.T) {
	policy, err := Policy(ua.SecurityPolicyURIAes128Sha256RsaOaep)
	require.NoError(t, err)

	clientNonce := []byte("client-nonce-bytes")
	serverNonce := []byte("server-nonce-bytes")
	clientKeys, serverKeys := deriveTokenCrypto(policy, clientNonce, serverNonce)

	plain := padToBlock([]byte("msg chunk payload"), clientKeys.BlockSize())
	sig, err := clientKeys.Sign(plain)
	require.NoError(t, err)
	ciphertext, err := clientKeys.Encrypt(append(plain, sig...))
	require.NoError(t, err)

	// The server derived its ClientKeys the same way from the same two
	// nonces, so it can open what the client's ClientKeys sealed.
	serverSideClientKeys, _ := deriveTokenCrypto(policy, clientNonce, serverNonce)
	decrypted, err := serverSideClientKeys.Decrypt(ciphertext)
	require.NoError(t, err)
	unsigned, gotSig := decrypted[:len(decrypted)-serverSideClientKeys.SignatureSize()], decrypted[len(decrypted)-serverSideClientKeys.SignatureSize():]
	assert.NoError(t, serverSideClientKeys.Verify(unsigned, gotSig))

	assert.NotEqual(t, clientKeys, serverKeys)
}

func TestSymmetricKeyringRetainsPreviousTokenAfterRenewal(t *testing.T) {
	policy, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)

	// Using the same derived crypto for both halves of each token isolates
	// this test to the keyring's retention/pruning bookkeeping, independent
	// of the ClientKeys/ServerKeys asymmetry covered separately above.
	oldKeys, _ := deriveTokenCrypto(policy, []byte("n1"), []byte("n2"))
	newKeys, _ := deriveTokenCrypto(policy, []byte("n3"), []byte("n4"))

	var keyring symmetricKeyring
	keyring.set(1, oldKeys, oldKeys)

	sealedUnderOld, err := keyring.seal([]byte("payload under token 1"))
	require.NoError(t, err)

	keyring.set(2, newKeys, newKeys)

	// A chunk sealed under the old token, delivered after the rollover,
	// still opens: the keyring kept token 1 alive as "previous".
	opened, err := keyring.unseal(1, sealedUnderOld)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload under token 1"), opened)

	sealedUnderNew, err := keyring.seal([]byte("payload under token 2"))
	require.NoError(t, err)
	opened, err = keyring.unseal(2, sealedUnderNew)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload under token 2"), opened)
}

func TestSymmetricKeyringPrunesTokensOlderThanPrevious(t *testing.T) {
	policy, err := Policy(ua.SecurityPolicyURIBasic256Sha256)
	require.NoError(t, err)

	keys1, _ := deriveTokenCrypto(policy, []byte("n1"), []byte("n2"))
	keys2, _ := deriveTokenCrypto(policy, []byte("n3"), []byte("n4"))
	keys3, _ := deriveTokenCrypto(policy, []byte("n5"), []byte("n6"))

	var keyring symmetricKeyring
	keyring.set(1, keys1, keys1)
	keyring.set(2, keys2, keys2)
	keyring.set(3, keys3, keys3)

	_, err = keyring.unseal(1, []byte{0, 0, 0, 0})
	assert.ErrorIs(t, err, ua.StatusBadSecurityChecksFailed, "token 1 should have been pruned once token 3 became current")
}

func TestPadToBlockAndUnpadRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31, 100} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		padded := padToBlock(data, 16)
		assert.Equal(t, 0, len(padded)%16)

		unpadded, err := unpadFromBlock(padded, 16)
		require.NoError(t, err)
		assert.Equal(t, data, unpadded)
	}
}

func TestPadToBlockIsNoOpForNonePolicy(t *testing.T) {
	data := []byte("unsealed chunk body")
	assert.Equal(t, data, padToBlock(data, 0))
	unpadded, err := unpadFromBlock(data, 0)
	require.NoError(t, err)
	assert.Equal(t, data, unpadded)
}

