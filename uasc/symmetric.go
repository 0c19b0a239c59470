// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"fmt"
	"hash"
	"sync"

	"github.com/gopcua/opcua/ua"
)

// SymmetricCrypto signs/verifies and encrypts/decrypts a single MSG chunk's
// body under one secure channel token, the reverse of AsymmetricCrypto: no
// certificates, just the keys derived from the client/server nonce pair.
type SymmetricCrypto interface {
	Sign(data []byte) ([]byte, error)
	Verify(data, sig []byte) error
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	SignatureSize() int
	BlockSize() int
}

// noneSymmetricCrypto is the SecurityPolicy#None chunk pipeline: no
// signature, no encryption, body passed through unchanged.
type noneSymmetricCrypto struct{}

func (noneSymmetricCrypto) SignatureSize() int          { return 0 }
func (noneSymmetricCrypto) BlockSize() int              { return 0 }
func (noneSymmetricCrypto) Sign([]byte) ([]byte, error) { return nil, nil }
func (noneSymmetricCrypto) Verify(_, sig []byte) error {
	if len(sig) != 0 {
		return fmt.Errorf("%w: signature present under SecurityPolicy#None", ua.StatusBadSecurityChecksFailed)
	}
	return nil
}
func (noneSymmetricCrypto) Encrypt(p []byte) ([]byte, error) { return p, nil }
func (noneSymmetricCrypto) Decrypt(c []byte) ([]byte, error) { return c, nil }

// aesCBCHMAC is the symmetric pipeline every non-None policy uses: AES-CBC
// encryption under a static per-token IV (the derived InitializationVector
// is reused for every chunk sealed under that token, rather than randomized
// per message), HMAC for signing.
type aesCBCHMAC struct {
	hash          func() hash.Hash
	signingKey    []byte
	encryptionKey []byte
	iv            []byte
}

func (c *aesCBCHMAC) SignatureSize() int { return c.hash().Size() }
func (c *aesCBCHMAC) BlockSize() int     { return aes.BlockSize }

func (c *aesCBCHMAC) Sign(data []byte) ([]byte, error) {
	h := hmac.New(c.hash, c.signingKey)
	h.Write(data)
	return h.Sum(nil), nil
}

func (c *aesCBCHMAC) Verify(data, sig []byte) error {
	want, _ := c.Sign(data)
	if !hmac.Equal(want, sig) {
		return fmt.Errorf("%w: symmetric signature mismatch", ua.StatusBadSecurityChecksFailed)
	}
	return nil
}

func (c *aesCBCHMAC) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ua.StatusBadSecurityChecksFailed, err)
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: chunk not block-aligned after padding", ua.StatusBadSecurityChecksFailed)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, plaintext)
	return out, nil
}

func (c *aesCBCHMAC) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ua.StatusBadSecurityChecksFailed, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block-aligned", ua.StatusBadSecurityChecksFailed)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// deriveTokenCrypto splits the PRF key material a policy's KeySizes reports
// into the ClientKeys/ServerKeys pair Part 4 6.7.5 describes: ClientKeys
// (what the client signs/encrypts outgoing chunks with) are derived with
// the server's nonce as secret and the client's as seed, and ServerKeys
// the other way around, so both ends compute the same four values from the
// two nonces exchanged during Open/Renew.
func deriveTokenCrypto(policy SecurityPolicy, clientNonce, serverNonce []byte) (clientKeys, serverKeys SymmetricCrypto) {
	signLen, encLen, blockLen := policy.KeySizes()
	total := signLen + encLen + blockLen
	split := func(material []byte) SymmetricCrypto {
		return policy.Symmetric(material[:signLen], material[signLen:signLen+encLen], material[signLen+encLen:])
	}
	cMat := policy.deriveKeyMaterial(serverNonce, clientNonce, total)
	sMat := policy.deriveKeyMaterial(clientNonce, serverNonce, total)
	return split(cMat), split(sMat)
}

// tokenCrypto is the symmetric pipeline pair active for one security token:
// send is used to seal this endpoint's own chunks, recv to open the peer's.
type tokenCrypto struct {
	send SymmetricCrypto
	recv SymmetricCrypto
}

// symmetricKeyring tracks the current and immediately-previous security
// token's crypto for one secure channel endpoint. Keeping the previous
// token alive after a renewal lets a chunk the peer signed before it saw
// the new token (already in flight) still be accepted, per the
// "previous_token" half of the Open(t_n-1) -> Renewing -> Open(t_n) cycle.
type symmetricKeyring struct {
	mu      sync.Mutex
	tokens  map[uint32]*tokenCrypto
	current uint32
}

func (k *symmetricKeyring) set(tokenID uint32, send, recv SymmetricCrypto) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.tokens == nil {
		k.tokens = make(map[uint32]*tokenCrypto, 2)
	}
	k.tokens[tokenID] = &tokenCrypto{send: send, recv: recv}
	previous := k.current
	for id := range k.tokens {
		if id != tokenID && id != previous {
			delete(k.tokens, id)
		}
	}
	k.current = tokenID
}

// seal pads, signs, and encrypts plain (sequence header || service body)
// for the current token, the send half of the per-chunk pipeline. The
// padding is sized so that body, padding and signature together fill whole
// cipher blocks.
func (k *symmetricKeyring) seal(plain []byte) ([]byte, error) {
	k.mu.Lock()
	tok := k.tokens[k.current]
	k.mu.Unlock()
	if tok == nil {
		return plain, nil
	}
	bs, ss := tok.send.BlockSize(), tok.send.SignatureSize()
	padded := plain
	if bs > 1 {
		padLen := bs - (len(plain)+1+ss)%bs
		padded = make([]byte, len(plain)+padLen+1)
		copy(padded, plain)
		for i := len(plain); i < len(padded); i++ {
			padded[i] = byte(padLen)
		}
	}
	sig, err := tok.send.Sign(padded)
	if err != nil {
		return nil, err
	}
	return tok.send.Encrypt(append(padded, sig...))
}

// unseal decrypts, verifies, and unpads a chunk sealed under tokenID, the
// receive half: decrypt, then verify the signature, then hand back the
// plaintext (sequence header || service body) for sequence-header parsing.
func (k *symmetricKeyring) unseal(tokenID uint32, sealed []byte) ([]byte, error) {
	k.mu.Lock()
	tok := k.tokens[tokenID]
	k.mu.Unlock()
	if tok == nil {
		return nil, fmt.Errorf("%w: chunk signed under unknown security token %d", ua.StatusBadSecurityChecksFailed, tokenID)
	}
	decrypted, err := tok.recv.Decrypt(sealed)
	if err != nil {
		return nil, err
	}
	sigSize := tok.recv.SignatureSize()
	if len(decrypted) < sigSize {
		return nil, fmt.Errorf("%w: sealed chunk shorter than its signature", ua.StatusBadSecurityChecksFailed)
	}
	padded, sig := decrypted[:len(decrypted)-sigSize], decrypted[len(decrypted)-sigSize:]
	if err := tok.recv.Verify(padded, sig); err != nil {
		return nil, err
	}
	return unpadFromBlock(padded, tok.recv.BlockSize())
}

// padToBlock appends OPC UA-style padding: paddingSize bytes each holding
// paddingSize, followed by the paddingSize byte itself, so the result is a
// whole number of blockSize blocks. A no-op under SecurityPolicy#None
// (blockSize 0).
func padToBlock(data []byte, blockSize int) []byte {
	if blockSize <= 1 {
		return data
	}
	padLen := blockSize - (len(data)+1)%blockSize
	out := make([]byte, len(data)+padLen+1)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func unpadFromBlock(data []byte, blockSize int) ([]byte, error) {
	if blockSize <= 1 {
		return data, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty padded chunk", ua.StatusBadSecurityChecksFailed)
	}
	padLen := int(data[len(data)-1])
	if padLen+1 > len(data) {
		return nil, fmt.Errorf("%w: invalid chunk padding", ua.StatusBadSecurityChecksFailed)
	}
	return data[:len(data)-padLen-1], nil
}
