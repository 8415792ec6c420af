package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// initialSaltV1 is the version-specific salt used to derive Initial secrets,
// RFC 9001 section 5.2. It is the one piece of truly global state in this
// package (spec.md section 9, "Global mutable state").
var initialSaltV1 = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3,
	0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad,
	0xcc, 0xbb, 0x7f, 0x0a,
}

// protectionKeys bundles the AEAD and header-protection state for one
// direction (client->server or server->client) of one encryption level.
type protectionKeys struct {
	aead cipher.AEAD
	iv   []byte
	hp   headerProtector

	secret []byte // retained for key update derivation (1-RTT only)
	suite  suiteID

	packetsProtected   uint64
	packetsUnprotected uint64
	confidentialLimit  uint64
	integrityLimit     uint64
}

type suiteID int

const (
	suiteAES128GCM suiteID = iota
	suiteChaCha20Poly1305
)

// nonce computes the AEAD nonce for packet number pn: the IV XORed with
// the big-endian packet number in its low bits (RFC 9001 section 5.3).
func (k *protectionKeys) nonce(pn uint64) []byte {
	n := make([]byte, len(k.iv))
	copy(n, k.iv)
	var pnb [8]byte
	binary.BigEndian.PutUint64(pnb[:], pn)
	off := len(n) - 8
	for i := 0; i < 8; i++ {
		n[off+i] ^= pnb[i]
	}
	return n
}

// seal encrypts plaintext into dst[:0] (header as associated data) and
// returns the ciphertext including the AEAD tag.
func (k *protectionKeys) seal(dst, header, plaintext []byte, pn uint64) []byte {
	k.packetsProtected++
	return k.aead.Seal(dst[:0], k.nonce(pn), plaintext, header)
}

// open authenticates and decrypts ciphertext (header as associated data).
func (k *protectionKeys) open(dst, header, ciphertext []byte, pn uint64) ([]byte, error) {
	k.packetsUnprotected++
	p, err := k.aead.Open(dst[:0], k.nonce(pn), ciphertext, header)
	if err != nil {
		return nil, newError(InternalError, "aead open failed")
	}
	return p, nil
}

// limitsExceeded reports whether the confidentiality or integrity limit
// for this suite has been reached (RFC 9001 section 6.6); the caller must
// close the connection with AEADLimitReached.
func (k *protectionKeys) limitsExceeded() bool {
	return k.packetsProtected > k.confidentialLimit || k.packetsUnprotected > k.integrityLimit
}

// headerProtector derives the 5-byte protection mask from a ciphertext
// sample (RFC 9001 section 5.4).
type headerProtector interface {
	mask(sample []byte) []byte
}

type aesHeaderProtector struct {
	block cipher.Block
}

func (p *aesHeaderProtector) mask(sample []byte) []byte {
	out := make([]byte, 16)
	p.block.Encrypt(out, sample)
	return out[:5]
}

type chachaHeaderProtector struct {
	key [32]byte
}

func (p *chachaHeaderProtector) mask(sample []byte) []byte {
	// RFC 9001 section 5.4.4: sample[0:4] little-endian counter, sample[4:16] nonce.
	counter := binary.LittleEndian.Uint32(sample[0:4])
	nonce := sample[4:16]
	c, err := chacha20.NewUnauthenticatedCipher(p.key[:], nonce)
	if err != nil {
		return make([]byte, 5)
	}
	c.SetCounter(counter)
	out := make([]byte, 5)
	c.XORKeyStream(out, out)
	return out
}

// unprotectHeader applies the header-protection mask to the first byte and
// packet-number bytes of a packet, sampling 16 bytes of ciphertext starting
// 4 bytes after the packet-number offset (RFC 9001 section 5.4.2). It
// returns the packet-number length chosen by the mask.
func unprotectHeader(hp headerProtector, b []byte, pnOffset int) (pnLen int, err error) {
	sampleOffset := pnOffset + 4
	if sampleOffset+16 > len(b) {
		return 0, newError(FrameEncodingError, "short sample")
	}
	mask := hp.mask(b[sampleOffset : sampleOffset+16])
	if b[0]&longHeaderForm != 0 {
		b[0] ^= mask[0] & 0x0f
	} else {
		b[0] ^= mask[0] & 0x1f
	}
	pnLen = int(b[0]&pnLengthMask) + 1
	if pnOffset+pnLen > len(b) {
		return 0, newError(FrameEncodingError, "short packet number")
	}
	for i := 0; i < pnLen; i++ {
		b[pnOffset+i] ^= mask[1+i]
	}
	return pnLen, nil
}

// protectHeader is the send-side mirror of unprotectHeader, applied after
// the payload has already been sealed (the sample is taken from the
// already-encrypted ciphertext, RFC 9001 section 5.4.1).
func protectHeader(hp headerProtector, b []byte, pnOffset, pnLen int) error {
	sampleOffset := pnOffset + 4
	if sampleOffset+16 > len(b) {
		return newError(FrameEncodingError, "short sample")
	}
	mask := hp.mask(b[sampleOffset : sampleOffset+16])
	if b[0]&longHeaderForm != 0 {
		b[0] ^= mask[0] & 0x0f
	} else {
		b[0] ^= mask[0] & 0x1f
	}
	for i := 0; i < pnLen; i++ {
		b[pnOffset+i] ^= mask[1+i]
	}
	return nil
}

// hkdfExpandLabel implements HKDF-Expand-Label, RFC 8446 section 7.1, as
// used by RFC 9001 section 5.1 for every QUIC-derived secret.
func hkdfExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	var info []byte
	info = append(info, byte(length>>8), byte(length))
	fullLabel := "tls13 " + label
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, secret, info)
	_, _ = r.Read(out)
	return out
}

func hkdfExtract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// derivePacketKeys builds the AEAD + header-protection pair for one
// direction from a traffic secret, AES-128-GCM variant (the default and
// only mandatory-to-implement suite for Initial packets, RFC 9001
// section 5.2).
func deriveAESPacketKeys(secret []byte) *protectionKeys {
	key := hkdfExpandLabel(secret, "quic key", nil, 16)
	iv := hkdfExpandLabel(secret, "quic iv", nil, 12)
	hpKey := hkdfExpandLabel(secret, "quic hp", nil, 16)
	block, _ := aes.NewCipher(key)
	aeadCipher, _ := cipher.NewGCM(block)
	hpBlock, _ := aes.NewCipher(hpKey)
	return &protectionKeys{
		aead:              aeadCipher,
		iv:                iv,
		hp:                &aesHeaderProtector{block: hpBlock},
		secret:            secret,
		suite:             suiteAES128GCM,
		confidentialLimit: aes128GCMConfidentialityLimit,
		integrityLimit:    aes128GCMIntegrityLimit,
	}
}

// deriveChaChaPacketKeys is the ChaCha20-Poly1305 analogue, used when the
// handshake negotiates TLS_CHACHA20_POLY1305_SHA256 (RFC 9001 section 5.3).
func deriveChaChaPacketKeys(secret []byte) *protectionKeys {
	key := hkdfExpandLabel(secret, "quic key", nil, 32)
	iv := hkdfExpandLabel(secret, "quic iv", nil, 12)
	hpKey := hkdfExpandLabel(secret, "quic hp", nil, 32)
	aeadCipher, _ := chacha20poly1305.New(key)
	var hpk [32]byte
	copy(hpk[:], hpKey)
	return &protectionKeys{
		aead:              aeadCipher,
		iv:                iv,
		hp:                &chachaHeaderProtector{key: hpk},
		secret:            secret,
		suite:             suiteChaCha20Poly1305,
		confidentialLimit: chacha20Poly1305ConfidentialityLimit,
		integrityLimit:    chacha20Poly1305IntegrityLimit,
	}
}

// AEAD usage limits, RFC 9001 section 6.6.
const (
	aes128GCMConfidentialityLimit         = uint64(1) << 23
	aes128GCMIntegrityLimit               = uint64(1) << 52
	chacha20Poly1305ConfidentialityLimit  = ^uint64(0)
	chacha20Poly1305IntegrityLimit        = uint64(1) << 36
)

// initialAEAD derives the Initial-level client/server key pairs from a
// destination connection id, RFC 9001 section 5.2.
type initialAEAD struct {
	client *protectionKeys
	server *protectionKeys
}

func (a *initialAEAD) init(dcid []byte) {
	initialSecret := hkdfExtract(initialSaltV1, dcid)
	clientSecret := hkdfExpandLabel(initialSecret, "client in", nil, 32)
	serverSecret := hkdfExpandLabel(initialSecret, "server in", nil, 32)
	a.client = deriveAESPacketKeys(clientSecret)
	a.server = deriveAESPacketKeys(serverSecret)
}

// updateSecret derives the next-generation secret for a key update
// (RFC 9001 section 6), keeping the same AEAD suite.
func updateSecret(secret []byte, suite suiteID) []byte {
	return hkdfExpandLabel(secret, "quic ku", nil, len(secret))
}

func deriveNextKeys(k *protectionKeys) *protectionKeys {
	next := updateSecret(k.secret, k.suite)
	if k.suite == suiteChaCha20Poly1305 {
		return deriveChaChaPacketKeys(next)
	}
	return deriveAESPacketKeys(next)
}

// retryIntegrityKey/Nonce are the fixed AES-128-GCM key used to compute
// the Retry integrity tag, RFC 9001 section 5.8.
var (
	retryIntegrityKey   = []byte{0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a, 0x1d, 0x76, 0x6b, 0x54, 0xe3, 0x68, 0xc8, 0x4e}
	retryIntegrityNonce = []byte{0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2, 0x23, 0x98, 0x25, 0xbb}
)

const retryIntegrityTagLen = 16

// retryIntegrityTag computes the 16-byte tag over the pseudo-packet: the
// original destination connection id (length-prefixed) followed by the
// retry packet itself excluding the tag (RFC 9001 section 5.8).
func retryIntegrityTag(retryPacket, odcid []byte) []byte {
	pseudo := make([]byte, 0, 1+len(odcid)+len(retryPacket))
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, retryPacket...)
	block, _ := aes.NewCipher(retryIntegrityKey)
	aeadCipher, _ := cipher.NewGCM(block)
	return aeadCipher.Seal(nil, retryIntegrityNonce, nil, pseudo)
}

// verifyRetryIntegrity checks the trailing 16-byte tag of a Retry packet
// buffer b against a constant-time comparison (RFC 9001 section 5.8).
func verifyRetryIntegrity(b, odcid []byte) bool {
	if len(b) < retryIntegrityTagLen {
		return false
	}
	body := b[:len(b)-retryIntegrityTagLen]
	tag := b[len(b)-retryIntegrityTagLen:]
	want := retryIntegrityTag(body, odcid)
	return subtle.ConstantTimeCompare(tag, want) == 1
}

// statelessResetTokenSize is fixed by RFC 9000 section 10.3.
const statelessResetTokenSize = 16
