package quic

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/opencontainers/go-digest"
)

// statelessResetTokenSize is fixed by RFC 9000 section 10.3.
const statelessResetTokenSize = 16

// statelessResetMinLen is the minimum length RFC 9000 section 10.3
// requires for a packet to be usable as a stateless reset: enough random
// bytes to look like a short header packet plus the trailing token.
const statelessResetMinLen = 5 + statelessResetTokenSize

// resetSigner derives the same stateless-reset tokens transport.Conn
// computes for the connection ids it issues, so an Endpoint can
// recognize and synthesize resets for connections whose state it has
// already discarded. It is a second, independent implementation of
// transport/cid.go's cidRegistry.statelessResetToken sharing the same
// HMAC-SHA256 + digest construction and the same static key, since that
// method isn't exported across the package boundary.
type resetSigner struct {
	key []byte
}

func newResetSigner(key []byte) resetSigner {
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return resetSigner{key: key}
}

func (r resetSigner) token(cid []byte) [statelessResetTokenSize]byte {
	mac := hmac.New(sha256.New, r.key)
	mac.Write(cid)
	sum := mac.Sum(nil)
	d := digest.FromBytes(sum)
	full := d.Encoded()
	var token [statelessResetTokenSize]byte
	for i := 0; i < statelessResetTokenSize*2 && i+1 < len(full); i += 2 {
		token[i/2] = hexNibble(full[i])<<4 | hexNibble(full[i+1])
	}
	return token
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

// matches reports whether the trailing statelessResetTokenSize bytes of
// an unrecognized datagram equal the token this signer would have issued
// for cid.
func (r resetSigner) matches(b []byte, cid []byte) bool {
	if len(b) < statelessResetMinLen {
		return false
	}
	want := r.token(cid)
	got := b[len(b)-statelessResetTokenSize:]
	return subtle.ConstantTimeCompare(want[:], got) == 1
}

// build synthesizes a stateless reset datagram for cid, RFC 9000
// section 10.3: unpredictable leading bytes shaped to resemble a short
// header packet, followed by the deterministic token. replyTo is the
// length of the datagram being responded to: the reset is replyTo-1
// bytes, capped at 64 and raised to statelessResetMinLen, so it is no
// longer than that datagram unless the datagram itself was shorter
// than statelessResetMinLen.
func (r resetSigner) build(cid []byte, replyTo int) []byte {
	n := replyTo - 1
	if n > 64 {
		n = 64
	}
	if n < statelessResetMinLen {
		n = statelessResetMinLen
	}
	b := make([]byte, n)
	_, _ = rand.Read(b)
	b[0] = (b[0] &^ 0x80) | 0x40
	copy(b[len(b)-statelessResetTokenSize:], r.token(cid)[:])
	return b
}
