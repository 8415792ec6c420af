package transport

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/opencontainers/go-digest"
	"github.com/rs/xid"
)

// cidEntry is one connection id this endpoint has issued to its peer
// for addressing this connection, RFC 9000 section 5.1.
type cidEntry struct {
	seq        uint64
	cid        []byte
	resetToken [statelessResetTokenSize]byte
	retired    bool
}

// cidRegistry is the per-connection bookkeeping for locally-issued
// connection ids: how many are outstanding, which sequence numbers have
// been retired, and the next one to hand out via NEW_CONNECTION_ID.
type cidRegistry struct {
	entries   []cidEntry
	nextSeq   uint64
	retirePriorTo uint64

	peerActiveLimit uint64 // from the peer's active_connection_id_limit transport parameter

	staticResetKey []byte // used to derive stateless reset tokens deterministically
}

func newCIDRegistry(staticResetKey []byte) *cidRegistry {
	return &cidRegistry{staticResetKey: staticResetKey, peerActiveLimit: 2}
}

// issue generates a fresh connection id of the given length (xid's
// 12-byte globally-unique identifiers are used as the id source, padded
// or truncated to the requested length) and its stateless reset token.
func (r *cidRegistry) issue(length int) cidEntry {
	if length <= 0 || length > MaxCIDLength {
		length = 8
	}
	raw := xid.New().Bytes() // 12 bytes, monotonic+random, RFC 9000 section 5.1 only needs uniqueness
	cid := make([]byte, length)
	n := copy(cid, raw)
	for n < length {
		n += copy(cid[n:], xid.New().Bytes())
	}
	seq := r.nextSeq
	r.nextSeq++
	e := cidEntry{seq: seq, cid: cid, resetToken: r.statelessResetToken(cid)}
	r.entries = append(r.entries, e)
	return e
}

// statelessResetToken derives a token deterministically from cid using
// an HMAC-SHA256 keyed by the endpoint's static reset key, RFC 9000
// section 10.3's recommended construction, digested down to 16 bytes
// with go-digest so the derivation's output is a standard content
// digest rather than a bespoke truncation.
func (r *cidRegistry) statelessResetToken(cid []byte) [statelessResetTokenSize]byte {
	mac := hmac.New(sha256.New, r.staticResetKey)
	mac.Write(cid)
	sum := mac.Sum(nil)
	d := digest.FromBytes(sum)
	full := d.Encoded() // hex string of the sha256 digest of sum
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

// retireUpTo marks every entry with seq < upTo as retired, RFC 9000
// section 5.1.2.
func (r *cidRegistry) retireUpTo(upTo uint64) {
	if upTo > r.retirePriorTo {
		r.retirePriorTo = upTo
	}
	for i := range r.entries {
		if r.entries[i].seq < upTo {
			r.entries[i].retired = true
		}
	}
}

// active returns every issued connection id not yet retired.
func (r *cidRegistry) active() []cidEntry {
	var out []cidEntry
	for _, e := range r.entries {
		if !e.retired {
			out = append(out, e)
		}
	}
	return out
}
