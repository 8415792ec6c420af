package transport

// tlsLevel mirrors crypto/tls.QUICEncryptionLevel without importing the
// stdlib QUIC/TLS glue directly into this file's signatures, so the
// trait below can be satisfied by either the standard library's
// tls.QUICConn (Go 1.21+) or a test double.
type tlsLevel int

const (
	tlsLevelInitial tlsLevel = iota
	tlsLevelHandshake
	tlsLevelApplication
)

func (l tlsLevel) packetSpace() packetSpace {
	switch l {
	case tlsLevelInitial:
		return packetSpaceInitial
	case tlsLevelHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

// tlsEvent is emitted by a handshake implementation as it processes
// CRYPTO data, mirroring crypto/tls's QUICEvent union closely enough
// that the standard-library-backed implementation below is a thin
// adapter rather than a reimplementation.
type tlsEvent struct {
	kind tlsEventKind

	level       tlsLevel
	data        []byte
	readSecret  []byte
	writeSecret []byte
	suite       suiteID
	params      []byte
	alert       uint8
}

type tlsEventKind int

const (
	tlsEventNone tlsEventKind = iota
	tlsEventWriteData
	tlsEventReadSecretChanged
	tlsEventWriteSecretChanged
	tlsEventTransportParams
	tlsEventHandshakeComplete
	tlsEventAlert
)

// tlsHandshake is the pluggable handshake trait the space manager drives:
// feed it CRYPTO bytes per level, pull out the events it produces. This
// indirection is what lets tests substitute a fixed-transcript fake
// without dragging in a real TLS stack (spec.md section 4.2,
// "pluggable TLS trait").
type tlsHandshake interface {
	// setTransportParams makes the local transport parameters available
	// for inclusion in the handshake before it starts.
	setTransportParams(params []byte)
	// handleData feeds received CRYPTO data at the given level into the
	// handshake state machine.
	handleData(level tlsLevel, data []byte) error
	// nextEvent drains one pending event, or returns tlsEventNone if
	// nothing is ready.
	nextEvent() tlsEvent
	// isComplete reports whether the handshake has finished.
	isComplete() bool
	// peerTransportParams returns the peer's decoded transport
	// parameters once received, or nil.
	peerTransportParams() []byte
}

// suiteFromCipherSuite maps a TLS 1.3 cipher suite id to the packet
// protection suite it implies (RFC 9001 section 5.2 only permits
// AEAD-based TLS 1.3 suites here).
func suiteFromCipherSuite(id uint16) suiteID {
	const tlsChaCha20Poly1305SHA256 = 0x1303
	if id == tlsChaCha20Poly1305SHA256 {
		return suiteChaCha20Poly1305
	}
	return suiteAES128GCM
}
