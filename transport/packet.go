package transport

// packetSpace identifies one of the three independent packet-number
// spaces defined by RFC 9000 section 12.3.
type packetSpace int

const (
	packetSpaceInitial packetSpace = iota
	packetSpaceHandshake
	packetSpaceApplication
	packetSpaceCount
)

func (s packetSpace) String() string {
	switch s {
	case packetSpaceInitial:
		return "initial"
	case packetSpaceHandshake:
		return "handshake"
	case packetSpaceApplication:
		return "application"
	default:
		return "unknown"
	}
}

// packetType is the QUIC packet type carried in the first header byte.
type packetType uint8

const (
	packetTypeInitial packetType = iota
	packetTypeZeroRTT
	packetTypeHandshake
	packetTypeRetry
	packetTypeShort
	packetTypeVersionNegotiation
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "initial"
	case packetTypeZeroRTT:
		return "0rtt"
	case packetTypeHandshake:
		return "handshake"
	case packetTypeRetry:
		return "retry"
	case packetTypeShort:
		return "1rtt"
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	default:
		return "unknown"
	}
}

func packetTypeFromSpace(space packetSpace) packetType {
	switch space {
	case packetSpaceInitial:
		return packetTypeInitial
	case packetSpaceHandshake:
		return packetTypeHandshake
	default:
		return packetTypeShort
	}
}

func spaceFromPacketType(t packetType) packetSpace {
	switch t {
	case packetTypeInitial:
		return packetSpaceInitial
	case packetTypeHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

// Wire-format limits, RFC 9000 section 14 and section 8.1.
const (
	MaxCIDLength         = 20
	MinInitialPacketSize = 1200
	MaxPacketSize        = 65527
	minPayloadLength     = 4 // smallest sample-safe payload for header protection

	longHeaderForm  = 0x80
	fixedBit        = 0x40
	longPacketType  = 0x30 // mask, shifted right 4
	shortKeyPhase   = 0x04
	pnLengthMask    = 0x03
)

// packetHeader is the borrowed-bytes view of a packet's header fields,
// shared by both long and short header forms.
type packetHeader struct {
	version uint32
	dcid    []byte
	scid    []byte
	dcil    uint8 // expected DCID length for short-header packets (ours)
}

// packet models one coalesced packet: protected on decode until unprotect
// is applied, cleartext once decryptPacket succeeds.
type packet struct {
	typ          packetType
	header       packetHeader
	token        []byte // Initial token or Retry token
	packetNumber uint64
	largestAcked uint64 // largest packet number the peer has acked in this space; bounds the wire encoding width
	payloadLen   int // on encode: full payload incl. crypto overhead; on decode: remaining body length
	headerLen    int
	supportedVersions []uint32
}

func (p *packet) String() string {
	return p.typ.String()
}

// decodeHeader parses just enough of the header to dispatch on packet
// type; it does not consume the packet-number or payload, which remain
// protected until the packet-number space is known (spec section 4.4).
func (p *packet) decodeHeader(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "short packet")
	}
	first := b[0]
	r := newReader(b)
	r.skip(1)
	if first&longHeaderForm == 0 {
		// Short header: fixed bit set, DCID of known local length.
		dcid, ok := r.readBytes(int(p.header.dcil))
		if !ok {
			return 0, newError(FrameEncodingError, "short header dcid")
		}
		p.typ = packetTypeShort
		p.header.dcid = dcid
		p.headerLen = len(b) - r.len()
		return p.headerLen, nil
	}
	version, ok := r.readUint32()
	if !ok {
		return 0, newError(FrameEncodingError, "version")
	}
	dcidLen, ok := r.readByte()
	if !ok {
		return 0, newError(FrameEncodingError, "dcid length")
	}
	dcid, ok := r.readBytes(int(dcidLen))
	if !ok {
		return 0, newError(FrameEncodingError, "dcid")
	}
	scidLen, ok := r.readByte()
	if !ok {
		return 0, newError(FrameEncodingError, "scid length")
	}
	scid, ok := r.readBytes(int(scidLen))
	if !ok {
		return 0, newError(FrameEncodingError, "scid")
	}
	p.header.version = version
	p.header.dcid = dcid
	p.header.scid = scid
	if version == 0 {
		p.typ = packetTypeVersionNegotiation
		p.headerLen = len(b) - r.len()
		return p.headerLen, nil
	}
	switch (first & longPacketType) >> 4 {
	case 0:
		p.typ = packetTypeInitial
	case 1:
		p.typ = packetTypeZeroRTT
	case 2:
		p.typ = packetTypeHandshake
	case 3:
		p.typ = packetTypeRetry
	}
	p.headerLen = len(b) - r.len()
	return p.headerLen, nil
}

// decodeBody consumes type-specific fields that sit after the common
// header but still outside any protection: the Initial token, the
// Length field that precedes the (still-protected) packet number on
// every long-header type except Retry, the version-negotiation version
// list, and the Retry token. b is the full packet buffer; on return
// p.headerLen has been advanced to the offset of the packet number
// field and payloadLen holds the decoded Length value (packet number
// plus payload, still including AEAD overhead).
func (p *packet) decodeBody(b []byte) (int, error) {
	start := p.headerLen
	r := newReader(b[start:])
	switch p.typ {
	case packetTypeVersionNegotiation:
		for r.len() >= 4 {
			v, _ := r.readUint32()
			p.supportedVersions = append(p.supportedVersions, v)
		}
	case packetTypeInitial:
		token, ok := r.readVarintBytes()
		if !ok {
			return 0, newError(FrameEncodingError, "initial token")
		}
		p.token = token
		length, ok := r.readVarint()
		if !ok {
			return 0, newError(FrameEncodingError, "initial length")
		}
		p.payloadLen = int(length)
	case packetTypeZeroRTT, packetTypeHandshake:
		length, ok := r.readVarint()
		if !ok {
			return 0, newError(FrameEncodingError, "length")
		}
		p.payloadLen = int(length)
	case packetTypeRetry:
		// Everything up to the trailing 16-byte integrity tag is the token.
		if r.len() < retryIntegrityTagLen {
			return 0, newError(FrameEncodingError, "retry too short")
		}
		p.token = r.remaining()[:r.len()-retryIntegrityTagLen]
		r.skip(r.len())
	}
	consumed := len(b[start:]) - r.len()
	p.headerLen = start + consumed
	return consumed, nil
}

// encodedLen returns the header length encode will write, including the
// packet number bytes and, for long headers, the 2-byte length field.
func (p *packet) encodedLen() int {
	n := 1
	if p.typ != packetTypeShort {
		n += 4 + 1 + len(p.header.dcid) + 1 + len(p.header.scid)
		if p.typ == packetTypeInitial {
			n += varintLen(uint64(len(p.token))) + len(p.token)
		}
		n += 2 // length field, reserved as 2-byte varint
	} else {
		n += len(p.header.dcid)
	}
	n += pnLengthFor(p.packetNumber, p.largestAcked) // packet number bytes, chosen by caller before calling encode
	return n
}

// encode writes the header (long or short) for p into b and returns the
// offset at which the payload (including crypto overhead) begins. The
// packet-number bytes are written but not yet protected; header
// protection is applied by protectHeader after the payload is sealed.
func (p *packet) encode(b []byte) (int, error) {
	w := newWriter(b)
	pnLen := pnLengthFor(p.packetNumber, p.largestAcked)
	if p.typ == packetTypeShort {
		first := byte(fixedBit) | byte(pnLen-1)
		if !w.writeByte(first) || !w.writeBytes(p.header.dcid) {
			return 0, errShortBuffer
		}
	} else {
		first := byte(longHeaderForm | fixedBit | byte(pnLen-1))
		switch p.typ {
		case packetTypeZeroRTT:
			first |= 1 << 4
		case packetTypeHandshake:
			first |= 2 << 4
		}
		ok := w.writeByte(first) && w.writeUint32(p.header.version) &&
			w.writeByte(byte(len(p.header.dcid))) && w.writeBytes(p.header.dcid) &&
			w.writeByte(byte(len(p.header.scid))) && w.writeBytes(p.header.scid)
		if !ok {
			return 0, errShortBuffer
		}
		if p.typ == packetTypeInitial {
			if !w.writeVarintBytes(p.token) {
				return 0, errShortBuffer
			}
		}
		// Length = packet number + payload (incl. crypto overhead), always
		// encoded as a 2-byte varint, the width encodedLen reserves.
		length := uint64(pnLen + p.payloadLen)
		if length > 0x3fff {
			return 0, newError(InternalError, "packet length exceeds 2-byte varint")
		}
		lenOff := w.offset()
		if !w.writeUint16(uint16(length) | 0x4000) {
			return 0, errShortBuffer
		}
		_ = lenOff
	}
	writePacketNumber(&w, p.packetNumber, pnLen)
	return w.offset(), nil
}

// pnLengthFor picks the wire width for pn per RFC 9000 appendix A.2:
// the smallest encoding that stays unambiguous given the largest packet
// number the peer has acknowledged in this space, not pn's raw
// magnitude.
func pnLengthFor(pn, largestAcked uint64) int {
	_, length := encodePacketNumber(pn, largestAcked)
	return length
}

func writePacketNumber(w *writer, pn uint64, length int) {
	var b [4]byte
	switch length {
	case 1:
		b[0] = byte(pn)
	case 2:
		b[0] = byte(pn >> 8)
		b[1] = byte(pn)
	case 3:
		b[0] = byte(pn >> 16)
		b[1] = byte(pn >> 8)
		b[2] = byte(pn)
	case 4:
		b[0] = byte(pn >> 24)
		b[1] = byte(pn >> 16)
		b[2] = byte(pn >> 8)
		b[3] = byte(pn)
	}
	w.writeBytes(b[:length])
}

// versionSupported reports whether v is a version this engine speaks.
func versionSupported(v uint32) bool {
	return v == QUICVersion1
}

// QUICVersion1 is the stable QUIC version, RFC 9000.
const QUICVersion1 = 0x00000001
