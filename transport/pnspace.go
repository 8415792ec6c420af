package transport

import "time"

// cryptoStream is the CRYPTO-frame analogue of Stream: a plain ordered
// byte pipe with no flow control and no FIN, carrying TLS handshake
// messages for one packet-number space (RFC 9000 section 7).
type cryptoStream struct {
	send sendBuffer
	recv reassembler
}

func (c *cryptoStream) push(data []byte) {
	c.send.push(data, c.send.base+uint64(len(c.send.data)), false, false)
}

// interest reports how urgently this space's CRYPTO stream wants a
// packet built.
func (c *cryptoStream) interest() transmissionInterest {
	return c.send.interest()
}

func (c *cryptoStream) popSend(max int) (data []byte, offset uint64, fin bool) {
	return c.send.popSend(max)
}

func (c *cryptoStream) pushRecv(data []byte, offset uint64, fin bool) error {
	return c.recv.push(data, offset, fin)
}

func (c *cryptoStream) read(dst []byte) (int, bool) {
	return c.recv.read(dst)
}

// packetNumberSpace holds everything that is independent per RFC 9000
// section 12.3 packet-number space: its own packet-number counter,
// duplicate/ACK tracking, CRYPTO stream, and encryption keys.
type packetNumberSpace struct {
	space packetSpace

	nextSend uint64 // next packet number this space will send

	ack *ackManager

	cryptoStream cryptoStream

	opener *protectionKeys // read keys, nil until available
	sealer *protectionKeys // write keys, nil until available

	// keyPhase is only meaningful for the Application space (RFC 9000
	// section 6): the current 1-RTT key-phase bit and the previous
	// generation's keys, retained briefly to decrypt reordered packets.
	keyPhase    bool
	prevOpener  *protectionKeys
	keyUpdatePending bool

	firstPacketSentTime time.Time
	firstPacketAckedAt  time.Time
	lastAckElicitingSent time.Time

	dropped bool
}

func newPacketNumberSpace(space packetSpace, maxAckDelay time.Duration, ackDelayExponent uint8) *packetNumberSpace {
	return &packetNumberSpace{
		space: space,
		ack:   newAckManager(maxAckDelay, ackDelayExponent),
	}
}

// ready reports whether this space has both working keys and something
// useful to do with them (send data queued, or an ACK owed).
func (p *packetNumberSpace) ready(now time.Time) bool {
	if p.dropped {
		return false
	}
	if p.sealer == nil {
		return false
	}
	if p.cryptoStream.send.flushable() {
		return true
	}
	return p.ack.shouldSendAck(now)
}

// canDecrypt reports whether this space currently has read keys.
func (p *packetNumberSpace) canDecrypt() bool {
	return !p.dropped && p.opener != nil
}

// canEncrypt reports whether this space currently has write keys.
func (p *packetNumberSpace) canEncrypt() bool {
	return !p.dropped && p.sealer != nil
}

// nextPacketNumber returns the next packet number to use and advances
// the counter.
func (p *packetNumberSpace) nextPacketNumber() uint64 {
	pn := p.nextSend
	p.nextSend++
	return pn
}

// isPacketReceived reports whether pn has already been seen in this
// space (duplicate detection, RFC 9000 section 9.5 / 21.11, and the
// bounded window named in spec.md section 4.5).
func (p *packetNumberSpace) isPacketReceived(pn uint64) bool {
	return p.ack.received.contains(pn)
}

// onPacketReceived records pn and whether it requires acknowledgement.
func (p *packetNumberSpace) onPacketReceived(pn uint64, now time.Time, ackEliciting bool) {
	p.ack.onPacketReceived(pn, now, ackEliciting)
}

// recvPacketNeedAck reports whether an ACK frame should be generated for
// this space right now.
func (p *packetNumberSpace) recvPacketNeedAck(now time.Time) bool {
	return p.ack.shouldSendAck(now)
}

func (p *packetNumberSpace) largestRecvPacketTime() time.Time {
	return p.ack.largestRecvTime
}

// decryptPacket removes packet (AEAD) protection from a received packet
// whose header protection has already been removed, choosing between the current and (briefly retained) previous
// 1-RTT keys by the wire key-phase bit for the Application space.
func (p *packetNumberSpace) decryptPacket(hdr, payload []byte, pn uint64, wireKeyPhase bool) ([]byte, error) {
	keys := p.opener
	if p.space == packetSpaceApplication && wireKeyPhase != p.keyPhase && p.prevOpener != nil {
		keys = p.prevOpener
	}
	if keys == nil {
		return nil, newError(InternalError, "no read keys")
	}
	return keys.open(nil, hdr, payload, pn)
}

// encryptPacket applies packet protection using this space's current
// write keys.
func (p *packetNumberSpace) encryptPacket(hdr, payload []byte, pn uint64) ([]byte, error) {
	if p.sealer == nil {
		return nil, newError(InternalError, "no write keys")
	}
	return p.sealer.seal(nil, hdr, payload, pn), nil
}

// initiateKeyUpdate derives the next generation of 1-RTT keys and flips
// the local key phase (RFC 9000 section 6, initiated locally).
func (p *packetNumberSpace) initiateKeyUpdate() {
	if p.space != packetSpaceApplication || p.sealer == nil {
		return
	}
	p.prevOpener = p.opener
	p.opener = deriveNextKeys(p.opener)
	p.sealer = deriveNextKeys(p.sealer)
	p.keyPhase = !p.keyPhase
}

// onPeerKeyUpdate responds to an incoming packet whose key phase bit
// flipped relative to ours, deriving next-generation keys to match.
func (p *packetNumberSpace) onPeerKeyUpdate() {
	if p.space != packetSpaceApplication {
		return
	}
	p.prevOpener = p.opener
	p.opener = deriveNextKeys(p.opener)
	p.sealer = deriveNextKeys(p.sealer)
	p.keyPhase = !p.keyPhase
}

// drop discards all per-space state once it can no longer be used, RFC
// 9000 section 4.9 (confirmed Initial/Handshake data need not be
// retained once the next encryption level is available).
func (p *packetNumberSpace) drop() {
	p.dropped = true
	p.opener = nil
	p.sealer = nil
	p.prevOpener = nil
	p.cryptoStream = cryptoStream{}
}
