package transport

import (
	"crypto/rand"
	"net"
	"time"

	"github.com/docker/go-events"
)

// connState is the lifecycle of a Conn, RFC 9000 section 10.
type connState int

const (
	stateInitial connState = iota
	stateHandshaking
	stateActive
	stateDraining
	stateClosed
)

// Conn is one QUIC connection: the packet-number spaces, stream
// manager, recovery/congestion state and current path, driven entirely
// by Write (received datagrams) and Read (datagrams to send) so it can
// be embedded in any I/O loop the caller chooses (spec.md section 4.9,
// "connection").
type Conn struct {
	isClient bool
	cidLen   int

	scid []byte
	dcid []byte // current peer-chosen cid we address packets to
	odcid []byte // original destination cid, Initial packet only

	spaces [packetSpaceCount]*packetNumberSpace
	tls    tlsHandshake
	spaceMgr *spaceManager

	streams streamMap
	flow    flowControl // connection-level

	cids    *cidRegistry
	path    *path

	recovery *recovery
	cc       congestionController

	localParams Params
	peerParams  *Params

	config *Config

	state connState

	idleTimeout time.Time
	handshakeConfirmed bool

	bus *eventBus

	closeErr   *Error
	closeLocal bool
	closeSent  bool

	sentHandshakeDone bool

	maxDatagram uint64

	randSrc func([]byte) (int, error)
	now     func() time.Time

	logFn func(LogEvent) // qlog-shaped per-packet trace, nil unless OnLogEvent was called
}

// OnLogEvent installs a callback invoked with a qlog-shaped LogEvent for
// every packet this connection sends or receives, or clears it if fn is
// nil. This is a separate, lower-level trace from the lifecycle events
// published through Events()/OnEvent.
func (s *Conn) OnLogEvent(fn func(LogEvent)) {
	s.logFn = fn
}

func (s *Conn) logPacket(tp string, now time.Time, p *packet) {
	if s.logFn == nil {
		return
	}
	s.logFn(newLogEventPacket(now, tp, p))
}

// newConn constructs the shared skeleton for both Connect and Accept.
func newConn(isClient bool, config *Config, scid, dcid []byte, local, remote net.Addr) *Conn {
	if config == nil {
		config = defaultConfig()
	}
	s := &Conn{
		isClient:    isClient,
		cidLen:      len(scid),
		scid:        scid,
		dcid:        dcid,
		config:      config,
		localParams: config.Params,
		path:        newPath(local, remote),
		maxDatagram: maxDatagramSize,
		randSrc:     rand.Read,
		now:         time.Now,
		bus:         newEventBus(),
	}
	s.localParams.InitialSourceConnectionID = scid
	if !isClient {
		s.localParams.OriginalDestinationConnectionID = dcid
	}
	s.cids = newCIDRegistry(deriveStaticResetKey(config))
	var cc congestionController
	if config.CongestionControl == CongestionBBR {
		cc = newBBRController(s.maxDatagram)
	} else {
		cc = newNewRenoController(s.maxDatagram)
	}
	s.cc = cc
	s.recovery = newRecovery(cc, time.Duration(s.localParams.MaxAckDelay)*time.Millisecond)
	s.streams.isClient = isClient
	s.streams.init(config.Params.InitialMaxStreamsBidi, config.Params.InitialMaxStreamsUni)
	s.flow.limit = config.Params.InitialMaxData
	s.flow.maxAllowed = config.Params.InitialMaxData

	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		s.spaces[space] = newPacketNumberSpace(space, time.Duration(s.localParams.MaxAckDelay)*time.Millisecond, uint8(s.localParams.AckDelayExponent))
	}
	aead := &initialAEAD{}
	aead.init(dcid)
	if isClient {
		s.spaces[packetSpaceInitial].sealer = aead.client
		s.spaces[packetSpaceInitial].opener = aead.server
	} else {
		s.spaces[packetSpaceInitial].sealer = aead.server
		s.spaces[packetSpaceInitial].opener = aead.client
	}
	return s
}

// deriveStaticResetKey returns the key used to derive stateless reset
// tokens (RFC 9000 section 10.3), preferring the endpoint-wide key an
// Endpoint sets on Config so tokens stay recognizable across every Conn
// it owns; a random key is generated as a fallback for a lone Conn.
func deriveStaticResetKey(config *Config) []byte {
	if len(config.StatelessResetKey) > 0 {
		return config.StatelessResetKey
	}
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return key
}

// Connect creates a client-initiated Conn bound to remote, generating
// fresh connection ids.
func Connect(remote net.Addr, config *Config) (*Conn, error) {
	scid := make([]byte, 8)
	if _, err := rand.Read(scid); err != nil {
		return nil, err
	}
	dcid := make([]byte, 8)
	if _, err := rand.Read(dcid); err != nil {
		return nil, err
	}
	s := newConn(true, config, scid, dcid, nil, remote)
	s.state = stateHandshaking
	s.tls = newStdlibHandshake(config.TLSConfig, true)
	s.spaceMgr = newSpaceManager(s.tls, &s.spaces)
	s.tls.setTransportParams(s.localParams.Marshal())
	return s, nil
}

// Accept creates a server-side Conn from a client's Initial packet's
// header, already parsed by the caller (typically the endpoint
// demultiplexer).
func Accept(scid, dcid []byte, local, remote net.Addr, config *Config) (*Conn, error) {
	s := newConn(false, config, scid, dcid, local, remote)
	s.odcid = dcid
	s.state = stateHandshaking
	s.tls = newStdlibHandshake(config.TLSConfig, false)
	s.spaceMgr = newSpaceManager(s.tls, &s.spaces)
	s.tls.setTransportParams(s.localParams.Marshal())
	return s, nil
}

// Write processes one received datagram (possibly containing several
// coalesced packets).
func (s *Conn) Write(b []byte) (int, error) {
	now := s.now()
	s.path.onReceived(len(b))
	total := 0
	for len(b) > 0 {
		n, err := s.recvPacket(b, now)
		if err != nil {
			return total, err
		}
		if n <= 0 {
			break
		}
		total += n
		b = b[n:]
	}
	s.idleTimeout = now.Add(s.config.MaxIdleTimeout)
	return total, nil
}

func (s *Conn) recvPacket(b []byte, now time.Time) (int, error) {
	var p packet
	p.header.dcil = uint8(s.cidLen)
	_, err := p.decodeHeader(b)
	if err != nil {
		return 0, err
	}
	if p.typ == packetTypeVersionNegotiation {
		return len(b), nil // handled at the endpoint/client layer
	}
	_, err = p.decodeBody(b)
	if err != nil {
		return 0, err
	}
	headerLen := p.headerLen // now points at the packet-number field
	space := spaceFromPacketType(p.typ)
	sp := s.spaces[space]
	if sp == nil || !sp.canDecrypt() {
		return len(b), nil // can't process yet; drop silently per RFC 9000 section 12.2
	}
	pnLen, err := unprotectHeader(sp.opener.hp, b, headerLen)
	if err != nil {
		return 0, err
	}
	var truncated uint64
	getVarintFixed(b[headerLen:headerLen+pnLen], &truncated)
	largest, _ := sp.ack.received.largestValue()
	pn := decodePacketNumber(largest, truncated, pnLen)
	p.packetNumber = pn

	cipherStart := headerLen + pnLen
	length := len(b) - cipherStart
	if p.typ != packetTypeShort {
		if p.payloadLen-pnLen < length {
			length = p.payloadLen - pnLen
		}
	}
	if length < 0 || cipherStart+length > len(b) {
		return 0, newError(FrameEncodingError, "packet length")
	}
	payload, err := sp.decryptPacket(b[:cipherStart], b[cipherStart:cipherStart+length], pn, b[0]&shortKeyPhase != 0)
	if err != nil {
		return 0, err
	}
	if sp.isPacketReceived(pn) {
		return cipherStart + length, nil
	}
	ackEliciting, err := s.recvFrames(payload, space, now)
	if err != nil {
		return 0, err
	}
	sp.onPacketReceived(pn, now, ackEliciting)
	s.logPacket(logEventPacketReceived, now, &p)
	return cipherStart + length, nil
}

func getVarintFixed(b []byte, v *uint64) {
	*v = 0
	for _, c := range b {
		*v = (*v << 8) | uint64(c)
	}
}

// recvFrames decodes and dispatches every frame in payload, returning
// whether any of them was ack-eliciting (RFC 9000 section 13.2).
func (s *Conn) recvFrames(payload []byte, space packetSpace, now time.Time) (ackEliciting bool, err error) {
	for len(payload) > 0 {
		typ, n := peekFrameType(payload)
		if n == 0 {
			return ackEliciting, newError(FrameEncodingError, "frame type")
		}
		if isFrameAckEliciting(typ) {
			ackEliciting = true
		}
		consumed, err := s.recvFrame(typ, payload, space, now)
		if err != nil {
			return ackEliciting, err
		}
		if consumed <= 0 {
			return ackEliciting, newError(FrameEncodingError, "zero-length frame decode")
		}
		payload = payload[consumed:]
	}
	return ackEliciting, nil
}

func peekFrameType(b []byte) (uint64, int) {
	var v uint64
	n := getVarint(b, &v)
	return v, n
}

func (s *Conn) recvFrame(typ uint64, b []byte, space packetSpace, now time.Time) (int, error) {
	switch typ {
	case frameTypePadding:
		var f paddingFrame
		return f.decode(b)
	case frameTypePing:
		var f pingFrame
		return f.decode(b)
	case frameTypeAck, frameTypeAckECN:
		var f ackFrame
		n, err := f.decode(b)
		if err != nil {
			return 0, err
		}
		ranges := rangeSetFromAck(f.largestAck, f.firstAckRange, f.ranges)
		if ranges == nil {
			return 0, newError(FrameEncodingError, "malformed ack")
		}
		ackDelay := time.Duration(f.ackDelay<<s.peerAckDelayExponent()) * time.Microsecond
		if s.peerParams != nil {
			if maxDelay := time.Duration(s.peerParams.MaxAckDelay) * time.Millisecond; ackDelay > maxDelay {
				ackDelay = maxDelay
			}
		}
		frames, _ := s.recovery.onAckReceived(space, f.largestAck, ranges, ackDelay, now)
		s.processAckedPackets(space, frames)
		s.processLossAndCongestion(space, now)
		return n, nil
	case frameTypeResetStream:
		return s.recvFrameResetStream(b, now)
	case frameTypeStopSending:
		return s.recvFrameStopSending(b)
	case frameTypeCrypto:
		return s.recvFrameCrypto(b, space, now)
	case frameTypeNewToken:
		var f newTokenFrame
		return f.decode(b)
	case frameTypeMaxData:
		var f maxDataFrame
		n, err := f.decode(b)
		if err == nil {
			s.flow.setLimit(f.maximumData)
		}
		return n, err
	case frameTypeMaxStreamData:
		var f maxStreamDataFrame
		n, err := f.decode(b)
		if err != nil {
			return 0, err
		}
		if st := s.streams.get(f.streamID); st != nil {
			st.sendFlow.setLimit(f.maximumData)
		}
		return n, nil
	case frameTypeMaxStreamsBidi, frameTypeMaxStreamsUni:
		var f maxStreamsFrame
		n, err := f.decode(b)
		if err != nil {
			return 0, err
		}
		if f.bidi {
			s.streams.setPeerMaxStreamsBidi(f.maximumStreams)
		} else {
			s.streams.setPeerMaxStreamsUni(f.maximumStreams)
		}
		return n, nil
	case frameTypeDataBlocked:
		var f dataBlockedFrame
		return f.decode(b)
	case frameTypeStreamDataBlocked:
		var f streamDataBlockedFrame
		return f.decode(b)
	case frameTypeStreamsBlockedBidi, frameTypeStreamsBlockedUni:
		var f streamsBlockedFrame
		return f.decode(b)
	case frameTypeNewConnectionID:
		var f newConnectionIDFrame
		return f.decode(b)
	case frameTypeRetireConnectionID:
		var f retireConnectionIDFrame
		return f.decode(b)
	case frameTypePathChallenge:
		var f pathChallengeFrame
		n, err := f.decode(b)
		if err == nil {
			s.addEvent(newPathChallengeEvent(f.data))
		}
		return n, err
	case frameTypePathResponse:
		var f pathResponseFrame
		n, err := f.decode(b)
		if err == nil {
			s.path.onPathResponse(f.data)
		}
		return n, err
	case frameTypeConnectionClose, frameTypeApplicationClose:
		var f connectionCloseFrame
		n, err := f.decode(b)
		if err == nil {
			s.state = stateDraining
			s.addEvent(newConnCloseEvent(f.errorCode, string(f.reasonPhrase)))
		}
		return n, err
	case frameTypeHanshakeDone:
		var f handshakeDoneFrame
		n, err := f.decode(b)
		s.handshakeConfirmed = true
		return n, err
	default:
		if typ >= frameTypeStream && typ <= frameTypeStream+0x07 {
			return s.recvFrameStream(b, now)
		}
		if typ == frameTypeDatagramNoLen || typ == frameTypeDatagramLen {
			var f datagramFrame
			n, err := f.decode(b)
			if err == nil {
				s.addEvent(newDatagramEvent(f.data))
			}
			return n, err
		}
		if typ == frameTypeAckFrequency {
			if !s.config.AckFrequencySupported {
				return 0, newError(ProtocolViolation, "unexpected ACK_FREQUENCY frame")
			}
			var f ackFrequencyFrame
			return f.decode(b)
		}
		return 0, newError(FrameEncodingError, sprint("unknown frame type ", typ))
	}
}

func (s *Conn) peerAckDelayExponent() uint {
	if s.peerParams != nil {
		return uint(s.peerParams.AckDelayExponent)
	}
	return 3
}

func (s *Conn) recvFrameResetStream(b []byte, now time.Time) (int, error) {
	var f resetStreamFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	local := isStreamLocal(f.streamID, s.isClient)
	bidi := isStreamBidi(f.streamID)
	if local && !bidi {
		return 0, newError(StreamStateError, "reset of our send-only stream")
	}
	st, err := s.getOrCreateStream(f.streamID, false)
	if err != nil {
		return 0, err
	}
	freed, err := st.recv.reset(f.finalSize)
	if err != nil {
		return 0, err
	}
	if err := s.flow.receive(s.flow.used + freed); err != nil {
		return 0, err
	}
	st.recvState = streamStateResetRecvd
	s.addEvent(newStreamResetEvent(f.streamID, f.errorCode))
	return n, nil
}

// recvFrameStopSending handles an inbound STOP_SENDING (RFC 9000
// section 4.3): the peer no longer wants our data, so we answer by
// resetting our send half with the same error code, queuing a
// RESET_STREAM for the next packet.
func (s *Conn) recvFrameStopSending(b []byte) (int, error) {
	var f stopSendingFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	local := isStreamLocal(f.streamID, s.isClient)
	bidi := isStreamBidi(f.streamID)
	if !local && !bidi {
		return 0, newError(StreamStateError, "stop sending on the peer's receive-only stream")
	}
	if st := s.streams.get(f.streamID); st != nil {
		st.gotStopSending = true
		_ = st.Reset(f.errorCode)
	}
	return n, nil
}

func (s *Conn) recvFrameCrypto(b []byte, space packetSpace, now time.Time) (int, error) {
	var f cryptoFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	if err := s.spaces[space].cryptoStream.pushRecv(f.data, f.offset, false); err != nil {
		return 0, err
	}
	if err := s.doHandshake(now); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Conn) recvFrameStream(b []byte, now time.Time) (int, error) {
	var f streamFrame
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	local := isStreamLocal(f.streamID, s.isClient)
	bidi := isStreamBidi(f.streamID)
	if local && !bidi {
		return 0, newError(StreamStateError, "write to our receive-only stream")
	}
	st, err := s.getOrCreateStream(f.streamID, false)
	if err != nil {
		return 0, err
	}
	// Connection-level flow control only accounts newly-extended bytes:
	// a STREAM frame may retransmit or overlap a range already seen, and
	// counting its full length here would double-charge the connection
	// window for data that never consumed fresh credit.
	if end := f.offset + uint64(len(f.data)); end > st.recv.maxRecvOffset {
		if err := s.flow.receive(s.flow.used + (end - st.recv.maxRecvOffset)); err != nil {
			return 0, err
		}
	}
	if err := st.pushRecv(f.data, f.offset, f.fin); err != nil {
		return 0, err
	}
	s.addEvent(newStreamRecvEvent(f.streamID))
	return n, nil
}

// doHandshake advances the TLS handshake with whatever CRYPTO data has
// accumulated and installs any new keys/params it produces.
func (s *Conn) doHandshake(now time.Time) error {
	if err := s.spaceMgr.advance(now); err != nil {
		return err
	}
	if params := s.tls.peerTransportParams(); params != nil && s.peerParams == nil {
		var p Params
		if err := p.Unmarshal(params); err != nil {
			return err
		}
		if err := s.validatePeerTransportParams(&p); err != nil {
			return err
		}
		s.peerParams = &p
		s.streams.setPeerMaxStreamsBidi(p.InitialMaxStreamsBidi)
		s.streams.setPeerMaxStreamsUni(p.InitialMaxStreamsUni)
		s.flow.setLimit(p.InitialMaxData)
	}
	if s.spaceMgr.isComplete() && s.state == stateHandshaking {
		s.state = stateActive
		s.addEvent(newConnAcceptEvent())
	}
	return nil
}

// validatePeerTransportParams enforces the RFC 9000 section 7.3
// consistency checks between a server's Initial packet and its
// transport parameters.
func (s *Conn) validatePeerTransportParams(p *Params) error {
	if !s.isClient {
		return nil
	}
	if string(p.OriginalDestinationConnectionID) != string(s.dcid) {
		return newError(TransportParameterError, "original_destination_connection_id mismatch")
	}
	return nil
}

// processAckedPackets marks the retained frames of newly-acked packets
// as delivered: stream/crypto data is released from its send buffer and
// flow-control windows are advanced.
func (s *Conn) processAckedPackets(space packetSpace, ackedFrameSets [][]frame) {
	for _, frames := range ackedFrameSets {
		for _, fr := range frames {
			switch f := fr.(type) {
			case *cryptoFrame:
				s.spaces[space].cryptoStream.send.ack(f.offset, uint64(len(f.data)))
			case *streamFrame:
				if st := s.streams.get(f.streamID); st != nil {
					st.send.ack(f.offset, uint64(len(f.data)))
					if st.sendState == streamStateDataSent && st.send.complete() {
						st.sendState = streamStateDataRecvd
					}
				}
			case *maxStreamDataFrame:
				if st := s.streams.get(f.streamID); st != nil {
					st.ackMaxData()
				}
			case *maxDataFrame:
				// Nothing to free; MAX_DATA updates are idempotent.
			}
		}
	}
	s.streams.removeTerminal()
}

func (s *Conn) processLossAndCongestion(space packetSpace, now time.Time) {
	lost, _ := s.recovery.detectLostPackets(space, now)
	for _, frames := range lost {
		for _, fr := range frames {
			switch f := fr.(type) {
			case *cryptoFrame:
				s.spaces[space].cryptoStream.send.push(f.data, f.offset, false, true)
			case *streamFrame:
				if st := s.streams.get(f.streamID); st != nil {
					st.send.push(f.data, f.offset, f.fin, true)
				}
			}
		}
	}
}

// Read produces the next datagram to send, or (0, nil) if there is
// nothing to send right now.
func (s *Conn) Read(b []byte) (int, error) {
	now := s.now()
	if s.state == stateClosed {
		return 0, nil
	}
	if s.closeLocal && !s.closeSent {
		n := s.writeCloseOnly(b, now)
		s.closeSent = true
		s.state = stateClosed
		s.bus.close()
		return n, nil
	}
	total := 0
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		sp := s.spaces[space]
		if sp == nil || sp.dropped || !sp.canEncrypt() {
			continue
		}
		if !s.path.canSend(1) {
			// Anti-amplification limit reached on an unvalidated path
			// (RFC 9000 section 8.1): nothing further may go out until
			// the peer's address is validated or more bytes arrive.
			break
		}
		n, err := s.writeSpace(space, b[total:], now)
		if err != nil {
			return total, err
		}
		total += n
		if total >= len(b) {
			break
		}
	}
	return total, nil
}

func (s *Conn) writeCloseOnly(b []byte, now time.Time) int {
	for space := packetSpaceApplication; space >= packetSpaceInitial; space-- {
		sp := s.spaces[space]
		if sp == nil || !sp.canEncrypt() {
			continue
		}
		var frames []frame
		if s.closeErr != nil {
			frames = append(frames, newConnectionCloseFrame(s.closeErr.Code, 0, []byte(s.closeErr.Reason), false))
		}
		n, _ := s.writePacketWithFrames(space, b, now, frames, false)
		return n
	}
	return 0
}

// writeSpace assembles one packet's worth of frames for space, in the
// priority order RFC 9000 leaves to implementations: ACK, HANDSHAKE_DONE,
// CRYPTO, then (application space only) flow control updates,
// RESET_STREAM/STOP_SENDING, and STREAM data, lost data first. A
// CONNECTION_CLOSE is written separately by writeCloseOnly, and no PING
// is added when there is nothing else to send.
func (s *Conn) writeSpace(space packetSpace, b []byte, now time.Time) (int, error) {
	sp := s.spaces[space]
	var frames []frame
	ackEliciting := false

	if sp.ack.shouldSendAck(now) {
		if f := newAckFrame(sp.ack.ackDelay(now), &sp.ack.received); f != nil {
			frames = append(frames, f)
			sp.ack.onAckSent(f.largestAck)
		}
	}

	if space == packetSpaceApplication && s.handshakeConfirmed && !s.sentHandshakeDone {
		frames = append(frames, &handshakeDoneFrame{})
		s.sentHandshakeDone = true
		ackEliciting = true
	}

	left := s.dataRoom(s.room(b, frames))
	if data, offset, fin := sp.cryptoStream.popSend(left); data != nil || fin {
		f := newCryptoFrame(data, offset)
		frames = append(frames, f)
		ackEliciting = true
		left = s.dataRoom(s.room(b, frames))
	}

	if space == packetSpaceApplication {
		if newMax, ok := s.flow.shouldUpdateMax(); ok {
			frames = append(frames, newMaxDataFrame(newMax))
			ackEliciting = true
		}
		for id, st := range s.streams.streams {
			if st.updateMaxData {
				frames = append(frames, newMaxStreamDataFrame(id, st.recvFlow.maxAllowed))
				st.ackMaxData()
				ackEliciting = true
			}
			if st.resetPending {
				frames = append(frames, newResetStreamFrame(id, st.resetErrorCode, st.resetFinalSize))
				st.resetPending = false
				ackEliciting = true
			}
			if st.stopSendingPending {
				frames = append(frames, newStopSendingFrame(id, st.stopErrorCode))
				st.stopSendingPending = false
				ackEliciting = true
			}
		}
		// Lost data is requeued ahead of fresh writes: a stream whose
		// interest is LostData gets first claim on the room left in this
		// packet, matching the None < NewData < LostData priority spec.md
		// section 4.9 step 3 assigns across subsystems.
		for _, want := range [...]transmissionInterest{interestLostData, interestNewData} {
			for id, st := range s.streams.streams {
				left = s.dataRoom(s.room(b, frames))
				if left <= 0 {
					break
				}
				if st.interest() != want {
					continue
				}
				data, offset, fin := st.popSend(left)
				if data == nil && !fin {
					continue
				}
				frames = append(frames, newStreamFrame(id, data, offset, fin))
				ackEliciting = true
			}
		}
	}

	if len(frames) == 0 {
		return 0, nil
	}
	return s.writePacketWithFrames(space, b, now, frames, ackEliciting)
}

// dataRoom bounds how many bytes of new or retransmitted CRYPTO/STREAM
// payload a packet may carry on top of whatever room is left in the
// datagram buffer: the congestion window (RFC 9002 section 7) and, on
// a path not yet validated, the anti-amplification limit (RFC 9000
// section 8.1) both cap it further. ACK-only packets are exempt and
// never go through this.
func (s *Conn) dataRoom(want int) int {
	for want > 0 && !s.recovery.canSend(want) {
		want /= 2
	}
	for want > 0 && !s.path.canSend(want) {
		want /= 2
	}
	return want
}

func (s *Conn) room(b []byte, frames []frame) int {
	used := 0
	for _, f := range frames {
		used += f.encodedLen()
	}
	room := len(b) - used - 64 // header + AEAD overhead allowance
	if room < 0 {
		return 0
	}
	return room
}

func (s *Conn) writePacketWithFrames(space packetSpace, b []byte, now time.Time, frames []frame, ackEliciting bool) (int, error) {
	sp := s.spaces[space]
	pn := sp.nextPacketNumber()
	var p packet
	p.typ = packetTypeFromSpace(space)
	p.header.dcid = s.dcid
	p.header.scid = s.scid
	p.header.version = QUICVersion1
	p.packetNumber = pn
	p.largestAcked = s.recovery.largestAckedBySpace(space)

	payloadLen := 0
	for _, f := range frames {
		payloadLen += f.encodedLen()
	}
	p.payloadLen = payloadLen + 16 // AEAD tag
	estimatedTotal := p.payloadLen + 32 // plus a 32-byte header allowance

	if ackEliciting && !s.recovery.canSend(estimatedTotal) {
		return 0, nil
	}
	if !s.path.canSend(estimatedTotal) {
		return 0, nil
	}

	hlen, err := p.encode(b)
	if err != nil {
		return 0, err
	}
	pnLen := pnLengthFor(pn, p.largestAcked)
	payloadOff := hlen
	n, err := encodeFrames(b[payloadOff:], frames)
	if err != nil {
		return 0, err
	}
	cipher := sp.sealer.seal(nil, b[:payloadOff], b[payloadOff:payloadOff+n], pn)
	copy(b[payloadOff:], cipher)
	total := payloadOff + len(cipher)
	if err := protectHeader(sp.sealer.hp, b[:total], payloadOff-pnLen, pnLen); err != nil {
		return 0, err
	}
	s.recovery.onPacketSent(space, pn, now, total, ackEliciting, frames)
	s.path.onSent(total)
	s.logPacket(logEventPacketSent, now, &p)
	return total, nil
}

// LocalAddr returns the local network address of this connection's
// current path.
func (s *Conn) LocalAddr() net.Addr {
	return s.path.local
}

// RemoteAddr returns the peer network address of this connection's
// current path.
func (s *Conn) RemoteAddr() net.Addr {
	return s.path.remote
}

// SCID returns the connection id this endpoint chose for itself.
func (s *Conn) SCID() []byte {
	return s.scid
}

// Stream returns the stream with the given id, opening a locally-
// initiated one if needed.
func (s *Conn) Stream(id uint64) (*Stream, error) {
	return s.getOrCreateStream(id, true)
}

// OpenStream allocates the next available locally-initiated stream id.
func (s *Conn) OpenStream(bidi bool) (*Stream, error) {
	var id uint64
	var err error
	if bidi {
		id, err = s.streams.openBidi()
	} else {
		id, err = s.streams.openUni()
	}
	if err != nil {
		return nil, err
	}
	return s.getOrCreateStream(id, true)
}

func (s *Conn) getOrCreateStream(id uint64, local bool) (*Stream, error) {
	if st := s.streams.get(id); st != nil {
		return st, nil
	}
	bidi := isStreamBidi(id)
	st, err := s.streams.create(id, local, bidi)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Timeout returns the duration until the idle timeout expires and
// CheckTimeout should be called (0 once it has passed). Loss-detection
// and PTO deadlines are not taken into account.
func (s *Conn) Timeout() time.Duration {
	now := s.now()
	if !s.idleTimeout.IsZero() && s.idleTimeout.Before(now) {
		return 0
	}
	if !s.idleTimeout.IsZero() {
		return s.idleTimeout.Sub(now)
	}
	return s.config.MaxIdleTimeout
}

// CheckTimeout applies idle-timeout and loss-detection-timeout
// consequences; callers invoke this after Timeout() elapses.
// TODO: Timeout/CheckTimeout only schedule the idle timer; PTO-driven
// retransmission (recovery.lossDetectionTimeout) needs to be merged in
// once the endpoint layer tracks each space's last ack-eliciting send.
func (s *Conn) CheckTimeout() {
	now := s.now()
	if !s.idleTimeout.IsZero() && now.After(s.idleTimeout) {
		s.state = stateClosed
		s.addEvent(newConnCloseEvent(0, "idle timeout"))
		s.bus.close()
		return
	}
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		s.processLossAndCongestion(space, now)
	}
}

// IsEstablished reports whether the handshake has completed.
func (s *Conn) IsEstablished() bool {
	return s.state == stateActive || s.state == stateDraining
}

// IsClosed reports whether the connection has finished and may be torn
// down.
func (s *Conn) IsClosed() bool {
	return s.state == stateClosed
}

// Close starts a locally-initiated close with the given application
// error code and reason.
func (s *Conn) Close(errorCode uint64, reason string) {
	if s.closeLocal {
		return
	}
	s.closeLocal = true
	s.closeErr = newError(errorCode, reason)
}

// Events drains accumulated connection events for the caller to
// process (spec.md section 5, "events").
func (s *Conn) Events() []Event {
	return s.bus.drain()
}

// OnEvent attaches an additional sink (e.g. a metrics collector) that
// receives a copy of every event this connection publishes, independent
// of Events()'s drain queue.
func (s *Conn) OnEvent(sink events.Sink) {
	s.bus.attachSink(sink)
}

func (s *Conn) addEvent(e Event) {
	s.bus.publish(e)
}
