package transport

// streamMap owns every Stream for a connection, keyed by QUIC stream id,
// and tracks the id-space bookkeeping RFC 9000 section 2.1 requires:
// each of the four (initiator, directionality) id spaces advances by 4
// and is bounded by a peer- or locally-advertised MAX_STREAMS count.
type streamMap struct {
	isClient bool
	streams  map[uint64]*Stream

	acceptQueue []uint64 // peer-initiated stream ids not yet surfaced to the application

	localMaxStreamsBidi  uint64
	localMaxStreamsUni   uint64
	peerMaxStreamsBidi   uint64
	peerMaxStreamsUni    uint64

	nextBidi uint64 // ordinal of the next local-initiated bidi stream to open
	nextUni  uint64 // ordinal of the next local-initiated uni stream to open

	localOpenedBidi uint64 // count of local-initiated bidi streams created
	localOpenedUni  uint64

	maxStreamSendWindow uint64
	maxStreamRecvWindow uint64
}

func (m *streamMap) init(maxStreamsBidi, maxStreamsUni uint64) {
	m.streams = make(map[uint64]*Stream)
	m.localMaxStreamsBidi = maxStreamsBidi
	m.localMaxStreamsUni = maxStreamsUni
	m.maxStreamSendWindow = 1 << 16
	m.maxStreamRecvWindow = 1 << 16
}

func (m *streamMap) get(id uint64) *Stream {
	return m.streams[id]
}

// isStreamLocal reports whether id was initiated by the endpoint playing
// role isClient.
func isStreamLocal(id uint64, isClient bool) bool {
	clientInitiated := id&0x1 == 0
	return clientInitiated == isClient
}

// isStreamBidi reports whether id names a bidirectional stream.
func isStreamBidi(id uint64) bool {
	return id&0x2 == 0
}

// create instantiates a new stream, enforcing the relevant MAX_STREAMS
// limit. local indicates whether this endpoint is the initiator.
func (m *streamMap) create(id uint64, local, bidi bool) (*Stream, error) {
	if st := m.streams[id]; st != nil {
		return st, nil
	}
	limit := m.streamIndex(id)
	if local {
		if bidi && limit >= m.peerMaxStreamsBidi {
			return nil, errStreamLimit
		}
		if !bidi && limit >= m.peerMaxStreamsUni {
			return nil, errStreamLimit
		}
	} else {
		if bidi && limit >= m.localMaxStreamsBidi {
			return nil, errStreamLimit
		}
		if !bidi && limit >= m.localMaxStreamsUni {
			return nil, errStreamLimit
		}
		m.acceptQueue = append(m.acceptQueue, id)
	}
	maxSend, maxRecv := m.maxStreamSendWindow, m.maxStreamRecvWindow
	if !bidi && local {
		maxRecv = 0 // we can't receive on our own unidirectional stream
	}
	if !bidi && !local {
		maxSend = 0 // we can't send on the peer's unidirectional stream
	}
	st := newStream(id, local, bidi, maxSend, maxRecv)
	m.streams[id] = st
	return st, nil
}

// streamIndex returns the 0-based ordinal of id within its (initiator,
// directionality) space, used against a MAX_STREAMS count.
func (m *streamMap) streamIndex(id uint64) uint64 {
	return id >> 2
}

// openBidi allocates the next local-initiated bidirectional stream id.
func (m *streamMap) openBidi() (uint64, error) {
	if m.nextBidi >= m.peerMaxStreamsBidi {
		return 0, errStreamLimit
	}
	id := m.nextBidi<<2 | m.localTag(true)
	m.nextBidi++
	return id, nil
}

// openUni allocates the next local-initiated unidirectional stream id.
func (m *streamMap) openUni() (uint64, error) {
	if m.nextUni >= m.peerMaxStreamsUni {
		return 0, errStreamLimit
	}
	id := m.nextUni<<2 | m.localTag(false)
	m.nextUni++
	return id, nil
}

// localTag returns the 2-bit id suffix this endpoint uses for
// self-initiated streams of the given directionality.
func (m *streamMap) localTag(bidi bool) uint64 {
	var tag uint64
	if !m.isClient {
		tag |= 0x1
	}
	if !bidi {
		tag |= 0x2
	}
	return tag
}

// acceptNext pops the oldest unsurfaced peer-initiated stream id, if any.
func (m *streamMap) acceptNext() (uint64, bool) {
	if len(m.acceptQueue) == 0 {
		return 0, false
	}
	id := m.acceptQueue[0]
	m.acceptQueue = m.acceptQueue[1:]
	return id, true
}

func (m *streamMap) setPeerMaxStreamsBidi(max uint64) {
	if max > m.peerMaxStreamsBidi {
		m.peerMaxStreamsBidi = max
	}
}

func (m *streamMap) setPeerMaxStreamsUni(max uint64) {
	if max > m.peerMaxStreamsUni {
		m.peerMaxStreamsUni = max
	}
}

// hasFlushable reports whether any stream has data, a FIN, or a blocked
// signal ready to send.
func (m *streamMap) hasFlushable() bool {
	for _, st := range m.streams {
		if st.flushable() {
			return true
		}
	}
	return false
}

// removeTerminal drops bookkeeping for every stream whose state machine
// has reached a terminal state on both halves (RFC 9000 section 3).
func (m *streamMap) removeTerminal() {
	for id, st := range m.streams {
		if st.isTerminal() {
			delete(m.streams, id)
		}
	}
}
