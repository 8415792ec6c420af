package transport

// Frame type codes, RFC 9000 section 19 and RFC 9221 (DATAGRAM).
const (
	frameTypePadding            = 0x00
	frameTypePing               = 0x01
	frameTypeAck                = 0x02
	frameTypeAckECN             = 0x03
	frameTypeResetStream        = 0x04
	frameTypeStopSending        = 0x05
	frameTypeCrypto             = 0x06
	frameTypeNewToken           = 0x07
	frameTypeStream             = 0x08
	frameTypeStreamEnd          = 0x0f
	frameTypeMaxData            = 0x10
	frameTypeMaxStreamData      = 0x11
	frameTypeMaxStreamsBidi     = 0x12
	frameTypeMaxStreamsUni      = 0x13
	frameTypeDataBlocked        = 0x14
	frameTypeStreamDataBlocked  = 0x15
	frameTypeStreamsBlockedBidi = 0x16
	frameTypeStreamsBlockedUni  = 0x17
	frameTypeNewConnectionID    = 0x18
	frameTypeRetireConnectionID = 0x19
	frameTypePathChallenge      = 0x1a
	frameTypePathResponse       = 0x1b
	frameTypeConnectionClose    = 0x1c
	frameTypeApplicationClose   = 0x1d
	frameTypeHanshakeDone       = 0x1e
	// Extension frames, outside the single-byte range, discriminated by
	// their full varint tag.
	frameTypeDatagramNoLen = 0x30
	frameTypeDatagramLen   = 0x31
	frameTypeAckFrequency  = 0xaf
)

// Stream frame tag bits (RFC 9000 section 19.8).
const (
	streamFlagFin = 0x01
	streamFlagLen = 0x02
	streamFlagOff = 0x04
)

const (
	maxCryptoFrameOverhead = 1 + 8 + 8 // type + offset + length varints (worst case)
	maxStreamFrameOverhead = 1 + 8 + 8 + 8
)

// frame is the tagged-union interface every frame kind satisfies.
type frame interface {
	encode(w *writer) bool
	encodedLen() int
}

func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypeAck, frameTypeAckECN, frameTypePadding, frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	default:
		return true
	}
}

// --- PADDING ---

type paddingFrame struct {
	length int
}

func newPaddingFrame(length int) *paddingFrame {
	return &paddingFrame{length: length}
}

func (f *paddingFrame) encode(w *writer) bool {
	for i := 0; i < f.length; i++ {
		if !w.writeByte(frameTypePadding) {
			return false
		}
	}
	return true
}

func (f *paddingFrame) encodedLen() int { return f.length }

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	f.length = n
	return n, nil
}

// --- PING ---

type pingFrame struct{}

func (f *pingFrame) encode(w *writer) bool   { return w.writeByte(frameTypePing) }
func (f *pingFrame) encodedLen() int         { return 1 }
func (f *pingFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypePing {
		return 0, newError(FrameEncodingError, "ping")
	}
	return 1, nil
}

// --- ACK ---

type ackRange struct {
	gap    uint64
	length uint64
}

type ackFrame struct {
	ecn           bool
	largestAck    uint64
	ackDelay      uint64
	firstAckRange uint64
	ranges        []ackRange
	ect0, ect1, ecnCE uint64
}

func newAckFrame(ackDelay uint64, recv *pnRangeSet) *ackFrame {
	if recv == nil || recv.empty() {
		return nil
	}
	largest, first, blocks := recv.toAckRanges(32)
	return &ackFrame{
		largestAck:    largest,
		ackDelay:      ackDelay,
		firstAckRange: first,
		ranges:        blocks,
	}
}

func (f *ackFrame) toRangeSet() *pnRangeSet {
	return rangeSetFromAck(f.largestAck, f.firstAckRange, f.ranges)
}

func (f *ackFrame) encodedLen() int {
	n := 1 + varintLen(f.largestAck) + varintLen(f.ackDelay) + varintLen(uint64(len(f.ranges))) + varintLen(f.firstAckRange)
	for _, r := range f.ranges {
		n += varintLen(r.gap) + varintLen(r.length)
	}
	if f.ecn {
		n += varintLen(f.ect0) + varintLen(f.ect1) + varintLen(f.ecnCE)
	}
	return n
}

func (f *ackFrame) encode(w *writer) bool {
	typ := uint64(frameTypeAck)
	if f.ecn {
		typ = frameTypeAckECN
	}
	ok := w.writeByte(byte(typ)) &&
		w.writeVarint(f.largestAck) &&
		w.writeVarint(f.ackDelay) &&
		w.writeVarint(uint64(len(f.ranges))) &&
		w.writeVarint(f.firstAckRange)
	if !ok {
		return false
	}
	for _, r := range f.ranges {
		if !w.writeVarint(r.gap) || !w.writeVarint(r.length) {
			return false
		}
	}
	if f.ecn {
		if !w.writeVarint(f.ect0) || !w.writeVarint(f.ect1) || !w.writeVarint(f.ecnCE) {
			return false
		}
	}
	return true
}

func (f *ackFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	typ, ok := r.readByte()
	if !ok || (typ != frameTypeAck && typ != frameTypeAckECN) {
		return 0, newError(FrameEncodingError, "ack type")
	}
	f.ecn = typ == frameTypeAckECN
	var count uint64
	var ok2 bool
	if f.largestAck, ok2 = r.readVarint(); !ok2 {
		return 0, newError(FrameEncodingError, "ack largest")
	}
	if f.ackDelay, ok2 = r.readVarint(); !ok2 {
		return 0, newError(FrameEncodingError, "ack delay")
	}
	if count, ok2 = r.readVarint(); !ok2 {
		return 0, newError(FrameEncodingError, "ack count")
	}
	if f.firstAckRange, ok2 = r.readVarint(); !ok2 {
		return 0, newError(FrameEncodingError, "ack first range")
	}
	f.ranges = f.ranges[:0]
	for i := uint64(0); i < count; i++ {
		var gap, length uint64
		if gap, ok2 = r.readVarint(); !ok2 {
			return 0, newError(FrameEncodingError, "ack gap")
		}
		if length, ok2 = r.readVarint(); !ok2 {
			return 0, newError(FrameEncodingError, "ack length")
		}
		f.ranges = append(f.ranges, ackRange{gap: gap, length: length})
	}
	if f.ecn {
		if f.ect0, ok2 = r.readVarint(); !ok2 {
			return 0, newError(FrameEncodingError, "ect0")
		}
		if f.ect1, ok2 = r.readVarint(); !ok2 {
			return 0, newError(FrameEncodingError, "ect1")
		}
		if f.ecnCE, ok2 = r.readVarint(); !ok2 {
			return 0, newError(FrameEncodingError, "ecn-ce")
		}
	}
	return len(b) - r.len(), nil
}

func (f *ackFrame) String() string {
	return "ack largest=" + itoa(f.largestAck)
}

// --- RESET_STREAM ---

type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(streamID, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: streamID, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeResetStream) && w.writeVarint(f.streamID) &&
		w.writeVarint(f.errorCode) && w.writeVarint(f.finalSize)
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	var ok bool
	if f.streamID, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "reset_stream id")
	}
	if f.errorCode, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "reset_stream code")
	}
	if f.finalSize, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "reset_stream final size")
	}
	return len(b) - r.len(), nil
}

// --- STOP_SENDING ---

type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(streamID, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: streamID, errorCode: errorCode}
}

func (f *stopSendingFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeStopSending) && w.writeVarint(f.streamID) && w.writeVarint(f.errorCode)
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	var ok bool
	if f.streamID, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "stop_sending id")
	}
	if f.errorCode, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "stop_sending code")
	}
	return len(b) - r.len(), nil
}

// --- CRYPTO ---

type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

func (f *cryptoFrame) encodedLen() int {
	return 1 + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeCrypto) && w.writeVarint(f.offset) && w.writeVarintBytes(f.data)
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	var ok bool
	if f.offset, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "crypto offset")
	}
	if f.data, ok = r.readVarintBytes(); !ok {
		return 0, newError(FrameEncodingError, "crypto data")
	}
	return len(b) - r.len(), nil
}

// --- NEW_TOKEN ---

type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame {
	return &newTokenFrame{token: token}
}

func (f *newTokenFrame) encodedLen() int {
	return 1 + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeNewToken) && w.writeVarintBytes(f.token)
}

func (f *newTokenFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	var ok bool
	if f.token, ok = r.readVarintBytes(); !ok {
		return 0, newError(FrameEncodingError, "new_token")
	}
	return len(b) - r.len(), nil
}

// --- STREAM ---

type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(streamID uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: streamID, data: data, offset: offset, fin: fin}
}

func (f *streamFrame) encodedLen() int {
	n := 1 + varintLen(f.streamID)
	if f.offset > 0 {
		n += varintLen(f.offset)
	}
	n += varintLen(uint64(len(f.data))) // LEN bit always set by this implementation
	n += len(f.data)
	return n
}

func (f *streamFrame) encode(w *writer) bool {
	typ := uint64(frameTypeStream) | streamFlagLen
	if f.offset > 0 {
		typ |= streamFlagOff
	}
	if f.fin {
		typ |= streamFlagFin
	}
	if !w.writeByte(byte(typ)) || !w.writeVarint(f.streamID) {
		return false
	}
	if f.offset > 0 && !w.writeVarint(f.offset) {
		return false
	}
	return w.writeVarintBytes(f.data)
}

func (f *streamFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	typ, ok := r.readByte()
	if !ok {
		return 0, newError(FrameEncodingError, "stream type")
	}
	f.fin = typ&streamFlagFin != 0
	hasLen := typ&streamFlagLen != 0
	hasOff := typ&streamFlagOff != 0
	if f.streamID, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "stream id")
	}
	f.offset = 0
	if hasOff {
		if f.offset, ok = r.readVarint(); !ok {
			return 0, newError(FrameEncodingError, "stream offset")
		}
	}
	if hasLen {
		if f.data, ok = r.readVarintBytes(); !ok {
			return 0, newError(FrameEncodingError, "stream data")
		}
	} else {
		f.data = r.remaining()
		r.skip(len(f.data))
	}
	return len(b) - r.len(), nil
}

// --- MAX_DATA ---

type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(v uint64) *maxDataFrame { return &maxDataFrame{maximumData: v} }

func (f *maxDataFrame) encodedLen() int { return 1 + varintLen(f.maximumData) }
func (f *maxDataFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeMaxData) && w.writeVarint(f.maximumData)
}
func (f *maxDataFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	v, ok := r.readVarint()
	if !ok {
		return 0, newError(FrameEncodingError, "max_data")
	}
	f.maximumData = v
	return len(b) - r.len(), nil
}

// --- MAX_STREAM_DATA ---

type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(streamID, v uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: streamID, maximumData: v}
}

func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}
func (f *maxStreamDataFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeMaxStreamData) && w.writeVarint(f.streamID) && w.writeVarint(f.maximumData)
}
func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	var ok bool
	if f.streamID, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "max_stream_data id")
	}
	if f.maximumData, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "max_stream_data max")
	}
	return len(b) - r.len(), nil
}

// --- MAX_STREAMS ---

type maxStreamsFrame struct {
	bidi           bool
	maximumStreams uint64
}

func newMaxStreamsFrame(v uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{bidi: bidi, maximumStreams: v}
}

func (f *maxStreamsFrame) encodedLen() int { return 1 + varintLen(f.maximumStreams) }
func (f *maxStreamsFrame) encode(w *writer) bool {
	typ := byte(frameTypeMaxStreamsUni)
	if f.bidi {
		typ = frameTypeMaxStreamsBidi
	}
	return w.writeByte(typ) && w.writeVarint(f.maximumStreams)
}
func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	typ, ok := r.readByte()
	if !ok {
		return 0, newError(FrameEncodingError, "max_streams type")
	}
	f.bidi = typ == frameTypeMaxStreamsBidi
	if f.maximumStreams, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "max_streams")
	}
	if f.maximumStreams > (1 << 60) {
		return 0, newError(FrameEncodingError, "max_streams exceeds 2^60")
	}
	return len(b) - r.len(), nil
}

// --- DATA_BLOCKED ---

type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(v uint64) *dataBlockedFrame { return &dataBlockedFrame{dataLimit: v} }

func (f *dataBlockedFrame) encodedLen() int { return 1 + varintLen(f.dataLimit) }
func (f *dataBlockedFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeDataBlocked) && w.writeVarint(f.dataLimit)
}
func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	v, ok := r.readVarint()
	if !ok {
		return 0, newError(FrameEncodingError, "data_blocked")
	}
	f.dataLimit = v
	return len(b) - r.len(), nil
}

// --- STREAM_DATA_BLOCKED ---

type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(streamID, v uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: streamID, dataLimit: v}
}

func (f *streamDataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.dataLimit)
}
func (f *streamDataBlockedFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeStreamDataBlocked) && w.writeVarint(f.streamID) && w.writeVarint(f.dataLimit)
}
func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	var ok bool
	if f.streamID, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "stream_data_blocked id")
	}
	if f.dataLimit, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "stream_data_blocked limit")
	}
	return len(b) - r.len(), nil
}

// --- STREAMS_BLOCKED ---

type streamsBlockedFrame struct {
	bidi        bool
	streamLimit uint64
}

func newStreamsBlockedFrame(v uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{bidi: bidi, streamLimit: v}
}

func (f *streamsBlockedFrame) encodedLen() int { return 1 + varintLen(f.streamLimit) }
func (f *streamsBlockedFrame) encode(w *writer) bool {
	typ := byte(frameTypeStreamsBlockedUni)
	if f.bidi {
		typ = frameTypeStreamsBlockedBidi
	}
	return w.writeByte(typ) && w.writeVarint(f.streamLimit)
}
func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	typ, ok := r.readByte()
	if !ok {
		return 0, newError(FrameEncodingError, "streams_blocked type")
	}
	f.bidi = typ == frameTypeStreamsBlockedBidi
	if f.streamLimit, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "streams_blocked limit")
	}
	return len(b) - r.len(), nil
}

// --- NEW_CONNECTION_ID ---

type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	connectionID   []byte
	resetToken     [16]byte
}

func (f *newConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) + 1 + len(f.connectionID) + 16
}
func (f *newConnectionIDFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeNewConnectionID) &&
		w.writeVarint(f.sequenceNumber) &&
		w.writeVarint(f.retirePriorTo) &&
		w.writeByte(byte(len(f.connectionID))) &&
		w.writeBytes(f.connectionID) &&
		w.writeBytes(f.resetToken[:])
}
func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	var ok bool
	if f.sequenceNumber, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "new_connection_id seq")
	}
	if f.retirePriorTo, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "new_connection_id retire")
	}
	cidLen, ok := r.readByte()
	if !ok || cidLen == 0 || cidLen > MaxCIDLength {
		return 0, newError(FrameEncodingError, "new_connection_id length")
	}
	var cid []byte
	if cid, ok = r.readBytes(int(cidLen)); !ok {
		return 0, newError(FrameEncodingError, "new_connection_id cid")
	}
	f.connectionID = append(f.connectionID[:0], cid...)
	token, ok := r.readBytes(16)
	if !ok {
		return 0, newError(FrameEncodingError, "new_connection_id token")
	}
	copy(f.resetToken[:], token)
	return len(b) - r.len(), nil
}

// --- RETIRE_CONNECTION_ID ---

type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func (f *retireConnectionIDFrame) encodedLen() int { return 1 + varintLen(f.sequenceNumber) }
func (f *retireConnectionIDFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeRetireConnectionID) && w.writeVarint(f.sequenceNumber)
}
func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	v, ok := r.readVarint()
	if !ok {
		return 0, newError(FrameEncodingError, "retire_connection_id")
	}
	f.sequenceNumber = v
	return len(b) - r.len(), nil
}

// --- PATH_CHALLENGE / PATH_RESPONSE ---

type pathChallengeFrame struct {
	data [8]byte
}

func (f *pathChallengeFrame) encodedLen() int { return 1 + 8 }
func (f *pathChallengeFrame) encode(w *writer) bool {
	return w.writeByte(frameTypePathChallenge) && w.writeBytes(f.data[:])
}
func (f *pathChallengeFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	d, ok := r.readBytes(8)
	if !ok {
		return 0, newError(FrameEncodingError, "path_challenge")
	}
	copy(f.data[:], d)
	return len(b) - r.len(), nil
}

type pathResponseFrame struct {
	data [8]byte
}

func (f *pathResponseFrame) encodedLen() int { return 1 + 8 }
func (f *pathResponseFrame) encode(w *writer) bool {
	return w.writeByte(frameTypePathResponse) && w.writeBytes(f.data[:])
}
func (f *pathResponseFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	r.skip(1)
	d, ok := r.readBytes(8)
	if !ok {
		return 0, newError(FrameEncodingError, "path_response")
	}
	copy(f.data[:], d)
	return len(b) - r.len(), nil
}

// --- CONNECTION_CLOSE ---

type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reason []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{application: application, errorCode: errorCode, frameType: frameType, reasonPhrase: reason}
}

func (f *connectionCloseFrame) encodedLen() int {
	n := 1 + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) encode(w *writer) bool {
	typ := byte(frameTypeConnectionClose)
	if f.application {
		typ = frameTypeApplicationClose
	}
	if !w.writeByte(typ) || !w.writeVarint(f.errorCode) {
		return false
	}
	if !f.application && !w.writeVarint(f.frameType) {
		return false
	}
	return w.writeVarintBytes(f.reasonPhrase)
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	typ, ok := r.readByte()
	if !ok {
		return 0, newError(FrameEncodingError, "connection_close type")
	}
	f.application = typ == frameTypeApplicationClose
	if f.errorCode, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "connection_close code")
	}
	if !f.application {
		if f.frameType, ok = r.readVarint(); !ok {
			return 0, newError(FrameEncodingError, "connection_close frame type")
		}
	}
	if f.reasonPhrase, ok = r.readVarintBytes(); !ok {
		return 0, newError(FrameEncodingError, "connection_close reason")
	}
	return len(b) - r.len(), nil
}

func (f *connectionCloseFrame) String() string {
	return errorCodeString(f.errorCode) + ": " + string(f.reasonPhrase)
}

// --- HANDSHAKE_DONE ---

type handshakeDoneFrame struct{}

func (f *handshakeDoneFrame) encodedLen() int { return 1 }
func (f *handshakeDoneFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeHanshakeDone)
}
func (f *handshakeDoneFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeHanshakeDone {
		return 0, newError(FrameEncodingError, "handshake_done")
	}
	return 1, nil
}

// --- DATAGRAM (RFC 9221) ---

type datagramFrame struct {
	data []byte
}

func (f *datagramFrame) encodedLen() int {
	return 1 + varintLen(uint64(len(f.data))) + len(f.data)
}
func (f *datagramFrame) encode(w *writer) bool {
	return w.writeByte(frameTypeDatagramLen) && w.writeVarintBytes(f.data)
}
func (f *datagramFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	typ, ok := r.readByte()
	if !ok {
		return 0, newError(FrameEncodingError, "datagram type")
	}
	if typ == frameTypeDatagramNoLen {
		f.data = r.remaining()
		r.skip(len(f.data))
	} else {
		if f.data, ok = r.readVarintBytes(); !ok {
			return 0, newError(FrameEncodingError, "datagram data")
		}
	}
	return len(b) - r.len(), nil
}

// --- ACK_FREQUENCY (draft-ietf-quic-ack-frequency) ---

type ackFrequencyFrame struct {
	sequenceNumber  uint64
	packetTolerance uint64
	maxAckDelay     uint64
	ignoreOrder     bool
}

func (f *ackFrequencyFrame) encodedLen() int {
	return varintLen(frameTypeAckFrequency) + varintLen(f.sequenceNumber) +
		varintLen(f.packetTolerance) + varintLen(f.maxAckDelay) + 1
}
func (f *ackFrequencyFrame) encode(w *writer) bool {
	ignore := uint64(0)
	if f.ignoreOrder {
		ignore = 1
	}
	return w.writeVarint(frameTypeAckFrequency) && w.writeVarint(f.sequenceNumber) &&
		w.writeVarint(f.packetTolerance) && w.writeVarint(f.maxAckDelay) && w.writeVarint(ignore)
}
func (f *ackFrequencyFrame) decode(b []byte) (int, error) {
	r := newReader(b)
	if _, ok := r.readVarint(); !ok { // tag
		return 0, newError(FrameEncodingError, "ack_frequency tag")
	}
	var ok bool
	if f.sequenceNumber, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "ack_frequency seq")
	}
	if f.packetTolerance, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "ack_frequency tolerance")
	}
	if f.maxAckDelay, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "ack_frequency delay")
	}
	var ignore uint64
	if ignore, ok = r.readVarint(); !ok {
		return 0, newError(FrameEncodingError, "ack_frequency ignore")
	}
	f.ignoreOrder = ignore != 0
	return len(b) - r.len(), nil
}

// encodeFrames encodes every frame in fs into b, returning the total bytes
// written or an error if b is too small.
func encodeFrames(b []byte, fs []frame) (int, error) {
	w := newWriter(b)
	for _, f := range fs {
		if !f.encode(&w) {
			return 0, errShortBuffer
		}
	}
	return w.offset(), nil
}

func itoa(v uint64) string {
	return sprint(v)
}
