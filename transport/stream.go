package transport

import "io"

// streamState is the state of one half (send or receive) of a stream,
// RFC 9000 section 3.
type streamState int

const (
	streamStateReady streamState = iota
	streamStateActive
	streamStateDataSent    // send half only: fin queued
	streamStateDataRecvd   // all data + fin acked (send) or received up to the final size (recv)
	streamStateResetSent   // send half only: RESET_STREAM queued
	streamStateResetRecvd  // recv half only: peer reset us
)

// Stream is one QUIC stream: independent send and receive halves, each
// with their own flow-control scope layered under the connection-wide
// scope (spec.md section 3, "stream").
type Stream struct {
	id       uint64
	local    bool // true if we initiated this stream
	bidi     bool

	send     sendBuffer
	sendFlow flowControl
	sendState streamState

	recv     reassembler
	recvFlow flowControl
	recvState streamState

	resetErrorCode  uint64
	resetFinalSize  uint64
	resetPending    bool // a RESET_STREAM is owed to the peer
	stopErrorCode   uint64
	stopSendingPending bool // a STOP_SENDING is owed to the peer
	gotStopSending  bool

	updateMaxData bool // a MAX_STREAM_DATA update is owed to the peer
}

func newStream(id uint64, local, bidi bool, maxSend, maxRecv uint64) *Stream {
	st := &Stream{id: id, local: local, bidi: bidi}
	st.sendFlow.limit = maxSend
	st.recvFlow.maxAllowed = maxRecv
	st.recvFlow.autoTuneWindow = maxRecv
	return st
}

// canWrite reports whether the local application may still write to this
// stream (the send half has not been reset and has not sent its fin).
func (st *Stream) canWrite() bool {
	return st.sendState != streamStateResetSent && st.sendState != streamStateDataSent
}

// write queues data for transmission, returning errStreamLimit once the
// send half has been reset or has queued its fin, and errFlowControl if
// it would exceed the peer-granted limit.
func (st *Stream) write(data []byte, fin bool) error {
	if !st.canWrite() {
		return errStreamLimit
	}
	if !st.sendFlow.canSend(uint64(len(data))) {
		return errFlowControl
	}
	if err := st.send.push(data, st.send.base+uint64(len(st.send.data)), fin, false); err != nil {
		return err
	}
	st.sendFlow.used += uint64(len(data))
	st.sendState = streamStateActive
	if fin {
		st.sendState = streamStateDataSent
	}
	return nil
}

// popSend removes up to max bytes ready to retransmit or send for the
// first time.
func (st *Stream) popSend(max int) (data []byte, offset uint64, fin bool) {
	return st.send.popSend(max)
}

// flushable reports whether the send half has data, a FIN, or a blocked
// signal pending.
func (st *Stream) flushable() bool {
	return st.send.flushable() || st.sendFlow.isBlocked()
}

// interest reports how urgently this stream's send half wants a packet
// built: a blocked flow-control signal counts as new data worth sending.
func (st *Stream) interest() transmissionInterest {
	i := st.send.interest()
	if st.sendFlow.isBlocked() {
		i = combine(i, interestNewData)
	}
	return i
}

// pushRecv accepts incoming STREAM frame data, enforcing the stream-level
// flow-control window before reassembly.
func (st *Stream) pushRecv(data []byte, offset uint64, fin bool) error {
	end := offset + uint64(len(data))
	if err := st.recvFlow.receive(end); err != nil {
		return err
	}
	if err := st.recv.push(data, offset, fin); err != nil {
		return err
	}
	if st.recv.hasFinalSize && st.recv.base+uint64(st.recv.readable()) == st.recv.finalSize {
		st.recvState = streamStateDataRecvd
	}
	return nil
}

// read copies contiguous received bytes into dst and accounts them
// against the flow-control window for MAX_STREAM_DATA purposes.
func (st *Stream) read(dst []byte) (n int, fin bool) {
	n, fin = st.recv.read(dst)
	st.recvFlow.onConsumed(uint64(n))
	if newMax, ok := st.recvFlow.shouldUpdateMax(); ok {
		st.recvFlow.maxAllowed = newMax
		st.updateMaxData = true
	}
	return n, fin
}

// ackMaxData records that a MAX_STREAM_DATA frame carrying the current
// recvFlow.maxAllowed has been sent.
func (st *Stream) ackMaxData() {
	st.updateMaxData = false
}

// reset marks the send half as abruptly terminated by RESET_STREAM,
// queuing the frame that tells the peer so.
func (st *Stream) reset(errorCode uint64) {
	st.resetErrorCode = errorCode
	st.resetFinalSize = st.send.base + uint64(len(st.send.data))
	st.sendState = streamStateResetSent
	st.resetPending = true
	st.send = sendBuffer{}
}

// reset processes a peer's RESET_STREAM, returning the number of
// bytes this frees from the connection-level receive flow-control
// accounting (any bytes beyond what we'd already counted up to
// finalSize).
func (r *reassembler) reset(finalSize uint64) (creditFreed uint64, err error) {
	if r.hasFinalSize && r.finalSize != finalSize {
		return 0, errFinalSize
	}
	prev := r.maxRecvOffset
	if finalSize > prev {
		r.maxRecvOffset = finalSize
	}
	r.hasFinalSize = true
	r.finalSize = finalSize
	if finalSize > prev {
		return finalSize - prev, nil
	}
	return 0, nil
}

// ID returns this stream's identifier.
func (st *Stream) ID() uint64 {
	return st.id
}

// Write queues data on this stream's send half, returning errFlowControl
// if it would exceed the peer-granted limit.
func (st *Stream) Write(data []byte) (int, error) {
	if err := st.write(data, false); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close marks the send half finished: a STREAM frame carrying FIN is
// queued once prior bytes have been flushed (RFC 9000 section 3.1).
func (st *Stream) Close() error {
	return st.write(nil, true)
}

// Read copies contiguous received bytes into p, returning io.EOF once
// the receive half has delivered its FIN and everything before it.
func (st *Stream) Read(p []byte) (int, error) {
	n, fin := st.read(p)
	if n == 0 && fin {
		return 0, io.EOF
	}
	return n, nil
}

// Reset abruptly terminates the send half with RESET_STREAM (RFC 9000
// section 3.1/4.7): any buffered data is dropped and a RESET_STREAM
// frame carrying errorCode is queued for the next packet this stream's
// connection builds.
func (st *Stream) Reset(errorCode uint64) error {
	if st.sendState == streamStateResetSent || st.sendState == streamStateDataRecvd {
		return nil
	}
	st.reset(errorCode)
	return nil
}

// StopSending asks the peer to abandon sending on this stream's receive
// half (RFC 9000 section 3.5/4.7) by queuing a STOP_SENDING frame
// carrying errorCode. Receiving this does not by itself change local
// state; the peer is expected to answer with its own RESET_STREAM.
func (st *Stream) StopSending(errorCode uint64) error {
	if st.recvState == streamStateDataRecvd || st.recvState == streamStateResetRecvd {
		return nil
	}
	st.stopErrorCode = errorCode
	st.stopSendingPending = true
	return nil
}

// isTerminal reports whether both halves of the stream have reached a
// final state and the stream's bookkeeping can be dropped (RFC 9000
// section 3.1/3.2 "terminal state").
func (st *Stream) isTerminal() bool {
	sendDone := !st.bidi && !st.local || st.sendState == streamStateDataRecvd || st.sendState == streamStateResetSent
	recvDone := !st.bidi && st.local || st.recvState == streamStateDataRecvd || st.recvState == streamStateResetRecvd
	return sendDone && recvDone
}
