package transport

// flowControl tracks one direction (send or receive) of one flow-control
// scope (connection-wide, or a single stream), spec.md section 3
// ("incremental value sync"): the peer grants a credit limit, the local
// side consumes it, and the gap between consumed-and-acked and the
// limit drives MAX_DATA/MAX_STREAM_DATA and DATA_BLOCKED/
// STREAM_DATA_BLOCKED signalling.
type flowControl struct {
	limit      uint64 // current credit granted by the peer (send side) or advertised by us (recv side)
	used       uint64 // bytes sent (send side) or bytes received (recv side)
	maxAllowed uint64 // local cap, e.g. from the receive buffer's effective window size

	// Receive-side bookkeeping for window auto-tuning and blocked signalling.
	consumed        uint64 // bytes delivered to the application
	windowUpdateAt  uint64 // used threshold at which to send a new MAX_* frame
	autoTuneWindow  uint64 // receive window size, taken from maxAllowed on first use and not grown afterwards
	blockedAt       uint64 // the used value at which we last saw/sent a *_BLOCKED signal, 0 if none pending
}

// canSend reports whether n more bytes may be sent without exceeding the
// peer's granted limit.
func (f *flowControl) canSend(n uint64) bool {
	return f.used+n <= f.limit
}

// credit returns the number of bytes still available to send.
func (f *flowControl) credit() uint64 {
	if f.used >= f.limit {
		return 0
	}
	return f.limit - f.used
}

// consume records n bytes sent, returning errFlowControl if that would
// exceed the peer's limit (caller must check canSend first in practice;
// this is the defensive re-check applied when processing a decoded frame
// we ourselves generated).
func (f *flowControl) consume(n uint64) error {
	if !f.canSend(n) {
		return errFlowControl
	}
	f.used += n
	return nil
}

// setLimit raises the credit limit on receipt of a MAX_DATA/
// MAX_STREAM_DATA frame; limits never move backwards (RFC 9000
// section 4.1).
func (f *flowControl) setLimit(limit uint64) {
	if limit > f.limit {
		f.limit = limit
		f.blockedAt = 0
	}
}

// isBlocked reports whether the send side is currently out of credit and
// a *_BLOCKED frame referencing the current limit has not yet been sent.
func (f *flowControl) isBlocked() bool {
	return f.used >= f.limit && f.blockedAt != f.limit
}

// ackBlocked marks the current limit as having been reported via a
// *_BLOCKED frame, suppressing duplicates until the limit changes.
func (f *flowControl) ackBlocked() {
	f.blockedAt = f.limit
}

// receive records largestOffset, the highest byte offset seen so far in
// this scope, returning errFlowControl if the peer exceeded the window
// we advertised.
func (f *flowControl) receive(largestOffset uint64) error {
	if largestOffset > f.maxAllowed {
		return errFlowControl
	}
	if largestOffset > f.used {
		f.used = largestOffset
	}
	return nil
}

// onConsumed records application-level reads, which shouldUpdateMax
// compares against the last window update. The window size itself is
// fixed: it does not grow however quickly the application drains.
func (f *flowControl) onConsumed(n uint64) {
	f.consumed += n
}

// shouldUpdateMax reports whether enough of the advertised window has
// been consumed to justify sending a new MAX_DATA/MAX_STREAM_DATA frame,
// and if so returns the new limit to advertise.
func (f *flowControl) shouldUpdateMax() (newMax uint64, ok bool) {
	if f.autoTuneWindow == 0 {
		f.autoTuneWindow = f.maxAllowed
	}
	threshold := f.autoTuneWindow / 2
	if f.consumed < f.windowUpdateAt+threshold {
		return 0, false
	}
	newMax = f.consumed + f.autoTuneWindow
	f.maxAllowed = newMax
	f.windowUpdateAt = f.consumed
	return newMax, true
}
