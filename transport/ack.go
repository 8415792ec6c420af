package transport

import "time"

// ackTransmissionState models when a packet-number space owes the peer
// an ACK frame, following the three-state machine described for ACK
// transmission in the reference QUIC implementation this engine's
// recovery code is modelled on: Disabled (nothing received yet),
// Active (an ACK-eliciting packet arrived and a frame must go out,
// possibly after a short delay to allow coalescing), and Passive (the
// last ACK sent covered everything ack-eliciting received; no ACK goes
// out until a new ACK-eliciting packet moves the state back to Active).
type ackTransmissionState int

const (
	ackStateDisabled ackTransmissionState = iota
	ackStateActive
	ackStatePassive
)

// ackManager accumulates received packet numbers for one packet-number
// space and decides when an ACK frame is owed, applying the
// max_ack_delay timer, the every-second-ack-eliciting-packet rule and an
// immediate ACK for a gap-filling packet (RFC 9000 section 13.2.1-2).
type ackManager struct {
	state ackTransmissionState

	received pnRangeSet
	largestRecvTime time.Time

	ackElicitingSinceLastAck int
	maxAckDelay              time.Duration
	ackDelayExponent         uint8

	needsImmediateAck bool // set by a gap-filling ack-eliciting packet, or once two arrive since the last ACK
	lastSentLargest   uint64
	haveSentAck       bool
}

func newAckManager(maxAckDelay time.Duration, ackDelayExponent uint8) *ackManager {
	return &ackManager{maxAckDelay: maxAckDelay, ackDelayExponent: ackDelayExponent}
}

// onPacketReceived records pn as received, returning whether it was a
// duplicate.
func (m *ackManager) onPacketReceived(pn uint64, now time.Time, ackEliciting bool) (duplicate bool) {
	if m.received.contains(pn) {
		return true
	}
	wasLargest, _ := m.received.largestValue()
	m.received.insert(pn)
	if largest, ok := m.received.largestValue(); ok && (largest == pn && pn >= wasLargest) {
		m.largestRecvTime = now
	}
	if ackEliciting {
		m.ackElicitingSinceLastAck++
		if m.state != ackStateActive {
			m.state = ackStateActive
		}
		if pn < wasLargest {
			// A new packet below the largest already received fills a gap:
			// acknowledge it without waiting for the delay timer.
			m.needsImmediateAck = true
		}
		if m.ackElicitingSinceLastAck >= 2 {
			m.needsImmediateAck = true
		}
	}
	return false
}

// shouldSendAck reports whether an ACK frame should be generated now,
// given the max_ack_delay budget.
func (m *ackManager) shouldSendAck(now time.Time) bool {
	switch m.state {
	case ackStateDisabled:
		return false
	case ackStatePassive:
		return !m.haveSentAck || m.needsImmediateAck
	default: // ackStateActive
		if m.needsImmediateAck || m.ackElicitingSinceLastAck >= 2 {
			return true
		}
		return !m.largestRecvTime.IsZero() && now.Sub(m.largestRecvTime) >= m.maxAckDelay
	}
}

// ackDelay computes the ACK Delay field value (in the wire's
// 2^ackDelayExponent microsecond units) for an ACK sent at now.
func (m *ackManager) ackDelay(now time.Time) uint64 {
	if m.largestRecvTime.IsZero() {
		return 0
	}
	d := now.Sub(m.largestRecvTime)
	if d < 0 {
		d = 0
	}
	micros := uint64(d.Microseconds())
	return micros >> m.ackDelayExponent
}

// onAckSent records that an ACK frame covering up to largest has been
// queued, transitioning Active -> Passive until new ACK-eliciting
// packets arrive.
func (m *ackManager) onAckSent(largest uint64) {
	m.haveSentAck = true
	m.lastSentLargest = largest
	m.ackElicitingSinceLastAck = 0
	m.needsImmediateAck = false
	if m.state == ackStateActive {
		m.state = ackStatePassive
	}
}

// trimBelow discards received packet numbers below smallest, bounding ackManager memory the same way recovery does for sent
// packets (spec.md section 8, TESTABLE PROPERTY 6).
func (m *ackManager) trimBelow(smallest uint64) {
	m.received.removeUntil(smallest - 1)
}
