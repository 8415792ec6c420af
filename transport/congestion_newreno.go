package transport

import "time"

// newRenoController implements the congestion controller described in
// RFC 9002 appendix B, with the proportional-rate-reduction (PRR)
// refinement for recovery-phase sending (RFC 6937), mirrored from the
// recovery/prr.rs and recovery/persistent_congestion.rs logic of the
// reference implementation this engine's recovery layer is modelled on.
type newRenoController struct {
	congestionWindowBytes uint64
	slowStartThreshold    uint64
	bytesInFlightV        uint64

	recoveryStartTime time.Time
	inRecovery        bool

	// PRR state (RFC 6937 section 3).
	prrDelivered    uint64
	prrOut          uint64
	recoveryWindow  uint64

	maxDatagram uint64
}

func newNewRenoController(maxDatagram uint64) *newRenoController {
	if maxDatagram == 0 {
		maxDatagram = maxDatagramSize
	}
	return &newRenoController{
		congestionWindowBytes: initialCongestionWindowPackets * maxDatagram,
		slowStartThreshold:    ^uint64(0),
		maxDatagram:           maxDatagram,
	}
}

func (c *newRenoController) onPacketSent(now time.Time, sentBytes int, bytesInFlight int) {
	c.bytesInFlightV = uint64(bytesInFlight)
	if c.inRecovery {
		c.prrOut += uint64(sentBytes)
	}
}

func (c *newRenoController) inSlowStart() bool {
	return c.congestionWindowBytes < c.slowStartThreshold
}

func (c *newRenoController) onPacketAcked(now time.Time, sentTime time.Time, ackedBytes int, bytesInFlight int, rtt time.Duration) {
	c.bytesInFlightV = uint64(bytesInFlight)
	if c.isInRecovery(sentTime) {
		c.prrOnAck(uint64(ackedBytes))
		return
	}
	if c.inRecovery && sentTime.After(c.recoveryStartTime) {
		c.inRecovery = false
	}
	if c.inSlowStart() {
		c.congestionWindowBytes += uint64(ackedBytes)
		return
	}
	// Congestion avoidance, RFC 9002 appendix B.5.
	c.congestionWindowBytes += c.maxDatagram * uint64(ackedBytes) / c.congestionWindowBytes
}

// prrOnAck implements RFC 6937 section 3's sending-rate limiter while in
// recovery, used here to cap how much congestionWindow effectively
// permits until the window has drained back to the reduced target.
func (c *newRenoController) prrOnAck(ackedBytes uint64) {
	c.prrDelivered += ackedBytes
	if c.bytesInFlightV > c.recoveryWindow {
		// Still above target: send nothing extra beyond what's acked.
		return
	}
	sendable := c.prrDelivered*c.congestionWindowBytes/c.slowStartThreshold + c.maxDatagram
	if sendable > c.prrOut {
		c.congestionWindowBytes = c.bytesInFlightV + (sendable - c.prrOut)
	}
}

func (c *newRenoController) onPacketsLost(now time.Time, lostBytes int, bytesInFlight int, persistentCongestion bool) {
	c.bytesInFlightV = uint64(bytesInFlight)
	if persistentCongestion {
		c.congestionWindowBytes = minCongestionWindowPackets * c.maxDatagram
		c.inRecovery = false
	}
}

// onCongestionEvent reduces the window once per RTT, RFC 9002
// appendix B.6, and enters PRR-governed recovery.
func (c *newRenoController) onCongestionEvent(now time.Time, sentTime time.Time) {
	if c.isInRecovery(sentTime) {
		return
	}
	c.recoveryStartTime = now
	c.inRecovery = true
	c.slowStartThreshold = c.congestionWindowBytes / 2
	if c.slowStartThreshold < minCongestionWindowPackets*c.maxDatagram {
		c.slowStartThreshold = minCongestionWindowPackets * c.maxDatagram
	}
	c.recoveryWindow = c.slowStartThreshold
	c.congestionWindowBytes = c.slowStartThreshold
	c.prrDelivered = 0
	c.prrOut = 0
}

func (c *newRenoController) isInRecovery(sentTime time.Time) bool {
	return c.inRecovery && !sentTime.After(c.recoveryStartTime)
}

func (c *newRenoController) congestionWindow() uint64 {
	return c.congestionWindowBytes
}

func (c *newRenoController) bytesInFlightAllowed() uint64 {
	if c.bytesInFlightV >= c.congestionWindowBytes {
		return 0
	}
	return c.congestionWindowBytes - c.bytesInFlightV
}
