package transport

import "time"

// sentPacketInfo is what recovery retains about one in-flight packet,
// enough to detect its loss and credit/debit the congestion controller
// when it is acked or declared lost.
type sentPacketInfo struct {
	packetNumber    uint64
	sentTime        time.Time
	size            int
	ackEliciting    bool
	inFlight        bool
	includesCrypto  bool
	frames          []frame // retained verbatim for retransmission of their content
}

// congestionController is the pluggable interface recovery drives,
// matching the shape of a swappable congestion-control trait: every
// method is a pure transition driven by recovery's observations, never
// by wall-clock polling.
type congestionController interface {
	onPacketSent(now time.Time, sentBytes int, bytesInFlight int)
	onPacketAcked(now time.Time, sentTime time.Time, ackedBytes int, bytesInFlight int, rtt time.Duration)
	onPacketsLost(now time.Time, lostBytes int, bytesInFlight int, persistentCongestion bool)
	onCongestionEvent(now time.Time, sentTime time.Time)
	congestionWindow() uint64
	bytesInFlightAllowed() uint64
	isInRecovery(sentTime time.Time) bool
}

// minCongestionWindowPackets and initialCongestionWindowPackets are the
// RFC 9002 section 7.2 defaults, counted in datagrams of maxDatagramSize.
const (
	minCongestionWindowPackets   = 2
	initialCongestionWindowPackets = 10
	maxDatagramSize              = 1452
)
