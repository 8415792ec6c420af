package transport

import "time"

// RFC 9002 section 6.1.2 / 5.3 constants.
const (
	packetThreshold          = 3
	timeThresholdNumerator   = 9
	timeThresholdDenominator = 8
	granularity              = time.Millisecond
	initialRTT               = 333 * time.Millisecond
	// persistentCongestionDurationPTOs is the number of consecutive PTO
	// periods (section 7.6) a loss window must span before it counts as
	// persistent congestion: the sum of the PTO backoff at counts 0, 1
	// and 2 (2^0 + 2^1 + 2^2 = 7), not including max_ack_delay, which is
	// added back exactly once.
	persistentCongestionDurationPTOs = 7
)

// rttEstimator implements RFC 9002 appendix A.3's smoothed/variance RTT
// model.
type rttEstimator struct {
	latest    time.Duration
	min       time.Duration
	smoothed  time.Duration
	variance  time.Duration
	hasSample bool
}

func newRTTEstimator() *rttEstimator {
	return &rttEstimator{smoothed: initialRTT, variance: initialRTT / 2}
}

// update folds a fresh RTT sample in, ackDelay being the peer-reported
// ACK Delay (already decoded to a duration, capped by the caller at the
// peer's max_ack_delay transport parameter).
func (r *rttEstimator) update(sample, ackDelay time.Duration) {
	r.latest = sample
	if !r.hasSample {
		r.hasSample = true
		r.min = sample
		r.smoothed = sample
		r.variance = sample / 2
		return
	}
	if sample < r.min {
		r.min = sample
	}
	adjusted := sample
	if sample >= r.min+ackDelay {
		adjusted = sample - ackDelay
	}
	rttVarSample := absDuration(r.smoothed - adjusted)
	r.variance = (r.variance*3 + rttVarSample) / 4
	r.smoothed = (r.smoothed*7 + adjusted) / 8
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// pto returns the probe timeout duration for a given number of
// consecutive PTO expirations, RFC 9002 section 6.2.1.
func (r *rttEstimator) pto(maxAckDelay time.Duration, ptoCount int) time.Duration {
	base := r.ptoBase() + maxAckDelay
	for i := 0; i < ptoCount; i++ {
		base *= 2
	}
	return base
}

// ptoBase returns the RTT-derived component of the probe timeout,
// excluding max_ack_delay.
func (r *rttEstimator) ptoBase() time.Duration {
	return r.smoothed + maxDuration(4*r.variance, granularity)
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// recoverySpace is the loss-detection bookkeeping recovery keeps per
// packet-number space: in-flight packets awaiting ACK or loss
// declaration, and the largest acknowledged so far.
type recoverySpace struct {
	sent          []sentPacketInfo // ascending packet number, in-flight or awaiting loss decision
	largestAcked  uint64
	hasLargestAcked bool
	lossTime      time.Time
	ptoCount      int
}

// recovery coordinates loss detection and congestion control across all
// three packet-number spaces for one connection, RFC 9002 sections 5-7.
type recovery struct {
	spaces [packetSpaceCount]recoverySpace

	rtt rttEstimator
	cc  congestionController

	bytesInFlight int

	maxAckDelay time.Duration

	handshakeConfirmed bool
}

func newRecovery(cc congestionController, maxAckDelay time.Duration) *recovery {
	return &recovery{cc: cc, rtt: *newRTTEstimator(), maxAckDelay: maxAckDelay}
}

// onPacketSent records a freshly sent packet for loss-detection purposes
// and credits the congestion controller's in-flight accounting.
func (r *recovery) onPacketSent(space packetSpace, pn uint64, now time.Time, size int, ackEliciting bool, frames []frame) {
	info := sentPacketInfo{
		packetNumber: pn,
		sentTime:     now,
		size:         size,
		ackEliciting: ackEliciting,
		inFlight:     ackEliciting,
		frames:       frames,
	}
	r.spaces[space].sent = append(r.spaces[space].sent, info)
	if ackEliciting {
		r.bytesInFlight += size
		r.cc.onPacketSent(now, size, r.bytesInFlight)
	}
}

// onAckReceived processes a decoded ACK frame: credits newly acked
// packets to RTT/congestion-control and returns their retained frames
// so the caller can mark stream/crypto data acked and release
// retransmission state for anything that was lost in the process.
func (r *recovery) onAckReceived(space packetSpace, largest uint64, ranges *pnRangeSet, ackDelay time.Duration, now time.Time) (ackedFrames [][]frame, newlyAcked bool) {
	sp := &r.spaces[space]
	if !sp.hasLargestAcked || largest > sp.largestAcked {
		sp.largestAcked = largest
		sp.hasLargestAcked = true
	}
	var remaining []sentPacketInfo
	var latestAckedSentTime time.Time
	var latestAckedNewest time.Time
	for _, p := range sp.sent {
		if ranges.contains(p.packetNumber) {
			newlyAcked = true
			if p.inFlight {
				r.bytesInFlight -= p.size
				r.cc.onPacketAcked(now, p.sentTime, p.size, r.bytesInFlight, now.Sub(p.sentTime))
			}
			if len(p.frames) > 0 {
				ackedFrames = append(ackedFrames, p.frames)
			}
			if p.packetNumber == largest {
				latestAckedSentTime = p.sentTime
				latestAckedNewest = now
			}
			continue
		}
		remaining = append(remaining, p)
	}
	sp.sent = remaining
	if !latestAckedSentTime.IsZero() {
		sample := latestAckedNewest.Sub(latestAckedSentTime)
		if sample > 0 {
			r.rtt.update(sample, ackDelay)
		}
	}
	sp.ptoCount = 0
	return ackedFrames, newlyAcked
}

// detectLostPackets applies RFC 9002 section 6.1's packet- and
// time-threshold rules and returns the frames carried by newly lost
// packets (for retransmission) plus whether the loss satisfies the
// persistent-congestion window (RFC 9002 section 7.6).
func (r *recovery) detectLostPackets(space packetSpace, now time.Time) (lostFrames [][]frame, persistentCongestion bool) {
	sp := &r.spaces[space]
	if !sp.hasLargestAcked {
		return nil, false
	}
	lossDelay := time.Duration(timeThresholdNumerator) * maxDuration(r.rtt.latest, r.rtt.smoothed) / timeThresholdDenominator
	lossDelay = maxDuration(lossDelay, granularity)

	var remaining []sentPacketInfo
	var lostBytes int
	var earliestLost, latestLost time.Time
	sp.lossTime = time.Time{}
	for _, p := range sp.sent {
		if p.packetNumber > sp.largestAcked {
			remaining = append(remaining, p)
			continue
		}
		lostByCount := sp.largestAcked-p.packetNumber >= packetThreshold
		lostByTime := now.Sub(p.sentTime) >= lossDelay
		if lostByCount || lostByTime {
			if len(p.frames) > 0 {
				lostFrames = append(lostFrames, p.frames)
			}
			if p.inFlight {
				lostBytes += p.size
			}
			if earliestLost.IsZero() || p.sentTime.Before(earliestLost) {
				earliestLost = p.sentTime
			}
			if p.sentTime.After(latestLost) {
				latestLost = p.sentTime
			}
			continue
		}
		lossTimeCandidate := p.sentTime.Add(lossDelay)
		if sp.lossTime.IsZero() || lossTimeCandidate.Before(sp.lossTime) {
			sp.lossTime = lossTimeCandidate
		}
		remaining = append(remaining, p)
	}
	sp.sent = remaining
	if lostBytes > 0 {
		if !earliestLost.IsZero() && !latestLost.IsZero() {
			threshold := r.rtt.ptoBase()*persistentCongestionDurationPTOs + r.maxAckDelay
			if latestLost.Sub(earliestLost) >= threshold {
				persistentCongestion = true
			}
		}
		r.bytesInFlight -= lostBytes
		if r.bytesInFlight < 0 {
			r.bytesInFlight = 0
		}
		r.cc.onPacketsLost(now, lostBytes, r.bytesInFlight, persistentCongestion)
		r.cc.onCongestionEvent(now, latestLost)
	}
	return lostFrames, persistentCongestion
}

// lossDetectionTimeout returns the earliest deadline at which recovery
// needs to run again: either the time-threshold loss timer of whichever
// space has in-flight data, or a probe timeout (RFC 9002 section 6.2).
func (r *recovery) lossDetectionTimeout(now time.Time, anchorSent time.Time, ptoCount int) (time.Time, bool) {
	earliest := time.Time{}
	for i := range r.spaces {
		lt := r.spaces[i].lossTime
		if lt.IsZero() {
			continue
		}
		if earliest.IsZero() || lt.Before(earliest) {
			earliest = lt
		}
	}
	if !earliest.IsZero() {
		return earliest, true
	}
	if anchorSent.IsZero() {
		return time.Time{}, false
	}
	return anchorSent.Add(r.rtt.pto(r.maxAckDelay, ptoCount)), true
}

// largestAckedBySpace returns the largest packet number the peer has
// acknowledged in space, or 0 if nothing has been acked yet there.
func (r *recovery) largestAckedBySpace(space packetSpace) uint64 {
	return r.spaces[space].largestAcked
}

// canSend reports whether size more bytes may be sent without exceeding
// the congestion window.
func (r *recovery) canSend(size int) bool {
	return uint64(size) <= r.cc.bytesInFlightAllowed()
}
