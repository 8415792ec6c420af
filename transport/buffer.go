package transport

// offsetRangeSet is a smallest-first set of disjoint byte-offset ranges,
// used by sendBuffer to track which offsets are still pending
// transmission (including bytes requeued after loss).
type offsetRangeSet struct {
	ranges []pnRange
}

func (s *offsetRangeSet) insertRange(smallest, largest uint64) {
	if largest < smallest {
		return
	}
	i := 0
	for ; i < len(s.ranges); i++ {
		if s.ranges[i].largest+1 >= smallest {
			break
		}
	}
	if i == len(s.ranges) {
		s.ranges = append(s.ranges, pnRange{smallest: smallest, largest: largest})
		return
	}
	if s.ranges[i].smallest > largest+1 {
		s.ranges = append(s.ranges, pnRange{})
		copy(s.ranges[i+1:], s.ranges[i:])
		s.ranges[i] = pnRange{smallest: smallest, largest: largest}
		return
	}
	if smallest < s.ranges[i].smallest {
		s.ranges[i].smallest = smallest
	}
	if largest > s.ranges[i].largest {
		s.ranges[i].largest = largest
	}
	// Merge with any following ranges now overlapped.
	j := i + 1
	for j < len(s.ranges) && s.ranges[j].smallest <= s.ranges[i].largest+1 {
		if s.ranges[j].largest > s.ranges[i].largest {
			s.ranges[i].largest = s.ranges[j].largest
		}
		j++
	}
	s.ranges = append(s.ranges[:i+1], s.ranges[j:]...)
}

// popFront removes and returns up to max bytes from the lowest-offset
// pending range.
func (s *offsetRangeSet) popFront(max uint64) (offset, length uint64, ok bool) {
	if len(s.ranges) == 0 || max == 0 {
		return 0, 0, false
	}
	r := &s.ranges[0]
	offset = r.smallest
	length = r.largest - r.smallest + 1
	if length > max {
		length = max
	}
	r.smallest += length
	if r.smallest > r.largest {
		s.ranges = s.ranges[1:]
	}
	return offset, length, true
}

func (s *offsetRangeSet) empty() bool {
	return len(s.ranges) == 0
}

// sendBuffer is the outgoing half of a reliable byte stream (used by both
// application streams and the per-space crypto stream), spec.md section 3.
type sendBuffer struct {
	data []byte // all pushed bytes, data[0] is offset `base`
	base uint64

	pending offsetRangeSet // offsets not yet sent, or lost and needing resend

	finalSize    uint64
	hasFinalSize bool
	ackedUpTo    uint64 // contiguous acked prefix, starting at original base 0
	finAcked     bool

	lostPending bool // some currently-pending range was requeued after loss, not a fresh write
}

// push appends or requeues data at offset. Offsets at or past the current
// tail extend the buffer (an application write); offsets below the tail
// re-queue already-buffered bytes for retransmission after loss. isLoss
// marks a requeue coming from loss detection rather than a fresh write,
// feeding sendBuffer.interest.
func (b *sendBuffer) push(data []byte, offset uint64, fin bool, isLoss bool) error {
	if isLoss {
		b.lostPending = true
	}
	if len(data) > 0 {
		tail := b.base + uint64(len(b.data))
		if offset+uint64(len(data)) > tail {
			if offset < tail {
				// Overlaps existing data with new bytes past the tail: append only the new suffix.
				newStart := tail - offset
				data = data[newStart:]
				offset = tail
			}
			b.data = append(b.data, data...)
		}
	}
	if fin {
		end := offset + uint64(len(data))
		if b.hasFinalSize && b.finalSize != end {
			return errFinalSize
		}
		b.hasFinalSize = true
		b.finalSize = end
	}
	if len(data) > 0 {
		b.pending.insertRange(offset, offset+uint64(len(data))-1)
	} else if fin {
		// FIN-only chunk: nothing to send but the FIN bit, represented as
		// a one-offset pending marker at the final offset that popSend
		// turns into a zero-length chunk.
		end := offset + uint64(len(data))
		b.pending.insertRange(end, end)
	}
	return nil
}

// popSend removes up to max bytes of the lowest pending offset and
// returns them along with whether this chunk carries the stream's FIN.
func (b *sendBuffer) popSend(max int) (data []byte, offset uint64, fin bool) {
	if max <= 0 {
		return nil, 0, false
	}
	offset, length, ok := b.pending.popFront(uint64(max))
	if !ok {
		return nil, 0, false
	}
	if b.hasFinalSize && offset+length > b.finalSize {
		// The FIN marker at finalSize carries no data byte.
		length = b.finalSize - offset
	}
	if length == 0 {
		// FIN-only chunk.
		return nil, offset, true
	}
	start := offset - b.base
	data = b.data[start : start+length]
	fin = b.hasFinalSize && offset+length == b.finalSize
	return data, offset, fin
}

// ack marks [offset, offset+length) as acknowledged, freeing a contiguous
// acked prefix from the retained buffer.
func (b *sendBuffer) ack(offset, length uint64) {
	if offset == b.ackedUpTo {
		b.ackedUpTo += length
		if uint64(len(b.data)) > b.ackedUpTo-b.base {
			b.data = b.data[b.ackedUpTo-b.base:]
		} else {
			b.data = nil
		}
		b.base = b.ackedUpTo
	}
	if b.hasFinalSize && offset+length == b.finalSize {
		b.finAcked = true
	}
}

// complete reports whether all data and the FIN have been acknowledged.
func (b *sendBuffer) complete() bool {
	return b.hasFinalSize && b.ackedUpTo >= b.finalSize && b.finAcked
}

// flushable reports whether there is anything ready to send right now.
func (b *sendBuffer) flushable() bool {
	return !b.pending.empty()
}

// interest reports this buffer's position in the None < NewData <
// LostData lattice (spec.md section 4.9 step 3): empty is None,
// otherwise LostData if any pending range came from a requeue after
// loss, NewData if everything pending is an original write.
func (b *sendBuffer) interest() transmissionInterest {
	if b.pending.empty() {
		b.lostPending = false
		return interestNone
	}
	if b.lostPending {
		return interestLostData
	}
	return interestNewData
}
