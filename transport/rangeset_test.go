package transport

import "testing"

func TestPnRangeSetInsertMerge(t *testing.T) {
	var s pnRangeSet
	for _, pn := range []uint64{5, 7, 6, 1, 2, 10} {
		s.insert(pn)
	}
	for _, pn := range []uint64{1, 2, 5, 6, 7, 10} {
		if !s.contains(pn) {
			t.Errorf("contains(%d) = false, want true", pn)
		}
	}
	for _, pn := range []uint64{0, 3, 4, 8, 9, 11} {
		if s.contains(pn) {
			t.Errorf("contains(%d) = true, want false", pn)
		}
	}
	largest, ok := s.largestValue()
	if !ok || largest != 10 {
		t.Fatalf("largestValue() = (%d, %v), want (10, true)", largest, ok)
	}
	// 5,6,7 merged into one range, 1,2 into another, 10 alone: 3 ranges.
	if len(s.ranges) != 3 {
		t.Fatalf("ranges = %v, want 3 disjoint ranges", s.ranges)
	}
}

func TestPnRangeSetInsertDuplicate(t *testing.T) {
	var s pnRangeSet
	s.insert(5)
	s.insert(5)
	if len(s.ranges) != 1 || s.ranges[0] != (pnRange{5, 5}) {
		t.Fatalf("ranges = %v, want single [5,5]", s.ranges)
	}
}

func TestPnRangeSetRemoveUntil(t *testing.T) {
	var s pnRangeSet
	for _, pn := range []uint64{1, 2, 3, 10, 11, 20} {
		s.insert(pn)
	}
	s.removeUntil(10)
	if s.contains(1) || s.contains(10) {
		t.Fatalf("removeUntil(10) left ranges %v", s.ranges)
	}
	if !s.contains(11) || !s.contains(20) {
		t.Fatalf("removeUntil(10) dropped survivors: %v", s.ranges)
	}

	s.removeUntil(100)
	if !s.empty() {
		t.Fatalf("removeUntil(100) should empty the set, got %v", s.ranges)
	}
}

func TestPnRangeSetAckRoundTrip(t *testing.T) {
	var s pnRangeSet
	for _, pn := range []uint64{1, 2, 3, 10, 11, 20} {
		s.insert(pn)
	}
	largest, firstRange, blocks := s.toAckRanges(0)
	got := rangeSetFromAck(largest, firstRange, blocks)
	if got == nil {
		t.Fatal("rangeSetFromAck returned nil for a valid encoding")
	}
	for _, pn := range []uint64{1, 2, 3, 10, 11, 20} {
		if !got.contains(pn) {
			t.Errorf("round-tripped set missing %d: %v", pn, got.ranges)
		}
	}
	if got.contains(4) || got.contains(12) {
		t.Errorf("round-tripped set gained members: %v", got.ranges)
	}
}

func TestRangeSetFromAckMalformed(t *testing.T) {
	if rangeSetFromAck(5, 10, nil) != nil {
		t.Fatal("firstRange > largest must be rejected")
	}
	if rangeSetFromAck(10, 2, []ackRange{{gap: 100, length: 0}}) != nil {
		t.Fatal("a gap that underflows smallest must be rejected")
	}
}
