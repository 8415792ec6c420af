package transport

import "testing"

func TestFlowControlSendSide(t *testing.T) {
	f := &flowControl{limit: 100}
	if !f.canSend(100) {
		t.Fatal("canSend(100) against limit 100 should be true")
	}
	if f.canSend(101) {
		t.Fatal("canSend(101) against limit 100 should be false")
	}
	if err := f.consume(60); err != nil {
		t.Fatalf("consume(60): %v", err)
	}
	if got := f.credit(); got != 40 {
		t.Fatalf("credit() = %d, want 40", got)
	}
	if err := f.consume(41); err == nil {
		t.Fatal("consume(41) should exceed remaining credit")
	}
	if err := f.consume(40); err != nil {
		t.Fatalf("consume(40): %v", err)
	}
	if !f.isBlocked() {
		t.Fatal("isBlocked() should be true once used == limit")
	}
	f.ackBlocked()
	if f.isBlocked() {
		t.Fatal("isBlocked() should clear after ackBlocked")
	}
	f.setLimit(200)
	if f.credit() != 100 {
		t.Fatalf("credit() after raising limit = %d, want 100", f.credit())
	}
	if f.isBlocked() {
		t.Fatal("isBlocked() should clear once the limit is raised")
	}
}

func TestFlowControlLimitNeverShrinks(t *testing.T) {
	f := &flowControl{limit: 100}
	f.setLimit(50)
	if f.limit != 100 {
		t.Fatalf("setLimit(50) on limit 100 changed it to %d", f.limit)
	}
}

func TestFlowControlReceiveSide(t *testing.T) {
	f := &flowControl{maxAllowed: 100}
	if err := f.receive(50); err != nil {
		t.Fatalf("receive(50): %v", err)
	}
	if err := f.receive(101); err == nil {
		t.Fatal("receive(101) should exceed maxAllowed")
	}
	// A retransmitted frame with a smaller offset must not move used backwards.
	if err := f.receive(10); err != nil {
		t.Fatalf("receive(10): %v", err)
	}
	if f.used != 50 {
		t.Fatalf("used = %d after a lower retransmitted offset, want 50", f.used)
	}
}

func TestFlowControlWindowAutoTune(t *testing.T) {
	f := &flowControl{maxAllowed: 100}
	if _, ok := f.shouldUpdateMax(); ok {
		t.Fatal("shouldUpdateMax() should be false before any consumption")
	}
	f.onConsumed(60)
	newMax, ok := f.shouldUpdateMax()
	if !ok {
		t.Fatal("shouldUpdateMax() should fire once consumed exceeds half the window")
	}
	if newMax != 160 {
		t.Fatalf("shouldUpdateMax() newMax = %d, want 160", newMax)
	}
	if f.maxAllowed != 160 {
		t.Fatalf("maxAllowed = %d after update, want 160", f.maxAllowed)
	}
}
