package quicmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/nyxquic/quic/transport"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write(): %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCollectorCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	events := []transport.Event{
		{Type: transport.EventConnAccept},
		{Type: transport.EventConnAccept},
		{Type: transport.EventConnClose},
		{Type: transport.EventStreamRecv},
		{Type: transport.EventStreamReset},
		{Type: transport.EventDatagram},
		{Type: transport.EventPathChallenge}, // no counter tracks this; must not panic or miscount
	}
	for _, e := range events {
		if err := c.Write(e); err != nil {
			t.Fatalf("Write(%v): %v", e.Type, err)
		}
	}

	if got := counterValue(t, c.connsAccepted); got != 2 {
		t.Errorf("connsAccepted = %v, want 2", got)
	}
	if got := counterValue(t, c.connsClosed); got != 1 {
		t.Errorf("connsClosed = %v, want 1", got)
	}
	if got := counterValue(t, c.streamsRecv); got != 1 {
		t.Errorf("streamsRecv = %v, want 1", got)
	}
	if got := counterValue(t, c.streamsReset); got != 1 {
		t.Errorf("streamsReset = %v, want 1", got)
	}
	if got := counterValue(t, c.datagramsRecv); got != 1 {
		t.Errorf("datagramsRecv = %v, want 1", got)
	}
}

func TestCollectorIgnoresNonTransportEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	if err := c.Write(struct{}{}); err != nil {
		t.Fatalf("Write() of a non-transport.Event: %v", err)
	}
	if got := counterValue(t, c.connsAccepted); got != 0 {
		t.Fatalf("connsAccepted = %v, want 0 after an unrelated event", got)
	}
}
