// Package quicmetrics turns a connection's event stream into Prometheus
// counters. It is deliberately outside both the transport and root quic
// packages: the core engine only has to emit a stable event stream,
// never link against a metrics client to do it.
package quicmetrics

import (
	"github.com/docker/go-events"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nyxquic/quic/transport"
)

// Collector is a go-events.Sink that records Prometheus counters from
// the coarse connection/stream lifecycle events
// transport.Conn.OnEvent publishes. Attach one per process, not per
// connection: (*transport.Conn).OnEvent(collector) for every accepted
// or dialed connection.
type Collector struct {
	connsAccepted prometheus.Counter
	connsClosed   prometheus.Counter
	streamsRecv   prometheus.Counter
	streamsReset  prometheus.Counter
	datagramsRecv prometheus.Counter
}

// NewCollector builds a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quic",
			Name:      "connections_accepted_total",
			Help:      "Connections that completed their handshake.",
		}),
		connsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quic",
			Name:      "connections_closed_total",
			Help:      "Connections that have fully closed.",
		}),
		streamsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quic",
			Name:      "stream_data_received_total",
			Help:      "STREAM frames delivered to the application.",
		}),
		streamsReset: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quic",
			Name:      "streams_reset_total",
			Help:      "Streams ended by a RESET_STREAM frame.",
		}),
		datagramsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quic",
			Name:      "datagrams_received_total",
			Help:      "RFC 9221 DATAGRAM frames received.",
		}),
	}
	reg.MustRegister(c.connsAccepted, c.connsClosed, c.streamsRecv, c.streamsReset, c.datagramsRecv)
	return c
}

// Write implements events.Sink.
func (c *Collector) Write(ev events.Event) error {
	e, ok := ev.(transport.Event)
	if !ok {
		return nil
	}
	switch e.Type {
	case transport.EventConnAccept:
		c.connsAccepted.Inc()
	case transport.EventConnClose:
		c.connsClosed.Inc()
	case transport.EventStreamRecv:
		c.streamsRecv.Inc()
	case transport.EventStreamReset:
		c.streamsReset.Inc()
	case transport.EventDatagram:
		c.datagramsRecv.Inc()
	}
	return nil
}

// Close implements events.Sink; the collector itself holds no resources
// to release.
func (c *Collector) Close() error {
	return nil
}
