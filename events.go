package quic

import (
	"net"

	"github.com/nyxquic/quic/transport"
)

// Re-exported so callers working against this package never need to
// import transport directly just to switch on an event type.
const (
	EventConnAccept    = transport.EventConnAccept
	EventConnClose     = transport.EventConnClose
	EventStreamRecv    = transport.EventStreamRecv
	EventStreamReset   = transport.EventStreamReset
	EventStreamStop    = transport.EventStreamStop
	EventPathChallenge = transport.EventPathChallenge
	EventDatagram      = transport.EventDatagram
)

// Conn is the application-facing view of one connection: enough of
// transport.Conn's surface to read and write streams, plus the address
// an endpoint routes its datagrams on.
type Conn interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	Stream(id uint64) (*transport.Stream, error)
	OpenStream(bidi bool) (*transport.Stream, error)

	Close(errorCode uint64, reason string) error
	IsEstablished() bool
}

// Handler processes the events an Endpoint collects off a connection
// each time it drives that connection's state machine forward. Serve is
// called from the Endpoint's own loop, which drives every connection the
// Endpoint owns; a slow handler stalls all of them.
type Handler interface {
	Serve(c Conn, events []transport.Event)
}

// connAdapter implements Conn and quic.Handler's Close signature around
// a *remoteConn's underlying transport.Conn.
type connAdapter struct {
	rc *remoteConn
}

func (a connAdapter) LocalAddr() net.Addr  { return a.rc.conn.LocalAddr() }
func (a connAdapter) RemoteAddr() net.Addr { return a.rc.addr }

func (a connAdapter) Stream(id uint64) (*transport.Stream, error) {
	return a.rc.conn.Stream(id)
}

func (a connAdapter) OpenStream(bidi bool) (*transport.Stream, error) {
	return a.rc.conn.OpenStream(bidi)
}

func (a connAdapter) Close(errorCode uint64, reason string) error {
	a.rc.conn.Close(errorCode, reason)
	return nil
}

func (a connAdapter) IsEstablished() bool {
	return a.rc.conn.IsEstablished()
}
