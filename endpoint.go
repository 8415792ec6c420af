package quic

import (
	"crypto/rand"
	"io"
	"net"
	"time"

	"github.com/docker/go-events"

	"github.com/nyxquic/quic/transport"
)

// Endpoint demultiplexes inbound UDP datagrams by destination connection
// id onto the right remoteConn, and drives every connection it owns
// forward on a single goroutine: one read loop, one place frames and
// timeouts are processed, so a Handler never has to synchronize against
// the connection it was just handed. Grounded on golang.org/x/net/quic's
// Endpoint (acceptQueue, connsMap) for the overall shape, adapted to the
// poll-driven transport.Conn this module builds instead of that
// package's goroutine-per-connection model.
type Endpoint struct {
	pc     net.PacketConn
	config *transport.Config // nil on a client-only endpoint: never accepts

	handler Handler
	logger  *logger
	metrics events.Sink

	reset    resetSigner
	registry *connRegistry
	scidLen  int

	acceptQueue chan *remoteConn

	closing chan struct{}
	closed  chan struct{}
}

const defaultCIDLen = 8

func newEndpoint(pc net.PacketConn, config *transport.Config) *Endpoint {
	if config != nil && len(config.StatelessResetKey) == 0 {
		key := make([]byte, 32)
		_, _ = rand.Read(key)
		config.StatelessResetKey = key
	}
	var key []byte
	if config != nil {
		key = config.StatelessResetKey
	}
	e := &Endpoint{
		pc:          pc,
		config:      config,
		logger:      newLogger(),
		reset:       newResetSigner(key),
		registry:    newConnRegistry(),
		scidLen:     defaultCIDLen,
		acceptQueue: make(chan *remoteConn, 16),
		closing:     make(chan struct{}),
		closed:      make(chan struct{}),
	}
	return e
}

// SetHandler installs the callback invoked with every event a connection
// produces as this endpoint drives it forward.
func (e *Endpoint) SetHandler(h Handler) {
	e.handler = h
}

// SetLogger enables the qlog-shaped per-packet trace at the given
// verbosity, written to w.
func (e *Endpoint) SetLogger(level int, w io.Writer) {
	e.logger.setLevel(logLevel(level))
	e.logger.setWriter(w)
}

// SetMetrics attaches sink to every connection this endpoint creates or
// accepts from now on, alongside the handler's own event queue.
func (e *Endpoint) SetMetrics(sink events.Sink) {
	e.metrics = sink
}

func (e *Endpoint) attachMetrics(rc *remoteConn) {
	if e.metrics != nil {
		rc.conn.OnEvent(e.metrics)
	}
}

// serve runs the read loop until Close is called.
func (e *Endpoint) serve() {
	defer close(e.closed)
	buf := make([]byte, transport.MaxPacketSize)
	for {
		select {
		case <-e.closing:
			return
		default:
		}
		_ = e.pc.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, from, err := e.pc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				e.sweepTimeouts()
				continue
			}
			return
		}
		e.handleDatagram(append([]byte(nil), buf[:n]...), from)
		e.sweepTimeouts()
	}
}

func (e *Endpoint) handleDatagram(b []byte, from net.Addr) {
	dcid, _, longType, isLong, ok := peekHeader(b, e.scidLen)
	if !ok {
		return
	}
	rc := e.registry.lookup(dcid)
	if rc == nil {
		if !isLong || longType != longTypeInitial || e.handler == nil || e.config == nil {
			if !isLong && len(b) >= statelessResetMinLen {
				e.sendReset(dcid, from, len(b))
			}
			return
		}
		if len(b) < transport.MinInitialPacketSize {
			return // RFC 9000 section 14.1: undersized Initial, drop
		}
		rc = e.accept(dcid, from)
		if rc == nil {
			return
		}
	}
	e.deliver(rc, b, from)
}

func (e *Endpoint) accept(odcid []byte, from net.Addr) *remoteConn {
	if len(e.acceptQueue) >= cap(e.acceptQueue) {
		// No room to ever hand this connection to the application: refuse
		// admission outright (RFC 9000 section 4.10/10.2.3) instead of
		// creating state for a connection nothing will retrieve.
		e.refuse(odcid, from)
		return nil
	}
	scid := make([]byte, e.scidLen)
	if _, err := rand.Read(scid); err != nil {
		return nil
	}
	c, err := transport.Accept(scid, odcid, e.pc.LocalAddr(), from, e.config)
	if err != nil {
		return nil
	}
	rc := &remoteConn{conn: c, scid: scid, addr: from}
	e.registry.add(scid, rc)
	e.registry.add(odcid, rc)
	e.logger.attachLogger(rc)
	e.attachMetrics(rc)
	e.acceptQueue <- rc // room confirmed above; never blocks
	return rc
}

// refuse completes just enough of the handshake state to close
// immediately with CONNECTION_CLOSE(CONNECTION_REFUSED), RFC 9000
// section 4.10's named admission-control scenario, without registering
// anything the endpoint would need to keep tearing down later.
func (e *Endpoint) refuse(odcid []byte, from net.Addr) {
	scid := make([]byte, e.scidLen)
	if _, err := rand.Read(scid); err != nil {
		return
	}
	c, err := transport.Accept(scid, odcid, e.pc.LocalAddr(), from, e.config)
	if err != nil {
		return
	}
	c.Close(transport.ConnectionRefused, "server busy")
	buf := make([]byte, transport.MaxPacketSize)
	for {
		n, err := c.Read(buf)
		if err != nil || n == 0 {
			return
		}
		if _, err := e.pc.WriteTo(buf[:n], from); err != nil {
			return
		}
	}
}

func (e *Endpoint) sendReset(dcid []byte, from net.Addr, replyLen int) {
	pkt := e.reset.build(dcid, replyLen)
	_, _ = e.pc.WriteTo(pkt, from)
}

func (e *Endpoint) deliver(rc *remoteConn, b []byte, from net.Addr) {
	if _, err := rc.conn.Write(b); err != nil {
		return
	}
	e.flush(rc)
	e.drainEvents(rc)
	if rc.conn.IsClosed() {
		e.logger.detachLogger(rc)
		e.registry.remove(rc)
	}
}

func (e *Endpoint) flush(rc *remoteConn) {
	buf := make([]byte, transport.MaxPacketSize)
	for {
		n, err := rc.conn.Read(buf)
		if err != nil || n == 0 {
			return
		}
		if _, err := e.pc.WriteTo(buf[:n], rc.addr); err != nil {
			return
		}
	}
}

func (e *Endpoint) drainEvents(rc *remoteConn) {
	evs := rc.conn.Events()
	if len(evs) == 0 || e.handler == nil {
		return
	}
	e.handler.Serve(connAdapter{rc}, evs)
}

func (e *Endpoint) sweepTimeouts() {
	for _, rc := range e.registry.all() {
		if rc.conn.Timeout() > 0 {
			continue
		}
		rc.conn.CheckTimeout()
		e.flush(rc)
		e.drainEvents(rc)
		if rc.conn.IsClosed() {
			e.logger.detachLogger(rc)
			e.registry.remove(rc)
		}
	}
}

// Close shuts the endpoint's read loop down and releases its socket.
func (e *Endpoint) Close() error {
	select {
	case <-e.closing:
	default:
		close(e.closing)
	}
	<-e.closed
	return e.pc.Close()
}

const (
	longTypeInitial = 0
	longType0RTT    = 1
	longTypeHandshake = 2
	longTypeRetry   = 3
)

// peekHeader extracts just the connection ids from a raw datagram,
// without needing to know the packet-number space or hold any
// decryption key: long headers carry both ids and their lengths
// explicitly; short headers carry only a destination id of the fixed
// length this endpoint hands out.
func peekHeader(b []byte, localCIDLen int) (dcid, scid []byte, longType int, isLong bool, ok bool) {
	if len(b) < 1 {
		return nil, nil, 0, false, false
	}
	first := b[0]
	isLong = first&0x80 != 0
	if !isLong {
		if len(b) < 1+localCIDLen {
			return nil, nil, 0, false, false
		}
		return b[1 : 1+localCIDLen], nil, 0, false, true
	}
	if len(b) < 6 {
		return nil, nil, 0, true, false
	}
	dcidLen := int(b[5])
	off := 6
	if len(b) < off+dcidLen {
		return nil, nil, 0, true, false
	}
	dcid = b[off : off+dcidLen]
	off += dcidLen
	if len(b) < off+1 {
		return nil, nil, 0, true, false
	}
	scidLen := int(b[off])
	off++
	if len(b) < off+scidLen {
		return nil, nil, 0, true, false
	}
	scid = b[off : off+scidLen]
	longType = int((first & 0x30) >> 4)
	return dcid, scid, longType, true, true
}
