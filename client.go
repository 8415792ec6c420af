package quic

import (
	"fmt"
	"io"
	"net"

	"github.com/docker/go-events"

	"github.com/nyxquic/quic/transport"
)

// Client is a QUIC endpoint that only originates connections. Grounded
// on cmd/quince/client.go's existing quic.NewClient/SetHandler/
// SetLogger/ListenAndServe/Connect call shape, kept unchanged.
type Client struct {
	config *transport.Config
	ep     *Endpoint

	// Callers conventionally call SetHandler/SetLogger/SetMetrics before
	// ListenAndServe (cmd/quince does), so these are buffered until the
	// endpoint exists rather than silently dropped.
	handler Handler
	logLvl  int
	logW    io.Writer
	metrics events.Sink
}

// NewClient builds a Client around config; config.TLSConfig should at
// minimum set ServerName for the connections it originates.
func NewClient(config *transport.Config) *Client {
	return &Client{config: config}
}

// SetHandler installs the event callback for every connection this
// client originates.
func (c *Client) SetHandler(h Handler) {
	c.handler = h
	if c.ep != nil {
		c.ep.SetHandler(h)
	}
}

// SetLogger enables the qlog-shaped per-packet trace.
func (c *Client) SetLogger(level int, w io.Writer) {
	c.logLvl, c.logW = level, w
	if c.ep != nil {
		c.ep.SetLogger(level, w)
	}
}

// SetMetrics attaches sink to every connection this client originates
// from now on.
func (c *Client) SetMetrics(sink events.Sink) {
	c.metrics = sink
	if c.ep != nil {
		c.ep.SetMetrics(sink)
	}
}

// ListenAndServe binds the local UDP socket the client sends from and
// receives replies on; listenAddr may be ":0" to pick an ephemeral port.
func (c *Client) ListenAndServe(listenAddr string) error {
	a, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return err
	}
	pc, err := net.ListenUDP("udp", a)
	if err != nil {
		return err
	}
	c.ep = newEndpoint(pc, nil) // nil config: a client endpoint never accepts
	if c.handler != nil {
		c.ep.SetHandler(c.handler)
	}
	if c.logW != nil {
		c.ep.SetLogger(c.logLvl, c.logW)
	}
	if c.metrics != nil {
		c.ep.SetMetrics(c.metrics)
	}
	go c.ep.serve()
	return nil
}

// Connect originates a new connection to addr.
func (c *Client) Connect(addr string) error {
	if c.ep == nil {
		return fmt.Errorf("quic: ListenAndServe must be called before Connect")
	}
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := transport.Connect(remote, c.config)
	if err != nil {
		return err
	}
	rc := &remoteConn{conn: conn, scid: conn.SCID(), addr: remote}
	c.ep.registry.add(rc.scid, rc)
	c.ep.logger.attachLogger(rc)
	c.ep.attachMetrics(rc)
	c.ep.flush(rc)
	return nil
}

// Close shuts down every connection this client originated and releases
// its socket.
func (c *Client) Close() error {
	if c.ep == nil {
		return nil
	}
	for _, rc := range c.ep.registry.all() {
		rc.conn.Close(0, "client closing")
		c.ep.flush(rc)
	}
	return c.ep.Close()
}
