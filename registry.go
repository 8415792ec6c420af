package quic

import (
	"net"
	"sync"

	"github.com/nyxquic/quic/transport"
)

// remoteConn pairs a transport.Conn with the bookkeeping an Endpoint
// needs to route datagrams and events to it: the connection id it was
// registered under and the peer address the handshake started on.
type remoteConn struct {
	conn *transport.Conn
	scid []byte
	addr net.Addr
}

// connRegistry maps the connection ids an Endpoint routes on, for any
// of its active connections, back to that connection. An accepted
// remoteConn is reachable by two ids (its own scid and the client's
// original destination id), a dialed one by its scid; ids issued later
// through NEW_CONNECTION_ID are not registered. Removal drops every id
// pointing at a connection.
type connRegistry struct {
	mu    sync.Mutex
	byCID map[string]*remoteConn
}

func newConnRegistry() *connRegistry {
	return &connRegistry{byCID: make(map[string]*remoteConn)}
}

func (r *connRegistry) add(cid []byte, c *remoteConn) {
	r.mu.Lock()
	r.byCID[string(cid)] = c
	r.mu.Unlock()
}

func (r *connRegistry) lookup(cid []byte) *remoteConn {
	r.mu.Lock()
	c := r.byCID[string(cid)]
	r.mu.Unlock()
	return c
}

// remove drops every id association pointing at c, used once a
// connection has fully closed.
func (r *connRegistry) remove(c *remoteConn) {
	r.mu.Lock()
	for cid, rc := range r.byCID {
		if rc == c {
			delete(r.byCID, cid)
		}
	}
	r.mu.Unlock()
}

// all returns a snapshot of every registered connection, deduplicated,
// for the Endpoint's periodic timeout sweep.
func (r *connRegistry) all() []*remoteConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[*remoteConn]bool, len(r.byCID))
	out := make([]*remoteConn, 0, len(r.byCID))
	for _, c := range r.byCID {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
