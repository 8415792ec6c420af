package transport

import (
	"crypto/tls"
)

// stdlibHandshake adapts the standard library's crypto/tls QUIC support
// (tls.QUICConn, added in Go 1.21) to the tlsHandshake trait. This is
// the only implementation of tlsHandshake in this package.
type stdlibHandshake struct {
	conn   *tls.QUICConn
	events []tlsEvent
	done   bool
	peerParams []byte
}

func newStdlibHandshake(config *tls.Config, isClient bool) *stdlibHandshake {
	var qc *tls.QUICConn
	if isClient {
		qc = tls.QUICClient(&tls.QUICConfig{TLSConfig: config})
	} else {
		qc = tls.QUICServer(&tls.QUICConfig{TLSConfig: config})
	}
	return &stdlibHandshake{conn: qc}
}

func (h *stdlibHandshake) setTransportParams(params []byte) {
	h.conn.SetTransportParameters(params)
}

func (h *stdlibHandshake) handleData(level tlsLevel, data []byte) error {
	if err := h.conn.HandleData(toQUICLevel(level), data); err != nil {
		return newError(CryptoError, err.Error())
	}
	h.drain()
	return nil
}

func (h *stdlibHandshake) drain() {
	for {
		e := h.conn.NextEvent()
		switch e.Kind {
		case tls.QUICNoEvent:
			return
		case tls.QUICWriteData:
			h.events = append(h.events, tlsEvent{kind: tlsEventWriteData, level: fromQUICLevel(e.Level), data: e.Data})
		case tls.QUICSetReadSecret:
			h.events = append(h.events, tlsEvent{
				kind:        tlsEventReadSecretChanged,
				level:       fromQUICLevel(e.Level),
				readSecret:  e.Data,
				suite:       suiteFromCipherSuite(e.Suite),
			})
		case tls.QUICSetWriteSecret:
			h.events = append(h.events, tlsEvent{
				kind:        tlsEventWriteSecretChanged,
				level:       fromQUICLevel(e.Level),
				writeSecret: e.Data,
				suite:       suiteFromCipherSuite(e.Suite),
			})
		case tls.QUICTransportParameters:
			h.peerParams = e.Data
			h.events = append(h.events, tlsEvent{kind: tlsEventTransportParams, params: e.Data})
		case tls.QUICHandshakeDone:
			h.done = true
			h.events = append(h.events, tlsEvent{kind: tlsEventHandshakeComplete})
		}
	}
}

func (h *stdlibHandshake) nextEvent() tlsEvent {
	if len(h.events) == 0 {
		return tlsEvent{kind: tlsEventNone}
	}
	e := h.events[0]
	h.events = h.events[1:]
	return e
}

func (h *stdlibHandshake) isComplete() bool {
	return h.done
}

func (h *stdlibHandshake) peerTransportParams() []byte {
	return h.peerParams
}

func toQUICLevel(l tlsLevel) tls.QUICEncryptionLevel {
	switch l {
	case tlsLevelInitial:
		return tls.QUICEncryptionLevelInitial
	case tlsLevelHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func fromQUICLevel(l tls.QUICEncryptionLevel) tlsLevel {
	switch l {
	case tls.QUICEncryptionLevelInitial:
		return tlsLevelInitial
	case tls.QUICEncryptionLevelHandshake:
		return tlsLevelHandshake
	default:
		return tlsLevelApplication
	}
}
