package transport

import "time"

// spaceManager binds a pluggable TLS handshake to the three
// packet-number spaces: it feeds received CRYPTO data into the
// handshake, drains the handshake's events, installs the resulting
// read/write keys into the right packetNumberSpace, and queues the
// handshake's own outgoing CRYPTO data onto each space's cryptoStream
// (spec.md section 4.8, "space manager").
type spaceManager struct {
	tls    tlsHandshake
	spaces *[packetSpaceCount]*packetNumberSpace

	handshakeComplete bool
}

func newSpaceManager(tls tlsHandshake, spaces *[packetSpaceCount]*packetNumberSpace) *spaceManager {
	return &spaceManager{tls: tls, spaces: spaces}
}

// advance feeds any newly-reassembled CRYPTO data into the handshake and
// drains every event it produces.
func (m *spaceManager) advance(now time.Time) error {
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		sp := m.spaces[space]
		if sp == nil || sp.dropped {
			continue
		}
		buf := make([]byte, 4096)
		for {
			n, _ := sp.cryptoStream.read(buf)
			if n == 0 {
				break
			}
			if err := m.tls.handleData(levelForSpace(space), buf[:n]); err != nil {
				return err
			}
		}
	}
	return m.drainEvents()
}

func (m *spaceManager) drainEvents() error {
	for {
		e := m.tls.nextEvent()
		if e.kind == tlsEventNone {
			return nil
		}
		switch e.kind {
		case tlsEventWriteData:
			space := e.level.packetSpace()
			if sp := m.spaces[space]; sp != nil {
				sp.cryptoStream.push(e.data)
			}
		case tlsEventReadSecretChanged:
			space := e.level.packetSpace()
			if sp := m.spaces[space]; sp != nil {
				sp.opener = deriveKeysForSuite(e.readSecret, e.suite)
			}
		case tlsEventWriteSecretChanged:
			space := e.level.packetSpace()
			if sp := m.spaces[space]; sp != nil {
				sp.sealer = deriveKeysForSuite(e.writeSecret, e.suite)
			}
		case tlsEventHandshakeComplete:
			m.handshakeComplete = true
		case tlsEventAlert:
			return newError(CryptoError+uint64(e.alert), "tls alert")
		}
	}
}

func deriveKeysForSuite(secret []byte, suite suiteID) *protectionKeys {
	if suite == suiteChaCha20Poly1305 {
		return deriveChaChaPacketKeys(secret)
	}
	return deriveAESPacketKeys(secret)
}

func levelForSpace(space packetSpace) tlsLevel {
	switch space {
	case packetSpaceInitial:
		return tlsLevelInitial
	case packetSpaceHandshake:
		return tlsLevelHandshake
	default:
		return tlsLevelApplication
	}
}

func (m *spaceManager) isComplete() bool {
	return m.handshakeComplete
}
