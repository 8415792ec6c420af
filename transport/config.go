package transport

import (
	"crypto/tls"
	"time"
)

// CongestionAlgorithm selects which congestionController implementation
// a Conn builds for itself.
type CongestionAlgorithm int

const (
	CongestionNewReno CongestionAlgorithm = iota
	CongestionBBR
)

// Config bundles everything a Conn needs that is not per-connection
// wire state: the TLS configuration, locally-offered transport
// parameters, and tunable knobs for recovery/congestion/path-probing
// behaviour that have no RFC-mandated default.
type Config struct {
	TLSConfig *tls.Config

	Params Params

	CongestionControl CongestionAlgorithm

	MaxIdleTimeout time.Duration

	// AckFrequencySupported accepts the draft-ietf-quic-ack-frequency
	// extension's ACK_FREQUENCY frame, which is then decoded and
	// otherwise ignored; when false the frame is rejected as a protocol
	// violation if received. No transport parameter advertises the
	// extension.
	AckFrequencySupported bool

	// PathProbeTimeout is set to 3s by defaultConfig, but Conn does not
	// read it: no timer abandons a candidate path whose PATH_CHALLENGE
	// goes unanswered.
	PathProbeTimeout time.Duration

	// MaxDatagramFrameSize is not read by Conn. RFC 9221 DATAGRAM
	// support is advertised through Params.MaxDatagramFrameSize, and
	// inbound DATAGRAM frames are accepted whatever either value is.
	MaxDatagramFrameSize uint64

	TokenStore TokenStore

	// StatelessResetKey is the secret an endpoint's Conns derive their
	// stateless-reset tokens from (RFC 9000 section 10.3). Every Conn
	// sharing one endpoint must set the same key so a reset token issued
	// for a connection id remains recognizable even after the Conn that
	// issued it is gone; left empty, a fresh random key is generated per
	// Conn, which is fine for a single ad hoc connection but not for a
	// server accepting many.
	StatelessResetKey []byte
}

// TokenStore persists address-validation tokens (NEW_TOKEN frame
// contents) and retry tokens across connection attempts to the same
// server, RFC 9000 section 8.1.3.
type TokenStore interface {
	Pop(serverName string) []byte
	Push(serverName string, token []byte)
}

func defaultConfig() *Config {
	return &Config{
		Params:           DefaultParams(),
		MaxIdleTimeout:   30 * time.Second,
		PathProbeTimeout: 3 * time.Second,
	}
}
