package transport

// Transport parameter identifiers, RFC 9000 section 18.2.
const (
	paramOriginalDestinationConnectionID uint64 = 0x00
	paramMaxIdleTimeout                  uint64 = 0x01
	paramStatelessResetToken             uint64 = 0x02
	paramMaxUDPPayloadSize                uint64 = 0x03
	paramInitialMaxData                   uint64 = 0x04
	paramInitialMaxStreamDataBidiLocal     uint64 = 0x05
	paramInitialMaxStreamDataBidiRemote    uint64 = 0x06
	paramInitialMaxStreamDataUni           uint64 = 0x07
	paramInitialMaxStreamsBidi             uint64 = 0x08
	paramInitialMaxStreamsUni              uint64 = 0x09
	paramAckDelayExponent                  uint64 = 0x0a
	paramMaxAckDelay                       uint64 = 0x0b
	paramDisableActiveMigration            uint64 = 0x0c
	paramPreferredAddress                  uint64 = 0x0d
	paramActiveConnectionIDLimit           uint64 = 0x0e
	paramInitialSourceConnectionID          uint64 = 0x0f
	paramRetrySourceConnectionID            uint64 = 0x10
	paramMaxDatagramFrameSize               uint64 = 0x20 // RFC 9221
)

// Params is the decoded set of transport parameters exchanged during the
// handshake (RFC 9000 section 18), extended with DATAGRAM (RFC 9221)
// support. Unmarshal starts from DefaultParams, so an absent field keeps
// that value: the RFC default for max_udp_payload_size, ack_delay_exponent,
// max_ack_delay and active_connection_id_limit, but non-zero flow-control
// and stream-count limits where the RFC default is zero.
type Params struct {
	OriginalDestinationConnectionID []byte
	InitialSourceConnectionID       []byte
	RetrySourceConnectionID         []byte
	StatelessResetToken            []byte

	MaxIdleTimeout              uint64 // milliseconds
	MaxUDPPayloadSize           uint64
	InitialMaxData              uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64
	AckDelayExponent               uint64
	MaxAckDelay                    uint64 // milliseconds
	DisableActiveMigration         bool
	ActiveConnectionIDLimit        uint64
	MaxDatagramFrameSize           uint64
}

func DefaultParams() Params {
	return Params{
		MaxUDPPayloadSize:               65527,
		AckDelayExponent:                3,
		MaxAckDelay:                     25,
		ActiveConnectionIDLimit:         2,
		InitialMaxData:                  1 << 20,
		InitialMaxStreamDataBidiLocal:   256 << 10,
		InitialMaxStreamDataBidiRemote:  256 << 10,
		InitialMaxStreamDataUni:         256 << 10,
		InitialMaxStreamsBidi:           100,
		InitialMaxStreamsUni:            100,
	}
}

// Marshal encodes p as a sequence of transport-parameter TLVs.
func (p *Params) Marshal() []byte {
	var b []byte
	putTLVBytes := func(id uint64, v []byte) {
		if v == nil {
			return
		}
		b = appendVarint(b, id)
		b = appendVarint(b, uint64(len(v)))
		b = append(b, v...)
	}
	putTLVVarint := func(id uint64, v uint64, always bool) {
		if v == 0 && !always {
			return
		}
		b = appendVarint(b, id)
		b = appendVarint(b, uint64(varintLen(v)))
		vb := make([]byte, varintLen(v))
		putVarint(vb, v)
		b = append(b, vb...)
	}
	putTLVEmpty := func(id uint64, present bool) {
		if !present {
			return
		}
		b = appendVarint(b, id)
		b = appendVarint(b, 0)
	}

	putTLVBytes(paramOriginalDestinationConnectionID, p.OriginalDestinationConnectionID)
	putTLVBytes(paramInitialSourceConnectionID, p.InitialSourceConnectionID)
	putTLVBytes(paramRetrySourceConnectionID, p.RetrySourceConnectionID)
	putTLVBytes(paramStatelessResetToken, p.StatelessResetToken)
	putTLVVarint(paramMaxIdleTimeout, p.MaxIdleTimeout, false)
	putTLVVarint(paramMaxUDPPayloadSize, p.MaxUDPPayloadSize, false)
	putTLVVarint(paramInitialMaxData, p.InitialMaxData, false)
	putTLVVarint(paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal, false)
	putTLVVarint(paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote, false)
	putTLVVarint(paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni, false)
	putTLVVarint(paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi, false)
	putTLVVarint(paramInitialMaxStreamsUni, p.InitialMaxStreamsUni, false)
	putTLVVarint(paramAckDelayExponent, p.AckDelayExponent, false)
	putTLVVarint(paramMaxAckDelay, p.MaxAckDelay, false)
	putTLVEmpty(paramDisableActiveMigration, p.DisableActiveMigration)
	putTLVVarint(paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit, false)
	putTLVVarint(paramMaxDatagramFrameSize, p.MaxDatagramFrameSize, false)
	return b
}

func appendVarint(b []byte, v uint64) []byte {
	tmp := make([]byte, varintLen(v))
	putVarint(tmp, v)
	return append(b, tmp...)
}

// Unmarshal decodes transport parameters from b, RFC 9000 section 18.1.
// Unknown parameter ids are ignored, per spec.
func (p *Params) Unmarshal(b []byte) error {
	*p = DefaultParams()
	r := newReader(b)
	for r.len() > 0 {
		id, ok := r.readVarint()
		if !ok {
			return newError(TransportParameterError, "param id")
		}
		v, ok := r.readVarintBytes()
		if !ok {
			return newError(TransportParameterError, "param value")
		}
		switch id {
		case paramOriginalDestinationConnectionID:
			p.OriginalDestinationConnectionID = v
		case paramInitialSourceConnectionID:
			p.InitialSourceConnectionID = v
		case paramRetrySourceConnectionID:
			p.RetrySourceConnectionID = v
		case paramStatelessResetToken:
			if len(v) != statelessResetTokenSize {
				return newError(TransportParameterError, "reset token size")
			}
			p.StatelessResetToken = v
		case paramMaxIdleTimeout:
			p.MaxIdleTimeout = decodeVarintValue(v)
		case paramMaxUDPPayloadSize:
			p.MaxUDPPayloadSize = decodeVarintValue(v)
		case paramInitialMaxData:
			p.InitialMaxData = decodeVarintValue(v)
		case paramInitialMaxStreamDataBidiLocal:
			p.InitialMaxStreamDataBidiLocal = decodeVarintValue(v)
		case paramInitialMaxStreamDataBidiRemote:
			p.InitialMaxStreamDataBidiRemote = decodeVarintValue(v)
		case paramInitialMaxStreamDataUni:
			p.InitialMaxStreamDataUni = decodeVarintValue(v)
		case paramInitialMaxStreamsBidi:
			p.InitialMaxStreamsBidi = decodeVarintValue(v)
		case paramInitialMaxStreamsUni:
			p.InitialMaxStreamsUni = decodeVarintValue(v)
		case paramAckDelayExponent:
			p.AckDelayExponent = decodeVarintValue(v)
		case paramMaxAckDelay:
			p.MaxAckDelay = decodeVarintValue(v)
		case paramDisableActiveMigration:
			p.DisableActiveMigration = true
		case paramActiveConnectionIDLimit:
			p.ActiveConnectionIDLimit = decodeVarintValue(v)
		case paramMaxDatagramFrameSize:
			p.MaxDatagramFrameSize = decodeVarintValue(v)
		}
	}
	return nil
}

func decodeVarintValue(v []byte) uint64 {
	var out uint64
	getVarint(v, &out)
	return out
}
