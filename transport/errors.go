package transport

import "fmt"

// Transport error codes, defined by RFC 9000 section 20.1 and RFC 9001 section 4.8.
const (
	NoError                 uint64 = 0x00
	InternalError           uint64 = 0x01
	ConnectionRefused       uint64 = 0x02
	FlowControlError        uint64 = 0x03
	StreamLimitError        uint64 = 0x04
	StreamStateError        uint64 = 0x05
	FinalSizeError          uint64 = 0x06
	FrameEncodingError      uint64 = 0x07
	TransportParameterError uint64 = 0x08
	ConnectionIDLimitError  uint64 = 0x09
	ProtocolViolation       uint64 = 0x0a
	InvalidToken            uint64 = 0x0b
	ApplicationError        uint64 = 0x0c
	CryptoBufferExceeded    uint64 = 0x0d
	KeyUpdateError          uint64 = 0x0e
	AEADLimitReached        uint64 = 0x0f
	NoViablePath            uint64 = 0x10
	// CryptoError occupies the 0x0100-0x01ff range, offset by the TLS alert.
	CryptoError uint64 = 0x0100
)

// Error is a transport-level error, carrying an error code suitable for a
// CONNECTION_CLOSE frame.
type Error struct {
	Code   uint64
	Reason string
}

func newError(code uint64, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return errorCodeString(e.Code)
	}
	return fmt.Sprintf("%s: %s", errorCodeString(e.Code), e.Reason)
}

// errorCodeString renders a transport error code the way qlog does: a
// symbolic name for the well-known range, or "crypto_error_NN" for TLS
// alerts bundled in the CRYPTO_ERROR range.
func errorCodeString(code uint64) string {
	if code >= CryptoError && code < CryptoError+0x100 {
		return fmt.Sprintf("crypto_error_%d", code-CryptoError)
	}
	switch code {
	case NoError:
		return "no_error"
	case InternalError:
		return "internal_error"
	case ConnectionRefused:
		return "connection_refused"
	case FlowControlError:
		return "flow_control_error"
	case StreamLimitError:
		return "stream_limit_error"
	case StreamStateError:
		return "stream_state_error"
	case FinalSizeError:
		return "final_size_error"
	case FrameEncodingError:
		return "frame_encoding_error"
	case TransportParameterError:
		return "transport_parameter_error"
	case ConnectionIDLimitError:
		return "connection_id_limit_error"
	case ProtocolViolation:
		return "protocol_violation"
	case InvalidToken:
		return "invalid_token"
	case ApplicationError:
		return "application_error"
	case CryptoBufferExceeded:
		return "crypto_buffer_exceeded"
	case KeyUpdateError:
		return "key_update_error"
	case AEADLimitReached:
		return "aead_limit_reached"
	case NoViablePath:
		return "no_viable_path"
	default:
		return fmt.Sprintf("unknown_error_%#x", code)
	}
}

var (
	errInvalidToken     = newError(InvalidToken, "invalid retry token")
	errFlowControl      = newError(FlowControlError, "flow control limit exceeded")
	errShortBuffer      = newError(InternalError, "buffer too short")
	errFinalSize        = newError(FinalSizeError, "inconsistent final size")
	errStreamLimit      = newError(StreamLimitError, "stream limit exceeded")
	errProtocolViolation = newError(ProtocolViolation, "protocol violation")
)

func sprint(values ...interface{}) string {
	return fmt.Sprint(values...)
}
