package transport

import "encoding/binary"

// reader is a borrow-based cursor over a byte slice. Every decode method
// consumes bytes from the front and returns the decoded value with
// ok=true, or ok=false on a short buffer (consuming nothing); callers
// propagate false as a decode error up the call chain (see frame.go,
// packet.go).
type reader struct {
	b []byte
}

func newReader(b []byte) reader {
	return reader{b: b}
}

func (r *reader) len() int {
	return len(r.b)
}

func (r *reader) skip(n int) bool {
	if n > len(r.b) {
		return false
	}
	r.b = r.b[n:]
	return true
}

func (r *reader) readByte() (byte, bool) {
	if len(r.b) < 1 {
		return 0, false
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v, true
}

func (r *reader) readUint16() (uint16, bool) {
	if len(r.b) < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.b)
	r.b = r.b[2:]
	return v, true
}

func (r *reader) readUint32() (uint32, bool) {
	if len(r.b) < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.b)
	r.b = r.b[4:]
	return v, true
}

func (r *reader) readUint64() (uint64, bool) {
	if len(r.b) < 8 {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.b)
	r.b = r.b[8:]
	return v, true
}

func (r *reader) readVarint() (uint64, bool) {
	var v uint64
	n := getVarint(r.b, &v)
	if n == 0 {
		return 0, false
	}
	r.b = r.b[n:]
	return v, true
}

// readBytes returns the next n bytes as a borrowed slice into the original
// buffer (no copy).
func (r *reader) readBytes(n int) ([]byte, bool) {
	if n < 0 || len(r.b) < n {
		return nil, false
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v, true
}

// readVarintBytes reads a varint length prefix followed by that many bytes.
func (r *reader) readVarintBytes() ([]byte, bool) {
	n, ok := r.readVarint()
	if !ok {
		return nil, false
	}
	return r.readBytes(int(n))
}

// remaining returns everything left unconsumed.
func (r *reader) remaining() []byte {
	return r.b
}

// writer is a capacity-tracked output cursor. Callers size the destination
// buffer exactly via an encodedLen()/estimator pass before calling encode,
// so write never needs to grow the slice.
type writer struct {
	b []byte
	n int
}

func newWriter(b []byte) writer {
	return writer{b: b}
}

func (w *writer) offset() int {
	return w.n
}

func (w *writer) writeByte(v byte) bool {
	if w.n+1 > len(w.b) {
		return false
	}
	w.b[w.n] = v
	w.n++
	return true
}

func (w *writer) writeUint16(v uint16) bool {
	if w.n+2 > len(w.b) {
		return false
	}
	binary.BigEndian.PutUint16(w.b[w.n:], v)
	w.n += 2
	return true
}

func (w *writer) writeUint32(v uint32) bool {
	if w.n+4 > len(w.b) {
		return false
	}
	binary.BigEndian.PutUint32(w.b[w.n:], v)
	w.n += 4
	return true
}

func (w *writer) writeVarint(v uint64) bool {
	n := varintLen(v)
	if w.n+n > len(w.b) {
		return false
	}
	putVarint(w.b[w.n:], v)
	w.n += n
	return true
}

func (w *writer) writeBytes(v []byte) bool {
	if w.n+len(v) > len(w.b) {
		return false
	}
	copy(w.b[w.n:], v)
	w.n += len(v)
	return true
}

func (w *writer) writeVarintBytes(v []byte) bool {
	if !w.writeVarint(uint64(len(v))) {
		return false
	}
	return w.writeBytes(v)
}
