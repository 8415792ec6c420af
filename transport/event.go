package transport

import "github.com/docker/go-events"

// EventType discriminates the Event union a Conn surfaces to its
// caller (spec.md section 5, "events"). Events are published onto a
// go-events Broadcaster so additional sinks (metrics, tracing) can tap
// the same stream a Conn's own Events() drains, without the core engine
// knowing anything about what's listening.
type EventType int

const (
	EventConnAccept EventType = iota
	EventConnClose
	EventStreamRecv
	EventStreamReset
	EventStreamStop
	EventPathChallenge
	EventDatagram
)

// Event is one application-visible occurrence on a Conn.
type Event struct {
	Type EventType

	StreamID  uint64
	ErrorCode uint64
	Reason    string

	PathChallengeData [8]byte
	DatagramData      []byte
}

func newConnAcceptEvent() Event {
	return Event{Type: EventConnAccept}
}

func newConnCloseEvent(errorCode uint64, reason string) Event {
	return Event{Type: EventConnClose, ErrorCode: errorCode, Reason: reason}
}

func newStreamRecvEvent(streamID uint64) Event {
	return Event{Type: EventStreamRecv, StreamID: streamID}
}

func newStreamResetEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamReset, StreamID: streamID, ErrorCode: errorCode}
}

func newStreamStopEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamStop, StreamID: streamID, ErrorCode: errorCode}
}

func newPathChallengeEvent(data [8]byte) Event {
	return Event{Type: EventPathChallenge, PathChallengeData: data}
}

func newDatagramEvent(data []byte) Event {
	return Event{Type: EventDatagram, DatagramData: data}
}

// queueSink is a go-events.Sink that buffers every Event written to it
// for later draining; it's always present as the sink behind a Conn's
// own Events() method.
type queueSink struct {
	pending []Event
	closed  bool
}

func newQueueSink() *queueSink {
	return &queueSink{}
}

func (s *queueSink) Write(ev events.Event) error {
	if s.closed {
		return events.ErrSinkClosed
	}
	if e, ok := ev.(Event); ok {
		s.pending = append(s.pending, e)
	}
	return nil
}

func (s *queueSink) Close() error {
	s.closed = true
	return nil
}

func (s *queueSink) drain() []Event {
	e := s.pending
	s.pending = nil
	return e
}

// eventBus is the per-Conn publication point: a go-events Broadcaster
// fanning out to the queue a caller drains via Conn.Events() plus
// whatever external sinks have been attached (spec.md section 4.14,
// "event subscription").
type eventBus struct {
	broadcaster *events.Broadcaster
	queue       *queueSink
}

func newEventBus() *eventBus {
	q := newQueueSink()
	return &eventBus{broadcaster: events.NewBroadcaster(q), queue: q}
}

func (b *eventBus) publish(e Event) {
	_ = b.broadcaster.Write(e)
}

func (b *eventBus) drain() []Event {
	return b.queue.drain()
}

// attachSink registers an additional sink (e.g. a metrics collector) to
// receive a copy of every event published on this connection.
func (b *eventBus) attachSink(sink events.Sink) {
	b.broadcaster.Add(sink)
}

func (b *eventBus) close() {
	_ = b.broadcaster.Close()
}
