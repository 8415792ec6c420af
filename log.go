package quic

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/nyxquic/quic/transport"
)

type logLevel int

// Log levels, kept from the original fragment's scheme so
// cmd/quince's "-v" flag still maps onto the same four steps.
const (
	levelOff logLevel = iota
	levelError
	levelInfo
	levelDebug
	levelTrace
)

func (l logLevel) logrusLevel() logrus.Level {
	switch l {
	case levelError:
		return logrus.ErrorLevel
	case levelInfo:
		return logrus.InfoLevel
	case levelDebug:
		return logrus.DebugLevel
	case levelTrace:
		return logrus.TraceLevel
	default:
		return logrus.PanicLevel // never logged at levelOff
	}
}

// logger wraps a logrus.Logger, keeping the fragment's level knob so
// callers configure verbosity with a single int instead of wiring a
// logrus.Level directly.
type logger struct {
	level logLevel
	log   *logrus.Logger
}

func newLogger() *logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return &logger{log: l}
}

func (s *logger) setWriter(w io.Writer) {
	if w == nil {
		return
	}
	s.log.SetOutput(w)
}

func (s *logger) setLevel(level logLevel) {
	s.level = level
	s.log.SetLevel(level.logrusLevel())
}

// attachLogger wires a connection's qlog-shaped packet trace into this
// logger, at levelDebug or more verbose. detachLogger undoes it.
func (s *logger) attachLogger(c *remoteConn) {
	if s.level < levelDebug {
		return
	}
	tl := transactionLogger{
		log:    s.log,
		prefix: fmt.Sprintf("addr=%s cid=%x", c.addr, c.scid),
	}
	c.conn.OnLogEvent(tl.logEvent)
}

func (s *logger) detachLogger(c *remoteConn) {
	c.conn.OnLogEvent(nil)
}

// transactionLogger formats one connection's transport.LogEvent stream
// through logrus, tagging every line with the connection it came from.
type transactionLogger struct {
	log    *logrus.Logger
	prefix string
}

func (s *transactionLogger) logEvent(e transport.LogEvent) {
	fields := logrus.Fields{}
	if s.prefix != "" {
		fields["conn"] = s.prefix
	}
	for _, f := range e.Fields {
		if f.Str != "" {
			fields[f.Key] = f.Str
		} else {
			fields[f.Key] = f.Num
		}
	}
	s.log.WithTime(e.Time).WithFields(fields).Debug(e.Type)
}
