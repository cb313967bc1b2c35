// Package machine decodes Packer's machine-readable output stream. See doc.go for the format.
package machine

import (
	"io"
	"log/slog"
)

// DecodeError records one line the decoder could not interpret. The line is
// dropped from structured interpretation; the session continues.
type DecodeError struct {
	Line int // 1-based line number within the session
	Raw  string
	Err  error
}

// Result carries the fields common to every per-command Output. A non-zero
// exit status always marks the Output as failed regardless of message
// content.
type Result struct {
	ExitStatus   int
	Success      bool
	Raw          string // combined raw output of the process
	DecodeErrors []DecodeError
}

// Summary makes every type embedding Result an Output.
func (r Result) Summary() Result { return r }

// Output is the terminal, immutable snapshot a command's aggregator produces
// once the underlying process has exited.
type Output interface {
	Summary() Result
}

// Aggregator folds the message stream of one command invocation into its
// Output. Accept is called once per decoded message, in arrival order;
// Finalize exactly once, after the process has exited. Finalize must return
// whatever partial state has accumulated, even after an early termination or
// a stream of zero lines.
type Aggregator interface {
	Accept(msg Message)
	Finalize(exitStatus int, combined string, decodeErrors []DecodeError) Output
}

// Session consumes the raw line stream of one command invocation. Lines are
// fed one at a time, in receipt order; processing is synchronous and bounded
// per call, so the session needs no locking.
type Session struct {
	agg   Aggregator
	demux *Demux
	sink  io.Writer
	errs  []DecodeError
	lines int
}

// Option configures a Session.
type Option func(*Session)

// WithSink forwards every raw line verbatim to w, for live display. The sink
// is a pass-through side effect: it receives lines before aggregation but has
// no ordering dependency on it, and a failing sink never affects the result.
func WithSink(w io.Writer) Option {
	return func(s *Session) { s.sink = w }
}

// NewSession returns a session feeding the given aggregator.
func NewSession(agg Aggregator, opts ...Option) *Session {
	s := &Session{
		agg:   agg,
		demux: NewDemux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed consumes one raw line. A line that fails to decode is recorded as a
// DecodeError and skipped; it never aborts the session.
func (s *Session) Feed(raw string) {
	s.lines++
	if s.sink != nil {
		if _, err := s.sink.Write(append([]byte(raw), '\n')); err != nil {
			slog.Warn("live sink write failed", "error", err)
		}
	}

	fields, err := DecodeLine(raw)
	if err != nil {
		s.errs = append(s.errs, DecodeError{Line: s.lines, Raw: raw, Err: err})
		slog.Debug("dropping undecodable line", "line", s.lines, "error", err)
		return
	}

	msg := DecodeMessage(fields)
	s.demux.Add(msg)
	s.agg.Accept(msg)
}

// Finalize builds the command's Output from the accumulated state. Called
// once, after the process has terminated. A session that never saw a line
// still yields a well-defined empty Output.
func (s *Session) Finalize(exitStatus int, combined string) Output {
	return s.agg.Finalize(exitStatus, combined, s.errs)
}

// Demux returns the per-target view of the messages seen so far.
func (s *Session) Demux() *Demux {
	return s.demux
}

// DecodeErrors returns the lines dropped so far.
func (s *Session) DecodeErrors() []DecodeError {
	return s.errs
}
