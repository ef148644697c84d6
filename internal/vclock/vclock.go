// Package vclock records the routing events of a node with vector clocks.
// Clocks travel in the "trace" field of requests so that the logs of all
// nodes can be merged and visualized with ShiViz.
package vclock

import (
	"github.com/DistributedClocks/GoVector/govec"
	"github.com/rs/zerolog/log"
)

// Tracer stamps outgoing requests and merges the clocks of incoming ones.
type Tracer interface {
	// PrepareSend ticks the clock and returns the blob to put in the request.
	PrepareSend(event string) []byte

	// UnpackReceive merges the clock carried by a request. An empty trace is
	// logged as a local event.
	UnpackReceive(event string, trace []byte)

	// LogLocalEvent ticks the clock for an event without communication.
	LogLocalEvent(event string)

	// Flush writes buffered events to the log file.
	Flush()
}

// NewTracer returns a Tracer writing to "<logPrefix>-Log.txt".
func NewTracer(processID, logPrefix string) Tracer {
	config := govec.GetDefaultConfig()
	config.Buffered = true

	return &goVecTracer{
		logger: govec.InitGoVector(processID, logPrefix, config),
		opts:   govec.GetDefaultLogOptions(),
	}
}

// goVecTracer implements a Tracer with GoVector.
//
// - implements vclock.Tracer
type goVecTracer struct {
	logger *govec.GoLog
	opts   govec.GoLogOptions
}

// PrepareSend implements vclock.Tracer
func (t *goVecTracer) PrepareSend(event string) []byte {
	return t.logger.PrepareSend(event, nil, t.opts)
}

// UnpackReceive implements vclock.Tracer. A malformed trace from a peer must
// not take the handler down.
func (t *goVecTracer) UnpackReceive(event string, trace []byte) {
	if len(trace) == 0 {
		t.LogLocalEvent(event)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn().Msgf("<[vclock.goVecTracer.UnpackReceive] bad trace>: <%v>", r)
		}
	}()

	var payload interface{}
	t.logger.UnpackReceive(event, trace, &payload, t.opts)
}

// LogLocalEvent implements vclock.Tracer
func (t *goVecTracer) LogLocalEvent(event string) {
	t.logger.LogLocalEvent(event, t.opts)
}

// Flush implements vclock.Tracer
func (t *goVecTracer) Flush() {
	t.logger.Flush()
}

// NewNoop returns a Tracer that records nothing and sends no trace.
func NewNoop() Tracer {
	return noop{}
}

type noop struct{}

func (noop) PrepareSend(string) []byte { return nil }

func (noop) UnpackReceive(string, []byte) {}

func (noop) LogLocalEvent(string) {}

func (noop) Flush() {}
