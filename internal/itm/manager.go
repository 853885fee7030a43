package itm

import (
	"go.uber.org/zap"
)

// Decoder is one ITM decode session: splitter, timestamp processor and the
// exception and instrumentation tracers, wired in that order. The session
// state lives in the stages and is discarded with the Decoder.
type Decoder struct {
	Splitter        *PacketSplitter
	Timestamps      *TimestampProcessor
	Exceptions      *ExceptionTracer
	Instrumentation *InstrumentationTracer
}

// NewDecoder creates and wires a decode session. cfg may be nil for defaults.
func NewDecoder(cfg *Config, logger *zap.Logger) *Decoder {
	d := &Decoder{
		Splitter:        NewPacketSplitter(cfg, logger),
		Timestamps:      NewTimestampProcessor(cfg, logger),
		Exceptions:      NewExceptionTracer(),
		Instrumentation: NewInstrumentationTracer(),
	}
	d.Timestamps.AttachTo(&d.Splitter.Packets)
	d.Exceptions.AttachTo(&d.Timestamps.Events)
	d.Instrumentation.AttachTo(&d.Timestamps.Events)
	return d
}

// Write feeds raw ITM bytes into the session.
func (d *Decoder) Write(p []byte) (int, error) {
	return d.Splitter.Write(p)
}

// Close detaches every stage from its upstream publisher.
func (d *Decoder) Close() {
	d.Instrumentation.Detach()
	d.Exceptions.Detach()
	d.Timestamps.Detach()
}
