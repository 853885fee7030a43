package itm

import (
	"time"

	"go.uber.org/zap"

	"itmtrace/internal/common"
	"itmtrace/internal/span"
)

// TimestampProcessor folds local timestamp packets into a running session
// clock and republishes every other packet tagged with that clock.
//
// Synchronisation and global timestamp packets are dropped: the session clock
// is relative to stream start and is not aligned to the global source.
type TimestampProcessor struct {
	Events common.Publisher[TPIUEvent]

	in             common.Attachment[span.Span]
	localTimestamp time.Duration
	clockHz        uint64
	prescale       uint64
	logger         *zap.Logger
}

// NewTimestampProcessor creates a processor. cfg may be nil for defaults.
func NewTimestampProcessor(cfg *Config, logger *zap.Logger) *TimestampProcessor {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &TimestampProcessor{
		clockHz:  cfg.ClockHz,
		prescale: uint64(cfg.Prescale),
		logger:   common.OrNop(logger).Named("timestamp"),
	}
}

// AttachTo feeds the processor from a splitter's packet publisher.
func (p *TimestampProcessor) AttachTo(pub *common.Publisher[span.Span]) {
	p.in.AttachTo(pub, p)
}

// Detach stops the processor receiving packets.
func (p *TimestampProcessor) Detach() {
	p.in.Detach()
}

// LocalTimestamp returns the session clock.
func (p *TimestampProcessor) LocalTimestamp() time.Duration {
	return p.localTimestamp
}

// Notify handles one complete packet.
func (p *TimestampProcessor) Notify(pkt span.Span) {
	if pkt.Empty() {
		return
	}
	decoded := Parse(pkt)

	switch decoded.Type {
	case PktTSLocal:
		p.localTimestamp += p.ticksToTimestamp(decoded.Value)
	case PktSync, PktTSGlobal1, PktTSGlobal2:
		if ce := p.logger.Check(zap.DebugLevel, "ignoring packet"); ce != nil {
			ce.Write(zap.Stringer("packet", decoded))
		}
	default:
		p.Events.Notify(TPIUEvent{
			Timestamp: p.localTimestamp,
			Data:      pkt,
			Packet:    decoded,
		})
	}
}

// ticksToTimestamp converts prescaled counter ticks to whole milliseconds.
func (p *TimestampProcessor) ticksToTimestamp(ticks uint64) time.Duration {
	ms := ticks * p.prescale * 1000 / p.clockHz
	return time.Duration(ms) * time.Millisecond
}
