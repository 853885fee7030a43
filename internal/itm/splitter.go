package itm

import (
	"go.uber.org/zap"

	"itmtrace/internal/common"
	"itmtrace/internal/span"
)

// PacketLength returns the length of the packet starting at the first byte of
// buf, or 0 when buf does not yet hold the whole packet.
func PacketLength(buf span.Span) int {
	if buf.Empty() {
		return 0
	}
	hdr := buf.At(0)
	switch hdr & 0x3 {
	case 0:
		for i := 0; i < buf.Len(); i++ {
			c := buf.At(i)
			if hdr == 0x00 {
				// sync run: ends on the first non-zero byte
				if c != 0x00 {
					return i + 1
				}
			} else if (c & 0x80) == 0x00 {
				return i + 1
			}
		}
		return 0
	case 1:
		return fixedLength(buf, 2)
	case 2:
		return fixedLength(buf, 3)
	default:
		return fixedLength(buf, 5)
	}
}

func fixedLength(buf span.Span, n int) int {
	if buf.Len() >= n {
		return n
	}
	return 0
}

// SplitPacket splits buf into its first complete packet and the bytes after
// it. When no complete packet is buffered pkt is empty and residual is buf.
func SplitPacket(buf span.Span) (pkt, residual span.Span) {
	if buf.Empty() {
		return span.Span{}, buf
	}
	n := PacketLength(buf)
	return buf.First(n), buf.Tail(n)
}

// PacketSplitter converts an arbitrarily chunked byte stream into complete
// ITM packets. Bytes of an incomplete packet are kept until the rest arrives.
//
// Packets are published as views into the splitter's buffer and are only
// valid for the duration of the Notify call.
type PacketSplitter struct {
	Packets common.Publisher[span.Span]

	residual    []byte
	maxResidual int
	consumed    common.TrcIndex
	dropped     uint64
	packets     uint64
	logger      *zap.Logger
}

// NewPacketSplitter creates a splitter. cfg may be nil for defaults.
func NewPacketSplitter(cfg *Config, logger *zap.Logger) *PacketSplitter {
	s := &PacketSplitter{
		residual: make([]byte, 0, 64),
		logger:   common.OrNop(logger).Named("splitter"),
	}
	if cfg != nil {
		s.maxResidual = cfg.MaxResidual
	}
	return s
}

// Write appends p to the residual and publishes every complete packet.
// It never fails; the error is there to satisfy io.Writer.
func (s *PacketSplitter) Write(p []byte) (int, error) {
	s.residual = append(s.residual, p...)
	s.drain()
	return len(p), nil
}

// WriteByte feeds a single byte.
func (s *PacketSplitter) WriteByte(b byte) error {
	s.residual = append(s.residual, b)
	s.drain()
	return nil
}

// Buffered returns the number of bytes waiting for the rest of their packet.
func (s *PacketSplitter) Buffered() int {
	return len(s.residual)
}

// DroppedBytes returns the number of residual bytes discarded by the limit.
func (s *PacketSplitter) DroppedBytes() uint64 {
	return s.dropped
}

// PacketCount returns the number of packets published.
func (s *PacketSplitter) PacketCount() uint64 {
	return s.packets
}

// Reset discards any buffered bytes.
func (s *PacketSplitter) Reset() {
	s.residual = s.residual[:0]
}

func (s *PacketSplitter) drain() {
	off := 0
	for off < len(s.residual) {
		n := PacketLength(span.New(s.residual[off:]))
		if n == 0 {
			break
		}
		s.packets++
		s.Packets.Notify(span.New(s.residual[off : off+n : off+n]))
		off += n
	}

	if off > 0 {
		s.consumed += common.TrcIndex(off)
		rest := copy(s.residual, s.residual[off:])
		s.residual = s.residual[:rest]
	}

	if s.maxResidual > 0 && len(s.residual) > s.maxResidual {
		err := common.NewErrorWithIdxMsg(common.ErrSevWarn, common.ErrResidualOverflow, s.consumed, "stream desynchronised")
		s.logger.Warn("dropping packet residual",
			zap.Int("bytes", len(s.residual)),
			zap.Int("limit", s.maxResidual),
			zap.Error(err),
		)
		s.dropped += uint64(len(s.residual))
		s.consumed += common.TrcIndex(len(s.residual))
		s.residual = s.residual[:0]
	}
}
