// Package formatter demultiplexes CoreSight TPIU formatter frames into the
// per-source byte streams they carry.
package formatter

import (
	"encoding/binary"

	"go.uber.org/zap"

	"itmtrace/internal/common"
)

const (
	FrameSize    = 16
	fsyncPattern = uint32(0x7FFFFFFF) // Little Endian FSYNC
	hsyncPattern = uint16(0x7FFF)     // Little Endian HSYNC
)

// FrameElem identifies the part of the formatted stream a RawFrame holds.
type FrameElem int

const (
	FrmUnknown FrameElem = iota
	FrmPacked            // a whole 16-byte frame as received
	FrmHsync             // half-word sync inside a frame
	FrmFsync             // full sync between frames
	FrmIDData            // unpacked data bytes of one trace ID
)

// RawFrame is a raw element of the formatted stream, published for frame
// listings. Data is only valid during Notify.
type RawFrame struct {
	Index   common.TrcIndex
	Elem    FrameElem
	TraceID uint8
	Data    []byte
}

// Deformatter unpacks 16-byte formatter frames and publishes the data bytes
// of each trace source ID on that ID's publisher. Partial frames are kept
// until the rest of the frame arrives.
type Deformatter struct {
	Frames common.Publisher[RawFrame]

	outputs  map[uint8]*common.Publisher[[]byte]
	currID   uint8
	buffer   []byte
	base     common.TrcIndex // stream index of buffer[0]
	frameIdx common.TrcIndex
	synced   bool
	pending  []byte
	logger   *zap.Logger
}

// NewDeformatter creates a deformatter. When synced is false, input is
// discarded until the first FSYNC.
func NewDeformatter(synced bool, logger *zap.Logger) *Deformatter {
	return &Deformatter{
		outputs: make(map[uint8]*common.Publisher[[]byte]),
		buffer:  make([]byte, 0, FrameSize*2),
		synced:  synced,
		logger:  common.OrNop(logger).Named("deformatter"),
	}
}

// Output returns the publisher for trace source id, creating it on first use.
// Published slices are reused after Notify returns.
func (d *Deformatter) Output(id uint8) *common.Publisher[[]byte] {
	pub, ok := d.outputs[id]
	if !ok {
		pub = &common.Publisher[[]byte]{}
		d.outputs[id] = pub
	}
	return pub
}

// Synced reports whether the deformatter has found frame alignment.
func (d *Deformatter) Synced() bool {
	return d.synced
}

// Write consumes formatted trace data. It never fails.
func (d *Deformatter) Write(data []byte) (int, error) {
	d.buffer = append(d.buffer, data...)
	off := 0

	if !d.synced {
		for len(d.buffer)-off >= 4 {
			if binary.LittleEndian.Uint32(d.buffer[off:]) == fsyncPattern {
				d.synced = true
				d.publishRaw(off, FrmFsync, d.buffer[off:off+4])
				off += 4
				d.logger.Debug("frame sync found", zap.Uint64("index", uint64(d.base)+uint64(off)))
				break
			}
			off++
		}
	}

	if d.synced {
		for len(d.buffer)-off >= 4 {
			// FSYNCs between frames are padding
			if binary.LittleEndian.Uint32(d.buffer[off:]) == fsyncPattern {
				d.publishRaw(off, FrmFsync, d.buffer[off:off+4])
				off += 4
				continue
			}
			if len(d.buffer)-off < FrameSize {
				break
			}
			frame := d.buffer[off : off+FrameSize]
			d.frameIdx = d.base + common.TrcIndex(off)
			d.publishRaw(off, FrmPacked, frame)
			d.unpackFrame(frame)
			off += FrameSize
		}
	}

	rest := copy(d.buffer, d.buffer[off:])
	d.buffer = d.buffer[:rest]
	d.base += common.TrcIndex(off)
	return len(data), nil
}

func (d *Deformatter) publishRaw(off int, elem FrameElem, data []byte) {
	if d.Frames.Len() == 0 {
		return
	}
	d.Frames.Notify(RawFrame{
		Index: d.base + common.TrcIndex(off),
		Elem:  elem,
		Data:  data,
	})
}

// unpackFrame splits one frame. Even bytes are either an ID change (bit 0
// set) or data with bit 0 held in the flag byte; odd bytes are always data.
// For an ID change the flag bit set means the next data byte still belongs to
// the previous ID.
func (d *Deformatter) unpackFrame(frame []byte) {
	flags := frame[15]

	for i := 0; i < 15; i += 2 {
		flag := (flags >> (i / 2)) & 0x1
		even := frame[i]

		if i < 14 && binary.LittleEndian.Uint16(frame[i:]) == hsyncPattern {
			if d.Frames.Len() > 0 {
				d.Frames.Notify(RawFrame{Index: d.frameIdx + common.TrcIndex(i), Elem: FrmHsync, Data: frame[i : i+2]})
			}
			continue
		}

		if (even & 0x01) == 0x01 {
			newID := (even >> 1) & 0x7F
			if i < 14 && flag == 1 {
				d.outputByte(frame[i+1])
				d.switchID(newID)
				continue
			}
			d.switchID(newID)
		} else {
			d.outputByte(even | flag)
		}

		if i < 14 {
			d.outputByte(frame[i+1])
		}
	}
	d.flush()
}

func (d *Deformatter) switchID(id uint8) {
	if id == d.currID {
		return
	}
	d.flush()
	d.currID = id
}

func (d *Deformatter) outputByte(b byte) {
	d.pending = append(d.pending, b)
}

func (d *Deformatter) flush() {
	if len(d.pending) == 0 {
		return
	}
	if d.Frames.Len() > 0 {
		d.Frames.Notify(RawFrame{Index: d.frameIdx, Elem: FrmIDData, TraceID: d.currID, Data: d.pending})
	}
	// ID 0 is the null source
	if pub, ok := d.outputs[d.currID]; ok && d.currID != 0 {
		pub.Notify(d.pending)
	}
	d.pending = d.pending[:0]
}
