package itm

import (
	"itmtrace/internal/common"
)

// InstrumentationTracer turns software stimulus packets into
// InstrumentationTrace events, tracking the stimulus port page selected by
// extension packets.
type InstrumentationTracer struct {
	Traces common.Publisher[InstrumentationTrace]

	in   common.Attachment[TPIUEvent]
	page uint8
}

func NewInstrumentationTracer() *InstrumentationTracer {
	return &InstrumentationTracer{}
}

// AttachTo feeds the tracer from a timestamp processor.
func (t *InstrumentationTracer) AttachTo(pub *common.Publisher[TPIUEvent]) {
	t.in.AttachTo(pub, t)
}

func (t *InstrumentationTracer) Detach() {
	t.in.Detach()
}

// Page returns the current stimulus port page.
func (t *InstrumentationTracer) Page() uint8 {
	return t.page
}

// Notify handles one timestamped packet.
func (t *InstrumentationTracer) Notify(ev TPIUEvent) {
	data := ev.Data
	if data.Empty() {
		return
	}
	hdr := data.At(0)

	if (hdr&0x0F) == 0x08 && data.Len() == 1 {
		t.page = (hdr >> 4) & 0x0F
	}

	if (hdr&0x03) > 0 && (hdr&0x04) == 0 {
		port := t.page*32 + ((hdr >> 3) & 0x1F)
		var trace uint32
		for i := data.Len() - 1; i > 0; i-- {
			trace = (trace << 8) | uint32(data.At(i))
		}
		t.Traces.Notify(InstrumentationTrace{
			Timestamp: ev.Timestamp,
			Port:      port,
			Data:      trace,
			Size:      uint8(data.Len() - 1),
		})
	}
}
