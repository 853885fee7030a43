package itm

import (
	"itmtrace/internal/common"
)

// ExceptionTracer turns DWT exception trace packets into ExceptionTrace
// events. Every other packet is ignored.
type ExceptionTracer struct {
	Traces common.Publisher[ExceptionTrace]

	in common.Attachment[TPIUEvent]
}

func NewExceptionTracer() *ExceptionTracer {
	return &ExceptionTracer{}
}

// AttachTo feeds the tracer from a timestamp processor.
func (t *ExceptionTracer) AttachTo(pub *common.Publisher[TPIUEvent]) {
	t.in.AttachTo(pub, t)
}

func (t *ExceptionTracer) Detach() {
	t.in.Detach()
}

// Notify handles one timestamped packet.
func (t *ExceptionTracer) Notify(ev TPIUEvent) {
	data := ev.Data
	if data.Len() != 3 || data.At(0) != 0x0E {
		return
	}
	num, action := exceptionFields(data)
	t.Traces.Notify(ExceptionTrace{
		Timestamp: ev.Timestamp,
		Exception: num,
		Event:     action,
	})
}
