package printers

import (
	"fmt"
	"io"
	"sort"
	"time"

	"itmtrace/internal/common"
	"itmtrace/internal/itm"
)

type lineBuf struct {
	start time.Duration
	text  []byte
}

// TextPrinter assembles the character stream written to selected stimulus
// ports (the target's printf channel) into lines.
type TextPrinter struct {
	ItemPrinter

	in    common.Attachment[itm.InstrumentationTrace]
	ports map[uint8]bool
	lines map[uint8]*lineBuf
}

// NewTextPrinter creates a printer for the given ports.
func NewTextPrinter(writer io.Writer, ports []uint8) *TextPrinter {
	p := &TextPrinter{
		ItemPrinter: *NewItemPrinter(writer),
		ports:       make(map[uint8]bool, len(ports)),
		lines:       make(map[uint8]*lineBuf),
	}
	for _, port := range ports {
		p.ports[port] = true
	}
	return p
}

// AttachTo subscribes the printer to instrumentation events.
func (p *TextPrinter) AttachTo(pub *common.Publisher[itm.InstrumentationTrace]) {
	p.in.AttachTo(pub, common.SubscriberFunc[itm.InstrumentationTrace](p.InstrumentationIn))
}

func (p *TextPrinter) Detach() {
	p.in.Detach()
}

// InstrumentationIn appends the payload bytes, least significant first, to
// the port's line and prints the line on '\n'.
func (p *TextPrinter) InstrumentationIn(ev itm.InstrumentationTrace) {
	if !p.ports[ev.Port] {
		return
	}
	lb, ok := p.lines[ev.Port]
	if !ok {
		lb = &lineBuf{}
		p.lines[ev.Port] = lb
	}

	for i := uint8(0); i < ev.Size && i < 4; i++ {
		c := byte(ev.Data >> (8 * i))
		if len(lb.text) == 0 {
			lb.start = ev.Timestamp
		}
		switch c {
		case '\n':
			p.emit(ev.Port, lb)
		case '\r', 0:
		default:
			lb.text = append(lb.text, c)
		}
	}
}

// Flush prints any partial lines.
func (p *TextPrinter) Flush() {
	ports := make([]int, 0, len(p.lines))
	for port := range p.lines {
		ports = append(ports, int(port))
	}
	sort.Ints(ports)
	for _, port := range ports {
		if lb := p.lines[uint8(port)]; len(lb.text) > 0 {
			p.emit(uint8(port), lb)
		}
	}
}

func (p *TextPrinter) emit(port uint8, lb *lineBuf) {
	if !p.IsMuted() {
		p.ItemPrintLine(fmt.Sprintf("[%s] port %d: %s\n", formatTimestamp(lb.start), port, lb.text))
	}
	lb.text = lb.text[:0]
}
