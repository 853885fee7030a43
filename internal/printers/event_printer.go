package printers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"itmtrace/internal/common"
	"itmtrace/internal/itm"
)

// EventPrinter writes one line per decoded exception or instrumentation
// event.
type EventPrinter struct {
	ItemPrinter

	excIn  common.Attachment[itm.ExceptionTrace]
	instIn common.Attachment[itm.InstrumentationTrace]

	collectStats bool
	excCounts    map[int]int
	portCounts   map[uint8]int
}

// NewEventPrinter creates a new event printer.
func NewEventPrinter(writer io.Writer) *EventPrinter {
	return &EventPrinter{
		ItemPrinter: *NewItemPrinter(writer),
		excCounts:   make(map[int]int),
		portCounts:  make(map[uint8]int),
	}
}

// AttachExceptions subscribes the printer to exception events.
func (p *EventPrinter) AttachExceptions(pub *common.Publisher[itm.ExceptionTrace]) {
	p.excIn.AttachTo(pub, common.SubscriberFunc[itm.ExceptionTrace](p.ExceptionIn))
}

// AttachInstrumentation subscribes the printer to instrumentation events.
func (p *EventPrinter) AttachInstrumentation(pub *common.Publisher[itm.InstrumentationTrace]) {
	p.instIn.AttachTo(pub, common.SubscriberFunc[itm.InstrumentationTrace](p.InstrumentationIn))
}

// Detach unsubscribes from both event sources.
func (p *EventPrinter) Detach() {
	p.excIn.Detach()
	p.instIn.Detach()
}

// ExceptionIn prints an exception event.
func (p *EventPrinter) ExceptionIn(ev itm.ExceptionTrace) {
	if p.collectStats {
		p.excCounts[ev.Exception]++
	}
	if p.IsMuted() {
		return
	}
	p.ItemPrintLine(fmt.Sprintf("[%s] Exception %d (%s) %s\n", formatTimestamp(ev.Timestamp), ev.Exception, ev.Name(), ev.Event))
}

// InstrumentationIn prints an instrumentation event.
func (p *EventPrinter) InstrumentationIn(ev itm.InstrumentationTrace) {
	if p.collectStats {
		p.portCounts[ev.Port]++
	}
	if p.IsMuted() {
		return
	}
	p.ItemPrintLine(fmt.Sprintf("[%s] ITM port %d: 0x%0*x\n", formatTimestamp(ev.Timestamp), ev.Port, hexWidth(ev.Size), ev.Data))
}

// SetCollectStats enables per exception / per port counting.
func (p *EventPrinter) SetCollectStats() {
	p.collectStats = true
}

// PrintStats writes the collected counts.
func (p *EventPrinter) PrintStats() {
	var sb strings.Builder
	sb.WriteString("ITM event statistics\n")

	excs := make([]int, 0, len(p.excCounts))
	for n := range p.excCounts {
		excs = append(excs, n)
	}
	sort.Ints(excs)
	for _, n := range excs {
		sb.WriteString(fmt.Sprintf("Exception %d (%s) : %d\n", n, itm.ExceptionTrace{Exception: n}.Name(), p.excCounts[n]))
	}

	ports := make([]int, 0, len(p.portCounts))
	for port := range p.portCounts {
		ports = append(ports, int(port))
	}
	sort.Ints(ports)
	for _, port := range ports {
		sb.WriteString(fmt.Sprintf("ITM port %d : %d\n", port, p.portCounts[uint8(port)]))
	}
	p.ItemPrintLine(sb.String())
}

func formatTimestamp(ts time.Duration) string {
	return fmt.Sprintf("%dms", ts.Milliseconds())
}

func hexWidth(size uint8) int {
	if size == 0 || size > 4 {
		return 8
	}
	return int(size) * 2
}
