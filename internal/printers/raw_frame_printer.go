package printers

import (
	"fmt"
	"io"
	"strings"

	"itmtrace/internal/common"
	"itmtrace/internal/formatter"
)

// RawFramePrinter lists the raw elements of a TPIU formatted stream: whole
// frames, sync patterns and the data unpacked for each trace ID.
type RawFramePrinter struct {
	ItemPrinter

	in common.Attachment[formatter.RawFrame]
}

// NewRawFramePrinter creates a new printer for RawFrame elements.
func NewRawFramePrinter(writer io.Writer) *RawFramePrinter {
	return &RawFramePrinter{
		ItemPrinter: *NewItemPrinter(writer),
	}
}

// AttachTo subscribes the printer to a deformatter's frame publisher.
func (p *RawFramePrinter) AttachTo(pub *common.Publisher[formatter.RawFrame]) {
	p.in.AttachTo(pub, common.SubscriberFunc[formatter.RawFrame](p.RawFrameIn))
}

func (p *RawFramePrinter) Detach() {
	p.in.Detach()
}

// RawFrameIn prints one frame element, 16 bytes per line.
func (p *RawFramePrinter) RawFrameIn(frame formatter.RawFrame) {
	if p.IsMuted() {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Frame Data; Index%7d; ", frame.Index))

	switch frame.Elem {
	case formatter.FrmPacked:
		sb.WriteString(fmt.Sprintf("%15s", "RAW_PACKED; "))
	case formatter.FrmHsync:
		sb.WriteString(fmt.Sprintf("%15s", "HSYNC; "))
	case formatter.FrmFsync:
		sb.WriteString(fmt.Sprintf("%15s", "FSYNC; "))
	case formatter.FrmIDData:
		sb.WriteString(fmt.Sprintf("%10s", "ID_DATA["))
		sb.WriteString(fmt.Sprintf("0x%02x", frame.TraceID))
		sb.WriteString("]; ")
	default:
		sb.WriteString(fmt.Sprintf("%15s", "UNKNOWN; "))
	}

	lineBytes := 0
	for _, b := range frame.Data {
		if lineBytes == 16 {
			sb.WriteString("\n")
			lineBytes = 0
		}
		sb.WriteString(fmt.Sprintf("%02x ", b))
		lineBytes++
	}
	sb.WriteString("\n")
	p.ItemPrintLine(sb.String())
}
