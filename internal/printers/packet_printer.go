package printers

import (
	"fmt"
	"io"
	"strings"

	"itmtrace/internal/common"
	"itmtrace/internal/itm"
	"itmtrace/internal/span"
)

// PacketPrinter lists every packet leaving the splitter with its raw bytes
// and classification.
type PacketPrinter struct {
	ItemPrinter

	in    common.Attachment[span.Span]
	index common.TrcIndex
}

// NewPacketPrinter creates a packet lister.
func NewPacketPrinter(writer io.Writer) *PacketPrinter {
	return &PacketPrinter{
		ItemPrinter: *NewItemPrinter(writer),
	}
}

// AttachTo subscribes the printer to a splitter's packet publisher.
func (p *PacketPrinter) AttachTo(pub *common.Publisher[span.Span]) {
	p.in.AttachTo(pub, common.SubscriberFunc[span.Span](p.PacketIn))
}

func (p *PacketPrinter) Detach() {
	p.in.Detach()
}

// PacketIn prints one packet. The index is the offset of the packet's first
// byte in the ITM stream.
func (p *PacketPrinter) PacketIn(pkt span.Span) {
	idx := p.index
	p.index += common.TrcIndex(pkt.Len())
	if p.IsMuted() {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Idx:%d; [%s]; ", idx, pkt))
	sb.WriteString(itm.Parse(pkt).String())
	sb.WriteString("\n")
	p.ItemPrintLine(sb.String())
}
