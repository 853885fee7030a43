package printers

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ItemPrinter is the shared base of the printers: an output writer, an
// optional logger mirror and a mute switch.
type ItemPrinter struct {
	writer io.Writer
	logger *zap.Logger
	muted  bool
}

// NewItemPrinter constructs an ItemPrinter using the given io.Writer.
func NewItemPrinter(writer io.Writer) *ItemPrinter {
	return &ItemPrinter{
		writer: writer,
	}
}

// SetMessageLogger sets the optional logger that mirrors printed lines at
// debug level.
func (p *ItemPrinter) SetMessageLogger(logger *zap.Logger) {
	p.logger = logger
}

// ItemPrintLine writes the given message to the writer and optionally logs it.
func (p *ItemPrinter) ItemPrintLine(msg string) {
	if p.writer != nil {
		fmt.Fprint(p.writer, msg)
	}
	if p.logger != nil {
		p.logger.Debug(strings.TrimRight(msg, "\n"))
	}
}

// SetMute sets the printer to mute (avoids output).
func (p *ItemPrinter) SetMute(mute bool) { p.muted = mute }

// IsMuted returns true if the printer is muted.
func (p *ItemPrinter) IsMuted() bool { return p.muted }
