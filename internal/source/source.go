// Package source provides the raw SWO byte streams fed to the decoder: a
// capture file, optionally followed as it grows, or a serial port.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"itmtrace/internal/common"
	"itmtrace/internal/config"
)

// Source is a raw trace byte stream. Close unblocks a pending Read.
type Source interface {
	io.ReadCloser
	Name() string
}

// Open creates the source selected by cfg.
func Open(cfg config.SourceConfig, logger *zap.Logger) (Source, error) {
	logger = common.OrNop(logger)
	switch cfg.Kind {
	case config.SourceFile:
		return OpenFile(cfg.Path, cfg.Follow, logger)
	case config.SourceSerial:
		return OpenSerial(cfg.Port, cfg.Baud, logger)
	default:
		return nil, common.NewErrorMsg(common.ErrSevError, common.ErrInvalidParamVal,
			fmt.Sprintf("unknown source kind %q", cfg.Kind))
	}
}

// Pump copies r to w in chunks of up to chunkSize bytes until r reports
// io.EOF or ctx is cancelled. It returns the number of bytes copied. Reaching
// io.EOF is not an error; cancellation returns ctx.Err().
func Pump(ctx context.Context, r io.Reader, w io.Writer, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	buf := make([]byte, chunkSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("write: %w", werr)
			}
			total += int64(n)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return total, ctxErr
			}
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, fmt.Errorf("read: %w", err)
		}
	}
}
