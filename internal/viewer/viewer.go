// Package viewer runs an ITM trace viewing session: it reads the configured
// source through the decode tree and prints the decoded events.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"itmtrace/internal/common"
	"itmtrace/internal/config"
	"itmtrace/internal/metrics"
	"itmtrace/internal/pipeline"
	"itmtrace/internal/printers"
	"itmtrace/internal/source"
)

// session is the decoder input: each chunk goes through the tree and then
// refreshes the stats gauges.
type session struct {
	tree  *pipeline.DecodeTree
	stats *metrics.Stats
}

func (s *session) Write(p []byte) (int, error) {
	n, err := s.tree.Write(p)
	if s.stats != nil {
		s.stats.Sample(s.tree.Decoder, n)
	}
	return n, err
}

// Run decodes the configured source until it ends or ctx is cancelled.
// Cancellation is a normal end of session.
func Run(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	if out == nil {
		out = os.Stdout
	}
	logger = common.OrNop(logger)

	tree, err := pipeline.NewDecodeTree(*cfg.PipelineConfig(), logger)
	if err != nil {
		return fmt.Errorf("error creating decode tree: %w", err)
	}
	defer tree.Close()
	dec := tree.Decoder

	events := printers.NewEventPrinter(out)
	if cfg.Output.Stats {
		events.SetCollectStats()
	}
	if cfg.Output.Exceptions {
		events.AttachExceptions(&dec.Exceptions.Traces)
	}
	if cfg.Output.Instrumentation {
		events.AttachInstrumentation(&dec.Instrumentation.Traces)
	}
	defer events.Detach()

	var text *printers.TextPrinter
	if len(cfg.Output.TextPorts) > 0 {
		text = printers.NewTextPrinter(out, cfg.Output.TextPorts)
		text.AttachTo(&dec.Instrumentation.Traces)
		defer text.Detach()
	}

	if cfg.Output.Packets {
		packets := printers.NewPacketPrinter(out)
		packets.SetMessageLogger(logger.Named("packets"))
		packets.AttachTo(&dec.Splitter.Packets)
		defer packets.Detach()

		if tree.Deformatter != nil {
			frames := printers.NewRawFramePrinter(out)
			frames.AttachTo(&tree.Deformatter.Frames)
			defer frames.Detach()
		}
	}

	sess := &session{tree: tree}
	metricsErr := make(chan error, 1)
	if cfg.Metrics.Listen != "" {
		sess.stats = metrics.NewStats()
		sess.stats.Attach(dec)
		defer sess.stats.Detach()

		serveCtx, stopServe := context.WithCancel(ctx)
		defer stopServe()
		go func() {
			metricsErr <- sess.stats.Serve(serveCtx, cfg.Metrics.Listen, logger)
		}()
	}

	src, err := source.Open(cfg.Source, logger)
	if err != nil {
		return fmt.Errorf("error opening trace source: %w", err)
	}
	defer src.Close()

	fmt.Fprintln(out, "ITM Trace Viewer")
	fmt.Fprintln(out, "----------------")
	fmt.Fprintf(out, "Using %s as trace source\n", src.Name())

	// Close unblocks a source waiting for data.
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	total, err := source.Pump(ctx, src, sess, cfg.Source.ChunkSize)
	logger.Info("trace source finished",
		zap.Int64("bytes", total),
		zap.Uint64("packets", dec.Splitter.PacketCount()),
		zap.Int("residual", dec.Splitter.Buffered()))

	if text != nil {
		text.Flush()
	}
	if cfg.Output.Stats {
		events.PrintStats()
	}

	select {
	case serr := <-metricsErr:
		if serr != nil {
			logger.Warn("metrics endpoint failed", zap.Error(serr))
		}
	default:
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error processing trace source: %w", err)
	}
	return nil
}
