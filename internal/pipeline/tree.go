package pipeline

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"itmtrace/internal/common"
	"itmtrace/internal/formatter"
	"itmtrace/internal/itm"
)

// Config selects the shape of the decode tree.
type Config struct {
	ITM *itm.Config

	// Formatted input carries TPIU formatter frames; ITM bytes are taken from
	// the source with TraceID.
	Formatted   bool
	TraceID     uint8
	FrameSynced bool
}

// DecodeTree owns one decode session: the optional frame deformatter in front
// of the ITM decoder.
type DecodeTree struct {
	Deformatter *formatter.Deformatter
	Decoder     *itm.Decoder

	input  io.Writer
	itmIn  common.Attachment[[]byte]
	logger *zap.Logger
}

// Validate checks the ITM settings and, for formatted input, the trace ID.
func (c *Config) Validate() error {
	if c.ITM != nil {
		if err := c.ITM.Validate(); err != nil {
			return err
		}
	}
	if c.Formatted && (c.TraceID == 0 || c.TraceID >= 0x70) {
		return common.NewErrorMsg(common.ErrSevError, common.ErrInvalidParamVal,
			fmt.Sprintf("trace ID 0x%02x outside 0x01-0x6f", c.TraceID))
	}
	return nil
}

// NewDecodeTree builds and wires the stages for cfg.
func NewDecodeTree(cfg Config, logger *zap.Logger) (*DecodeTree, error) {
	logger = common.OrNop(logger)
	if cfg.ITM == nil {
		cfg.ITM = itm.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decoder config: %w", err)
	}

	tree := &DecodeTree{
		Decoder: itm.NewDecoder(cfg.ITM, logger),
		logger:  logger,
	}
	tree.input = tree.Decoder

	if cfg.Formatted {
		tree.Deformatter = formatter.NewDeformatter(cfg.FrameSynced, logger)
		splitter := tree.Decoder.Splitter
		tree.itmIn.AttachTo(tree.Deformatter.Output(cfg.TraceID), common.SubscriberFunc[[]byte](func(b []byte) {
			_, _ = splitter.Write(b)
		}))
		tree.input = tree.Deformatter
		logger.Debug("formatted input", zap.Uint8("trace_id", cfg.TraceID))
	}

	return tree, nil
}

// Write is the byte stream entry point of the session.
func (t *DecodeTree) Write(p []byte) (int, error) {
	return t.input.Write(p)
}

// Close detaches every stage.
func (t *DecodeTree) Close() {
	t.itmIn.Detach()
	t.Decoder.Close()
}
