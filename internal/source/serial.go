package source

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"itmtrace/internal/common"
)

// readTimeout lets a blocked serial Read return so Pump sees cancellation.
const readTimeout = 100 * time.Millisecond

var openPort = serial.Open

// SerialSource reads the SWO UART output of a debug probe, 8N1.
type SerialSource struct {
	name   string
	port   serial.Port
	closed atomic.Bool
	logger *zap.Logger
}

// OpenSerial opens the named port at baud.
func OpenSerial(name string, baud int, logger *zap.Logger) (*SerialSource, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := openPort(name, mode)
	if err != nil {
		return nil, common.NewErrorMsg(common.ErrSevError, common.ErrFileError,
			fmt.Sprintf("open serial port %s: %v", name, err))
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}

	logger = common.OrNop(logger)
	logger.Info("serial source opened", zap.String("port", name), zap.Int("baud", baud))
	return &SerialSource{
		name:   name,
		port:   port,
		logger: logger,
	}, nil
}

func (s *SerialSource) Name() string {
	return s.name
}

// Read returns 0, nil when the read timeout expires with no data. After Close
// it returns io.EOF.
func (s *SerialSource) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.EOF
	}
	n, err := s.port.Read(p)
	if err != nil && s.closed.Load() {
		return n, io.EOF
	}
	return n, err
}

func (s *SerialSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.logger.Debug("serial source closed", zap.String("port", s.name))
	return s.port.Close()
}
