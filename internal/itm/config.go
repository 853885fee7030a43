package itm

import (
	"fmt"
)

const (
	DefaultClockHz  uint64 = 120000000
	DefaultPrescale uint32 = 64
)

var prescaleVals = [...]uint32{1, 4, 16, 64}

// Config holds the ITM timestamp clock setup and the splitter limits.
type Config struct {
	ClockHz     uint64 // local timestamp counter clock
	Prescale    uint32 // TSPrescale divider applied to the counter clock
	MaxResidual int    // splitter residual limit in bytes, 0 = unbounded
}

// NewConfig creates a default configuration: 120 MHz core clock, /64.
func NewConfig() *Config {
	return &Config{
		ClockHz:  DefaultClockHz,
		Prescale: DefaultPrescale,
	}
}

// SetPrescaleFromTCR sets the prescaler from a programmed ITM_TCR value.
// TSPrescale [9:8] only applies when SWOENA [4] is set.
func (c *Config) SetPrescaleFromTCR(tcr uint32) {
	idx := 0
	if (tcr & 0x10) != 0 {
		idx = int((tcr >> 8) & 0x3)
	}
	c.Prescale = prescaleVals[idx]
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.ClockHz == 0 {
		return fmt.Errorf("itm: clock frequency must be non-zero")
	}
	switch c.Prescale {
	case 1, 4, 16, 64:
	default:
		return fmt.Errorf("itm: prescaler %d not one of 1, 4, 16, 64", c.Prescale)
	}
	if c.MaxResidual < 0 {
		return fmt.Errorf("itm: max residual %d is negative", c.MaxResidual)
	}
	return nil
}
