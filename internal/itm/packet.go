package itm

import (
	"fmt"
	"time"

	"itmtrace/internal/span"
)

// PktType represents the ITM packet type.
type PktType int

const (
	PktUnknown         PktType = iota /**< no rule matched / empty packet */
	PktSync                           /**< synchronisation packet */
	PktOverflow                       /**< overflow packet */
	PktTSLocal                        /**< local timestamp packet */
	PktTSGlobal1                      /**< global timestamp bits [25:0] */
	PktTSGlobal2                      /**< global timestamp high bits */
	PktExtension                      /**< extension packet - stimulus page */
	PktInstrumentation                /**< software stimulus packet */
	PktEventCounter                   /**< DWT event counter packet */
	PktException                      /**< DWT exception trace packet */
	PktPCSample                       /**< DWT periodic PC sample */
	PktDataTrace                      /**< DWT data trace packet */
)

// ExceptionEvent is the action reported by an exception trace packet.
type ExceptionEvent int

const (
	ExcResume ExceptionEvent = iota
	ExcStart
	ExcStop
)

func (e ExceptionEvent) String() string {
	switch e {
	case ExcStart:
		return "START"
	case ExcStop:
		return "STOP"
	case ExcResume:
		return "RESUME"
	default:
		return "UNKNOWN"
	}
}

// Packet is a classified ITM packet. Type selects which of the fields are
// meaningful:
//   - TSLocal, TSGlobal2: Value
//   - TSGlobal1: Value, ClockChange, Wrap
//   - Extension: Page
//   - Instrumentation: Port, Data, Size
//   - Exception: Exception, Event
//   - PCSample: PC (not decoded, always 0)
//   - DataTrace: Address, Data (not decoded, always 0)
type Packet struct {
	Type PktType

	Value       uint64
	ClockChange bool
	Wrap        bool

	Page uint8

	Port uint8
	Data uint32
	Size uint8

	Exception int
	Event     ExceptionEvent

	PC      uint32
	Address uint8
}

// String provides a string representation of the packet.
func (p Packet) String() string {
	name, desc := p.typeNameAndDesc()
	str := fmt.Sprintf("%s:%s", name, desc)

	switch p.Type {
	case PktTSLocal:
		str += fmt.Sprintf("; TS = 0x%07X", p.Value)
	case PktTSGlobal1:
		str += fmt.Sprintf("; TS 25:0  0x%07X", p.Value)
		if p.ClockChange {
			str += "; ClkCh"
		}
		if p.Wrap {
			str += "; Wrap"
		}
	case PktTSGlobal2:
		str += fmt.Sprintf("; TS 63:26 0x%010X", p.Value)
	case PktExtension:
		str += fmt.Sprintf("; Page %d", p.Page)
	case PktInstrumentation:
		str += fmt.Sprintf("; %s; Port 0x%02X; Data 0x%08X", valSizeStr(p.Size), p.Port, p.Data)
	case PktException:
		str += fmt.Sprintf("; Exception Num %03d %s", p.Exception, p.Event)
	}
	return str
}

func (p Packet) typeNameAndDesc() (string, string) {
	switch p.Type {
	case PktSync:
		return "ASYNC", "Alignment synchronisation packet"
	case PktOverflow:
		return "OVERFLOW", "Overflow packet"
	case PktTSLocal:
		return "TS_L", "Local timestamp packet"
	case PktTSGlobal1:
		return "TS_G1", "Global timestamp packet 1"
	case PktTSGlobal2:
		return "TS_G2", "Global timestamp packet 2"
	case PktExtension:
		return "EXTENSION", "Extension packet"
	case PktInstrumentation:
		return "SWIT", "Software stimulus packet"
	case PktEventCounter:
		return "DWT_EVCNT", "Event counter packet"
	case PktException:
		return "DWT_EXC", "Exception trace packet"
	case PktPCSample:
		return "DWT_PC", "PC sample packet"
	case PktDataTrace:
		return "DWT_DATA", "Data trace packet"
	default:
		return "UNKNOWN", "Unknown Packet Type"
	}
}

func valSizeStr(sz uint8) string {
	switch sz {
	case 1:
		return "8 bit"
	case 2:
		return "16 bit"
	case 4:
		return "32 bit"
	default:
		return "Unsized"
	}
}

// TPIUEvent is a packet that passed the timestamp processor, tagged with the
// session time at which it was seen.
type TPIUEvent struct {
	Timestamp time.Duration
	Data      span.Span
	Packet    Packet
}

// ExceptionTrace reports a CPU exception entry, exit or resume.
type ExceptionTrace struct {
	Timestamp time.Duration
	Exception int
	Event     ExceptionEvent
}

var cortexMExceptions = [...]string{
	1:  "Reset",
	2:  "NMI",
	3:  "HardFault",
	4:  "MemManage",
	5:  "BusFault",
	6:  "UsageFault",
	7:  "SecureFault",
	11: "SVCall",
	12: "DebugMonitor",
	14: "PendSV",
	15: "SysTick",
}

// Name returns the Cortex-M name of the exception number.
func (t ExceptionTrace) Name() string {
	if t.Exception >= 16 {
		return fmt.Sprintf("IRQ%d", t.Exception-16)
	}
	if t.Exception > 0 && t.Exception < len(cortexMExceptions) && cortexMExceptions[t.Exception] != "" {
		return cortexMExceptions[t.Exception]
	}
	return "Reserved"
}

// InstrumentationTrace carries the payload written to a stimulus port.
type InstrumentationTrace struct {
	Timestamp time.Duration
	Port      uint8
	Data      uint32
	Size      uint8
}
