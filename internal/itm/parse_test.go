package itm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"itmtrace/internal/span"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want Packet
	}{
		{"empty", nil, Packet{Type: PktUnknown}},
		{"sync", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x80}, Packet{Type: PktSync}},
		{"long sync", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x80, 0x00}, Packet{Type: PktSync}},
		{"overflow", []byte{0x70}, Packet{Type: PktOverflow}},
		{"local TS single", []byte{0x30}, Packet{Type: PktTSLocal, Value: 3}},
		{"local TS single zero", []byte{0x00}, Packet{Type: PktTSLocal, Value: 0}},
		{"local TS continued", []byte{0xC0, 0x81, 0x02}, Packet{Type: PktTSLocal, Value: 4 | 1<<2 | 2<<8}},
		{"local TS continued 1875", []byte{0xF0, 0x93, 0x07}, Packet{Type: PktTSLocal, Value: 1875}},
		{"global TS 1 short", []byte{0x94, 0x81, 0x02}, Packet{Type: PktTSGlobal1, Value: 1 | 2<<7}},
		{"global TS 1 flags", []byte{0x94, 0x81, 0x82, 0x83, 0x24},
			Packet{Type: PktTSGlobal1, Value: 1 | 2<<7 | 3<<14 | 4<<21, ClockChange: true}},
		{"global TS 1 wrap", []byte{0x94, 0x80, 0x80, 0x80, 0x41},
			Packet{Type: PktTSGlobal1, Value: 1 << 21, Wrap: true}},
		{"global TS 2", []byte{0xB4, 0x81, 0x02}, Packet{Type: PktTSGlobal2, Value: 257}},
		{"extension page 1", []byte{0x18}, Packet{Type: PktExtension, Page: 1}},
		{"extension page 7", []byte{0x78}, Packet{Type: PktExtension, Page: 7}},
		{"instrumentation 8 bit", []byte{0x01, 0xAA}, Packet{Type: PktInstrumentation, Port: 0, Data: 0xAA, Size: 1}},
		{"instrumentation 16 bit", []byte{0x0A, 0x34, 0x12}, Packet{Type: PktInstrumentation, Port: 1, Data: 0x1234, Size: 2}},
		{"instrumentation 32 bit", []byte{0x7B, 0x78, 0x56, 0x34, 0x12},
			Packet{Type: PktInstrumentation, Port: 15, Data: 0x12345678, Size: 4}},
		{"event counter", []byte{0x05, 0x01}, Packet{Type: PktEventCounter}},
		{"exception start", []byte{0x0E, 0x10, 0x10}, Packet{Type: PktException, Exception: 16, Event: ExcStart}},
		{"exception stop", []byte{0x0E, 0x0F, 0x20}, Packet{Type: PktException, Exception: 15, Event: ExcStop}},
		{"exception resume", []byte{0x0E, 0x0B, 0x30}, Packet{Type: PktException, Exception: 11, Event: ExcResume}},
		{"exception number bit 8", []byte{0x0E, 0x01, 0x11}, Packet{Type: PktException, Exception: 257, Event: ExcStart}},
		{"short exception header", []byte{0x0E, 0x10}, Packet{Type: PktDataTrace}},
		{"PC sample", []byte{0x17, 0x00, 0x01, 0x00, 0x08}, Packet{Type: PktPCSample}},
		{"data trace", []byte{0x47, 0x00, 0x00, 0x00, 0x20}, Packet{Type: PktDataTrace}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(span.New(tc.in))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse(% x) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestParseDoesNotModifyInput(t *testing.T) {
	in := []byte{0x94, 0x81, 0x82, 0x83, 0x7F}
	Parse(span.New(in))
	if in[4] != 0x7F {
		t.Errorf("Parse modified its input: % x", in)
	}
}

func TestPacketString(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte{0x19, 0xAA}, "SWIT:Software stimulus packet; 8 bit; Port 0x03; Data 0x000000AA"},
		{[]byte{0x70}, "OVERFLOW:Overflow packet"},
		{[]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x80}, "ASYNC:Alignment synchronisation packet"},
		{[]byte{0x30}, "TS_L:Local timestamp packet; TS = 0x0000003"},
		{[]byte{0x94, 0x81, 0x82, 0x83, 0x64}, "TS_G1:Global timestamp packet 1; TS 25:0  0x080C101; ClkCh; Wrap"},
		{[]byte{0x28}, "EXTENSION:Extension packet; Page 2"},
		{[]byte{0x0E, 0x10, 0x10}, "DWT_EXC:Exception trace packet; Exception Num 016 START"},
		{nil, "UNKNOWN:Unknown Packet Type"},
	}

	for _, tc := range tests {
		if got := Parse(span.New(tc.in)).String(); got != tc.want {
			t.Errorf("Parse(% x).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExceptionName(t *testing.T) {
	tests := []struct {
		num  int
		want string
	}{
		{0, "Reserved"},
		{1, "Reset"},
		{3, "HardFault"},
		{8, "Reserved"},
		{11, "SVCall"},
		{15, "SysTick"},
		{16, "IRQ0"},
		{257, "IRQ241"},
	}
	for _, tc := range tests {
		if got := (ExceptionTrace{Exception: tc.num}).Name(); got != tc.want {
			t.Errorf("Name(%d) = %q, want %q", tc.num, got, tc.want)
		}
	}
}
