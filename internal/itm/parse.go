package itm

import (
	"itmtrace/internal/span"
)

var syncPattern = [...]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x80}

// parseRule pairs a header predicate with the decoder for the packet kind it
// selects. Rules are evaluated in order; the bit patterns overlap, so an
// earlier rule must claim its headers before a broader later mask sees them.
type parseRule struct {
	match  func(pkt span.Span) bool
	decode func(pkt span.Span) Packet
}

var parseRules = []parseRule{
	{isSync, func(span.Span) Packet { return Packet{Type: PktSync} }},
	{hdrEq(0x70), func(span.Span) Packet { return Packet{Type: PktOverflow} }},
	{isLocalTSCont, func(pkt span.Span) Packet { return Packet{Type: PktTSLocal, Value: uint64(localTSContValue(pkt))} }},
	{isLocalTSSingle, func(pkt span.Span) Packet { return Packet{Type: PktTSLocal, Value: uint64(localTSSingleValue(pkt))} }},
	{hdrEq(0x94), decodeGlobalTS1},
	{hdrEq(0xB4), func(pkt span.Span) Packet { return Packet{Type: PktTSGlobal2, Value: extractContVal64(pkt.Tail(1))} }},
	{hdrMask(0x8F, 0x08), func(pkt span.Span) Packet { return Packet{Type: PktExtension, Page: (pkt.At(0) >> 4) & 0x7} }},
	{hdrMask(0x04, 0x00), decodeInstrumentation},
	{hdrEq(0x05), func(span.Span) Packet { return Packet{Type: PktEventCounter} }},
	{isException, func(pkt span.Span) Packet {
		num, ev := exceptionFields(pkt)
		return Packet{Type: PktException, Exception: num, Event: ev}
	}},
	{hdrEq(0x17), func(span.Span) Packet { return Packet{Type: PktPCSample} }},
	{hdrMask(0x04, 0x04), func(span.Span) Packet { return Packet{Type: PktDataTrace} }},
}

// Parse classifies one complete packet as produced by the packet splitter.
// An empty packet, or one that matches no rule, yields PktUnknown.
func Parse(pkt span.Span) Packet {
	if pkt.Empty() {
		return Packet{Type: PktUnknown}
	}
	for _, r := range parseRules {
		if r.match(pkt) {
			return r.decode(pkt)
		}
	}
	return Packet{Type: PktUnknown}
}

func hdrEq(v byte) func(span.Span) bool {
	return func(pkt span.Span) bool { return pkt.At(0) == v }
}

func hdrMask(mask, v byte) func(span.Span) bool {
	return func(pkt span.Span) bool { return pkt.At(0)&mask == v }
}

func isSync(pkt span.Span) bool {
	if pkt.Len() < len(syncPattern) {
		return false
	}
	for i, c := range syncPattern {
		if pkt.At(i) != c {
			return false
		}
	}
	return true
}

// isLocalTSCont matches the local timestamp header carrying continuation
// bytes (C = 1, TC in bits [5:4]).
func isLocalTSCont(pkt span.Span) bool {
	return pkt.At(0)&0xC0 == 0xC0
}

// isLocalTSSingle matches the single byte local timestamp; 0x70 is the
// overflow header and is not a timestamp.
func isLocalTSSingle(pkt span.Span) bool {
	b := pkt.At(0)
	return b&0x8F == 0 && b&0x70 != 0x70
}

func localTSContValue(pkt span.Span) uint32 {
	value := uint32(pkt.At(0)&0x70) >> 4
	shift := 2
	rest := pkt.Tail(1)
	for i := 0; i < rest.Len(); i++ {
		value |= uint32(rest.At(i)&0x7F) << shift
		shift += 6
	}
	return value
}

func localTSSingleValue(pkt span.Span) uint32 {
	return uint32(pkt.At(0)&0x70) >> 4
}

func extractContVal64(payload span.Span) uint64 {
	var value uint64
	shift := 0
	for i := 0; i < payload.Len(); i++ {
		value |= uint64(payload.At(i)&0x7F) << shift
		shift += 7
	}
	return value
}

func decodeGlobalTS1(pkt span.Span) Packet {
	out := Packet{Type: PktTSGlobal1}
	payload := pkt.Tail(1)
	if payload.Len() == 4 {
		// last byte of a full GTS1 carries wrap [6] and clock change [5]
		last := payload.At(3)
		out.ClockChange = last&0x20 != 0
		out.Wrap = last&0x40 != 0
		b := append([]byte(nil), payload.Bytes()...)
		b[3] = last & 0x1F
		payload = span.New(b)
	}
	out.Value = extractContVal64(payload)
	return out
}

func decodeInstrumentation(pkt span.Span) Packet {
	var data uint32
	for i := pkt.Len() - 1; i > 0; i-- {
		data = (data << 8) | uint32(pkt.At(i))
	}
	return Packet{
		Type: PktInstrumentation,
		Port: (pkt.At(0) >> 3) & 0x1F,
		Data: data,
		Size: uint8(pkt.Len() - 1),
	}
}

func isException(pkt span.Span) bool {
	return pkt.At(0) == 0x0E && pkt.Len() >= 3
}

// exceptionFields decodes the DWT exception trace payload: number in
// byte1 | byte2[0], function in byte2[5:4].
func exceptionFields(pkt span.Span) (int, ExceptionEvent) {
	b1, b2 := pkt.At(1), pkt.At(2)
	num := int(b2&0x01)<<8 | int(b1)
	ev := ExcResume
	switch b2 & 0x30 {
	case 0x10:
		ev = ExcStart
	case 0x20:
		ev = ExcStop
	}
	return num, ev
}
