// Package span provides a bounds-checked, non-owning view over a byte range.
//
// All packet decoding works on a Span rather than on the buffer that owns the
// bytes. A Span borrows its storage: it must not be kept after the owner
// reuses or shrinks the buffer.
package span

import (
	"fmt"
	"strings"

	"itmtrace/internal/common"
)

// Span is a view over a contiguous, immutable byte range.
type Span struct {
	b []byte
}

// New returns a view over b.
func New(b []byte) Span {
	return Span{b: b}
}

// Of returns a view over the given bytes.
func Of(b ...byte) Span {
	return Span{b: b}
}

// Len returns the number of bytes in the view.
func (s Span) Len() int {
	return len(s.b)
}

// Empty reports whether the view holds no bytes.
func (s Span) Empty() bool {
	return len(s.b) == 0
}

// At returns the byte at index i. It panics with a *common.Error coded
// ErrIndexOutOfRange when i is outside [0, Len()).
func (s Span) At(i int) byte {
	if i < 0 || i >= len(s.b) {
		panic(common.NewErrorMsg(common.ErrSevError, common.ErrIndexOutOfRange,
			fmt.Sprintf("Span.At: index %d, length %d", i, len(s.b))))
	}
	return s.b[i]
}

// First returns the first n bytes. n is clamped to [0, Len()].
func (s Span) First(n int) Span {
	if n <= 0 {
		return Span{}
	}
	if n > len(s.b) {
		n = len(s.b)
	}
	return Span{b: s.b[:n:n]}
}

// Tail returns the bytes from off to the end, or an empty view when
// off >= Len().
func (s Span) Tail(off int) Span {
	if off >= len(s.b) {
		return Span{}
	}
	if off < 0 {
		off = 0
	}
	return Span{b: s.b[off:]}
}

// Bytes returns the viewed bytes. The slice shares storage with the owner.
func (s Span) Bytes() []byte {
	return s.b
}

// String renders the bytes as space separated hex.
func (s Span) String() string {
	var sb strings.Builder
	for i, c := range s.b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%02x", c))
	}
	return sb.String()
}
