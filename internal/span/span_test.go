package span

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"itmtrace/internal/common"
)

func TestSpanViews(t *testing.T) {
	s := Of(0x83, 0x01, 0x02, 0x03, 0x04)

	tests := []struct {
		name string
		got  Span
		want []byte
	}{
		{"First 2", s.First(2), []byte{0x83, 0x01}},
		{"First all", s.First(5), []byte{0x83, 0x01, 0x02, 0x03, 0x04}},
		{"First clamps", s.First(9), []byte{0x83, 0x01, 0x02, 0x03, 0x04}},
		{"First 0", s.First(0), nil},
		{"Tail 1", s.Tail(1), []byte{0x01, 0x02, 0x03, 0x04}},
		{"Tail end", s.Tail(5), nil},
		{"Tail past end", s.Tail(8), nil},
		{"Tail of First", s.First(3).Tail(1), []byte{0x01, 0x02}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.got.Bytes(), cmp.Comparer(func(a, b []byte) bool {
				return string(a) == string(b)
			})); diff != "" {
				t.Errorf("view mismatch (-want +got):\n%s", diff)
			}
			if tc.got.Len() != len(tc.want) || tc.got.Empty() != (len(tc.want) == 0) {
				t.Errorf("Len=%d Empty=%v for %d bytes", tc.got.Len(), tc.got.Empty(), len(tc.want))
			}
		})
	}
}

func TestSpanFirstDoesNotExposeTail(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	head := New(buf).First(2).Bytes()
	if cap(head) != 2 {
		t.Errorf("cap(First(2).Bytes()) = %d, want 2", cap(head))
	}
}

func TestSpanAt(t *testing.T) {
	s := Of(0x0e, 0x10, 0x10)
	for i, want := range []byte{0x0e, 0x10, 0x10} {
		if got := s.At(i); got != want {
			t.Errorf("At(%d) = 0x%02x, want 0x%02x", i, got, want)
		}
	}

	for _, idx := range []int{-1, 3, 100} {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok {
					t.Fatalf("At(%d): expected panic with error, got %v", idx, r)
				}
				var cerr *common.Error
				if !errors.As(err, &cerr) || cerr.Code != common.ErrIndexOutOfRange {
					t.Errorf("At(%d): panic %v is not ErrIndexOutOfRange", idx, err)
				}
			}()
			s.At(idx)
		}()
	}
}

func TestSpanString(t *testing.T) {
	if got := Of(0x00, 0x80, 0xff).String(); got != "00 80 ff" {
		t.Errorf("String() = %q", got)
	}
	if got := New(nil).String(); got != "" {
		t.Errorf("empty String() = %q", got)
	}
}
