package formatter

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"itmtrace/internal/common"
)

type mockReceiver struct {
	data []byte
}

func (m *mockReceiver) Notify(b []byte) {
	m.data = append(m.data, b...)
}

func attach(d *Deformatter, id uint8) *mockReceiver {
	r := &mockReceiver{}
	d.Output(id).Subscribe(common.SubscriberFunc[[]byte](r.Notify))
	return r
}

var fsync = []byte{0xFF, 0xFF, 0xFF, 0x7F}

func TestDeformatter(t *testing.T) {
	d := NewDeformatter(true, nil)
	r1 := attach(d, 0x10)
	r2 := attach(d, 0x20)

	// Byte 0: ID change to 0x10 -> (0x10 << 1) | 1 = 0x21
	// Byte 2: 0xBA in frame, flag bit 1 set -> data 0xBB
	frame := make([]byte, 16)
	frame[0] = 0x21
	frame[1] = 0xAA
	frame[2] = 0xBA
	frame[3] = 0xCC
	frame[15] = 0x02

	d.Write(frame)

	want1 := append([]byte{0xAA, 0xBB, 0xCC}, make([]byte, 11)...)
	if diff := cmp.Diff(want1, r1.data); diff != "" {
		t.Errorf("ID 0x10 data mismatch (-want +got):\n%s", diff)
	}

	frame2 := make([]byte, 16)
	frame2[0] = 0x41 // ID -> 0x20
	frame2[1] = 0xDD
	frame2[2] = 0x21 // ID -> 0x10, flag set: next byte still for 0x20
	frame2[3] = 0xEE
	frame2[4] = 0x40
	frame2[5] = 0x41
	frame2[15] = 0x02

	r1.data = nil
	d.Write(frame2)

	if diff := cmp.Diff([]byte{0xDD, 0xEE}, r2.data); diff != "" {
		t.Errorf("ID 0x20 data mismatch (-want +got):\n%s", diff)
	}
	want1 = append([]byte{0x40, 0x41}, make([]byte, 9)...)
	if diff := cmp.Diff(want1, r1.data); diff != "" {
		t.Errorf("ID 0x10 data mismatch (-want +got):\n%s", diff)
	}
}

func TestDeformatterSync(t *testing.T) {
	d := NewDeformatter(false, nil)
	r := attach(d, 0x01)

	frame := make([]byte, 16)
	frame[0] = 0x03 // ID -> 0x01
	frame[1] = 0x11
	frame[2] = 0x22
	frame[3] = 0x33
	frame[4] = 0x01 // ID -> 0x00, null source
	frame[5] = 0x99

	d.Write([]byte{0x12, 0x34}) // garbage before sync
	if d.Synced() {
		t.Fatalf("synced on garbage")
	}

	in := append(append([]byte(nil), fsync...), frame...)
	in = append(in, fsync...)
	// split the stream inside the frame
	d.Write(in[:9])
	if !d.Synced() {
		t.Fatalf("not synced after FSYNC")
	}
	d.Write(in[9:])

	if diff := cmp.Diff([]byte{0x11, 0x22, 0x33}, r.data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestDeformatterHalfSync(t *testing.T) {
	d := NewDeformatter(true, nil)
	r := attach(d, 0x01)

	frame := make([]byte, 16)
	frame[0] = 0x03
	frame[1] = 0x11
	frame[2] = 0xFF // HSYNC
	frame[3] = 0x7F
	frame[4] = 0x22
	frame[5] = 0x33
	for i := 6; i < 15; i++ {
		frame[i] = 0x00
	}
	d.Write(frame)

	if !bytes.HasPrefix(r.data, []byte{0x11, 0x22, 0x33}) {
		t.Errorf("HSYNC not skipped: % x", r.data)
	}
	if len(r.data) != 3+9 {
		t.Errorf("got %d bytes, want 12", len(r.data))
	}
}

func TestDeformatterRawFrames(t *testing.T) {
	d := NewDeformatter(false, nil)
	type elem struct {
		Index   common.TrcIndex
		Elem    FrameElem
		TraceID uint8
		Len     int
	}
	var got []elem
	d.Frames.Subscribe(common.SubscriberFunc[RawFrame](func(f RawFrame) {
		got = append(got, elem{f.Index, f.Elem, f.TraceID, len(f.Data)})
	}))

	frame := make([]byte, 16)
	frame[0] = 0x03 // ID -> 0x01
	frame[1] = 0x11
	frame[2] = 0xFF // HSYNC
	frame[3] = 0x7F
	frame[4] = 0x01 // ID -> 0x00

	in := append([]byte{0x12, 0x34}, fsync...)
	in = append(in, frame...)
	in = append(in, fsync...)
	d.Write(in[:5])
	d.Write(in[5:])

	want := []elem{
		{2, FrmFsync, 0, 4},
		{6, FrmPacked, 0, 16},
		{8, FrmHsync, 0, 2},
		{6, FrmIDData, 0x01, 1},
		{6, FrmIDData, 0x00, 10},
		{22, FrmFsync, 0, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("raw frames mismatch (-want +got):\n%s", diff)
	}
}
