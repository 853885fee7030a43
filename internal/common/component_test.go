package common

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder[T any] struct {
	got []T
}

func (r *recorder[T]) Notify(ev T) { r.got = append(r.got, ev) }

func TestAttachment(t *testing.T) {
	var pub1, pub2 Publisher[int]
	var att Attachment[int]
	rec := &recorder[int]{}

	if att.HasAttached() {
		t.Errorf("expected no attachment initially")
	}

	att.AttachTo(&pub1, rec)
	if !att.HasAttached() {
		t.Errorf("expected attachment")
	}
	pub1.Notify(1)

	// Attaching elsewhere replaces the first subscription.
	att.AttachTo(&pub2, rec)
	if pub1.Len() != 0 {
		t.Errorf("expected old publisher to be released, has %d subscribers", pub1.Len())
	}
	pub1.Notify(2)
	pub2.Notify(3)

	att.Detach()
	if att.HasAttached() {
		t.Errorf("expected no attachment after Detach")
	}
	pub2.Notify(4)
	att.Detach()

	if diff := cmp.Diff([]int{1, 3}, rec.got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
