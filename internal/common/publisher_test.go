package common

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPublisherOrder(t *testing.T) {
	var pub Publisher[string]
	var calls []string
	for _, name := range []string{"a", "b", "c"} {
		pub.Subscribe(SubscriberFunc[string](func(ev string) {
			calls = append(calls, name+":"+ev)
		}))
	}

	pub.Notify("x")
	pub.Notify("y")

	want := []string{"a:x", "b:x", "c:x", "a:y", "b:y", "c:y"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("notify order mismatch (-want +got):\n%s", diff)
	}
}

func TestPublisherNoSubscribers(t *testing.T) {
	var pub Publisher[int]
	pub.Notify(1)
	if pub.Len() != 0 {
		t.Errorf("Len = %d, want 0", pub.Len())
	}
}

func TestSubscriptionCancel(t *testing.T) {
	var pub Publisher[int]
	rec := &recorder[int]{}
	sub := pub.Subscribe(rec)

	pub.Notify(1)
	sub.Cancel()
	if sub.Active() {
		t.Errorf("subscription still active after Cancel")
	}
	pub.Notify(2)
	sub.Cancel()

	if diff := cmp.Diff([]int{1}, rec.got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	var nilSub *Subscription
	nilSub.Cancel()
	if nilSub.Active() {
		t.Errorf("nil subscription reports active")
	}
}

func TestSubscriptionSlotReuse(t *testing.T) {
	var pub Publisher[int]
	first := &recorder[int]{}
	second := &recorder[int]{}

	stale := pub.Subscribe(first)
	stale.Cancel()
	live := pub.Subscribe(second)

	// The slot is reused; the cancelled token must not release the new
	// subscriber.
	stale.Cancel()
	pub.Notify(7)

	if !live.Active() || pub.Len() != 1 {
		t.Fatalf("live subscription lost: active=%v len=%d", live.Active(), pub.Len())
	}
	if diff := cmp.Diff([]int{7}, second.got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if len(first.got) != 0 {
		t.Errorf("cancelled subscriber received %v", first.got)
	}
}

func TestSelfCancelDuringNotify(t *testing.T) {
	var pub Publisher[int]
	var calls []string
	var sub *Subscription
	sub = pub.Subscribe(SubscriberFunc[int](func(ev int) {
		calls = append(calls, "once")
		sub.Cancel()
	}))
	pub.Subscribe(SubscriberFunc[int](func(ev int) {
		calls = append(calls, "always")
	}))

	pub.Notify(1)
	pub.Notify(2)

	want := []string{"once", "always", "always"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestCancelOtherDuringNotify(t *testing.T) {
	var pub Publisher[int]
	var calls []string
	var second *Subscription
	pub.Subscribe(SubscriberFunc[int](func(ev int) {
		calls = append(calls, "first")
		second.Cancel()
	}))
	second = pub.Subscribe(SubscriberFunc[int](func(ev int) {
		calls = append(calls, "second")
	}))

	pub.Notify(1)

	if diff := cmp.Diff([]string{"first"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscribeDuringNotify(t *testing.T) {
	var pub Publisher[int]
	var calls []int
	added := false
	pub.Subscribe(SubscriberFunc[int](func(ev int) {
		if !added {
			added = true
			pub.Subscribe(SubscriberFunc[int](func(ev int) {
				calls = append(calls, -ev)
			}))
		}
		calls = append(calls, ev)
	}))

	pub.Notify(1)
	pub.Notify(2)

	// The subscriber added while handling 1 first sees 2.
	if diff := cmp.Diff([]int{1, 2, -2}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}
