package common

// Subscriber receives events of a single type from a Publisher.
type Subscriber[T any] interface {
	Notify(ev T)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc[T any] func(ev T)

// Notify calls f(ev).
func (f SubscriberFunc[T]) Notify(ev T) { f(ev) }

type slot[T any] struct {
	sub    Subscriber[T]
	gen    uint32
	active bool
}

type slotRef struct {
	idx int
	gen uint32
}

// Publisher broadcasts events of type T to its subscribers.
//
// Subscribers live in an arena of slots addressed by index and generation, so a
// Subscription never holds a reference to a subscriber that the publisher has
// already released. The zero value is ready to use. A Publisher is not safe for
// concurrent use.
type Publisher[T any] struct {
	slots []slot[T]
	free  []int
	order []slotRef
}

// Subscribe registers s and returns the token that cancels the registration.
func (p *Publisher[T]) Subscribe(s Subscriber[T]) *Subscription {
	var idx int
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.slots = append(p.slots, slot[T]{})
		idx = len(p.slots) - 1
	}

	sl := &p.slots[idx]
	sl.gen++
	sl.sub = s
	sl.active = true

	ref := slotRef{idx: idx, gen: sl.gen}
	p.order = append(p.order, ref)
	return &Subscription{cancel: func() { p.remove(ref) }}
}

// Notify invokes every registered subscriber in registration order.
//
// The set of subscribers is fixed when Notify starts: subscribers added by a
// handler are first called on the next event, and a subscriber cancelled by a
// handler (including itself) is not called again.
func (p *Publisher[T]) Notify(ev T) {
	if len(p.order) == 0 {
		return
	}
	snapshot := make([]slotRef, len(p.order))
	copy(snapshot, p.order)

	for _, ref := range snapshot {
		sl := p.slots[ref.idx]
		if !sl.active || sl.gen != ref.gen {
			continue
		}
		sl.sub.Notify(ev)
	}
}

// Len returns the number of active subscriptions.
func (p *Publisher[T]) Len() int {
	return len(p.order)
}

func (p *Publisher[T]) remove(ref slotRef) {
	if ref.idx >= len(p.slots) {
		return
	}
	sl := &p.slots[ref.idx]
	if !sl.active || sl.gen != ref.gen {
		return
	}
	var empty Subscriber[T]
	sl.sub = empty
	sl.active = false
	p.free = append(p.free, ref.idx)

	for i, r := range p.order {
		if r == ref {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Subscription is the cancellation token returned by Publisher.Subscribe.
type Subscription struct {
	cancel func()
}

// Cancel removes the subscriber from its publisher. Calling Cancel more than
// once, or on a nil Subscription, is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

// Active reports whether the subscription has not been cancelled.
func (s *Subscription) Active() bool {
	return s != nil && s.cancel != nil
}
