package common

// Attachment is the subscriber side of a Publisher: it holds at most one
// subscription for event type T, so a stage is fed by a single upstream
// publisher of that type at a time.
type Attachment[T any] struct {
	sub *Subscription
}

// AttachTo subscribes s to p, cancelling any subscription this attachment
// held before.
func (a *Attachment[T]) AttachTo(p *Publisher[T], s Subscriber[T]) {
	a.Detach()
	a.sub = p.Subscribe(s)
}

// Detach cancels the current subscription, if any.
func (a *Attachment[T]) Detach() {
	a.sub.Cancel()
	a.sub = nil
}

// HasAttached reports whether the attachment holds an active subscription.
func (a *Attachment[T]) HasAttached() bool {
	return a.sub.Active()
}
