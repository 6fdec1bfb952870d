package broker

// Timer-driven behavior: TTL expiry and the onChange debounce/throttle rule.
// All timers come from the injected clock and every handle is retained so
// clear, reschedule, and shutdown can cancel it. A sequence counter guards
// each debounce slot against stale fires: a timer that lost a Stop race
// checks its sequence under the lock and gives up.

// scheduleTTL arms the one-shot expiry timer. It is scheduled once at
// creation and never renewed. Caller holds b.mu.
func (b *Broker) scheduleTTL(ch *channel) {
	ch.ttlTimer = b.clock.AfterFunc(ch.ttl, func() {
		b.clearChannel(ch.name, ch)
	})
}

// scheduleChange applies the debounce/throttle rule to ch.onChange after a
// publish. Debounce takes priority when both are set: the pending timer is
// canceled and a new one armed, so only the last publish in a burst fires.
// Throttle invokes immediately when the window has elapsed and otherwise
// drops the invocation. With neither set, onChange runs synchronously.
//
// Caller holds b.mu. The returned func, when non-nil, performs the
// synchronous invocation and must be called after the lock is released.
func (b *Broker) scheduleChange(ch *channel, newValue, oldValue interface{}) func() {
	if ch.onChange == nil {
		return nil
	}
	hook := ch.onChange
	name := ch.name
	switch {
	case ch.debounce > 0:
		ch.debounceSeq++
		seq := ch.debounceSeq
		if ch.debounceTimer != nil {
			ch.debounceTimer.Stop()
		}
		ch.debounceTimer = b.clock.AfterFunc(ch.debounce, func() {
			b.fireChange(ch, seq, oldValue)
		})
		return nil
	case ch.throttle > 0:
		now := b.clock.Now()
		if now.Sub(ch.lastChange) < ch.throttle {
			b.counters.throttleDrops.Add(1)
			return nil
		}
		ch.lastChange = now
		return func() {
			b.runSafe("channel", name, "onChange", func() { hook(newValue, oldValue) })
		}
	default:
		return func() {
			b.runSafe("channel", name, "onChange", func() { hook(newValue, oldValue) })
		}
	}
}

// fireChange is the debounce timer body. It delivers onChange with the
// channel's latest value and the old value captured at the last scheduling.
func (b *Broker) fireChange(ch *channel, seq uint64, oldValue interface{}) {
	b.mu.Lock()
	if ch.debounceSeq != seq || b.channels[ch.name] != ch {
		b.mu.Unlock()
		return
	}
	ch.debounceTimer = nil
	latest := ch.value
	hook := ch.onChange
	name := ch.name
	b.mu.Unlock()

	b.runSafe("channel", name, "onChange", func() { hook(latest, oldValue) })
}
