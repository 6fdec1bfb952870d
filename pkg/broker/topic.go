package broker

import (
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/LithiumDevs/lithium/pkg/id"
	"github.com/LithiumDevs/lithium/pkg/log"
)

// listener wraps one topic subscription. Debounce and throttle state is
// private to the listener, never shared across a topic.
type listener struct {
	topic string
	token id.Token

	once    bool
	fired   bool
	removed bool

	debounce time.Duration
	throttle time.Duration

	accept  func(data interface{}) (interface{}, bool)
	deliver func(data interface{})

	debounceTimer *clock.Timer
	debounceSeq   uint64
	lastRun       time.Time
}

type listenerOptions[T any] struct {
	once      bool
	validate  func(T) bool
	transform func(T) T
	debounce  time.Duration
	throttle  time.Duration
}

// ListenerOption customizes one topic listener at registration.
type ListenerOption[T any] func(*listenerOptions[T])

// WithOnce unregisters the listener after its first actual invocation.
func WithOnce[T any]() ListenerOption[T] {
	return func(o *listenerOptions[T]) { o.once = true }
}

// WithValidate skips emissions for which fn returns false.
func WithValidate[T any](fn func(T) bool) ListenerOption[T] {
	return func(o *listenerOptions[T]) { o.validate = fn }
}

// WithTransform rewrites the payload before delivery.
func WithTransform[T any](fn func(T) T) ListenerOption[T] {
	return func(o *listenerOptions[T]) { o.transform = fn }
}

// WithDebounce defers delivery until emissions stop for d. Takes priority
// over WithThrottle when both are set.
func WithDebounce[T any](d time.Duration) ListenerOption[T] {
	return func(o *listenerOptions[T]) { o.debounce = d }
}

// WithThrottle allows at most one delivery per window d, dropping the rest.
func WithThrottle[T any](d time.Duration) ListenerOption[T] {
	return func(o *listenerOptions[T]) { o.throttle = d }
}

// Emit delivers data to every listener of topic. Emitting to a topic with
// no listeners is a no-op. Listeners run synchronously in registration
// order against a snapshot of the set, each isolated from the others'
// failures.
func (b *Broker) Emit(topic string, data interface{}) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	set, ok := b.topics[topic]
	if !ok || len(set) == 0 {
		b.mu.Unlock()
		return
	}
	b.counters.emits.Add(1)
	snapshot := snapshotListeners(set)
	b.mu.Unlock()

	for _, l := range snapshot {
		b.dispatch(l, data)
	}
}

// On registers fn for emissions on topic. Each emission passes through the
// listener's private wrapping: the once gate, the payload type boundary,
// validate, transform, then the debounce/throttle rule. The returned
// unlisten func cancels any pending debounced delivery, removes the
// listener, and drops the topic once its listener set empties; it is
// idempotent.
func On[T any](b *Broker, topic string, fn func(T), opts ...ListenerOption[T]) func() {
	if topic == "" || fn == nil {
		return func() {}
	}
	var o listenerOptions[T]
	for _, opt := range opts {
		opt(&o)
	}
	l := &listener{
		topic:    topic,
		once:     o.once,
		debounce: o.debounce,
		throttle: o.throttle,
	}
	l.accept = func(data interface{}) (interface{}, bool) {
		v, ok := payloadAs[T](data)
		if !ok {
			b.logger.Debug("payload does not fit listener",
				log.Str("topic", topic),
				log.Str("want", typeOf[T]().String()))
			return nil, false
		}
		if o.validate != nil {
			passed := false
			if ran := b.runSafe("topic", topic, "validate", func() { passed = o.validate(v) }); !ran || !passed {
				return nil, false
			}
		}
		if o.transform != nil {
			if ran := b.runSafe("topic", topic, "transform", func() { v = o.transform(v) }); !ran {
				return nil, false
			}
		}
		return v, true
	}
	l.deliver = func(data interface{}) {
		v, _ := payloadAs[T](data)
		b.runSafe("topic", topic, "listener", func() { fn(v) })
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	l.token = b.tokens.Next()
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[id.Token]*listener)
		b.topics[topic] = set
	}
	set[l.token] = l
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.dropListener(l)
		b.mu.Unlock()
	}
}

// Once registers fn to run for exactly one emission on topic.
func Once[T any](b *Broker, topic string, fn func(T)) func() {
	return On(b, topic, fn, WithOnce[T]())
}

// Off removes topic and every one of its listeners unconditionally,
// canceling any pending debounced deliveries.
func (b *Broker) Off(topic string) {
	b.mu.Lock()
	set, ok := b.topics[topic]
	if !ok {
		b.mu.Unlock()
		return
	}
	snapshot := make([]*listener, 0, len(set))
	for _, l := range set {
		snapshot = append(snapshot, l)
	}
	for _, l := range snapshot {
		b.dropListener(l)
	}
	b.mu.Unlock()
}

// dispatch runs one listener's wrapping for a single emission.
func (b *Broker) dispatch(l *listener, data interface{}) {
	b.mu.Lock()
	if l.removed || (l.once && l.fired) {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	payload, ok := l.accept(data)
	if !ok {
		return
	}

	b.mu.Lock()
	if l.removed || (l.once && l.fired) {
		b.mu.Unlock()
		return
	}
	switch {
	case l.debounce > 0:
		l.debounceSeq++
		seq := l.debounceSeq
		if l.debounceTimer != nil {
			l.debounceTimer.Stop()
		}
		l.debounceTimer = b.clock.AfterFunc(l.debounce, func() {
			b.fireListener(l, seq, payload)
		})
		b.mu.Unlock()
	case l.throttle > 0:
		now := b.clock.Now()
		if now.Sub(l.lastRun) < l.throttle {
			b.counters.throttleDrops.Add(1)
			b.mu.Unlock()
			return
		}
		l.lastRun = now
		b.mu.Unlock()
		b.invoke(l, payload)
	default:
		b.mu.Unlock()
		b.invoke(l, payload)
	}
}

// fireListener is the debounce timer body for one listener.
func (b *Broker) fireListener(l *listener, seq uint64, payload interface{}) {
	b.mu.Lock()
	if l.removed || l.debounceSeq != seq {
		b.mu.Unlock()
		return
	}
	l.debounceTimer = nil
	b.mu.Unlock()
	b.invoke(l, payload)
}

// invoke performs the actual delivery: it marks the listener fired,
// self-unregisters once listeners, then calls the wrapped fn.
func (b *Broker) invoke(l *listener, payload interface{}) {
	b.mu.Lock()
	if l.removed || (l.once && l.fired) {
		b.mu.Unlock()
		return
	}
	l.fired = true
	b.counters.listenerRuns.Add(1)
	if l.once {
		b.dropListener(l)
	}
	b.mu.Unlock()
	l.deliver(payload)
}

// dropListener removes l from its topic and cancels any pending delivery.
// Dropping an already-removed listener is a no-op. Caller holds b.mu.
func (b *Broker) dropListener(l *listener) {
	if l.removed {
		return
	}
	l.removed = true
	l.debounceSeq++
	if l.debounceTimer != nil {
		l.debounceTimer.Stop()
		l.debounceTimer = nil
	}
	set, ok := b.topics[l.topic]
	if !ok {
		return
	}
	delete(set, l.token)
	if len(set) == 0 {
		delete(b.topics, l.topic)
	}
}

// snapshotListeners copies a topic's listener set in registration order.
// Caller holds b.mu.
func snapshotListeners(set map[id.Token]*listener) []*listener {
	toks := make([]id.Token, 0, len(set))
	for tok := range set {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool { return toks[i].Less(toks[j]) })
	out := make([]*listener, len(toks))
	for i, tok := range toks {
		out[i] = set[tok]
	}
	return out
}

// payloadAs fits an emitted payload to a listener's type. A nil payload is
// delivered as the zero value.
func payloadAs[T any](data interface{}) (T, bool) {
	if data == nil {
		var zero T
		return zero, true
	}
	v, ok := data.(T)
	return v, ok
}
