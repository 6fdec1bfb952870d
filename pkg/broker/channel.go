package broker

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/LithiumDevs/lithium/pkg/id"
	"github.com/LithiumDevs/lithium/pkg/log"
	"github.com/LithiumDevs/lithium/pkg/storage"
)

// ChannelConfig enumerates every option a channel recognizes. Configuration
// applies at creation only; requesting an existing channel returns it
// unchanged.
type ChannelConfig[T any] struct {
	// Initial seeds the cell when nothing is read back from storage. Nil
	// leaves the channel without a value until the first publish.
	Initial *T
	// Tier selects the persistence tier. The default, TierNone, keeps the
	// value in memory only.
	Tier storage.Tier
	// StorageKey overrides the key used against the storage adapter.
	// Defaults to the broker's key prefix + name.
	StorageKey string
	// TTL force-clears the channel this long after creation. Zero disables.
	// The timer is never renewed by publishes or subscriptions.
	TTL time.Duration
	// AutoCleanup clears the channel the instant its subscriber set empties.
	AutoCleanup bool
	// Validate rejects a published value when it returns false. Rejections
	// are logged and dropped without mutating the channel.
	Validate func(T) bool
	// Transform rewrites a published value before it is stored, persisted,
	// and delivered.
	Transform func(T) T
	// OnInit fires once, when the value first transitions from absent to
	// present.
	OnInit func(T)
	// OnChange fires after a successful publish with the new and previous
	// values, scheduled per Debounce and Throttle.
	OnChange func(newValue, oldValue T)
	// OnClear fires when the channel is cleared.
	OnClear func()
	// Debounce defers OnChange until publishes stop for this long. Takes
	// priority over Throttle when both are set.
	Debounce time.Duration
	// Throttle allows at most one OnChange per window, dropping the rest.
	Throttle time.Duration
}

// channel is the erased registry entry behind the typed Cell handles. The
// value type is fixed at creation; every typed entry point converts or
// rejects at the boundary.
type channel struct {
	name        string
	key         string
	tier        storage.Tier
	valueType   reflect.Type
	value       interface{} // nil when absent
	initialized bool
	createdAt   time.Time

	ttl         time.Duration
	autoCleanup bool
	debounce    time.Duration
	throttle    time.Duration

	validate  func(interface{}) bool
	transform func(interface{}) interface{}
	onInit    func(interface{})
	onChange  func(newValue, oldValue interface{})
	onClear   func()

	subs map[id.Token]func(interface{})

	clearing      bool
	ttlTimer      *clock.Timer
	debounceTimer *clock.Timer
	debounceSeq   uint64
	lastChange    time.Time
}

// channelSpec is the erased form of a ChannelConfig, built by the generic
// entry points so the registry itself stays untyped.
type channelSpec struct {
	valueType   reflect.Type
	initial     interface{}
	tier        storage.Tier
	storageKey  string
	ttl         time.Duration
	autoCleanup bool
	debounce    time.Duration
	throttle    time.Duration
	validate    func(interface{}) bool
	transform   func(interface{}) interface{}
	onInit      func(interface{})
	onChange    func(newValue, oldValue interface{})
	onClear     func()
	decode      func([]byte) (interface{}, error)
}

func specFor[T any](cfg ChannelConfig[T]) channelSpec {
	spec := channelSpec{
		valueType:   typeOf[T](),
		tier:        cfg.Tier,
		storageKey:  cfg.StorageKey,
		ttl:         cfg.TTL,
		autoCleanup: cfg.AutoCleanup,
		debounce:    cfg.Debounce,
		throttle:    cfg.Throttle,
		onClear:     cfg.OnClear,
	}
	if cfg.Initial != nil {
		spec.initial = *cfg.Initial
	}
	if v := cfg.Validate; v != nil {
		spec.validate = func(x interface{}) bool { return v(valueAs[T](x)) }
	}
	if tf := cfg.Transform; tf != nil {
		spec.transform = func(x interface{}) interface{} { return tf(valueAs[T](x)) }
	}
	if h := cfg.OnInit; h != nil {
		spec.onInit = func(x interface{}) { h(valueAs[T](x)) }
	}
	if h := cfg.OnChange; h != nil {
		spec.onChange = func(n, o interface{}) { h(valueAs[T](n), valueAs[T](o)) }
	}
	spec.decode = func(raw []byte) (interface{}, error) {
		var out T
		if err := storage.DecodeValue(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return spec
}

// Cell is a typed handle to one channel. A handle stays valid after its
// channel is cleared: reads report absent and Set recreates the channel
// through the publish fast path.
type Cell[T any] struct {
	b    *Broker
	name string
}

// Name returns the channel name.
func (c *Cell[T]) Name() string { return c.name }

// Get returns the current value, or the zero value when absent.
func (c *Cell[T]) Get() T {
	v, _ := Value[T](c.b, c.name)
	return v
}

// GetOK returns the current value and whether one is present.
func (c *Cell[T]) GetOK() (T, bool) {
	return Value[T](c.b, c.name)
}

// Set publishes v to the channel.
func (c *Cell[T]) Set(v T) error {
	return Publish(c.b, c.name, v)
}

// Subscribe registers fn for every successful publish on the channel.
func (c *Cell[T]) Subscribe(fn func(T)) (func(), error) {
	return Subscribe(c.b, c.name, fn)
}

// Channel returns the reactive cell named name, creating it when absent. An
// existing channel is returned unchanged with cfg ignored; its value type
// must match T. On creation, the initial value is read back from storage
// for persistent tiers (falling back to cfg.Initial), the TTL timer is
// scheduled, and onInit fires once if the resolved value is present.
func Channel[T any](b *Broker, name string, cfg ChannelConfig[T]) (*Cell[T], error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if name == "" {
		b.mu.Unlock()
		return nil, ErrNameRequired
	}
	if ch, ok := b.channels[name]; ok {
		err := b.checkType(ch, typeOf[T]())
		b.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &Cell[T]{b: b, name: name}, nil
	}
	_, fire, err := b.create(name, specFor(cfg))
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if fire != nil {
		fire()
	}
	return &Cell[T]{b: b, name: name}, nil
}

// Publish sets the value of channel name, creating the channel when absent.
// The very first publish to an unknown name only registers the channel with
// v as its initial value: validate, transform, persistence, onChange, and
// subscriber notification are all skipped on that path, and only onInit may
// fire. Subsequent publishes run the full pipeline.
func Publish[T any](b *Broker, name string, v T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if name == "" {
		b.mu.Unlock()
		return ErrNameRequired
	}
	ch, ok := b.channels[name]
	if !ok {
		// Deliberate fast path for brand-new names.
		_, fire, err := b.create(name, specFor(ChannelConfig[T]{Initial: &v}))
		b.mu.Unlock()
		if err != nil {
			return err
		}
		b.counters.publishes.Add(1)
		if fire != nil {
			fire()
		}
		return nil
	}
	if err := b.checkType(ch, typeOf[T]()); err != nil {
		b.mu.Unlock()
		return err
	}
	return b.publish(ch, v)
}

// Value returns the current value of channel name without side effects. ok
// is false when the channel does not exist, holds no value yet, or holds a
// value that does not fit T.
func Value[T any](b *Broker, name string) (T, bool) {
	var zero T
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return zero, false
	}
	ch, ok := b.channels[name]
	if !ok || !isPresent(ch.value) {
		return zero, false
	}
	v, ok := ch.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Signal returns the typed handle for channel name without creating it. ok
// is false when the channel does not exist or was created with a different
// value type.
func Signal[T any](b *Broker, name string) (*Cell[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	ch, ok := b.channels[name]
	if !ok || ch.valueType != typeOf[T]() {
		return nil, false
	}
	return &Cell[T]{b: b, name: name}, true
}

// Subscribe registers fn for every successful publish on channel name,
// creating the channel without a value when absent. The returned cancel
// func removes the subscription and, when the channel was configured with
// AutoCleanup and the subscriber set just emptied, clears the channel on
// the spot. Cancel is idempotent.
func Subscribe[T any](b *Broker, name string, fn func(T)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("broker: subscribe to %q: nil callback", name)
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if name == "" {
		b.mu.Unlock()
		return nil, ErrNameRequired
	}
	ch, ok := b.channels[name]
	if !ok {
		var err error
		ch, _, err = b.create(name, specFor(ChannelConfig[T]{}))
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
	} else if err := b.checkType(ch, typeOf[T]()); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	tok := b.tokens.Next()
	ch.subs[tok] = func(v interface{}) { fn(valueAs[T](v)) }
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		if b.channels[name] != ch {
			b.mu.Unlock()
			return
		}
		if _, live := ch.subs[tok]; !live {
			b.mu.Unlock()
			return
		}
		delete(ch.subs, tok)
		cleanup := ch.autoCleanup && len(ch.subs) == 0
		b.mu.Unlock()
		if cleanup {
			b.clearChannel(name, ch)
		}
	}, nil
}

// checkType rejects typed access to a channel holding a different type.
// Caller holds b.mu.
func (b *Broker) checkType(ch *channel, want reflect.Type) error {
	if ch.valueType == want {
		return nil
	}
	return fmt.Errorf("%w: channel %q holds %s, requested %s", ErrTypeMismatch, ch.name, ch.valueType, want)
}

// create registers a new channel. Caller holds b.mu. The returned fire
// func, when non-nil, runs the one-shot onInit hook and must be called
// after the lock is released.
func (b *Broker) create(name string, spec channelSpec) (*channel, func(), error) {
	if b.maxChannels > 0 && len(b.channels) >= b.maxChannels {
		return nil, nil, fmt.Errorf("%w: limit %d", ErrTooManyChannels, b.maxChannels)
	}
	key := spec.storageKey
	if key == "" {
		key = b.prefix + name
	}
	ch := &channel{
		name:        name,
		key:         key,
		tier:        spec.tier,
		valueType:   spec.valueType,
		createdAt:   b.clock.Now(),
		ttl:         spec.ttl,
		autoCleanup: spec.autoCleanup,
		debounce:    spec.debounce,
		throttle:    spec.throttle,
		validate:    spec.validate,
		transform:   spec.transform,
		onInit:      spec.onInit,
		onChange:    spec.onChange,
		onClear:     spec.onClear,
		subs:        make(map[id.Token]func(interface{})),
	}

	value := spec.initial
	if spec.tier != storage.TierNone {
		raw, ok, err := b.store.Read(key, spec.tier)
		switch {
		case err != nil:
			b.counters.storageErrors.Add(1)
			b.logger.Warn("storage read failed",
				log.Str("channel", name),
				log.Str("tier", spec.tier.String()),
				log.Err(err))
		case ok:
			decoded, derr := spec.decode(raw)
			if derr != nil {
				b.counters.storageErrors.Add(1)
				b.logger.Warn("stored value undecodable",
					log.Str("channel", name),
					log.Err(derr))
			} else {
				value = decoded
			}
		}
	}
	ch.value = value
	ch.initialized = isPresent(value)

	if ch.ttl > 0 {
		b.scheduleTTL(ch)
	}
	b.channels[name] = ch

	var fire func()
	if ch.initialized && ch.onInit != nil {
		hook := ch.onInit
		initValue := ch.value
		fire = func() {
			b.runSafe("channel", name, "onInit", func() { hook(initValue) })
		}
	}
	return ch, fire, nil
}

// publish runs the full change pipeline for an existing channel: validate,
// transform, set, persist, one-shot onInit, onChange scheduling, subscriber
// notification. Caller holds b.mu; publish releases it around every user
// callback.
func (b *Broker) publish(ch *channel, v interface{}) error {
	b.counters.publishes.Add(1)
	name := ch.name
	oldValue := ch.value
	validate := ch.validate
	transform := ch.transform
	b.mu.Unlock()

	if validate != nil {
		passed := false
		ran := b.runSafe("channel", name, "validate", func() { passed = validate(v) })
		if !ran || !passed {
			b.counters.validationRejects.Add(1)
			if ran {
				b.logger.Warn("publish rejected", log.Str("channel", name))
			}
			return nil
		}
	}

	transformed := v
	if transform != nil {
		var out interface{}
		if ran := b.runSafe("channel", name, "transform", func() { out = transform(v) }); !ran {
			return nil
		}
		transformed = out
	}

	b.mu.Lock()
	if b.channels[name] != ch {
		// Cleared while validate/transform ran; nothing left to mutate.
		b.mu.Unlock()
		return nil
	}
	ch.value = transformed

	fireInit := false
	if !ch.initialized && isPresent(transformed) {
		ch.initialized = true
		fireInit = ch.onInit != nil
	}
	onInit := ch.onInit

	if ch.tier != storage.TierNone {
		b.persist(ch, transformed)
	}

	runChange := b.scheduleChange(ch, transformed, oldValue)

	subs := snapshotSubscribers(ch)
	b.counters.notifications.Add(uint64(len(subs)))
	b.mu.Unlock()

	if fireInit {
		b.runSafe("channel", name, "onInit", func() { onInit(transformed) })
	}
	if runChange != nil {
		runChange()
	}
	for _, fn := range subs {
		cb := fn
		b.runSafe("channel", name, "subscriber", func() { cb(transformed) })
	}
	return nil
}

// persist writes a channel value through the storage adapter. Failures are
// logged; the in-memory value stays authoritative. Caller holds b.mu: the
// broker serializes storage access with its state lock, and stores must not
// call back into the broker.
func (b *Broker) persist(ch *channel, value interface{}) {
	data, err := storage.EncodeValue(value)
	if err == nil {
		err = b.store.Write(ch.key, ch.tier, data)
	}
	if err != nil {
		b.counters.storageErrors.Add(1)
		b.logger.Warn("storage write failed",
			log.Str("channel", ch.name),
			log.Str("tier", ch.tier.String()),
			log.Err(err))
	}
}

// snapshotSubscribers copies the subscriber set in registration order so
// callbacks can subscribe and unsubscribe during notification without
// invalidating the iteration. Caller holds b.mu.
func snapshotSubscribers(ch *channel) []func(interface{}) {
	if len(ch.subs) == 0 {
		return nil
	}
	toks := make([]id.Token, 0, len(ch.subs))
	for tok := range ch.subs {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool { return toks[i].Less(toks[j]) })
	out := make([]func(interface{}), len(toks))
	for i, tok := range toks {
		out[i] = ch.subs[tok]
	}
	return out
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// valueAs unboxes an erased channel value for a typed callback. Absent
// values come through as the zero value.
func valueAs[T any](v interface{}) T {
	if v == nil {
		var zero T
		return zero
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero
	}
	return t
}

// isPresent reports whether an erased value counts as present. Nil
// interfaces and typed nil pointers are absent; everything else, including
// zero values and empty slices, is present.
func isPresent(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
