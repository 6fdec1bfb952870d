package broker

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/LithiumDevs/lithium/pkg/id"
	"github.com/LithiumDevs/lithium/pkg/log"
	"github.com/LithiumDevs/lithium/pkg/storage"
)

// DefaultKeyPrefix namespaces the storage keys of channels that do not set
// an explicit StorageKey.
const DefaultKeyPrefix = "lithium:"

// Options configures a Broker. The zero value is usable: a memory-backed
// session tier, no durable tier, the wall clock, and a default logger.
type Options struct {
	// Storage persists channel values for the session and durable tiers.
	Storage storage.Adapter
	// Logger receives broker diagnostics.
	Logger log.Logger
	// Clock drives TTL, debounce, and throttle decisions. Tests inject a
	// mock so timer behavior is checked without wall-clock waits.
	Clock clock.Clock
	// KeyPrefix namespaces default storage keys. Defaults to DefaultKeyPrefix.
	KeyPrefix string
	// MaxChannels caps the number of live channels when > 0.
	MaxChannels int
}

// Broker is the in-process event broker: a registry of reactive channels
// and a registry of instant topics. One mutex guards all registry state;
// user callbacks always run with the mutex released, so hooks, subscribers,
// and listeners may reenter the broker freely.
type Broker struct {
	mu     sync.Mutex
	closed bool

	instance    string
	logger      log.Logger
	clock       clock.Clock
	store       storage.Adapter
	prefix      string
	maxChannels int

	channels map[string]*channel
	topics   map[string]map[id.Token]*listener
	tokens   *id.Generator

	counters counters
}

type counters struct {
	publishes         atomic.Uint64
	validationRejects atomic.Uint64
	notifications     atomic.Uint64
	emits             atomic.Uint64
	listenerRuns      atomic.Uint64
	throttleDrops     atomic.Uint64
	hookPanics        atomic.Uint64
	storageErrors     atomic.Uint64
}

// Stats is a point-in-time snapshot of broker activity.
type Stats struct {
	Channels          int    `json:"channels"`
	Topics            int    `json:"topics"`
	Listeners         int    `json:"listeners"`
	Publishes         uint64 `json:"publishes"`
	ValidationRejects uint64 `json:"validation_rejects"`
	Notifications     uint64 `json:"notifications"`
	Emits             uint64 `json:"emits"`
	ListenerRuns      uint64 `json:"listener_runs"`
	ThrottleDrops     uint64 `json:"throttle_drops"`
	HookPanics        uint64 `json:"hook_panics"`
	StorageErrors     uint64 `json:"storage_errors"`
}

// ChannelInfo is a read-only projection of one channel's registry state.
type ChannelInfo struct {
	Name        string        `json:"name"`
	Tier        storage.Tier  `json:"tier"`
	StorageKey  string        `json:"storage_key"`
	Subscribers int           `json:"subscribers"`
	TTL         time.Duration `json:"ttl"`
	AutoCleanup bool          `json:"auto_cleanup"`
	CreatedAt   time.Time     `json:"created_at"`
	Age         time.Duration `json:"age"`
}

// New builds a Broker. Call Shutdown to cancel timers and release the
// registries when done.
func New(opts Options) *Broker {
	store := opts.Storage
	if store == nil {
		store = storage.NewTiered(storage.NewMemory(), nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	instance := uuid.NewString()
	return &Broker{
		instance:    instance,
		logger:      logger.WithComponent("broker").WithField("instance", instance[:8]),
		clock:       clk,
		store:       store,
		prefix:      prefix,
		maxChannels: opts.MaxChannels,
		channels:    make(map[string]*channel),
		topics:      make(map[string]map[id.Token]*listener),
		tokens:      id.NewGenerator(),
	}
}

// Instance returns the broker's unique instance id.
func (b *Broker) Instance() string { return b.instance }

// Channels returns a sorted snapshot of live channel names.
func (b *Broker) Channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChannelInfo reports registry metadata for channel name.
func (b *Broker) ChannelInfo(name string) (ChannelInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[name]
	if !ok {
		return ChannelInfo{}, false
	}
	return ChannelInfo{
		Name:        ch.name,
		Tier:        ch.tier,
		StorageKey:  ch.key,
		Subscribers: len(ch.subs),
		TTL:         ch.ttl,
		AutoCleanup: ch.autoCleanup,
		CreatedAt:   ch.createdAt,
		Age:         b.clock.Now().Sub(ch.createdAt),
	}, true
}

// Stats returns a snapshot of gauges and counters.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	channels := len(b.channels)
	topics := len(b.topics)
	listeners := 0
	for _, set := range b.topics {
		listeners += len(set)
	}
	b.mu.Unlock()

	return Stats{
		Channels:          channels,
		Topics:            topics,
		Listeners:         listeners,
		Publishes:         b.counters.publishes.Load(),
		ValidationRejects: b.counters.validationRejects.Load(),
		Notifications:     b.counters.notifications.Load(),
		Emits:             b.counters.emits.Load(),
		ListenerRuns:      b.counters.listenerRuns.Load(),
		ThrottleDrops:     b.counters.throttleDrops.Load(),
		HookPanics:        b.counters.hookPanics.Load(),
		StorageErrors:     b.counters.storageErrors.Load(),
	}
}

// Clear removes channel name. In order: onClear runs, the TTL and debounce
// timers are canceled, the persisted entry is removed for persistent tiers,
// the subscriber set is dropped, and the name is deregistered. Every step
// runs even when an earlier one logs a failure. Clearing a missing name is
// a no-op.
func (b *Broker) Clear(name string) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.clearChannel(name, nil)
}

// ClearAll clears every channel, optionally restricted to the given tiers.
func (b *Broker) ClearAll(tiers ...storage.Tier) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	targets := make([]*channel, 0, len(b.channels))
	for _, ch := range b.channels {
		if len(tiers) > 0 && !tierIn(ch.tier, tiers) {
			continue
		}
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].name < targets[j].name })
	for _, ch := range targets {
		b.clearChannel(ch.name, ch)
	}
}

func tierIn(t storage.Tier, set []storage.Tier) bool {
	for _, s := range set {
		if s == t {
			return true
		}
	}
	return false
}

// clearChannel runs the clear sequence. A non-nil expect restricts the
// clear to that channel instance, so a stale TTL timer or cancel func
// cannot remove a successor registered under the same name.
func (b *Broker) clearChannel(name string, expect *channel) {
	b.mu.Lock()
	ch, ok := b.channels[name]
	if !ok || (expect != nil && ch != expect) || ch.clearing {
		b.mu.Unlock()
		return
	}
	ch.clearing = true
	onClear := ch.onClear
	b.mu.Unlock()

	if onClear != nil {
		b.runSafe("channel", name, "onClear", onClear)
	}

	b.mu.Lock()
	if ch.ttlTimer != nil {
		ch.ttlTimer.Stop()
		ch.ttlTimer = nil
	}
	ch.debounceSeq++
	if ch.debounceTimer != nil {
		ch.debounceTimer.Stop()
		ch.debounceTimer = nil
	}
	if ch.tier != storage.TierNone {
		if err := b.store.Remove(ch.key, ch.tier); err != nil {
			b.counters.storageErrors.Add(1)
			b.logger.Warn("storage remove failed",
				log.Str("channel", name),
				log.Str("tier", ch.tier.String()),
				log.Err(err))
		}
	}
	ch.subs = make(map[id.Token]func(interface{}))
	if b.channels[name] == ch {
		delete(b.channels, name)
	}
	b.mu.Unlock()
	b.logger.Debug("channel cleared", log.Str("channel", name))
}

// Shutdown tears the broker down: memory-tier channels are cleared (their
// onClear hooks run), session- and durable-tier channels are dropped from
// the registry with their persisted entries left intact, every timer is
// canceled, and all topic listeners are removed. Operations after Shutdown
// return ErrClosed or report absent. Shutdown is idempotent.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	for _, set := range b.topics {
		for _, l := range set {
			l.removed = true
			l.debounceSeq++
			if l.debounceTimer != nil {
				l.debounceTimer.Stop()
				l.debounceTimer = nil
			}
		}
	}
	b.topics = make(map[string]map[id.Token]*listener)

	wipe := make([]*channel, 0, len(b.channels))
	for name, ch := range b.channels {
		if ch.tier == storage.TierNone {
			wipe = append(wipe, ch)
			continue
		}
		// Persistent channels keep their stored entries; only the registry
		// entry and its timers go away.
		if ch.ttlTimer != nil {
			ch.ttlTimer.Stop()
			ch.ttlTimer = nil
		}
		ch.debounceSeq++
		if ch.debounceTimer != nil {
			ch.debounceTimer.Stop()
			ch.debounceTimer = nil
		}
		delete(b.channels, name)
	}
	b.mu.Unlock()

	sort.Slice(wipe, func(i, j int) bool { return wipe[i].name < wipe[j].name })
	for _, ch := range wipe {
		b.clearChannel(ch.name, ch)
	}
	b.logger.Info("broker shut down")
}

// runSafe invokes a user callback, recovering panics so one misbehaving
// consumer cannot break delivery for the rest. It reports whether fn
// returned normally. Must be called without b.mu held.
func (b *Broker) runSafe(kind, name, stage string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.counters.hookPanics.Add(1)
			b.logger.Error("callback panic",
				log.Str(kind, name),
				log.Str("stage", stage),
				log.Any("panic", r))
		}
	}()
	fn()
	return true
}
