package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/LithiumDevs/lithium/pkg/storage"
)

func TestZeroOptionsBrokerIsUsable(t *testing.T) {
	b := New(Options{})
	defer b.Shutdown()

	if b.Instance() == "" {
		t.Fatalf("missing instance id")
	}
	if b.Instance() != b.Instance() {
		t.Fatalf("instance id not stable")
	}

	if err := Publish(b, "greeting", "hello"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if v, ok := Value[string](b, "greeting"); !ok || v != "hello" {
		t.Fatalf("value = %q, %v", v, ok)
	}
	names := b.Channels()
	if len(names) != 1 || names[0] != "greeting" {
		t.Fatalf("channels = %v", names)
	}
}

func TestChannelInfoFields(t *testing.T) {
	b, mock := newTestBroker(t)
	start := mock.Now()

	_, err := Channel(b, "prefs", ChannelConfig[string]{
		Initial:     strPtr("dark"),
		Tier:        storage.TierSession,
		StorageKey:  "custom:prefs",
		TTL:         time.Hour,
		AutoCleanup: true,
	})
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	if _, err := Subscribe(b, "prefs", func(string) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := Subscribe(b, "prefs", func(string) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	info, ok := b.ChannelInfo("prefs")
	if !ok {
		t.Fatalf("info missing")
	}
	if info.Name != "prefs" || info.Tier != storage.TierSession || info.StorageKey != "custom:prefs" {
		t.Fatalf("info = %+v", info)
	}
	if info.Subscribers != 2 || info.TTL != time.Hour || !info.AutoCleanup {
		t.Fatalf("info = %+v", info)
	}
	if !info.CreatedAt.Equal(start) || info.Age != 0 {
		t.Fatalf("created %v age %v", info.CreatedAt, info.Age)
	}

	mock.Add(5 * time.Minute)
	info, _ = b.ChannelInfo("prefs")
	if info.Age != 5*time.Minute {
		t.Fatalf("age = %v", info.Age)
	}

	if _, ok := b.ChannelInfo("ghost"); ok {
		t.Fatalf("info for missing channel")
	}
}

func TestChannelInfoDefaultStorageKey(t *testing.T) {
	b, _ := newTestBroker(t)

	if err := Publish(b, "session.user", "u1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	info, _ := b.ChannelInfo("session.user")
	if info.StorageKey != DefaultKeyPrefix+"session.user" {
		t.Fatalf("key = %q", info.StorageKey)
	}
}

func TestClearMissingChannelIsNoop(t *testing.T) {
	b, _ := newTestBroker(t)

	b.Clear("ghost")
	if s := b.Stats(); s.Channels != 0 || s.StorageErrors != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestClearRunsOnClearWhileStillRegistered(t *testing.T) {
	b, _ := newTestBroker(t)

	sawName := false
	sawValue := false
	_, err := Channel(b, "prefs", ChannelConfig[string]{
		Initial: strPtr("dark"),
		OnClear: func() {
			for _, n := range b.Channels() {
				if n == "prefs" {
					sawName = true
				}
			}
			_, sawValue = Value[string](b, "prefs")
		},
	})
	if err != nil {
		t.Fatalf("channel: %v", err)
	}

	b.Clear("prefs")
	if !sawName || !sawValue {
		t.Fatalf("onClear ran after deregistration: name=%v value=%v", sawName, sawValue)
	}
	if len(b.Channels()) != 0 {
		t.Fatalf("channel survived clear")
	}
}

func TestReentrantClearFromOnClear(t *testing.T) {
	b, _ := newTestBroker(t)

	cleared := 0
	_, err := Channel(b, "loop", ChannelConfig[int]{
		Initial: intPtr(1),
		OnClear: func() {
			cleared++
			b.Clear("loop")
		},
	})
	if err != nil {
		t.Fatalf("channel: %v", err)
	}

	b.Clear("loop")
	if cleared != 1 {
		t.Fatalf("onClear ran %d times", cleared)
	}
}

func TestAutoCleanupOnLastUnsubscribe(t *testing.T) {
	b, _ := newTestBroker(t)

	cleared := 0
	_, err := Channel(b, "live", ChannelConfig[int]{
		Initial:     intPtr(1),
		AutoCleanup: true,
		OnClear:     func() { cleared++ },
	})
	if err != nil {
		t.Fatalf("channel: %v", err)
	}

	cancel1, _ := Subscribe(b, "live", func(int) {})
	cancel2, _ := Subscribe(b, "live", func(int) {})

	cancel1()
	if cleared != 0 || len(b.Channels()) != 1 {
		t.Fatalf("cleanup fired with a subscriber left")
	}

	cancel2()
	if cleared != 1 || len(b.Channels()) != 0 {
		t.Fatalf("cleanup missed: cleared=%d channels=%v", cleared, b.Channels())
	}

	cancel2() // idempotent after cleanup
	if cleared != 1 {
		t.Fatalf("cancel reran cleanup")
	}
}

func TestNoAutoCleanupWhenDisabled(t *testing.T) {
	b, _ := newTestBroker(t)

	if err := Publish(b, "plain", 1); err != nil {
		t.Fatalf("publish: %v", err)
	}
	cancel, _ := Subscribe(b, "plain", func(int) {})
	cancel()
	if len(b.Channels()) != 1 {
		t.Fatalf("channel vanished without autoCleanup")
	}
}

func TestClearAllFiltersByTier(t *testing.T) {
	session := storage.NewMemory()
	durable := storage.NewMemory()
	b := New(Options{
		Storage: storage.NewTiered(session, durable),
		Logger:  quietLogger(),
	})
	defer b.Shutdown()

	Publish(b, "volatile", 1)
	Channel(b, "sess", ChannelConfig[int]{Tier: storage.TierSession})
	Channel(b, "dur", ChannelConfig[int]{Tier: storage.TierDurable})
	Publish(b, "sess", 2)
	Publish(b, "dur", 3)
	if session.Len() != 1 || durable.Len() != 1 {
		t.Fatalf("persisted: session=%d durable=%d", session.Len(), durable.Len())
	}

	b.ClearAll(storage.TierSession)
	names := b.Channels()
	if len(names) != 2 || names[0] != "dur" || names[1] != "volatile" {
		t.Fatalf("channels after tier clear = %v", names)
	}
	if session.Len() != 0 || durable.Len() != 1 {
		t.Fatalf("persisted after tier clear: session=%d durable=%d", session.Len(), durable.Len())
	}

	b.ClearAll()
	if len(b.Channels()) != 0 || durable.Len() != 0 {
		t.Fatalf("full clear left channels=%v durable=%d", b.Channels(), durable.Len())
	}
}

func TestShutdownClearsVolatileKeepsPersisted(t *testing.T) {
	durable := storage.NewMemory()
	b := New(Options{
		Storage: storage.NewTiered(storage.NewMemory(), durable),
		Logger:  quietLogger(),
	})

	volatileCleared := 0
	durableCleared := 0
	Channel(b, "volatile", ChannelConfig[int]{
		Initial: intPtr(1),
		OnClear: func() { volatileCleared++ },
	})
	Channel(b, "state", ChannelConfig[int]{
		Tier:    storage.TierDurable,
		OnClear: func() { durableCleared++ },
	})
	Publish(b, "state", 2)

	b.Shutdown()

	// Volatile channels are torn down with their hooks; persistent ones are
	// deregistered without onClear so their stored entries survive restarts.
	if volatileCleared != 1 || durableCleared != 0 {
		t.Fatalf("onClear: volatile=%d durable=%d", volatileCleared, durableCleared)
	}
	if durable.Len() != 1 {
		t.Fatalf("durable entries = %d, want 1", durable.Len())
	}
	if len(b.Channels()) != 0 {
		t.Fatalf("channels after shutdown = %v", b.Channels())
	}

	if err := Publish(b, "late", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish after shutdown: %v", err)
	}
	if _, err := Channel(b, "late", ChannelConfig[int]{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("channel after shutdown: %v", err)
	}
	if _, err := Subscribe(b, "late", func(int) {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("subscribe after shutdown: %v", err)
	}
	if _, ok := Value[int](b, "state"); ok {
		t.Fatalf("value readable after shutdown")
	}
	b.Clear("state") // no-op, must not panic

	b.Shutdown() // idempotent
}

func TestStatsCountsActivity(t *testing.T) {
	b, _ := newTestBroker(t)

	Subscribe(b, "counted", func(int) {})
	Subscribe(b, "counted", func(int) {})
	Publish(b, "counted", 1)
	Publish(b, "counted", 2)
	Publish(b, "fresh", 3) // fast path

	On(b, "ping", func(int) {})
	b.Emit("ping", 1)
	b.Emit("ping", 2)

	s := b.Stats()
	if s.Publishes != 3 {
		t.Fatalf("Publishes = %d", s.Publishes)
	}
	if s.Notifications != 4 {
		t.Fatalf("Notifications = %d", s.Notifications)
	}
	if s.Emits != 2 || s.ListenerRuns != 2 {
		t.Fatalf("Emits = %d ListenerRuns = %d", s.Emits, s.ListenerRuns)
	}
	if s.Channels != 2 || s.Topics != 1 || s.Listeners != 1 {
		t.Fatalf("gauges = %+v", s)
	}
}
