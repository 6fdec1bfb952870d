// Package broker implements Lithium's in-process reactive event broker.
//
// # Overview
//
// The broker unifies two delivery models behind one registry:
//
//   - Channels are named reactive cells. A channel holds one current value,
//     optionally persists it across a storage tier (none/session/durable),
//     and notifies subscribers on every successful publish. Per-channel
//     hooks (OnInit, OnChange, OnClear) observe the value lifecycle, with
//     OnChange scheduled through debounce or throttle windows. Channels can
//     expire via TTL or clear themselves when their last subscriber leaves.
//   - Topics are fire-and-forget listener groups with no stored value. Each
//     listener carries its own once/validate/transform/debounce/throttle
//     wrapping, so two listeners on one topic never share timer state.
//
// Publishing to a name that does not exist yet takes a deliberate fast
// path: the channel is created with the value as its initial state and the
// call returns. Validate, transform, persistence, OnChange, and subscriber
// notification are all skipped on that first publish; only OnInit may fire.
// Callers that need the full pipeline on first write should create the
// channel with Channel before publishing.
//
// # Usage
//
//	b := broker.New(broker.Options{})
//	defer b.Shutdown()
//
//	// Channels: reactive state
//	theme := "dark"
//	cell, _ := broker.Channel(b, "settings.theme", broker.ChannelConfig[string]{
//	    Initial: &theme,
//	    Tier:    storage.TierDurable,
//	    OnChange: func(next, prev string) { applyTheme(next) },
//	    Debounce: 150 * time.Millisecond,
//	})
//	cancel, _ := cell.Subscribe(func(theme string) { render(theme) })
//	defer cancel()
//	_ = broker.Publish(b, "settings.theme", "light")
//	theme, ok := broker.Value[string](b, "settings.theme")
//
//	// Topics: momentary signals
//	unlisten := broker.On(b, "user.login", func(u User) { greet(u) })
//	defer unlisten()
//	b.Emit("user.login", User{Name: "ada"})
//
// # Concurrency
//
// One mutex guards all registry state. Every user callback (hook,
// subscriber, listener, validate, transform) runs with the mutex released,
// so callbacks may freely publish, emit, subscribe, or clear; such
// reentrant calls run to completion under the normal rules and no recursion
// bound is enforced. Delivery iterates snapshots, so callbacks that
// unsubscribe mid-notification never invalidate the iteration. Callbacks
// are panic-isolated: a panic is logged and siblings still run.
//
// Timers (TTL, debounce) come from the injected clock. Tests pass
// clock.NewMock() and advance it to drive expiry and debounce deadlines
// deterministically.
package broker
