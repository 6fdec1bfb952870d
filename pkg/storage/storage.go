package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Tier selects where a channel's value lives between publishes.
type Tier int

const (
	// TierNone keeps values in memory only. Nothing is ever written to a store.
	TierNone Tier = iota
	// TierSession persists values for the lifetime of the process. A cleaned-up
	// channel can be rehydrated from the session store until the process exits.
	TierSession
	// TierDurable persists values to disk so they survive process restarts.
	TierDurable
)

// String returns the canonical lowercase name of the tier.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierSession:
		return "session"
	case TierDurable:
		return "durable"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier parses a tier name. It accepts any casing and maps the empty
// string to TierNone.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TierNone, nil
	case "session":
		return TierSession, nil
	case "durable":
		return TierDurable, nil
	default:
		return TierNone, fmt.Errorf("storage: unknown tier %q", s)
	}
}

// ErrNoStore indicates that a persistence operation targeted a tier for
// which no backing store is configured.
var ErrNoStore = errors.New("storage: no store configured for tier")

// KV is the minimal key-value surface a tier's backing store must provide.
// Implementations must be safe for concurrent use. Get reports ok=false for
// missing keys rather than an error.
type KV interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Adapter routes persistence operations to the store backing each tier.
// TierNone operations always succeed and touch nothing.
type Adapter interface {
	Read(key string, tier Tier) (value []byte, ok bool, err error)
	Write(key string, tier Tier, value []byte) error
	Remove(key string, tier Tier) error
}

// Tiered is an Adapter backed by one KV per persistent tier. Either store may
// be nil, in which case operations against that tier fail with ErrNoStore;
// callers treat such failures as soft (log and continue with the in-memory
// value).
type Tiered struct {
	session KV
	durable KV
}

// NewTiered builds a Tiered adapter from a session store and a durable store.
func NewTiered(session, durable KV) *Tiered {
	return &Tiered{session: session, durable: durable}
}

func (a *Tiered) store(tier Tier) (KV, error) {
	switch tier {
	case TierSession:
		if a.session == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStore, tier)
		}
		return a.session, nil
	case TierDurable:
		if a.durable == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStore, tier)
		}
		return a.durable, nil
	default:
		return nil, nil
	}
}

// Read fetches the value for key from the tier's store. TierNone reads
// report absent.
func (a *Tiered) Read(key string, tier Tier) ([]byte, bool, error) {
	kv, err := a.store(tier)
	if err != nil {
		return nil, false, err
	}
	if kv == nil {
		return nil, false, nil
	}
	return kv.Get(key)
}

// Write stores the value for key in the tier's store. TierNone writes are
// no-ops.
func (a *Tiered) Write(key string, tier Tier, value []byte) error {
	kv, err := a.store(tier)
	if err != nil {
		return err
	}
	if kv == nil {
		return nil
	}
	return kv.Set(key, value)
}

// Remove deletes the value for key from the tier's store. TierNone removals
// are no-ops, as is removing a key that was never written.
func (a *Tiered) Remove(key string, tier Tier) error {
	kv, err := a.store(tier)
	if err != nil {
		return err
	}
	if kv == nil {
		return nil
	}
	return kv.Delete(key)
}

var _ Adapter = (*Tiered)(nil)
