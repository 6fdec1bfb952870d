package pebblestore

import (
	"errors"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/LithiumDevs/lithium/pkg/storage"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed write.
	FsyncModeAlways
	// FsyncModeInterval enables group-commit by allowing Pebble to coalesce WAL
	// syncs for operations within the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application. Pebble may
	// still sync based on its own policies. This mode trades durability latency
	// for throughput and should be used with care.
	FsyncModeNever
)

// Options configures the Pebble-backed store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning of Pebble. If nil, sensible defaults are used.
	PebbleOptions *pebble.Options
	// Metrics allows observing read/write/scan latencies and sizes. Optional.
	Metrics MetricsHook
}

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveScan(elapsed time.Duration, keys int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(time.Duration, int)  {}
func (NoopMetrics) ObserveWrite(time.Duration, int) {}
func (NoopMetrics) ObserveScan(time.Duration, int)  {}

// Store is a Pebble-backed key-value store with an fsync policy. It provides
// the durable tier behind channels that outlive the process.
type Store struct {
	inner     *pebble.DB
	writeSync bool
	metrics   MetricsHook
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	// Configure group-commit via WALMinSyncInterval when desired.
	switch opts.Fsync {
	case FsyncModeAlways:
		// Force Sync on each write. WALMinSyncInterval left at default (0).
		// We'll pass Sync on commits.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return opts.FsyncInterval }
	case FsyncModeNever:
		// Neither set WALMinSyncInterval nor Sync on writes.
	default:
		// Default to small group-commit for reasonable latency/throughput tradeoff.
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	return &Store{
		inner:     inner,
		writeSync: opts.Fsync == FsyncModeAlways,
		metrics:   metrics,
	}, nil
}

// Close closes the underlying Pebble database.
func (s *Store) Close() error {
	if s == nil || s.inner == nil {
		return nil
	}
	return s.inner.Close()
}

// commit applies a single-op batch with the configured fsync policy.
func (s *Store) commit(b *pebble.Batch) error {
	start := time.Now()
	size := b.Len()
	defer s.metrics.ObserveWrite(time.Since(start), size)

	syncMode := pebble.NoSync
	if s.writeSync {
		syncMode = pebble.Sync
	}
	return b.Commit(syncMode)
}

// Get copies the value for key, reporting ok=false for missing keys.
func (s *Store) Get(key string) ([]byte, bool, error) {
	start := time.Now()
	val, closer, err := s.inner.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	s.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, true, nil
}

// Set stores value under key respecting the fsync policy.
func (s *Store) Set(key string, value []byte) error {
	b := s.inner.NewBatch()
	defer b.Close()
	if err := b.Set([]byte(key), value, nil); err != nil {
		return err
	}
	return s.commit(b)
}

// Delete removes key respecting the fsync policy. Deleting an absent key is
// a no-op.
func (s *Store) Delete(key string) error {
	b := s.inner.NewBatch()
	defer b.Close()
	if err := b.Delete([]byte(key), nil); err != nil {
		return err
	}
	return s.commit(b)
}

// Scan visits every key with the given prefix in lexical order. The walk
// stops early if fn returns an error, which Scan then returns. Value bytes
// are only valid for the duration of the callback.
func (s *Store) Scan(prefix string, fn func(key string, value []byte) error) error {
	start := time.Now()
	lower := []byte(prefix)
	iter, err := s.inner.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound(lower),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	keys := 0
	for iter.First(); iter.Valid(); iter.Next() {
		keys++
		if err := fn(string(iter.Key()), iter.Value()); err != nil {
			return err
		}
	}
	s.metrics.ObserveScan(time.Since(start), keys)
	return iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key that has
// the given prefix, or nil when no such bound exists (all-0xff prefix).
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

var _ storage.KV = (*Store)(nil)
