package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// snapshotFetcher holds the latest successful result of one kind of fetch.
// Responses are tagged with a request token; a response older than the one
// already applied is dropped, so a slow early request never overwrites a
// newer snapshot. Failures keep the previous value.
type snapshotFetcher[T any] struct {
	name     string
	fallback string
	logger   *slog.Logger
	fetch    func(ctx context.Context) (T, error)

	mu          sync.Mutex
	issued      uint64
	applied     uint64
	value       T
	loaded      bool
	lastErr     *Notice
	refreshedAt time.Time
	inFlight    int
}

func newSnapshotFetcher[T any](name, fallback string, logger *slog.Logger, fetch func(ctx context.Context) (T, error)) *snapshotFetcher[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &snapshotFetcher[T]{name: name, fallback: fallback, logger: logger, fetch: fetch}
}

func (f *snapshotFetcher[T]) refresh(ctx context.Context) {
	f.mu.Lock()
	f.issued++
	token := f.issued
	f.inFlight++
	f.mu.Unlock()

	value, err := f.fetch(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	if token < f.applied {
		f.logger.Debug("dropping stale response", "fetch", f.name, "token", token, "applied", f.applied)
		return
	}
	f.applied = token
	if err != nil {
		f.logger.Warn("refresh failed, keeping previous snapshot", "fetch", f.name, "error", err)
		f.lastErr = noticeFor(err, f.fallback)
		return
	}
	f.value = value
	f.loaded = true
	f.lastErr = nil
	f.refreshedAt = time.Now()
}

type snapshot[T any] struct {
	value       T
	loaded      bool
	err         *Notice
	refreshedAt time.Time
	loading     bool
}

func (f *snapshotFetcher[T]) snapshot() snapshot[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return snapshot[T]{
		value:       f.value,
		loaded:      f.loaded,
		err:         f.lastErr,
		refreshedAt: f.refreshedAt,
		loading:     f.inFlight > 0,
	}
}
