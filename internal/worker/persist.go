// Package worker runs the background tickers around the HTTP surface: a
// single persist worker that flushes dirty run snapshots to the cache on an
// interval, driven off MemoryStorage's dirty-flag tracking.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/cache"
	"github.com/evacsim/evacuation-core/internal/run"
	"github.com/evacsim/evacuation-core/internal/service/storage"
)

// PersistWorker periodically flushes every dirty run.Record's latest
// snapshot into the Redis cache and clears the dirty flags it consumed.
type PersistWorker struct {
	registry *storage.MemoryStorage[uuid.UUID, *run.Record]
	cache    *cache.Cache
	interval time.Duration
	ticker   *time.Ticker
}

// NewPersistWorker builds a worker over registry, flushing to c every
// interval.
func NewPersistWorker(registry *storage.MemoryStorage[uuid.UUID, *run.Record], c *cache.Cache, interval time.Duration) *PersistWorker {
	return &PersistWorker{registry: registry, cache: c, interval: interval}
}

// Start launches the ticker goroutine; it stops when ctx is cancelled.
func (w *PersistWorker) Start(ctx context.Context) {
	w.ticker = time.NewTicker(w.interval)
	go func() {
		defer w.ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.ticker.C:
				w.flush(ctx)
			}
		}
	}()
	log.Println("persist worker started with interval:", w.interval)
}

func (w *PersistWorker) flush(ctx context.Context) {
	dirty := w.registry.GetDirty()
	if len(dirty) == 0 {
		return
	}

	var flushed []uuid.UUID
	for _, rec := range dirty {
		snapshot, ok := rec.Latest()
		if !ok {
			continue
		}
		if err := w.cache.PutSnapshot(ctx, rec.RunID, snapshot); err != nil {
			log.Printf("persist worker: failed to cache snapshot for run %s: %v", rec.RunID, err)
			continue
		}
		flushed = append(flushed, rec.RunID)
	}

	if len(flushed) > 0 {
		w.registry.ClearDirty(flushed)
	}
}
