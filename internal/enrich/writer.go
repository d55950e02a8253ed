package enrich

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/store"
)

const cacheWriteTimeout = 5 * time.Second

// CacheWriter is the write-through side channel to the persistent cache.
// Submit returns immediately; failures go to the logger and the onFail hook
// and are never reported to the caller that triggered the write.
type CacheWriter struct {
	store  store.CacheStore
	logger *slog.Logger
	onFail func()
	wg     sync.WaitGroup
}

// NewCacheWriter returns a writer persisting into st.
func NewCacheWriter(st store.CacheStore, logger *slog.Logger, onFail func()) *CacheWriter {
	if onFail == nil {
		onFail = func() {}
	}
	return &CacheWriter{store: st, logger: logger, onFail: onFail}
}

// Submit persists entry in the background.
func (w *CacheWriter) Submit(entry models.AddressCacheEntry) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := w.store.UpsertCacheEntry(ctx, &entry); err != nil {
			w.onFail()
			w.logger.Error("enrich: cache write-through failed",
				slog.String("address", entry.Address),
				slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until every submitted write has finished. Used at shutdown and in tests.
func (w *CacheWriter) Wait() {
	w.wg.Wait()
}
