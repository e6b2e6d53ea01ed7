package dedup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically prunes expired ids from a MemoryStore.  It runs as a
// background goroutine and is stopped via its context or Stop.
type Sweeper struct {
	store    *MemoryStore
	interval time.Duration
	log      *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper but does not start it.  An interval <= 0
// defaults to one minute.
func NewSweeper(s *MemoryStore, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		store:    s,
		interval: interval,
		log:      log.Named("dedup-sweeper"),
		done:     make(chan struct{}),
	}
}

func (sw *Sweeper) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)
	go sw.loop(ctx)
	sw.log.Debug("started", zap.Duration("interval", sw.interval))
}

// Stop signals the sweeper to exit and waits for it to finish.  It is a
// no-op when Start was never called.
func (sw *Sweeper) Stop() {
	if sw.cancel == nil {
		return
	}
	sw.cancel()
	<-sw.done
}

func (sw *Sweeper) loop(ctx context.Context) {
	defer close(sw.done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *Sweeper) sweep(ctx context.Context) {
	n, err := sw.store.PruneExpired(ctx, time.Now())
	if err != nil {
		sw.log.Warn("prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		sw.log.Debug("pruned expired ids", zap.Int("count", n))
	}
}
