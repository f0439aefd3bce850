package syncengine

import (
	"context"
	"math"
	"time"
)

// Start launches a scheduled loop per chain in chainIDs, ticking every
// pollMs (coerced to DefaultPollInterval if non-positive or non-finite, per
// spec §4.I). Start is idempotent: a chain already running is left alone.
// Each tick runs SyncOnce for that one chain; if the previous tick for a
// chain hasn't finished, the new tick is skipped rather than queued,
// mirroring the teacher's single in-flight syncLoop per target.
func (e *Engine) Start(ctx context.Context, chainIDs []uint64, pollMs float64, cfg Config) {
	if len(chainIDs) == 0 {
		chainIDs = e.configuredChainIDs()
	}
	interval := DefaultPollInterval
	if pollMs > 0 && !math.IsNaN(pollMs) && !math.IsInf(pollMs, 0) {
		interval = time.Duration(pollMs * float64(time.Millisecond))
	}

	for _, chainID := range chainIDs {
		e.startChain(ctx, chainID, interval, cfg)
	}
}

func (e *Engine) startChain(ctx context.Context, chainID uint64, interval time.Duration, cfg Config) {
	e.mu.Lock()
	st, ok := e.chains[chainID]
	if ok && st.running {
		e.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.chains[chainID] = &chainState{running: true, cancel: cancel}
	e.mu.Unlock()

	go e.chainLoop(loopCtx, chainID, interval, cfg)
}

func (e *Engine) chainLoop(ctx context.Context, chainID uint64, interval time.Duration, cfg Config) {
	defer func() {
		e.mu.Lock()
		if st, ok := e.chains[chainID]; ok {
			st.running = false
		}
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var busy bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if busy {
				continue // previous tick for this chain hasn't finished
			}
			busy = true
			_ = e.SyncOnce(ctx, []uint64{chainID}, nil, cfg)
			busy = false
		}
	}
}

// Stop cancels every running chain loop and returns without waiting for the
// loops to exit: subsequent calls to IsRunning report false once each loop
// observes the cancellation.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.chains {
		if st.cancel != nil {
			st.cancel()
		}
	}
}

// IsRunning reports whether chainID currently has a scheduled loop active.
func (e *Engine) IsRunning(chainID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.chains[chainID]
	return ok && st.running
}
