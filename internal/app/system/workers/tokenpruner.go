// internal/app/system/workers/tokenpruner.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenClearer removes a push token from whichever users hold it.
type TokenClearer interface {
	ClearPushTokenValue(ctx context.Context, token string) (int64, error)
}

// TokenPruner is a background worker that clears push tokens the push
// gateway reported as no longer registered. Enqueue never blocks; when the
// buffer is full the token is dropped and will be reported again on the next
// failed send.
type TokenPruner struct {
	users  TokenClearer
	log    *zap.Logger
	queue  chan string
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTokenPruner creates a pruner with a queue of the given size.
func NewTokenPruner(users TokenClearer, logger *zap.Logger, buffer int) *TokenPruner {
	if buffer <= 0 {
		buffer = 256
	}
	return &TokenPruner{
		users:  users,
		log:    logger,
		queue:  make(chan string, buffer),
		stopCh: make(chan struct{}),
	}
}

// Enqueue schedules token for removal.
func (w *TokenPruner) Enqueue(token string) {
	if token == "" {
		return
	}
	select {
	case w.queue <- token:
	default:
		w.log.Warn("token pruner queue full; dropping token")
	}
}

// Start begins the background loop.
func (w *TokenPruner) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("push token pruner started", zap.Int("buffer", cap(w.queue)))
}

// Stop signals the worker to stop, drains queued tokens, and waits for it to
// finish. Safe to call more than once.
func (w *TokenPruner) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("push token pruner stopped")
}

func (w *TokenPruner) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			for {
				select {
				case tok := <-w.queue:
					w.clear(tok)
				default:
					return
				}
			}
		case tok := <-w.queue:
			w.clear(tok)
		}
	}
}

func (w *TokenPruner) clear(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := w.users.ClearPushTokenValue(ctx, token)
	if err != nil {
		w.log.Error("failed to clear dead push token", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("cleared dead push token", zap.Int64("users", n))
	}
}
