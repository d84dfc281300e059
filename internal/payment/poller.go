package payment

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poller runs one background verification loop per in-flight payment
// reference so the buyer does not have to ask for verification
// manually. Each loop is a cancellable task owned by the session's
// lifecycle: it stops when the check reports the session has left
// awaiting_payment, when Stop is called, or when the attempt budget
// is exhausted.
type Poller struct {
	interval    time.Duration
	maxAttempts int

	mu    sync.Mutex
	loops map[string]*pollLoop
}

// pollLoop identifies one running loop. The pointer doubles as the
// loop's identity so a finished goroutine can clean up its own map
// entry without touching a replacement registered under the same key.
type pollLoop struct {
	cancel context.CancelFunc
}

// NewPoller builds a Poller. interval defaults to 10s and maxAttempts
// to 30 when non-positive values are given.
func NewPoller(interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	return &Poller{
		interval:    interval,
		maxAttempts: maxAttempts,
		loops:       make(map[string]*pollLoop),
	}
}

// Start launches the verification loop for key. check runs at every
// tick through the same serialized, idempotent confirm path as a
// manual verify and returns true when polling should stop. Starting
// a second loop for the same key replaces the first.
func (p *Poller) Start(key string, check func(ctx context.Context) (done bool)) {
	ctx, cancel := context.WithCancel(context.Background())
	l := &pollLoop{cancel: cancel}
	p.mu.Lock()
	if prev, ok := p.loops[key]; ok {
		prev.cancel()
	}
	p.loops[key] = l
	p.mu.Unlock()

	go func() {
		defer p.release(key, l)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for attempt := 1; attempt <= p.maxAttempts; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if check(ctx) {
					return
				}
			}
		}
		log.Printf("poller: gave up on %s after %d attempts", key, p.maxAttempts)
	}()
}

// release removes the loop's own registration. A loop that was already
// replaced by a newer Start must not delete or cancel its successor,
// so the entry is only removed when it still points at l.
func (p *Poller) release(key string, l *pollLoop) {
	p.mu.Lock()
	if cur, ok := p.loops[key]; ok && cur == l {
		delete(p.loops, key)
	}
	p.mu.Unlock()
	l.cancel()
}

// Stop cancels the loop for key, if one is running.
func (p *Poller) Stop(key string) {
	p.mu.Lock()
	l, ok := p.loops[key]
	if ok {
		delete(p.loops, key)
	}
	p.mu.Unlock()
	if ok {
		l.cancel()
	}
}

// StopAll cancels every running loop. Used on shutdown.
func (p *Poller) StopAll() {
	p.mu.Lock()
	loops := p.loops
	p.loops = make(map[string]*pollLoop)
	p.mu.Unlock()
	for _, l := range loops {
		l.cancel()
	}
}
