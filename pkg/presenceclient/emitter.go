package presenceclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHeartbeatInterval matches the server's expectation: the
// staleness threshold (45s) tolerates one missed beat at this cadence.
const DefaultHeartbeatInterval = 20 * time.Second

// Emitter keeps one session's presence row fresh. Start it on login,
// Pause/Resume it on tab visibility, Stop it on logout. All write
// failures are swallowed: presence is a best-effort signal and the next
// tick self-heals, so there are no retries.
type Emitter struct {
	client   *Client
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	paused  bool
	started bool
}

func NewEmitter(client *Client, interval time.Duration, logger *zap.Logger) *Emitter {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{client: client, interval: interval, logger: logger}
}

// Start begins the heartbeat loop: an immediate beat, then one per
// interval. Calling Start on a running emitter is a no-op.
func (e *Emitter) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.mu.Unlock()

	go e.loop(ctx)
}

func (e *Emitter) loop(ctx context.Context) {
	defer close(e.done)

	e.beat(ctx)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.beat(ctx)
		}
	}
}

func (e *Emitter) beat(ctx context.Context) {
	e.mu.Lock()
	paused := e.paused
	e.mu.Unlock()
	if paused {
		return
	}
	if err := e.client.Heartbeat(ctx); err != nil {
		// non-fatal; the next tick heals it
		e.logger.Debug("heartbeat failed", zap.Error(err))
	}
}

// Pause suspends beats (tab hidden) and fires a best-effort offline so
// the agent drops out quickly instead of lingering until staleness.
func (e *Emitter) Pause() {
	e.mu.Lock()
	if e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := e.client.Offline(ctx); err != nil {
		e.logger.Debug("offline on pause failed", zap.Error(err))
	}
}

// Resume restarts beats (tab visible) with an immediate one.
func (e *Emitter) Resume() {
	e.mu.Lock()
	if !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	cancel := e.cancel
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	ctx, done := context.WithTimeout(context.Background(), 3*time.Second)
	defer done()
	if err := e.client.Heartbeat(ctx); err != nil {
		e.logger.Debug("heartbeat on resume failed", zap.Error(err))
	}
}

// Stop halts the loop and sends a synchronous offline so the user
// disappears immediately rather than waiting out the threshold. Used on
// explicit sign-out.
func (e *Emitter) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done

	ctx, cancelOffline := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelOffline()
	if err := e.client.Offline(ctx); err != nil {
		e.logger.Debug("offline on stop failed", zap.Error(err))
	}
}
