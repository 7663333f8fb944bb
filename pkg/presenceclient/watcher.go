package presenceclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is the widget cadence, deliberately independent of
// the heartbeat interval.
const DefaultPollInterval = 15 * time.Second

// State is what a widget should render.
type State string

const (
	// StateLoading: first poll still in flight.
	StateLoading State = "loading"
	// StateOnline: at least one agent available.
	StateOnline State = "online"
	// StateEmpty: confirmed nobody online; render the fallback contact.
	StateEmpty State = "empty"
	// StateUnavailable: the query failed; unknown, NOT confirmed-empty.
	// Renders the same fallback contact but must stay distinguishable
	// from StateEmpty for consumers that care.
	StateUnavailable State = "unavailable"
)

// Contact is the organizational fallback offered when no agent is
// reachable directly.
type Contact struct {
	Whatsapp string
	Email    string
}

// Snapshot is an immutable view handed to the widget.
type Snapshot struct {
	State    State
	Agents   []Agent
	Fallback Contact
}

// Watcher polls the online-agents endpoint and exposes the latest
// snapshot. It never blocks its consumer: OnChange runs on the poll
// goroutine and results arriving after Stop are discarded.
type Watcher struct {
	client   *Client
	interval time.Duration
	fallback Contact
	onChange func(Snapshot)
	logger   *zap.Logger

	mu      sync.Mutex
	latest  Snapshot
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	stopped bool
}

func NewWatcher(client *Client, interval time.Duration, fallback Contact, onChange func(Snapshot), logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		client:   client,
		interval: interval,
		fallback: fallback,
		onChange: onChange,
		logger:   logger,
		latest:   Snapshot{State: StateLoading, Fallback: fallback},
	}
}

// Start polls immediately and then on every interval tick.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		w.poll(ctx)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}()
}

// Stop cancels the loop. Any in-flight poll result is dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// Snapshot returns the latest view.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

func (w *Watcher) poll(ctx context.Context) {
	agents, err := w.client.OnlineAgents(ctx)

	snap := Snapshot{Fallback: w.fallback}
	switch {
	case err != nil:
		w.logger.Debug("agents poll failed", zap.Error(err))
		snap.State = StateUnavailable
		snap.Agents = []Agent{}
	case len(agents) == 0:
		snap.State = StateEmpty
		snap.Agents = []Agent{}
	default:
		snap.State = StateOnline
		snap.Agents = agents
	}

	w.mu.Lock()
	// a response that raced with Stop must not resurrect state
	if w.stopped || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	changed := !snapshotsEqual(w.latest, snap)
	w.latest = snap
	onChange := w.onChange
	w.mu.Unlock()

	if changed && onChange != nil {
		onChange(snap)
	}
}

func snapshotsEqual(a, b Snapshot) bool {
	if a.State != b.State || len(a.Agents) != len(b.Agents) {
		return false
	}
	for i := range a.Agents {
		if a.Agents[i].UserID != b.Agents[i].UserID || !a.Agents[i].LastSeen.Equal(b.Agents[i].LastSeen) {
			return false
		}
	}
	return true
}
