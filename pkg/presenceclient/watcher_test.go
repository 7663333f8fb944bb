package presenceclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherStartsLoading(t *testing.T) {
	w := NewWatcher(New("http://localhost:0", ""), time.Hour, Contact{Whatsapp: "+549110000"}, nil, nil)
	snap := w.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	assert.Equal(t, "+549110000", snap.Fallback.Whatsapp)
}

func TestWatcherOnlineState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"rows":[{"user_id":"3f1e9c10-0000-0000-0000-000000000001","role":"admin","full_name":"Ana Torres"}]}`))
	}))
	defer srv.Close()

	w := NewWatcher(New(srv.URL, ""), time.Hour, Contact{}, nil, nil)
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return w.Snapshot().State == StateOnline })
	snap := w.Snapshot()
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, "Ana Torres", snap.Agents[0].FullName)
}

func TestWatcherEmptyVsUnavailable(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"ok":false,"error":"query_failed","rows":[]}`))
			return
		}
		w.Write([]byte(`{"ok":true,"rows":[]}`))
	}))
	defer srv.Close()

	fallback := Contact{Whatsapp: "+549110000", Email: "info@inmobiliaria.local"}
	w := NewWatcher(New(srv.URL, ""), 20*time.Millisecond, fallback, nil, nil)
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return w.Snapshot().State == StateEmpty })
	snap := w.Snapshot()
	assert.Empty(t, snap.Agents)
	assert.Equal(t, fallback, snap.Fallback, "confirmed empty still offers the fallback contact")

	fail.Store(true)
	waitFor(t, time.Second, func() bool { return w.Snapshot().State == StateUnavailable })
	snap = w.Snapshot()
	assert.Equal(t, fallback, snap.Fallback, "unavailable offers the same fallback but stays distinguishable")
}

func TestWatcherOnChangeFiresOnTransitions(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"ok":false,"error":"query_failed","rows":[]}`))
			return
		}
		w.Write([]byte(`{"ok":true,"rows":[]}`))
	}))
	defer srv.Close()

	var mu sync.Mutex
	var states []State
	onChange := func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}

	w := NewWatcher(New(srv.URL, ""), 20*time.Millisecond, Contact{}, onChange, nil)
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 1
	})
	fail.Store(true)
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, StateEmpty, states[0])
	assert.Equal(t, StateUnavailable, states[1])
}

func TestWatcherDiscardsResultsAfterStop(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"ok":true,"rows":[{"user_id":"3f1e9c10-0000-0000-0000-000000000001","role":"admin"}]}`))
	}))
	defer srv.Close()
	defer close(release)

	w := NewWatcher(New(srv.URL, ""), time.Hour, Contact{}, nil, nil)
	w.Start(context.Background())

	// Stop while the first poll hangs on the server
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, StateLoading, w.Snapshot().State, "a response racing Stop must not surface")
}
