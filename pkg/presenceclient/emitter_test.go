package presenceclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type beatCounter struct {
	heartbeats atomic.Int64
	offlines   atomic.Int64
}

func newBeatServer(c *beatCounter) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/presence/heartbeat":
			c.heartbeats.Add(1)
		case "/api/v1/presence/offline":
			c.offlines.Add(1)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond())
}

func TestEmitterBeatsImmediatelyAndOnTicks(t *testing.T) {
	var c beatCounter
	srv := newBeatServer(&c)
	defer srv.Close()

	e := NewEmitter(New(srv.URL, "tok"), 20*time.Millisecond, nil)
	e.Start(context.Background())
	defer e.Stop()

	waitFor(t, time.Second, func() bool { return c.heartbeats.Load() >= 3 })
}

func TestEmitterStopSendsOffline(t *testing.T) {
	var c beatCounter
	srv := newBeatServer(&c)
	defer srv.Close()

	e := NewEmitter(New(srv.URL, "tok"), 50*time.Millisecond, nil)
	e.Start(context.Background())
	waitFor(t, time.Second, func() bool { return c.heartbeats.Load() >= 1 })

	e.Stop()
	assert.Equal(t, int64(1), c.offlines.Load(), "sign-out must clear the row synchronously")

	// second Stop is a no-op
	e.Stop()
	assert.Equal(t, int64(1), c.offlines.Load())
}

func TestEmitterPauseSuspendsBeats(t *testing.T) {
	var c beatCounter
	srv := newBeatServer(&c)
	defer srv.Close()

	e := NewEmitter(New(srv.URL, "tok"), 20*time.Millisecond, nil)
	e.Start(context.Background())
	defer e.Stop()
	waitFor(t, time.Second, func() bool { return c.heartbeats.Load() >= 1 })

	e.Pause()
	assert.Equal(t, int64(1), c.offlines.Load(), "pause fires a best-effort offline")

	paused := c.heartbeats.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, paused, c.heartbeats.Load(), "no beats while paused")

	e.Resume()
	waitFor(t, time.Second, func() bool { return c.heartbeats.Load() > paused })
}

func TestEmitterSurvivesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ok":false,"error":"write_failed"}`))
	}))
	defer srv.Close()

	e := NewEmitter(New(srv.URL, "tok"), 20*time.Millisecond, nil)
	e.Start(context.Background())
	defer e.Stop()

	// failures are swallowed; the loop keeps ticking
	waitFor(t, time.Second, func() bool { return calls.Load() >= 3 })
}

func TestEmitterDoubleStartIsNoop(t *testing.T) {
	var c beatCounter
	srv := newBeatServer(&c)
	defer srv.Close()

	e := NewEmitter(New(srv.URL, "tok"), time.Hour, nil)
	e.Start(context.Background())
	e.Start(context.Background())
	waitFor(t, time.Second, func() bool { return c.heartbeats.Load() >= 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), c.heartbeats.Load(), "one loop, one immediate beat")
	e.Stop()
}
