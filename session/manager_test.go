package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spayyavula/spark-ide-ai/logging"
)

type registryCall struct {
	op    string
	id    string
	state State
}

type recordingRegistry struct {
	mu     sync.Mutex
	calls  []registryCall
	closed bool
}

func (r *recordingRegistry) record(c registryCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingRegistry) Register(_ context.Context, id string, _ time.Time) error {
	r.record(registryCall{op: "register", id: id, state: StateConnecting})
	return nil
}

func (r *recordingRegistry) SetState(_ context.Context, id string, state State) error {
	r.record(registryCall{op: "state", id: id, state: state})
	return nil
}

func (r *recordingRegistry) Remove(_ context.Context, id string) error {
	r.record(registryCall{op: "remove", id: id})
	return nil
}

func (r *recordingRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingRegistry) snapshot() []registryCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]registryCall(nil), r.calls...)
}

// slowRegistry blocks Register until release is closed.
type slowRegistry struct {
	recordingRegistry
	entered  chan struct{}
	release  chan struct{}
	deadline chan bool
}

func (r *slowRegistry) Register(ctx context.Context, id string, createdAt time.Time) error {
	_, ok := ctx.Deadline()
	r.deadline <- ok
	close(r.entered)
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return r.recordingRegistry.Register(ctx, id, createdAt)
}

func TestSlowRegistryDoesNotBlockLookups(t *testing.T) {
	up := newFakeUpstream(t, false)
	reg := &slowRegistry{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		deadline: make(chan bool, 1),
	}
	r := newRelay(t, testConfig(up.url()), reg)
	defer close(reg.release)

	r.dial(t)
	select {
	case <-reg.entered:
	case <-time.After(waitFor):
		t.Fatal("session was never registered")
	}
	require.True(t, <-reg.deadline, "register call has no deadline")

	counted := make(chan int, 1)
	go func() { counted <- r.manager.GetActiveSessionCount() }()
	select {
	case n := <-counted:
		require.Equal(t, 1, n)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("manager lock held across Register")
	}
}

func TestRegistryFollowsLifecycle(t *testing.T) {
	up := newFakeUpstream(t, false)
	reg := &recordingRegistry{}
	r := newRelay(t, testConfig(up.url()), reg)

	client := r.dial(t)
	cs := r.only(t)
	uc := up.accept(t)
	uc.ready(t)
	readFrame(t, client)
	require.Eventually(t, func() bool { return cs.State() == StateActive }, waitFor, 5*time.Millisecond)

	r.manager.RemoveSession(cs.ID)
	requireClosed(t, client)

	_, exists := r.manager.GetSession(cs.ID)
	require.False(t, exists)
	require.Equal(t, []registryCall{
		{op: "register", id: cs.ID, state: StateConnecting},
		{op: "state", id: cs.ID, state: StateActive},
		{op: "state", id: cs.ID, state: StateClosing},
		{op: "remove", id: cs.ID},
	}, reg.snapshot())
}

func TestCleanupInactiveSessions(t *testing.T) {
	up := newFakeUpstream(t, false)
	r := newRelay(t, testConfig(up.url()), nil)

	fresh := r.dial(t)
	freshSession := r.only(t)
	up.accept(t).ready(t)
	readFrame(t, fresh)

	stale := r.dial(t)
	require.Eventually(t, func() bool { return r.manager.GetActiveSessionCount() == 2 }, waitFor, 5*time.Millisecond)

	var staleSession *ClientSession
	r.manager.mu.RLock()
	for id, s := range r.manager.sessions {
		if id != freshSession.ID {
			staleSession = s
		}
	}
	r.manager.mu.RUnlock()
	require.NotNil(t, staleSession)

	staleSession.mu.Lock()
	staleSession.lastActivity = time.Now().Add(-time.Hour)
	staleSession.mu.Unlock()

	r.manager.CleanupInactiveSessions()

	requireClosed(t, stale)
	require.Equal(t, 1, r.manager.GetActiveSessionCount())
	_, exists := r.manager.GetSession(freshSession.ID)
	require.True(t, exists)
}

func TestShutdownClosesEverySession(t *testing.T) {
	up := newFakeUpstream(t, false)
	reg := &recordingRegistry{}
	r := newRelay(t, testConfig(up.url()), reg)

	a := r.dial(t)
	b := r.dial(t)
	require.Eventually(t, func() bool { return r.manager.GetActiveSessionCount() == 2 }, waitFor, 5*time.Millisecond)

	r.manager.Shutdown()

	requireClosed(t, a)
	requireClosed(t, b)
	require.Zero(t, r.manager.GetActiveSessionCount())
	require.True(t, reg.closed)
}

func TestConnectRegistryFallsBackWithoutRedis(t *testing.T) {
	reg := ConnectRegistry(context.Background(), "127.0.0.1:1", "", time.Minute, logging.Discard())
	require.IsType(t, NopRegistry{}, reg)
	require.NoError(t, reg.Register(context.Background(), "id", time.Now()))
	require.NoError(t, reg.Close())
}
