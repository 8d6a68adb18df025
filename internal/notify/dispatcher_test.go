package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport fails the first failures deliveries with failErr, then
// succeeds.
type fakeTransport struct {
	mu       sync.Mutex
	calls    int
	failures int
	failErr  error
}

func (f *fakeTransport) Deliver(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return f.failErr
	}
	return nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDispatcher_Delivers(t *testing.T) {
	transport := &fakeTransport{}
	d := NewDispatcher(transport, StaticRetries(1))

	require.NoError(t, d.Send(context.Background(), "chat-1", "hello"))
	assert.Equal(t, 1, transport.callCount())
}

func TestDispatcher_RetriesTransientOnce(t *testing.T) {
	transport := &fakeTransport{failures: 1, failErr: Transient(errors.New("timeout"))}
	d := NewDispatcher(transport, StaticRetries(1))

	require.NoError(t, d.Send(context.Background(), "chat-1", "hello"))
	assert.Equal(t, 2, transport.callCount())
}

func TestDispatcher_GivesUpAfterRetries(t *testing.T) {
	transport := &fakeTransport{failures: 10, failErr: Transient(errors.New("timeout"))}
	d := NewDispatcher(transport, StaticRetries(1))

	err := d.Send(context.Background(), "chat-1", "hello")
	require.Error(t, err)
	// First try plus one retry
	assert.Equal(t, 2, transport.callCount())
}

func TestDispatcher_PermanentFailureNotRetried(t *testing.T) {
	transport := &fakeTransport{failures: 10, failErr: errors.New("bad chat id")}
	d := NewDispatcher(transport, StaticRetries(3))

	err := d.Send(context.Background(), "chat-1", "hello")
	require.Error(t, err)
	assert.Equal(t, 1, transport.callCount())
}

func TestDispatcher_RetriesReloadable(t *testing.T) {
	transport := &fakeTransport{failures: 10, failErr: Transient(errors.New("flaky"))}
	retries := 0
	d := NewDispatcher(transport, func() int { return retries })

	require.Error(t, d.Send(context.Background(), "c", "x"))
	assert.Equal(t, 1, transport.callCount())

	retries = 2
	require.Error(t, d.Send(context.Background(), "c", "x"))
	assert.Equal(t, 4, transport.callCount())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(Transient(errors.New("boom"))))
	assert.False(t, isTransient(errors.New("boom")))
}
