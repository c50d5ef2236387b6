package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
)

func TestJanitor_PurgesExpiredSessions(t *testing.T) {
	r := NewRegistry(time.Millisecond, abtime.NewRealTime())
	_, err := r.Create()
	require.NoError(t, err)

	j := NewJanitor(r, 5*time.Millisecond, abtime.NewRealTime(), logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Serve(ctx) }()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestNewJanitor_Defaults(t *testing.T) {
	j := NewJanitor(NewRegistry(0, nil), 0, nil, nil)
	assert.Equal(t, time.Minute, j.interval)
	assert.Equal(t, 30*time.Minute, j.registry.Timeout())
	assert.Equal(t, "session janitor", j.String())
}
