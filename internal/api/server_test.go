package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redsalud/turnos-board/internal/config"
)

func TestServerListenAndServe(t *testing.T) {
	h := newTestHandlers(t, &fakeIngestor{}, &fakeStore{})
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, h, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	// Give the listener a moment to bind before shutting down.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	h := newTestHandlers(t, &fakeIngestor{}, &fakeStore{})
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, h, nil)
	require.NoError(t, s.Shutdown(context.Background()))
	require.NotNil(t, s.Handler())
}
