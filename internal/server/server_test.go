package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/logging"
)

func TestNewValidatesDependencies(t *testing.T) {
	logger := logging.NewLogger(&logging.LoggerConfig{Output: io.Discard})
	cfg := &config.Config{}

	_, err := New(nil, &fakeSource{}, logger)
	assert.Error(t, err)
	_, err = New(cfg, nil, logger)
	assert.Error(t, err)
	_, err = New(cfg, &fakeSource{}, nil)
	assert.Error(t, err)
}

func startServer(t *testing.T, s *Server) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	return cancel, done
}

func TestStartServesUntilCancelled(t *testing.T) {
	s, _ := testServer(t, &fakeSource{rows: []content.PostRow{row("live")}})
	cancel, done := startServer(t, s)

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "live")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.Error(t, s.Start(context.Background()), "a stopped server cannot restart")
}

func TestConcurrentShutdown(t *testing.T) {
	s, _ := testServer(t, &fakeSource{})
	cancel, done := startServer(t, s)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			results <- s.Shutdown(ctx)
		}()
	}
	wg.Wait()
	close(results)

	count := 0
	for err := range results {
		count++
		assert.NoError(t, err)
	}
	assert.Equal(t, 10, count)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s, _ := testServer(t, &fakeSource{})

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Error(t, s.Start(context.Background()))
}

func TestStartPortInUse(t *testing.T) {
	first, _ := testServer(t, &fakeSource{})
	cancel, done := startServer(t, first)
	defer func() {
		cancel()
		<-done
	}()

	logger := logging.NewLogger(&logging.LoggerConfig{Output: io.Discard})
	host, port := splitAddr(t, first.Addr())
	cfg := &config.Config{Server: config.ServerConfig{Host: host, Port: port}}
	second, err := New(cfg, &fakeSource{}, logger)
	require.NoError(t, err)

	err = second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}
