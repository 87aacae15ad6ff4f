package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestWatcher_StartLoadsInitialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	writeConfigFile(t, path, "server:\n  port: 9191\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	cfg := w.GetLastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestWatcher_StartFailsOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	writeConfigFile(t, path, "server:\n  port: 99999\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	err = w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	writeConfigFile(t, path, "server:\n  port: 8081\n")

	var mu sync.Mutex
	var got *Config
	reloaded := make(chan struct{}, 1)

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	writeConfigFile(t, path, "server:\n  port: 8082\n")

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, 8082, got.Server.Port)
}

func TestWatcher_InvalidReloadKeepsLastConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	writeConfigFile(t, path, "server:\n  port: 8081\n")

	errCh := make(chan error, 1)

	w, err := NewWatcher(path, nil,
		WithDebounceDelay(20*time.Millisecond),
		WithErrorCallback(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	writeConfigFile(t, path, "server:\n  port: 99999\n")

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "out of range")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}

	cfg := w.GetLastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestWatcher_ForceReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	writeConfigFile(t, path, "server:\n  port: 8081\n")

	var mu sync.Mutex
	calls := 0

	w, err := NewWatcher(path, func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer func() { _ = w.watcher.Close() }()

	writeConfigFile(t, path, "server:\n  port: 8085\n")
	require.NoError(t, w.ForceReload())

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	cfg := w.GetLastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 8085, cfg.Server.Port)
}
