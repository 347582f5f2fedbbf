package main

import (
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/Brownie44l1/statichttpd/internal/config"
	"github.com/Brownie44l1/statichttpd/internal/logger"
	"github.com/Brownie44l1/statichttpd/internal/server"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HTTPD_HOST", "HTTPD_PORT", "HTTPD_WORKERS", "HTTPD_TIMEOUT", "HTTPD_ROOT", "HTTPD_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigFlags(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig([]string{"-p", "9000", "-w", "7", "-t", "0.25", "-r", "/srv", "-v", "debug", "127.0.0.1"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Server.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.Timeout)
	assert.Equal(t, "/srv", cfg.Server.Root)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFlagsOverrideFileAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTPD_WORKERS", "4")

	path := filepath.Join(t.TempDir(), "httpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n  root: /from/file\n"), 0o644))

	cfg, err := loadConfig([]string{"-c", path, "-r", "/from/flag"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, "/from/flag", cfg.Server.Root)

	// Unset flags leave defaults alone
	assert.Equal(t, 3*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "", cfg.Server.Host)
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)

	_, err := loadConfig([]string{"-w", "0"}, io.Discard)
	assert.Error(t, err)

	_, err = loadConfig([]string{"-p", "http"}, io.Discard)
	assert.Error(t, err)

	_, err = loadConfig([]string{"host1", "host2"}, io.Discard)
	assert.Error(t, err)

	_, err = loadConfig([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestNewLoggerFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "httpd.log")

	cfg, err := loadConfig([]string{"-l", path, "-v", "warn"}, io.Discard)
	require.NoError(t, err)

	log, closeLog, err := newLogger(cfg.Log)
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "] W kept")
	assert.NotContains(t, string(data), "dropped")
}

func TestNewLoggerErrors(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig([]string{"-v", "loud"}, io.Discard)
	require.NoError(t, err)
	_, _, err = newLogger(cfg.Log)
	assert.Error(t, err)

	cfg, err = loadConfig([]string{"-l", filepath.Join(t.TempDir(), "no", "such", "dir.log")}, io.Discard)
	require.NoError(t, err)
	_, _, err = newLogger(cfg.Log)
	assert.Error(t, err)
}

func deferredBindConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.Root = t.TempDir()
	cfg.Server.Bind = false
	return cfg
}

// serveWithTimeout fails the test if serve does not return
func serveWithTimeout(t *testing.T, srv *server.Server, sigCh chan os.Signal) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- serve(srv, &logger.NullLogger{}, sigCh)
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func TestServeSignalBeforeListening(t *testing.T) {
	srv, err := server.New(deferredBindConfig(t), nil)
	require.NoError(t, err)

	// The signal won the race: the server is closed before it ever binds
	require.NoError(t, srv.Close())
	sigCh := make(chan os.Signal, 1)
	sigCh <- unix.SIGTERM

	assert.NoError(t, serveWithTimeout(t, srv, sigCh))
}

func TestServeClosedWithoutSignal(t *testing.T) {
	srv, err := server.New(deferredBindConfig(t), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	assert.NoError(t, serveWithTimeout(t, srv, make(chan os.Signal)))
}

func TestServeStopsOnSignal(t *testing.T) {
	srv, err := server.New(deferredBindConfig(t), nil)
	require.NoError(t, err)

	sigCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serve(srv, &logger.NullLogger{}, sigCh)
	}()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	sigCh <- unix.SIGINT

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after signal")
	}
}

func TestServeBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := deferredBindConfig(t)
	cfg.Server.Port = taken.Addr().(*net.TCPAddr).Port
	srv, err := server.New(cfg, nil)
	require.NoError(t, err)

	err = serveWithTimeout(t, srv, make(chan os.Signal))
	assert.ErrorIs(t, err, server.ErrBind)
}
