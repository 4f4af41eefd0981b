package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "hikbridge.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/api/hikvision", cfg.AlarmServer.Path)
	assert.Equal(t, 5*time.Minute, cfg.Events.PollInterval)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 9090
alarm_server:
  url: http://gateway.local:9090
redis:
  addr: redis.local:6379
events:
  poll_interval: 30s
`)
	t.Setenv("REDIS_ADDR", "10.1.2.3:6379")
	t.Setenv("DB_HOST", "db.local")

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://gateway.local:9090", cfg.AlarmServer.URL)
	assert.Equal(t, 30*time.Second, cfg.Events.PollInterval)

	// env wins over file
	assert.Equal(t, "10.1.2.3:6379", cfg.Redis.Addr)
	assert.Equal(t, "db.local", cfg.Database.Host)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Host = "db"
	cfg.Database.User = "hik"
	cfg.Database.Password = "pw"
	cfg.Database.Name = "hikbridge"
	assert.Equal(t, "postgres://hik:pw@db:5432/hikbridge?sslmode=disable", cfg.DSN())
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 8080\n")

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// Give fsnotify a moment to arm before rewriting.
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, dir, "server:\n  port: 9191\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9191, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not picked up")
	}
}

// The fsnotify goroutine and the mtime-poll backstop can both notice one
// edit; the callback must never run twice at once.
func TestWatcherSerializesReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 9090\n")

	var inFlight atomic.Bool
	var overlapped atomic.Bool
	w := NewWatcher(path, func(*Config) {
		if !inFlight.CompareAndSwap(false, true) {
			overlapped.Store(true)
			return
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Store(false)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.reload()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.reloadIfChanged()
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load())
}
