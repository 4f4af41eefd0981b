package config

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const pollInterval = 60 * time.Second

// Watcher reloads the config file when it changes and hands the new
// config to the registered callback. fsnotify is the primary mechanism;
// a slow mtime poll backstops platforms where it is unreliable.
type Watcher struct {
	path     string
	onChange func(*Config)

	mu        sync.Mutex
	lastMtime time.Time
}

func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{path: path, onChange: onChange}
}

func (w *Watcher) Start(ctx context.Context) {
	if info, err := os.Stat(w.path); err == nil {
		w.lastMtime = info.ModTime()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[WARN] config: fsnotify unavailable, polling only: %v", err)
	} else if err := fw.Add(w.path); err != nil {
		log.Printf("[WARN] config: cannot watch %s, polling only: %v", w.path, err)
		fw.Close()
		fw = nil
	}

	if fw != nil {
		go func() {
			defer fw.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-fw.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						// Editors often fire several events per save.
						time.Sleep(100 * time.Millisecond)
						w.reload()
					}
				case err, ok := <-fw.Errors:
					if !ok {
						return
					}
					log.Printf("[WARN] config: watcher error: %v", err)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.reloadIfChanged()
			}
		}
	}()
}

func (w *Watcher) reloadIfChanged() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.lastMtime) {
		return
	}
	w.reloadLocked()
}

// reload serializes with the poll backstop; the fsnotify goroutine and
// the ticker can otherwise both fire for a single edit, and the callback
// must never run twice at once.
func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reloadLocked()
}

func (w *Watcher) reloadLocked() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Printf("[ERROR] config: reload of %s failed, keeping previous: %v", w.path, err)
		return
	}

	if info, err := os.Stat(w.path); err == nil {
		w.lastMtime = info.ModTime()
	}

	log.Printf("config: reloaded %s", w.path)
	w.onChange(cfg)
}
