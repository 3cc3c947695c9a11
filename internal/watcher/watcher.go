// Package watcher provides file system monitoring for the gpt2giga proxy.
// It watches the configuration file for changes and reloads it into the
// running server when the content actually changed, handling editors that
// replace the file instead of writing it in place.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gpt2giga/gpt2giga/internal/config"
	log "github.com/sirupsen/logrus"
)

// Watcher manages file watching for the configuration file.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher
	lastConfigHash string
}

// NewWatcher creates a new file watcher instance.
//
// Parameters:
//   - configPath: The path of the YAML configuration file to watch
//   - reloadCallback: Invoked with the freshly loaded configuration
//
// Returns:
//   - *Watcher: A new watcher instance
//   - error: An error if the underlying fsnotify watcher could not be created
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}

	w := &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}
	w.lastConfigHash = hashFile(configPath)

	return w, nil
}

// Start begins watching the configuration file until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the directory rather than the file: editors often rename a
	// temp file over the original, which drops a file-level watch.
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return err
	}

	go w.loop(ctx)
	log.Debugf("watching config file: %s", w.configPath)
	return nil
}

// Stop closes the underlying file system watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	// Debounce timer; editors emit bursts of events per save.
	var pending *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigEvent(event) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, w.reloadConfig)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) &&
		!strings.HasPrefix(filepath.Base(event.Name), filepath.Base(w.configPath)) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) reloadConfig() {
	newHash := hashFile(w.configPath)
	if newHash == "" || newHash == w.lastConfigHash {
		return
	}

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}

	w.lastConfigHash = newHash
	log.Infof("config file changed, reloading")
	w.reloadCallback(cfg)
}

func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
