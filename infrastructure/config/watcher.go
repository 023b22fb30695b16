package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	domainconfig "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Watcher reloads the domain section of the config file when it changes.
// Only the domain rules are hot; everything else needs a restart.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	debouncer *debounce.Debouncer
	logger    *zap.Logger

	mu        sync.RWMutex
	current   *domainconfig.DomainConfig
	callbacks []func(*domainconfig.DomainConfig)

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher starts watching path. initial is the configuration already in
// effect; it is replaced only by a file that parses and validates.
func NewWatcher(path string, initial *domainconfig.DomainConfig, delay time.Duration, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic saves (write temp, rename) are seen
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:    path,
		watcher: fsWatcher,
		logger:  logger,
		current: initial,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	w.debouncer = debounce.New(delay, w.reload)

	go w.watchLoop()
	logger.Info("Configuration watcher started", zap.String("path", path))
	return w, nil
}

// OnChange registers a callback run after every successful reload
func (w *Watcher) OnChange(fn func(*domainconfig.DomainConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Current returns the configuration in effect
func (w *Watcher) Current() *domainconfig.DomainConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.debouncer.Stop()
		w.watcher.Close()
		<-w.doneCh
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.debouncer.Trigger()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	next, err := loadDomainFile(w.path, w.Current())
	if err != nil {
		w.logger.Error("Failed to reload configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = next
	callbacks := append([]func(*domainconfig.DomainConfig){}, w.callbacks...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(next)
	}
	w.logger.Info("Configuration reloaded", zap.String("path", w.path))
}

// loadDomainFile reads the domain section of a config file over a copy of base
func loadDomainFile(path string, base *domainconfig.DomainConfig) (*domainconfig.DomainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	next := *base
	file := struct {
		Domain *domainconfig.DomainConfig `yaml:"domain"`
	}{Domain: &next}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if file.Domain == nil {
		return nil, fmt.Errorf("config file has no domain section")
	}
	if err := file.Domain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain configuration: %w", err)
	}
	return file.Domain, nil
}
