package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"maxiwhisper/log"
)

// Manager holds the active configuration and reloads it when the file
// changes. Invalid reloads are logged and ignored.
type Manager struct {
	path string

	mu       sync.RWMutex
	config   *Config
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{path: path, config: cfg}, nil
}

func (m *Manager) Path() string { return m.path }

// Config returns a copy of the active configuration.
func (m *Manager) Config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *m.config
	return &c
}

// OnChange registers fn to run after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Watch reloads the file on writes until ctx is done or Stop is called.
// The directory is watched so editors that replace the file are seen.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	m.wg.Add(1)
	go m.watchLoop(ctx)

	log.Debugf("config: watching %s", m.path)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	name := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				m.reload()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reload() {
	cfg, err := Load(m.path)
	if err != nil {
		log.Warnf("config reload: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Warnf("config reload: %v (keeping previous config)", err)
		return
	}

	m.mu.Lock()
	m.config = cfg
	callbacks := append(([]func(*Config))(nil), m.onChange...)
	m.mu.Unlock()

	log.Info("Configuration reloaded")
	for _, fn := range callbacks {
		fn(cfg)
	}
}
