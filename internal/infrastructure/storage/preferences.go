package storage

import (
	"context"
	"path/filepath"
	"sync"

	"harmony/internal/core/domain"
	"harmony/internal/core/ports"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const preferencesKey = "device_preferences"

// PreferenceStore persists device preferences in the KV store. Reads are
// served from an in-memory copy that a filesystem watcher invalidates when
// the desktop UI process writes the database file directly.
type PreferenceStore struct {
	kv     ports.KV
	logger *zap.Logger

	mu     sync.Mutex
	cached *domain.DevicePreferences

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewPreferenceStore wires the store to the KV backend. dbPath is watched
// for external writes; an empty dbPath disables the watcher.
func NewPreferenceStore(kv ports.KV, dbPath string, logger *zap.Logger) (*PreferenceStore, error) {
	p := &PreferenceStore{
		kv:     kv,
		logger: logger,
		done:   make(chan struct{}),
	}

	if dbPath != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
			watcher.Close()
			return nil, err
		}
		p.watcher = watcher
		go p.watch(dbPath)
	}

	return p, nil
}

// Get returns the saved preferences, or the all-"default" value when
// nothing has been saved yet.
func (p *PreferenceStore) Get(ctx context.Context) (domain.DevicePreferences, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getLocked()
}

func (p *PreferenceStore) getLocked() (domain.DevicePreferences, error) {
	if p.cached != nil {
		return *p.cached, nil
	}

	prefs := domain.DefaultDevicePreferences()
	found, err := p.kv.Get(preferencesKey, &prefs)
	if err != nil {
		return domain.DevicePreferences{}, err
	}
	if !found {
		prefs = domain.DefaultDevicePreferences()
	}
	// Fields missing from an older stored schema read as empty; fall back
	// to the sentinel.
	if prefs.AudioInputDeviceID == "" {
		prefs.AudioInputDeviceID = domain.DefaultDevice
	}
	if prefs.AudioOutputDeviceID == "" {
		prefs.AudioOutputDeviceID = domain.DefaultDevice
	}
	if prefs.VideoInputDeviceID == "" {
		prefs.VideoInputDeviceID = domain.DefaultDevice
	}

	p.cached = &prefs
	return prefs, nil
}

// Set merges the update into the saved preferences and persists the result.
// The lock is held across the read-merge-write so concurrent switches cannot
// drop each other's fields.
func (p *PreferenceStore) Set(ctx context.Context, update domain.PreferenceUpdate) (domain.DevicePreferences, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.getLocked()
	if err != nil {
		return domain.DevicePreferences{}, err
	}

	merged := current.Merge(update)
	if err := p.kv.Set(preferencesKey, merged); err != nil {
		return domain.DevicePreferences{}, err
	}
	p.cached = &merged
	return merged, nil
}

// Close stops the external-change watcher.
func (p *PreferenceStore) Close() error {
	close(p.done)
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

func (p *PreferenceStore) watch(dbPath string) {
	target := filepath.Clean(dbPath)
	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) {
				continue
			}
			p.mu.Lock()
			p.cached = nil
			p.mu.Unlock()
			p.logger.Debug("preference store invalidated by external write")
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("preference watcher error", zap.Error(err))
		}
	}
}
