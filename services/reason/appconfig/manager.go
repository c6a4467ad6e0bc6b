// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package appconfig

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
)

// Manager holds the loaded app configurations and serves lookups.
//
// # Description
//
// Configs are loaded from a directory of *.yaml/*.yml files, keyed by their
// app_name field. The embedded nextshop default is always present unless a
// file on disk overrides it. Watch re-loads the directory on file changes so
// prompt tuning does not require a restart.
//
// # Thread Safety
//
// Safe for concurrent use. Lookups take a read lock; reloads swap the whole
// map under a write lock.
type Manager struct {
	mu       sync.RWMutex
	configs  map[string]AppConfig
	dir      string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewManager creates a Manager pre-populated with the embedded default
// config.
//
// # Inputs
//
//   - logger: Logger for load diagnostics. May be nil.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		configs:  make(map[string]AppConfig),
		validate: validator.New(),
		logger:   logger,
	}
	cfg, err := parseConfig(defaultNextshopYAML, m.validate)
	if err != nil {
		// The embedded config is checked at build time by tests; a parse
		// failure here is a packaging bug.
		panic(fmt.Sprintf("embedded default config invalid: %v", err))
	}
	m.configs[cfg.AppName] = cfg
	return m
}

// LoadDir loads every YAML config in dir, replacing previously loaded
// file-backed configs. The embedded default survives unless a file defines
// the same app_name.
//
// # Inputs
//
//   - dir: Directory to scan. Empty keeps only the embedded default.
//
// # Outputs
//
//   - error: Non-nil if the directory cannot be read. Individual bad files
//     are logged and skipped, not fatal.
func (m *Manager) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read configs dir %q: %w", dir, err)
	}

	next := make(map[string]AppConfig)
	defaultCfg, derr := parseConfig(defaultNextshopYAML, m.validate)
	if derr == nil {
		next[defaultCfg.AppName] = defaultCfg
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Error("failed to read app config", slog.String("path", path), slog.Any("error", err))
			continue
		}
		cfg, err := parseConfig(data, m.validate)
		if err != nil {
			m.logger.Error("failed to load app config", slog.String("path", path), slog.Any("error", err))
			continue
		}
		next[cfg.AppName] = cfg
		loaded++
		m.logger.Info("loaded app config",
			slog.String("app", cfg.AppName),
			slog.String("path", path),
		)
	}

	m.mu.Lock()
	m.configs = next
	m.dir = dir
	m.mu.Unlock()

	m.logger.Info("app configs loaded", slog.String("dir", dir), slog.Int("count", loaded))
	return nil
}

// Get returns the config for app_name.
//
// # Outputs
//
//   - AppConfig: The config, zero value if not found.
//   - bool: True if the app is configured.
func (m *Manager) Get(appName string) (AppConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[appName]
	return cfg, ok
}

// List returns the configured app names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watch re-loads the configs directory whenever a YAML file in it changes.
// Blocks until ctx is cancelled. Returns immediately if no directory has
// been loaded.
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.RLock()
	dir := m.dir
	m.mu.RUnlock()
	if dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch configs dir %q: %w", dir, err)
	}
	m.logger.Info("watching app configs", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			m.logger.Info("app config change detected", slog.String("path", event.Name))
			if err := m.LoadDir(dir); err != nil {
				m.logger.Error("config reload failed", slog.Any("error", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("config watcher error", slog.Any("error", err))
		}
	}
}
