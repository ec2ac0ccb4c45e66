// Package config loads declarative tree/backend definitions and
// hot-reloads chaos-backend parameters for long-running test harnesses
// built on the mallocator facade.
package config

import (
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/arborist-systems/mallocator/internal/merr"
)

// ChaosConfig is the subset of a chaos backend's parameters that can be
// expressed declaratively and reloaded without restarting the process
// under test.
type ChaosConfig struct {
	PFailure  float64 `toml:"p_failure"`
	PRecovery float64 `toml:"p_recovery"`
}

// Document is a declarative description of a tree's root name and
// chaos parameters.
type Document struct {
	Root  string      `toml:"root"`
	Chaos ChaosConfig `toml:"chaos"`
}

// Load parses a TOML document at path.
func Load(path string) (*Document, error) {
	var doc Document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, merr.InvalidConfig(err.Error())
	}
	return &doc, nil
}

// Watcher hot-reloads a chaos config file, invoking onChange with the
// freshly parsed Document every time the file is written.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// WatchChaosConfig starts watching path in the background and calls
// onChange on every write. Callers own the returned Watcher and must
// Close it when done.
func WatchChaosConfig(path string, logger zerolog.Logger, onChange func(*Document)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: filepath.Clean(path), watcher: fw, logger: logger}
	go w.loop(onChange)
	return w, nil
}

func (w *Watcher) loop(onChange func(*Document)) {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			doc, err := Load(w.path)
			if err != nil {
				w.logger.Warn().Err(err).Str("path", w.path).Msg("chaos config reload failed")
				continue
			}
			onChange(doc)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("chaos config watch error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.watcher.Close() }
