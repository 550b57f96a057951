package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultVersion is assumed for files that only hold rule documents.
const DefaultVersion = "v1"

// ErrRejected marks a reload whose catalog was refused by the loader's gate.
var ErrRejected = errors.New("catalog rejected")

// Loader reads one or more YAML rule files and watches them for changes.
// Rules are concatenated in path order, which is the evaluation order.
type Loader struct {
	paths    []string
	mu       sync.RWMutex
	reloadMu sync.Mutex
	current  *Catalog
	gate     func(*Catalog) error
	onChange []func(*Catalog)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(paths ...string) (*Loader, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("config: at least one rule file is required")
	}
	l := &Loader{paths: paths}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Load reads and validates the given rule files once, without watching.
func Load(paths ...string) (*Catalog, error) {
	l, err := NewLoader(paths...)
	if err != nil {
		return nil, err
	}
	cat := l.Config()
	if err := Validate(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// Paths returns the files this loader reads.
func (l *Loader) Paths() []string { return l.paths }

// Config returns the current (latest) catalog.
func (l *Loader) Config() *Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the catalog reloads.
func (l *Loader) OnChange(fn func(*Catalog)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Gate sets fn to run on every reloaded catalog before it becomes current.
// When fn fails the previous catalog stays and no OnChange callback runs.
func (l *Loader) Gate(fn func(*Catalog) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gate = fn
}

// Watch starts a background goroutine that hot-reloads the catalog on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	for _, p := range l.paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, fmt.Errorf("config watcher add %s: %w", p, err)
		}
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("rule reload failed, keeping previous catalog", "file", ev.Name, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("rule watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the rule files. A catalog refused
// by the gate is reported as ErrRejected and never becomes current.
func (l *Loader) Reload() (*Catalog, error) {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()

	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	gate := l.gate
	l.mu.RUnlock()
	if gate != nil {
		if err := gate(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRejected, err)
		}
	}

	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Catalog), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

// document is either a whole catalog or a single inline rule.
type document struct {
	Version  string     `yaml:"version"`
	Engine   EngineConf `yaml:"engine"`
	Rules    []RuleSpec `yaml:"rules"`
	RuleSpec `yaml:",inline"`
}

func (l *Loader) load() (*Catalog, error) {
	cfg := &Catalog{}
	for _, p := range l.paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read rules %s: %w", p, err)
		}
		if err := mergeDocuments(cfg, data); err != nil {
			return nil, fmt.Errorf("parse rules %s: %w", p, err)
		}
	}
	// Apply defaults.
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 1
	}
	return cfg, nil
}

// mergeDocuments appends every YAML document in data to cfg. The first
// version and non-zero engine settings seen win.
func mergeDocuments(cfg *Catalog, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for n := 0; ; n++ {
		var doc document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("document %d: %w", n, err)
		}
		if cfg.Version == "" {
			cfg.Version = doc.Version
		}
		if cfg.Engine.Workers == 0 {
			cfg.Engine.Workers = doc.Engine.Workers
		}
		switch {
		case len(doc.Rules) > 0 && doc.ID != "":
			return fmt.Errorf("document %d: holds both a rules list and an inline rule", n)
		case len(doc.Rules) > 0:
			cfg.Rules = append(cfg.Rules, doc.Rules...)
		case doc.ID != "":
			cfg.Rules = append(cfg.Rules, doc.RuleSpec)
		}
	}
}
