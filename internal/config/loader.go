package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// codec reads and writes one config file encoding.
type codec struct {
	name   string
	decode func(data []byte, cfg *Config) error
	encode func(cfg *Config) ([]byte, error)
}

var (
	tomlCodec = codec{
		name: "TOML",
		decode: func(data []byte, cfg *Config) error {
			_, err := toml.Decode(string(data), cfg)
			return err
		},
		encode: encodeToTOML,
	}
	jsonCodec = codec{
		name:   "JSON",
		decode: func(data []byte, cfg *Config) error { return json.Unmarshal(data, cfg) },
		encode: func(cfg *Config) ([]byte, error) { return json.MarshalIndent(cfg, "", "  ") },
	}
	yamlCodec = codec{
		name:   "YAML",
		decode: func(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) },
		encode: func(cfg *Config) ([]byte, error) { return yaml.Marshal(cfg) },
	}
)

// codecsFor returns the encodings to try for path, in order. A file without
// a known extension is sniffed: an object is JSON, anything else is tried
// as TOML and then YAML.
func codecsFor(path string, data []byte) ([]codec, error) {
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		return []codec{tomlCodec}, nil
	case ".json":
		return []codec{jsonCodec}, nil
	case ".yaml", ".yml":
		return []codec{yamlCodec}, nil
	case "":
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			return []codec{jsonCodec}, nil
		}
		return []codec{tomlCodec, yamlCodec}, nil
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .toml, .json or .yaml)", ext)
	}
}

// readConfig decodes the file at path over the defaults. A missing file
// yields the defaults.
func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	codecs, err := codecsFor(path, data)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, c := range codecs {
		cfg := DefaultConfig()
		if err := c.decode(data, cfg); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", c.name, err))
			continue
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
}

// SaveConfig writes cfg to path in the encoding its extension names, TOML
// when it names none.
func SaveConfig(cfg *Config, path string) error {
	c := tomlCodec
	switch filepath.Ext(path) {
	case ".json":
		c = jsonCodec
	case ".yaml", ".yml":
		c = yamlCodec
	}
	data, err := c.encode(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

const defaultReloadDebounce = 100 * time.Millisecond

// Loader keeps the configuration of a long-running command current while
// its file changes on disk. A reload that fails to decode or validate is
// reported on Errors and the previous configuration stays in effect.
type Loader struct {
	path string

	mu       sync.RWMutex
	current  *Config
	debounce time.Duration
	onChange []func(old, cur *Config)

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	errs      chan error
}

// NewLoader returns a loader for the file at path.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	return &Loader{
		path:     path,
		debounce: defaultReloadDebounce,
		done:     make(chan struct{}),
		errs:     make(chan error, 1),
	}
}

// load reads, resolves and validates the file.
func (l *Loader) load() (*Config, error) {
	cfg, err := readConfig(l.path)
	if err != nil {
		return nil, err
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	return cfg, nil
}

// Load reads the file and makes it the current configuration. The watch
// debounce follows the loaded watch.debounce_ms.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	if d := cfg.DebounceInterval(); d > 0 {
		l.debounce = d
	}
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the current configuration, nil before the first Load.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers fn to run after every successful reload with the
// previous and the new configuration.
func (l *Loader) OnChange(fn func(old, cur *Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

// Watch starts reloading the file whenever it is written or replaced. The
// containing directory is watched so editors that save by rename are seen.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}
	l.watcher = w
	go l.loop()
	return nil
}

func (l *Loader) loop() {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-l.done:
			return

		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(l.path) || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l.mu.RLock()
			d := l.debounce
			l.mu.RUnlock()
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Reset(d)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			l.reload()

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	cfg, err := l.load()
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	old := l.current
	l.current = cfg
	callbacks := append([]func(old, cur *Config){}, l.onChange...)
	l.mu.Unlock()

	for _, fn := range callbacks {
		fn(old, cfg)
	}
}

// report delivers err without blocking; a full channel drops it.
func (l *Loader) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Errors delivers watch and reload failures.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

// Close stops watching. It is safe to call more than once.
func (l *Loader) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}
