package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KBRES_DATA_DIR", dir)
	for _, v := range []string{"KBRES_OVERRIDE_DIR", "KBRES_BUNDLED_DIR", "KBRES_SETTINGS_PATH", "KBRES_LOG_LEVEL", "KBRES_LOG_PATH", "KBRES_MAX_IMPORT_BYTES"} {
		t.Setenv(v, "")
	}
	return dir
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	dir := isolate(t)
	cfg := DefaultConfig()

	if cfg.Resources.OverrideDir != filepath.Join(dir, "overrides") {
		t.Errorf("unexpected override dir: %s", cfg.Resources.OverrideDir)
	}
	if cfg.Settings.Path != filepath.Join(dir, "settings.db") {
		t.Errorf("unexpected settings path: %s", cfg.Settings.Path)
	}
	if cfg.Resources.BundledDir != "" {
		t.Errorf("bundled dir should default to embedded assets, got %s", cfg.Resources.BundledDir)
	}
	if cfg.Dictionary.MaxImportBytes != 64*1024*1024 {
		t.Errorf("expected 64MB import limit, got %d", cfg.Dictionary.MaxImportBytes)
	}
	if cfg.Dictionary.MaxEditDistance != 2 || cfg.Dictionary.PrefixLength != 4 {
		t.Errorf("unexpected build defaults: %+v", cfg.Dictionary)
	}
	if cfg.DebounceInterval() != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", cfg.DebounceInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "kbres") {
		t.Errorf("config path should contain kbres: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	isolate(t)
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dictionary.MaxWords != 20000 {
		t.Errorf("expected default max words, got %d", cfg.Dictionary.MaxWords)
	}
}

func TestLoadFormats(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		content string
	}{
		{"config.toml", `
[resources]
override_dir = "/custom/overrides"

[dictionary]
max_words = 500
build_jobs = 2
`},
		{"config.json", `{"resources": {"override_dir": "/custom/overrides"}, "dictionary": {"max_words": 500, "build_jobs": 2}}`},
		{"config.yaml", `
resources:
  override_dir: /custom/overrides
dictionary:
  max_words: 500
  build_jobs: 2
`},
		{"config", `{"resources": {"override_dir": "/custom/overrides"}, "dictionary": {"max_words": 500, "build_jobs": 2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.name, tt.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Resources.OverrideDir != "/custom/overrides" {
				t.Errorf("expected /custom/overrides, got %s", cfg.Resources.OverrideDir)
			}
			if cfg.Dictionary.MaxWords != 500 || cfg.Dictionary.BuildJobs != 2 {
				t.Errorf("unexpected dictionary config: %+v", cfg.Dictionary)
			}
			// Unset fields keep defaults.
			if cfg.Dictionary.PrefixLength != 4 {
				t.Errorf("expected default prefix length, got %d", cfg.Dictionary.PrefixLength)
			}
		})
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	isolate(t)
	if _, err := Load(writeConfig(t, "config.toml", "this is not valid toml {{{")); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("KBRES_OVERRIDE_DIR", "/env/overrides")
	t.Setenv("KBRES_LOG_LEVEL", "debug")
	t.Setenv("KBRES_MAX_IMPORT_BYTES", "2048")

	cfg, err := Load(writeConfig(t, "config.toml", "[logging]\nlevel = \"error\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Resources.OverrideDir != "/env/overrides" {
		t.Errorf("env should win over defaults, got %s", cfg.Resources.OverrideDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("env should win over file, got %s", cfg.Logging.Level)
	}
	if cfg.Dictionary.MaxImportBytes != 2048 {
		t.Errorf("expected 2048, got %d", cfg.Dictionary.MaxImportBytes)
	}
}

func TestExpandPaths(t *testing.T) {
	isolate(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := DefaultConfig()
	cfg.Resources.OverrideDir = "~/kb/overrides"
	cfg.ExpandPaths()
	if cfg.Resources.OverrideDir != filepath.Join(home, "kb", "overrides") {
		t.Errorf("unexpected expansion: %s", cfg.Resources.OverrideDir)
	}
}

func TestValidateErrors(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	cfg.Resources.OverrideDir = ""
	cfg.Resources.BundledDir = "/nonexistent/bundled"
	cfg.Dictionary.MaxImportBytes = 10
	cfg.Dictionary.PrefixLength = 0
	cfg.Settings.Path = ""
	cfg.Logging.Level = "verbose"
	cfg.Logging.Output = "syslog"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("validation errors should match ErrInvalidConfig")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	want := []string{
		"resources.override_dir",
		"resources.bundled_dir",
		"dictionary.max_import_bytes",
		"dictionary.prefix_length",
		"settings.path",
		"logging.level",
		"logging.output",
	}
	var got []string
	for _, e := range verrs {
		got = append(got, e.Field)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected fields %v, got %v", want, got)
	}
}

func TestValidateWatchDebounce(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	cfg.Watch.DebounceMs = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("debounce is not checked while watching is disabled: %v", err)
	}
	cfg.Watch.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for 1ms debounce")
	}
}

func TestValidateBundledDirSameAsOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Resources.BundledDir = dir
	cfg.Resources.OverrideDir = dir
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when bundled and override dirs coincide")
	}
}

func TestEnsureDirectories(t *testing.T) {
	isolate(t)
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Resources.OverrideDir = filepath.Join(tmpDir, "a", "overrides")
	cfg.Settings.Path = filepath.Join(tmpDir, "b", "settings.db")
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(tmpDir, "c", "kbres.log")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{"a/overrides", "b", "c"} {
		if _, err := os.Stat(filepath.Join(tmpDir, dir)); err != nil {
			t.Errorf("%s was not created", dir)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	isolate(t)
	for _, name := range []string{"out.toml", "out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Dictionary.MaxWords = 1234
			cfg.Watch.Enabled = true
			path := filepath.Join(t.TempDir(), name)

			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Dictionary.MaxWords != 1234 || !loaded.Watch.Enabled {
				t.Errorf("round trip lost values: %+v %+v", loaded.Dictionary, loaded.Watch)
			}
		})
	}
}

func TestLoadFormatSniffing(t *testing.T) {
	isolate(t)

	cfg, err := Load(writeConfig(t, "kbresrc", "[dictionary]\nmax_words = 7\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dictionary.MaxWords != 7 {
		t.Errorf("expected TOML without extension to load, got %d", cfg.Dictionary.MaxWords)
	}

	cfg, err = Load(writeConfig(t, "kbresrc", "dictionary:\n  max_words: 8\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dictionary.MaxWords != 8 {
		t.Errorf("expected YAML without extension to load, got %d", cfg.Dictionary.MaxWords)
	}

	if _, err := Load(writeConfig(t, "config.ini", "max_words=1")); err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestLoaderWatchReload(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "config.toml", "[dictionary]\nmax_words = 10\n")

	l := NewLoader(path)
	defer l.Close()
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dictionary.MaxWords != 10 {
		t.Fatalf("expected 10, got %d", cfg.Dictionary.MaxWords)
	}

	type change struct{ old, cur *Config }
	changed := make(chan change, 1)
	l.OnChange(func(old, cur *Config) {
		select {
		case changed <- change{old, cur}:
		default:
		}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("[dictionary]\nmax_words = 99\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case c := <-changed:
		if c.old.Dictionary.MaxWords != 10 || c.cur.Dictionary.MaxWords != 99 {
			t.Errorf("expected 10 -> 99, got %d -> %d", c.old.Dictionary.MaxWords, c.cur.Dictionary.MaxWords)
		}
		if l.Config().Dictionary.MaxWords != 99 {
			t.Error("loader should expose the reloaded config")
		}
	case err := <-l.Errors():
		t.Fatalf("reload error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestLoaderKeepsConfigOnInvalidReload(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "config.toml", "[dictionary]\nmax_words = 10\n")

	l := NewLoader(path)
	defer l.Close()
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	called := make(chan struct{}, 1)
	l.OnChange(func(_, _ *Config) {
		select {
		case called <- struct{}{}:
		default:
		}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"verbose\"\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case err := <-l.Errors():
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	case <-called:
		t.Fatal("invalid config must not be applied")
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload error")
	}
	if l.Config().Dictionary.MaxWords != 10 {
		t.Errorf("previous config should stay in effect, got %d", l.Config().Dictionary.MaxWords)
	}

	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
