// kbresctl is the control CLI for kbres keyboard resources.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"kbres/internal/assets"
	"kbres/internal/config"
	"kbres/internal/logging"
	"kbres/internal/resource"
	"kbres/internal/settings"
	"kbres/internal/storage"
)

// Version is set at build time.
var Version = "dev"

// errUsage marks a command invoked with the wrong arguments.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kbresctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() < 1 {
		usage(stderr)
		return 1
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "help":
		usage(stdout)
		return 0
	case "version":
		fmt.Fprintf(stdout, "kbresctl %s\n", Version)
		return 0
	}

	a, err := newApp(*configPath, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	if *verbose {
		a.log.SetLevel(logging.LevelDebug)
	}
	// Log records and audit events of one invocation share a request ID.
	ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())

	switch cmd {
	case "resolve":
		err = a.cmdResolve(ctx, rest)
	case "list":
		err = a.cmdList(ctx, rest)
	case "import":
		err = a.cmdImport(ctx, rest)
	case "build-dict":
		err = a.cmdBuildDict(rest)
	case "build-all":
		err = a.cmdBuildAll(ctx, rest)
	case "edit-variation":
		err = a.cmdEditVariation(ctx, rest)
	case "reset":
		err = a.cmdReset(ctx, rest)
	case "prefs":
		err = a.cmdPrefs(ctx, rest)
	case "watch":
		err = a.cmdWatch(ctx)
	case "config":
		err = a.cmdConfig(rest)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		usage(stderr)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Usage: kbresctl %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `kbresctl - Keyboard resource utility

Usage: kbresctl [options] <command> [args]

Commands:
  resolve <class> [name]            Resolve a resource (override first, then bundled)
  list <class>                      List available resource names
  import <path|file://uri> [name]   Import a dictionary into the override store
  build-dict <in> <out.dict>        Build an index from a word list or upgrade a .dict
  build-all <src-dir> [dst-dir]     Build every <lang>_base.json in src-dir
  edit-variation <table> <letter> <index> [glyph]
                                    Edit one variation slot (empty glyph deletes)
  reset <class> <name>              Remove a user override
  prefs [<class> on|off|select <name>|unselect]
                                    Show or change preferences
  watch                             Report override changes until interrupted
  config [init]                     Print the effective configuration
  version                           Show version
  help                              Show this help message

Classes: layout, symbols, variations, emoji, dictionary

Options:
  -config <path>  Path to config file (default: platform config dir)
  -v              Debug logging`)
}

// app holds the collaborators every command works with.
type app struct {
	cfg        *config.Config
	configPath string
	out        io.Writer
	log        *logging.Logger
	audit      *logging.AuditLogger
	prefs      *settings.Store
	overrides  *storage.Overrides
	resolver   *resource.Resolver

	levelMu sync.Mutex
	level   string // last log level applied, for config change audits
}

func newApp(configPath string, stdout, stderr io.Writer) (*app, error) {
	if configPath == "" {
		configPath = config.ConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	log, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, configPath: configPath, out: stdout, log: log, level: cfg.Logging.Level}

	auditCfg := logging.DefaultAuditConfig()
	auditCfg.FilePath = filepath.Join(filepath.Dir(cfg.Settings.Path), "audit.log")
	if a.audit, err = logging.NewAuditLogger(auditCfg); err != nil {
		log.Warn("audit log disabled", "error", err)
	}

	if a.prefs, err = settings.Open(cfg.Settings.Path); err != nil {
		a.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}
	if a.overrides, err = storage.NewOverrides(cfg.Resources.OverrideDir); err != nil {
		a.Close()
		return nil, err
	}

	var bundled storage.Source = assets.Store()
	if cfg.Resources.BundledDir != "" {
		bundled = storage.NewBundledDir(cfg.Resources.BundledDir)
	}

	a.resolver = resource.NewResolver(resource.Options{
		Bundled:   bundled,
		Overrides: a.overrides,
		Prefs:     a.prefs,
		Logger:    log.Logger,
	})
	return a, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "kbresctl",
	}
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stderr" {
		lc.Writer = stderr
	}

	l, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logging.SetDefault(l)
	return l, nil
}

func (a *app) Close() {
	if a.prefs != nil {
		a.prefs.Close()
	}
	if a.audit != nil {
		a.audit.Close()
	}
	a.log.Close()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
