package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"kbres/internal/config"
	"kbres/internal/decode"
	"kbres/internal/dictionary"
	"kbres/internal/logging"
	"kbres/internal/resource"
	"kbres/internal/settings"
	"kbres/internal/storage"
	"kbres/internal/tables"
	"kbres/internal/watcher"
)

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

func (a *app) buildOptions() dictionary.BuildOptions {
	return dictionary.BuildOptions{
		MaxEditDistance: a.cfg.Dictionary.MaxEditDistance,
		PrefixLength:    a.cfg.Dictionary.PrefixLength,
		MaxWords:        a.cfg.Dictionary.MaxWords,
	}
}

// selected returns the preferred resource name for class, if one is set.
func (a *app) selected(ctx context.Context, class resource.Class) (string, error) {
	name, ok, err := a.prefs.Get(ctx, settings.SelectedKey(string(class)))
	if err != nil {
		return "", err
	}
	if !ok || name == "" {
		return "", fmt.Errorf("no %s selected; pass a name or run: kbresctl prefs %s select <name>", class, class)
	}
	return name, nil
}

func (a *app) cmdResolve(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageErr("resolve <class> [name]")
	}
	class, err := resource.ParseClass(args[0])
	if err != nil {
		return err
	}
	var name string
	if len(args) == 2 {
		name = args[1]
	} else if name, err = a.selected(ctx, class); err != nil {
		return err
	}

	var (
		table  tables.Table
		origin resource.Origin
		rep    decode.Report
	)
	switch class {
	case resource.Layout:
		res, err := a.resolver.Layout(ctx, name)
		if err != nil {
			return err
		}
		table, origin, rep = res.Table, res.Origin, res.Report
	case resource.Symbols:
		res, err := a.resolver.Symbols(ctx, name)
		if err != nil {
			return err
		}
		table, origin, rep = res.Table, res.Origin, res.Report
	case resource.Variations:
		res, err := a.resolver.Variations(ctx, name)
		if err != nil {
			return err
		}
		table, origin, rep = res.Table, res.Origin, res.Report
	case resource.Emoji:
		res, err := a.resolver.EmojiCategory(ctx, name)
		if err != nil {
			return err
		}
		table, origin, rep = res.Table, res.Origin, res.Report
	case resource.Dictionary:
		res, err := a.resolver.Dictionary(ctx, name)
		if err != nil {
			return err
		}
		table, origin, rep = res.Table, res.Origin, res.Report
	}

	a.printf("%s %q from %s: %d entries\n", class, name, origin, table.Len())
	if !rep.Clean() {
		a.printf("  skipped %d (unknown keys %d, duplicates %d)\n", rep.Skipped, rep.UnknownKeys, rep.Duplicates)
		if len(rep.UnknownFields) > 0 {
			a.printf("  unknown fields: %s\n", strings.Join(rep.UnknownFields, ", "))
		}
	}
	a.describe(table)
	return nil
}

func (a *app) describe(table tables.Table) {
	switch t := table.(type) {
	case *tables.Layout:
		for _, e := range t.Entries() {
			if e.Spec.IsAction() {
				a.printf("  %-16s [%s]\n", e.Code, e.Spec.Action)
				continue
			}
			a.printf("  %-16s %q", e.Code, e.Spec.DisplayLabel())
			if len(e.Spec.LongPress) > 0 {
				a.printf(" long-press %s", strings.Join(e.Spec.LongPress, " "))
			}
			a.printf("\n")
		}
	case *tables.Symbols:
		for _, code := range t.Codes() {
			sym, _ := t.Symbol(code)
			a.printf("  %-16s %s\n", code, sym)
		}
	case *tables.Variations:
		for _, letter := range t.Letters() {
			a.printf("  %s: %s\n", letter, strings.Join(t.Get(letter), " "))
		}
	case *tables.EmojiCategory:
		for _, e := range t.Entries() {
			if e.HasVariants() {
				a.printf("  %s (%s)\n", e.Base, strings.Join(e.Variants, " "))
			} else {
				a.printf("  %s\n", e.Base)
			}
		}
	case *dictionary.Index:
		a.printf("  %s words, %s terms\n", humanize.Comma(int64(t.WordCount())), humanize.Comma(int64(t.Len())))
	}
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErr("list <class>")
	}
	class, err := resource.ParseClass(args[0])
	if err != nil {
		return err
	}
	names, err := a.resolver.ListAvailable(ctx, class)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		a.printf("No %s resources available.\n", class)
		return nil
	}
	selected, _, _ := a.prefs.Get(ctx, settings.SelectedKey(string(class)))
	for _, name := range names {
		var marks []string
		if a.overrides.Exists(class.Dir(), class.FileName(name)) {
			marks = append(marks, "override")
		}
		if strings.EqualFold(name, selected) {
			marks = append(marks, "selected")
		}
		if len(marks) > 0 {
			a.printf("%s (%s)\n", name, strings.Join(marks, ", "))
		} else {
			a.printf("%s\n", name)
		}
	}
	return nil
}

func (a *app) cmdImport(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageErr("import <path|file://uri> [name]")
	}
	uri := args[0]
	name := dictionary.DisplayName(uri)
	if len(args) == 2 {
		name = args[1]
	}

	validator, err := dictionary.NewValidator(a.cfg.Dictionary.MaxImportBytes)
	if err != nil {
		return err
	}
	importer := dictionary.NewImporter(a.overrides, validator, a.log.Logger)

	res := importer.ImportURI(ctx, uri, name)

	// The audit entry carries the import ID the pipeline logged under.
	actx := logging.ContextWithRequestID(ctx, res.ID.String())
	if aerr := a.audit.LogImport(actx, name, res.Status.String(), res.Digest, res.Size, res.Err); aerr != nil {
		a.log.Warn("audit write failed", "error", aerr)
	}

	if !res.OK() {
		return fmt.Errorf("import %s: %s: %w", name, res.Status, res.Err)
	}
	a.printf("Imported %s (%s): %s words, %s\n", res.FileName, res.Language,
		humanize.Comma(int64(res.Words)), humanize.IBytes(uint64(res.Size)))
	a.printf("  digest %s\n", res.Digest)
	return nil
}

func (a *app) cmdBuildDict(args []string) error {
	if len(args) != 2 {
		return usageErr("build-dict <in.json|in.dict> <out.dict>")
	}
	idx, err := dictionary.BuildFile(args[0], a.buildOptions())
	if err != nil {
		return err
	}
	data, err := dictionary.Encode(idx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[1], data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", args[1], err)
	}
	a.printf("Wrote %s: %s words, %s\n", args[1],
		humanize.Comma(int64(idx.WordCount())), humanize.IBytes(uint64(len(data))))
	return nil
}

func (a *app) cmdBuildAll(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageErr("build-all <src-dir> [dst-dir]")
	}
	dst := a.overrides
	if len(args) == 2 {
		var err error
		if dst, err = storage.NewOverrides(args[1]); err != nil {
			return err
		}
	}

	results, err := dictionary.BuildAll(ctx, args[0], dst, a.buildOptions(), a.cfg.Dictionary.BuildJobs)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			a.printf("  %-6s FAILED: %v\n", r.Language, r.Err)
			continue
		}
		a.printf("  %-6s %s words, %s -> %s\n", r.Language, humanize.Comma(int64(r.Words)),
			humanize.IBytes(uint64(r.Written.Size)), dst.Path(dictionary.Dir, r.Written.Name))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d languages failed", failed, len(results))
	}
	return nil
}

func (a *app) cmdEditVariation(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return usageErr("edit-variation <table> <letter> <index> [glyph]")
	}
	index, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[2])
	}
	glyph := ""
	if len(args) == 4 {
		glyph = args[3]
	}

	next, err := a.resolver.EditVariation(ctx, args[0], args[1], index, glyph)
	if err != nil {
		return err
	}
	if next.Len() == 0 {
		err = a.audit.LogOverrideReset(ctx, string(resource.Variations), args[0])
	} else {
		err = a.audit.LogOverrideWrite(ctx, string(resource.Variations), args[0], int64(next.Len()))
	}
	if err != nil {
		a.log.Warn("audit write failed", "error", err)
	}

	letters := next.Letters()
	if !slices.Contains(letters, args[1]) {
		a.printf("%s: %s removed\n", args[0], args[1])
		return nil
	}
	a.printf("%s: %s = %s\n", args[0], args[1], strings.Join(next.Get(args[1]), " "))
	return nil
}

func (a *app) cmdReset(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageErr("reset <class> <name>")
	}
	class, err := resource.ParseClass(args[0])
	if err != nil {
		return err
	}
	if err := a.resolver.ResetOverride(ctx, class, args[1]); err != nil {
		return err
	}
	if err := a.audit.LogOverrideReset(ctx, string(class), args[1]); err != nil {
		a.log.Warn("audit write failed", "error", err)
	}
	a.printf("Reset %s %q\n", class, args[1])
	return nil
}

func (a *app) cmdPrefs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		stored, err := a.prefs.All(ctx)
		if err != nil {
			return err
		}
		for _, class := range resource.Classes() {
			enabled, err := a.prefs.OverridesEnabled(ctx, string(class))
			if err != nil {
				return err
			}
			state := "on"
			if !enabled {
				state = "off"
			}
			line := fmt.Sprintf("%-11s overrides %s", class, state)
			if sel, ok := stored[settings.SelectedKey(string(class))]; ok {
				line += ", selected " + sel
			}
			a.printf("%s\n", line)
		}
		return nil
	}

	if len(args) < 2 {
		return usageErr("prefs [<class> on|off|select <name>|unselect]")
	}
	class, err := resource.ParseClass(args[0])
	if err != nil {
		return err
	}

	switch args[1] {
	case "on", "off":
		old, _ := a.prefs.OverridesEnabled(ctx, string(class))
		enabled := args[1] == "on"
		if err := a.prefs.SetOverridesEnabled(ctx, string(class), enabled); err != nil {
			return err
		}
		if err := a.audit.LogPreferenceChange(ctx, "overrides."+string(class), strconv.FormatBool(old), strconv.FormatBool(enabled)); err != nil {
			a.log.Warn("audit write failed", "error", err)
		}
		a.printf("%s overrides %s\n", class, args[1])
	case "select":
		if len(args) != 3 {
			return usageErr("prefs <class> select <name>")
		}
		key := settings.SelectedKey(string(class))
		old, _, _ := a.prefs.Get(ctx, key)
		if err := a.prefs.Set(ctx, key, args[2]); err != nil {
			return err
		}
		if err := a.audit.LogPreferenceChange(ctx, key, old, args[2]); err != nil {
			a.log.Warn("audit write failed", "error", err)
		}
		a.printf("%s selected %s\n", class, args[2])
	case "unselect":
		key := settings.SelectedKey(string(class))
		old, ok, _ := a.prefs.Get(ctx, key)
		if !ok {
			a.printf("%s has no selection\n", class)
			return nil
		}
		if err := a.prefs.Delete(ctx, key); err != nil {
			return err
		}
		if err := a.audit.LogPreferenceChange(ctx, key, old, ""); err != nil {
			a.log.Warn("audit write failed", "error", err)
		}
		a.printf("%s selection cleared\n", class)
	default:
		return usageErr("prefs [<class> on|off|select <name>|unselect]")
	}
	return nil
}

func (a *app) cmdWatch(ctx context.Context) error {
	w, err := watcher.New(watcher.Config{
		BaseDir:  a.overrides.BaseDir(),
		Debounce: a.cfg.DebounceInterval(),
		Logger:   a.log.Logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	defer w.Stop()

	// Hot reload changes the log level without restarting.
	loader := config.NewLoader(a.configPath)
	defer loader.Close()
	if !a.cfg.Watch.Enabled {
		a.log.Debug("config hot reload disabled")
	} else if _, err := loader.Load(); err == nil {
		loader.OnChange(func(_, cfg *config.Config) { a.applyLogLevel(ctx, cfg) })
		if err := loader.Watch(); err != nil {
			a.log.Debug("config hot reload unavailable", "error", err)
		}
	}

	a.printf("Watching %s (Ctrl-C to stop)\n", a.overrides.BaseDir())
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-w.Events():
			if !ok {
				return nil
			}
			if c.Removed {
				a.printf("%s %s removed\n", c.Class, c.Name)
				continue
			}
			a.printf("%s %s changed (%s, %s)\n", c.Class, c.Name, humanize.IBytes(uint64(c.Size)), shortDigest(c.Digest))
			if _, _, err := a.resolver.Resolve(ctx, c.Class, c.Name); err != nil && !errors.Is(err, resource.ErrNotFound) {
				a.printf("  warning: %v\n", err)
			}
		case err, ok := <-w.Errors():
			if ok {
				a.log.Warn("watch error", "error", err)
			}
		case err := <-loader.Errors():
			a.log.Warn("config reload failed", "error", err)
		}
	}
}

// applyLogLevel switches to the log level of a reloaded config. Only real
// changes are audited, against the level applied last.
func (a *app) applyLogLevel(ctx context.Context, cfg *config.Config) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		a.log.Warn("ignoring reloaded log level", "error", err)
		return
	}

	a.levelMu.Lock()
	defer a.levelMu.Unlock()
	if strings.EqualFold(a.level, cfg.Logging.Level) {
		return
	}
	if err := a.audit.LogConfigChange(ctx, "logging.level", a.level, cfg.Logging.Level); err != nil {
		a.log.Warn("audit write failed", "error", err)
	}
	a.log.SetLevel(level)
	a.level = cfg.Logging.Level
}

func (a *app) cmdConfig(args []string) error {
	switch {
	case len(args) == 0:
		a.printf("# %s\n%s", a.configPath, a.cfg.String())
		return nil
	case len(args) == 1 && args[0] == "init":
		if _, err := os.Stat(a.configPath); err == nil {
			return fmt.Errorf("%s already exists", a.configPath)
		}
		if err := config.SaveConfig(config.DefaultConfig(), a.configPath); err != nil {
			return err
		}
		a.printf("Wrote %s\n", a.configPath)
		return nil
	default:
		return usageErr("config [init]")
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
