package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-runewidth"
	"github.com/spboyer/wpbench/internal/database"
	"github.com/spboyer/wpbench/internal/guard"
	"github.com/spboyer/wpbench/internal/projectconfig"
	"github.com/spboyer/wpbench/internal/registry"
	"github.com/spboyer/wpbench/internal/store"
	"github.com/spf13/cobra"
)

// app holds the services a command opens from the project configuration.
// Everything opened is released by Close.
type app struct {
	cfg     *projectconfig.ProjectConfig
	db      *database.DB
	reg     *registry.Registry
	results *store.ResultStore
	closers []func() error
}

// newApp loads the configuration named by --config, or the nearest
// .wpbench.yaml above the working directory.
func newApp(cmd *cobra.Command) (*app, error) {
	var path string
	if f := cmd.Flags().Lookup("config"); f != nil {
		path = f.Value.String()
	}

	var (
		cfg *projectconfig.ProjectConfig
		err error
	)
	if path != "" {
		cfg, err = projectconfig.LoadFile(path)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			cfg, err = projectconfig.Load(wd)
		}
	}
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		slog.Debug("Loaded configuration", "path", cfg.Source)
	}
	return &app{cfg: cfg}, nil
}

// openDatabase opens the benchmark target and seeds the read-test fixtures.
func (a *app) openDatabase(ctx context.Context) (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	dbCfg := a.cfg.Database
	if dbCfg.Driver == database.DriverSQLite && isSQLitePath(dbCfg.DSN) {
		dbCfg.DSN = a.cfg.Resolve(dbCfg.DSN)
		if err := os.MkdirAll(filepath.Dir(dbCfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := database.Open(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureFixtures(ctx, db, a.cfg.FixtureSize()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("preparing fixtures: %w", err)
	}

	a.db = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

// isSQLitePath reports whether dsn names a plain database file, as opposed
// to an in-memory database or a file: URI.
func isSQLitePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

// openRegistry builds the test registry. A nil db leaves the database tests
// unable to run; they report that in their results.
func (a *app) openRegistry(db *database.DB) *registry.Registry {
	if a.reg != nil {
		return a.reg
	}

	a.reg = registry.New(registry.Deps{
		DB:            db,
		Guard:         guard.New(a.cfg.Guard),
		TempDir:       a.cfg.Resolve(a.cfg.Paths.Temp),
		MemoryLimitMB: a.cfg.MemoryLimitMB,
		Params:        a.cfg.Params(),
	})
	a.closers = append(a.closers, a.reg.Close)
	return a.reg
}

// openStore opens the configured result store backend.
func (a *app) openStore(ctx context.Context) (*store.ResultStore, error) {
	if a.results != nil {
		return a.results, nil
	}

	var (
		meta store.MetaStore
		err  error
	)
	switch a.cfg.Store.Backend {
	case projectconfig.StoreFile:
		compress := a.cfg.Store.Compress != nil && *a.cfg.Store.Compress
		meta = store.NewFileMetaStore(a.cfg.Resolve(a.cfg.Paths.Results), compress)
	case projectconfig.StoreSQL:
		var db *database.DB
		if db, err = a.openDatabase(ctx); err == nil {
			meta, err = store.NewSQLMetaStore(ctx, db)
		}
	case projectconfig.StoreBlob:
		meta, err = store.NewBlobMetaStore(ctx, a.cfg.Store.Blob)
	default:
		err = fmt.Errorf("unknown store backend %q (supported: file, sql, blob)", a.cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening result store: %w", err)
	}

	a.results = store.New(meta, store.WithMemoTTL(a.cfg.Store.MemoTTL))
	return a.results, nil
}

// names maps test ids to display names.
func (a *app) names() map[string]string {
	names := map[string]string{}
	for _, d := range a.openRegistry(a.db).Available() {
		names[d.ID] = d.Name
	}
	return names
}

// Close releases everything the app opened, newest first.
func (a *app) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func truncateName(name string, maxLen int) string {
	return runewidth.Truncate(name, maxLen, "…")
}
