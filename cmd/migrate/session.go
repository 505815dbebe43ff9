package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/mirajehossain/migratex"
	"github.com/mirajehossain/migratex/internal/migrator"
)

var stdout io.Writer = os.Stdout

// withStore opens the store, holds the advisory lock while fn runs and
// releases both afterwards.
func withStore(ctx context.Context, fn func(context.Context, *migratex.Store) error) (err error) {
	if cfg.DSN == "" {
		return planErrorf("-dsn or DB_DSN is required")
	}
	uri, err := cfg.URI()
	if err != nil {
		return planErrorf("dsn: %v", err)
	}
	store, err := migratex.New(uri, storeConfig())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn("close failed", map[string]any{"error": cerr.Error()})
		}
	}()

	if err = store.Open(ctx); err != nil {
		log.Error("db open failed", map[string]any{"error": err.Error()})
		return err
	}
	if err = store.Lock(ctx); err != nil {
		log.Error("failed to acquire lock", map[string]any{"error": err.Error(), "key": store.LockID()})
		return err
	}
	defer func() {
		if uerr := store.Unlock(context.WithoutCancel(ctx)); uerr != nil {
			log.Warn("failed to release lock", map[string]any{"error": uerr.Error(), "key": store.LockID()})
		}
	}()

	return fn(ctx, store)
}

func storeConfig() migratex.Config {
	conf := migratex.Config{
		BaseVersion: cfg.BaseVersion,
		LockTimeout: cfg.LockTimeout(),
		Logger:      log.Slog(),
	}
	if by := strings.TrimSpace(cfg.AppliedBy); by != "" {
		conf.UserInfo = func() string { return by }
	}
	return conf
}

// planFor reads the migrations directory and the store's records. Problems
// with the files are plan errors; store failures keep their kind.
func planFor(ctx context.Context, store *migratex.Store) (*migrator.Plan, error) {
	src := migrator.FileSource{RootDir: cfg.Dir}
	plan, err := migrator.DiscoverAndPlan(ctx, src, store, store.BaseVersion())
	if err != nil {
		if migratex.KindOf(err) != migratex.KindUnknown {
			return nil, err
		}
		return nil, planErrorf("%v", err)
	}
	return plan, nil
}

// progressLogger logs each stage of a migration under prefix when -verbose
// is set.
func progressLogger(prefix string) migrator.Progress {
	return func(stage string, fp migrator.FilePair, err error) {
		if !globalArgs.Verbose {
			return
		}
		fields := map[string]any{"version": fp.Version, "name": fp.Name}
		if err != nil {
			fields["error"] = err.Error()
			log.Error(prefix+"."+stage, fields)
			return
		}
		log.Info(prefix+"."+stage, fields)
	}
}
