package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rafaelespinoza/alf"

	"github.com/mirajehossain/migratex"
	"github.com/mirajehossain/migratex/internal/migrator"
)

func makeCreate(name string) alf.Directive {
	var migrationName string
	// Scoped out here so Run can read a positional name.
	flags := newFlagSet(name)

	return &alf.Command{
		Description: "scaffold an up/down migration pair",
		Setup: func(p flag.FlagSet) *flag.FlagSet {
			flags.StringVar(&migrationName, "name", "", "label the migration, ie: create_users, add_email_index")
			flags.Usage = func() {
				fmt.Fprintf(flags.Output(), `Usage: %s [flags] %s [%s-flags] [name]

	Write <timestamp>_<name>.up.sql and <timestamp>_<name>.down.sql to the
	migrations directory. The timestamp layout is %s, UTC.
`, bin, name, name, versionLayout)
				printFlagDefaults(&p)
				printFlagDefaults(flags)
			}
			return flags
		},
		Run: func(_ context.Context) error {
			if migrationName == "" {
				migrationName = flags.Arg(0)
			}
			if migrationName == "" {
				return planErrorf("create requires a name")
			}
			up, down, err := createPair(cfg.Dir, migrationName)
			if err != nil {
				return err
			}
			log.Info("created migration pair", map[string]any{"dir": cfg.Dir, "up": up, "down": down})
			return nil
		},
	}
}

func makeUp(name string) alf.Directive {
	return &alf.Command{
		Description: "apply every pending migration",
		Setup: func(p flag.FlagSet) *flag.FlagSet {
			flags := newFlagSet(name)
			flags.Usage = func() {
				fmt.Fprintf(flags.Output(), `Usage: %s [flags] %s

	Apply pending migrations in version order, stopping at the first failure.
	Refuses to run while dirty records or checksum drift are present.
`, bin, name)
				printFlagDefaults(&p)
			}
			return flags
		},
		Run: func(ctx context.Context) error {
			return withStore(ctx, func(ctx context.Context, store *migratex.Store) error {
				plan, err := planFor(ctx, store)
				if err != nil {
					return err
				}
				if err = plan.Check(); err != nil {
					return err
				}
				if len(plan.Pending) == 0 {
					log.Info("no pending migrations", nil)
					return nil
				}
				if globalArgs.Verbose {
					for _, fp := range plan.Pending {
						log.Info("plan.apply", map[string]any{"version": fp.Version, "name": fp.Name, "checksum": fp.Checksum})
					}
				}

				runner := migrator.NewRunner(store, cfg.DryRun, progressLogger("migrate"))
				applied, err := runner.ApplyUp(ctx, plan.Pending)
				if err != nil {
					log.Error("up failed", map[string]any{"error": err.Error(), "applied": len(applied)})
					return err
				}
				log.Info("up complete", map[string]any{"applied": len(applied), "dry_run": cfg.DryRun})
				return nil
			})
		},
	}
}

func makeDown(name string) alf.Directive {
	var steps int
	var all bool

	return &alf.Command{
		Description: "roll back the most recently applied migrations",
		Setup: func(p flag.FlagSet) *flag.FlagSet {
			flags := newFlagSet(name)
			flags.IntVar(&steps, "steps", 1, "number of migrations to roll back")
			flags.BoolVar(&all, "all", false, "roll back every applied migration")
			flags.Usage = func() {
				fmt.Fprintf(flags.Output(), `Usage: %s [flags] %s [%s-flags]

	Run the down scripts of the most recently applied migrations, newest
	first. Each rollback is recorded as an undo.
`, bin, name, name)
				printFlagDefaults(&p)
				printFlagDefaults(flags)
			}
			return flags
		},
		Run: func(ctx context.Context) error {
			n := steps
			if all {
				n = -1
			} else if n <= 0 {
				return planErrorf("invalid steps %d", steps)
			}
			return withStore(ctx, func(ctx context.Context, store *migratex.Store) error {
				plan, err := planFor(ctx, store)
				if err != nil {
					return err
				}
				if err = plan.Check(); err != nil {
					return err
				}
				toRevert, err := plan.LastApplied(n)
				if err != nil {
					return planErrorf("%v", err)
				}
				if len(toRevert) == 0 {
					log.Info("nothing to roll back", nil)
					return nil
				}
				if globalArgs.Verbose {
					for _, fp := range toRevert {
						log.Info("plan.rollback", map[string]any{"version": fp.Version, "name": fp.Name})
					}
				}

				runner := migrator.NewRunner(store, cfg.DryRun, progressLogger("migrate.down"))
				reverted, err := runner.ApplyDown(ctx, toRevert)
				if err != nil {
					log.Error("down failed", map[string]any{"error": err.Error(), "reverted": len(reverted)})
					return err
				}
				log.Info("down complete", map[string]any{"reverted": len(reverted), "dry_run": cfg.DryRun})
				return nil
			})
		},
	}
}

func makeStatus(name string) alf.Directive {
	return &alf.Command{
		Description: "show applied, pending, drifted and dirty migrations",
		Setup: func(p flag.FlagSet) *flag.FlagSet {
			flags := newFlagSet(name)
			flags.Usage = func() {
				fmt.Fprintf(flags.Output(), `Usage: %s [flags] %s

	Compare the migrations directory with the bookkeeping table. Use the
	global -json flag for machine-readable output.
`, bin, name)
				printFlagDefaults(&p)
			}
			return flags
		},
		Run: func(ctx context.Context) error {
			return withStore(ctx, func(ctx context.Context, store *migratex.Store) error {
				plan, err := planFor(ctx, store)
				if err != nil {
					return err
				}
				return printStatus(stdout, plan, log.JSONEnabled())
			})
		},
	}
}

func makeRecords(name string) alf.Directive {
	var from int64

	return &alf.Command{
		Description: "list bookkeeping records",
		Setup: func(p flag.FlagSet) *flag.FlagSet {
			flags := newFlagSet(name)
			flags.Int64Var(&from, "from", 0, "first record id to list")
			flags.Usage = func() {
				fmt.Fprintf(flags.Output(), `Usage: %s [flags] %s [%s-flags]

	Print every record, failed attempts included, by id ascending.
`, bin, name, name)
				printFlagDefaults(&p)
				printFlagDefaults(flags)
			}
			return flags
		},
		Run: func(ctx context.Context) error {
			return withStore(ctx, func(ctx context.Context, store *migratex.Store) error {
				records, err := store.Records(ctx, from)
				if err != nil {
					return err
				}
				return printRecords(stdout, records, log.JSONEnabled())
			})
		},
	}
}

func makeRepair(name string) alf.Directive {
	return &alf.Command{
		Description: "purge dirty records and realign drifted checksums",
		Setup: func(p flag.FlagSet) *flag.FlagSet {
			flags := newFlagSet(name)
			flags.Usage = func() {
				fmt.Fprintf(flags.Output(), `Usage: %s [flags] %s

	Delete every dirty record and set the stored checksum of each drifted
	migration to that of its file. Use after fixing a failed migration by hand
	or after an intentional edit.
`, bin, name)
				printFlagDefaults(&p)
			}
			return flags
		},
		Run: func(ctx context.Context) error {
			return withStore(ctx, func(ctx context.Context, store *migratex.Store) error {
				plan, err := planFor(ctx, store)
				if err != nil {
					return err
				}
				runner := migrator.NewRunner(store, cfg.DryRun, nil)
				fixes, err := runner.Repair(ctx, plan)
				if err != nil {
					log.Error("repair failed", map[string]any{"error": err.Error()})
					return err
				}
				log.Info("repair complete", map[string]any{
					"purged":  len(plan.Dirty),
					"updated": len(fixes),
					"dry_run": cfg.DryRun,
				})
				return nil
			})
		},
	}
}

func makeDrop(name string) alf.Directive {
	var yes bool

	return &alf.Command{
		Description: "drop every table in the database",
		Setup: func(p flag.FlagSet) *flag.FlagSet {
			flags := newFlagSet(name)
			flags.BoolVar(&yes, "yes", false, "confirm dropping every table")
			flags.Usage = func() {
				fmt.Fprintf(flags.Output(), `Usage: %s [flags] %s -yes

	Drop every table in the target database, the bookkeeping table included.
`, bin, name)
				printFlagDefaults(&p)
				printFlagDefaults(flags)
			}
			return flags
		},
		Run: func(ctx context.Context) error {
			if !yes {
				return planErrorf("drop requires -yes")
			}
			if cfg.DryRun {
				log.Info("drop skipped", map[string]any{"dry_run": true})
				return nil
			}
			return withStore(ctx, func(ctx context.Context, store *migratex.Store) error {
				return store.Drop(ctx)
			})
		},
	}
}
