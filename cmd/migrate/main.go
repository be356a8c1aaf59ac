package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/migrate"
	"github.com/joho/godotenv"
)

const usage = "up|down|pending|version|create|validate"

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory")
	useEmbedded := flag.Bool("embedded", false, "use the migrations compiled into the binary instead of -dir")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch files and work without any environment.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println(path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("invalid migrations: %v", err)
		}
		fmt.Println("ok")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"embedded": *useEmbedded,
	})
	if err := run(ctx, cfg, logg, *cmd, *dir, *useEmbedded, *version); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd, dir string, useEmbedded bool, version string) error {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	conn, err := client.DB().DB()
	if err != nil {
		return err
	}
	migrations, err := migrate.Source(dir, useEmbedded)
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(conn, migrations)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		if err := runner.Down(ctx); err != nil {
			return err
		}
		logg.Info(ctx, "rolled back one migration")
	case "pending":
		pending, err := runner.Pending(ctx)
		if err != nil {
			return err
		}
		for _, v := range pending {
			fmt.Println(v)
		}
	case "version":
		if version == "" {
			return fmt.Errorf("missing -version")
		}
		if err := runner.MigrateTo(ctx, version); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", version), "schema moved to version")
	default:
		return fmt.Errorf("unknown -cmd %q, want one of %s", cmd, usage)
	}
	return nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
