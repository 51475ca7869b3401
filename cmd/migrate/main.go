package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/horologe/storefront-backend/internal/settings"
	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/migrate"
	"github.com/horologe/storefront-backend/pkg/money"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate|seed-settings")
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory (empty uses the migrations built into the binary)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(opts options) (err error) {
	sourceDir := opts.dir
	if sourceDir == "" {
		sourceDir = migrate.DefaultDir
	}

	// source tree commands run without config or a database
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(sourceDir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(sourceDir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		NoColor:     cfg.App.LogNoColor,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if opts.cmd == "seed-settings" {
		return seedSettings(ctx, logg, dbClient, money.Paise(cfg.Checkout.DefaultShippingPaise))
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql database: %w", err)
	}
	logg.Info(ctx, "migrate ready")
	return gooseCommand(ctx, logg, sqlDB, opts)
}

func gooseCommand(ctx context.Context, logg *logger.Logger, sqlDB *sql.DB, opts options) error {
	m, err := migrate.New(sqlDB, opts.dir)
	if err != nil {
		return err
	}
	var results []migrate.Result
	switch opts.cmd {
	case "up":
		results, err = m.Up(ctx)
	case "down":
		results, err = m.Down(ctx)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		results, err = m.To(ctx, opts.version)
	case "status":
		return printStatus(ctx, m, os.Stdout)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
	migrate.Log(ctx, logg, results)
	return err
}

func printStatus(ctx context.Context, m *migrate.Migrator, out io.Writer) error {
	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, applied, s.File)
	}
	return w.Flush()
}

// seedSettings writes the singleton settings rows with their current effective
// values, so a fresh database has explicit rows the back office can edit.
func seedSettings(ctx context.Context, logg *logger.Logger, client *db.Client, defaultShipping money.Paise) error {
	svc, err := settings.NewService(settings.NewRepository(client.DB()), defaultShipping)
	if err != nil {
		return err
	}
	methods, err := svc.Methods(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.UpdateMethods(ctx, methods); err != nil {
		return fmt.Errorf("seed payment settings: %w", err)
	}
	collection, err := svc.Collection(ctx)
	if err != nil {
		return err
	}
	shipping := collection.ShippingCharge
	if _, err := svc.UpdateCollection(ctx, settings.UpdateCollectionInput{
		CollectShippingUpfront:     collection.CollectShippingUpfront,
		CollectOtherChargesUpfront: collection.CollectOtherChargesUpfront,
		ShippingCharge:             &shipping,
	}); err != nil {
		return fmt.Errorf("seed collection settings: %w", err)
	}
	logg.Info(ctx, "settings seeded")
	return nil
}
