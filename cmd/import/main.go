// Command import loads members and inventory from CSV files, replacing the
// current contents of each table it is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-booking/internal/adapter/storage"
	"github.com/rl1809/inventory-booking/internal/config"
	"github.com/rl1809/inventory-booking/internal/core/importer"
	"github.com/rl1809/inventory-booking/internal/obs"
	"github.com/rl1809/inventory-booking/migrations"
)

func main() {
	membersPath := flag.String("members", "", "path to members CSV")
	inventoryPath := flag.String("inventory", "", "path to inventory CSV")
	flag.Parse()

	if *membersPath == "" && *inventoryPath == "" {
		fmt.Fprintln(os.Stderr, "usage: import [-members members.csv] [-inventory inventory.csv]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, logger, *membersPath, *inventoryPath); err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, membersPath, inventoryPath string) error {
	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, storage.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := migrations.Apply(ctx, db); err != nil {
			return err
		}
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	im := importer.New(importer.Repositories{
		Tx:        mysqlAdapter,
		Reset:     mysqlAdapter,
		Members:   mysqlAdapter,
		Inventory: mysqlAdapter,
	}, logger)

	if membersPath != "" {
		if err := importFile(ctx, membersPath, im.ImportMembers); err != nil {
			return err
		}
	}
	if inventoryPath != "" {
		if err := importFile(ctx, inventoryPath, im.ImportInventory); err != nil {
			return err
		}
	}
	return nil
}

func importFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := load(ctx, f); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	return nil
}
