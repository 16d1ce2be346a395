package importer

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-booking/internal/port"
)

type Repositories struct {
	Tx        port.Transactor
	Reset     port.ImportRepository
	Members   port.MemberRepository
	Inventory port.InventoryRepository
}

// Importer replaces the member and inventory datasets from CSV files.
type Importer struct {
	repos  Repositories
	logger *zap.Logger
}

func New(repos Repositories, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{repos: repos, logger: logger}
}

// ImportMembers replaces all members with the CSV contents. Nothing is
// written unless every row parses.
func (im *Importer) ImportMembers(ctx context.Context, r io.Reader) (int, error) {
	members, err := ParseMembers(r)
	if err != nil {
		return 0, fmt.Errorf("parse members: %w", err)
	}

	err = im.repos.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := im.repos.Reset.ResetMembers(txCtx); err != nil {
			return fmt.Errorf("reset members: %w", err)
		}
		for _, m := range members {
			if _, err := im.repos.Members.CreateMember(txCtx, m); err != nil {
				return fmt.Errorf("create member %s: %w", m.FullName(), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	im.logger.Info("members imported", zap.Int("count", len(members)))
	return len(members), nil
}

// ImportInventory replaces all inventory items with the CSV contents.
func (im *Importer) ImportInventory(ctx context.Context, r io.Reader) (int, error) {
	items, err := ParseInventory(r)
	if err != nil {
		return 0, fmt.Errorf("parse inventory: %w", err)
	}

	err = im.repos.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := im.repos.Reset.ResetInventory(txCtx); err != nil {
			return fmt.Errorf("reset inventory: %w", err)
		}
		for _, item := range items {
			if _, err := im.repos.Inventory.CreateItem(txCtx, item); err != nil {
				return fmt.Errorf("create item %q: %w", item.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	im.logger.Info("inventory imported", zap.Int("count", len(items)))
	return len(items), nil
}
