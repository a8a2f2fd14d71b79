package item

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/vkrpg/model"
)

var (
	ErrItemNotFound    = errors.New("item: not found")
	ErrInvalidQuantity = errors.New("item: quantity must be positive")
)

// ItemSpec describes units to grant. Type and Rarity fall back to
// material/common when blank.
type ItemSpec struct {
	Name     string
	Icon     string
	Quantity int
	Type     string
	Rarity   string
}

// InventoryService handles all bag operations.
type InventoryService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(db *gorm.DB, logger *zap.Logger) *InventoryService {
	return &InventoryService{db: db, logger: logger}
}

// List returns all inventory rows for playerID.
func (svc *InventoryService) List(ctx context.Context, playerID int64) ([]model.InventoryItem, error) {
	items := []model.InventoryItem{}
	err := svc.db.WithContext(ctx).Where("player_id = ?", playerID).Order("id").Find(&items).Error
	return items, err
}

// AddOrMerge adds spec.Quantity units of spec.Name. An existing row with the
// same name absorbs the quantity and keeps its own icon/type/rarity.
func (svc *InventoryService) AddOrMerge(ctx context.Context, playerID int64, spec ItemSpec) (*model.InventoryItem, error) {
	var out *model.InventoryItem
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = AddOrMergeTx(tx, playerID, spec)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent first grant inserted the row; merge into it.
		err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			out, err = AddOrMergeTx(tx, playerID, spec)
			return err
		})
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddOrMergeTx is AddOrMerge inside the caller's transaction.
func AddOrMergeTx(tx *gorm.DB, playerID int64, spec ItemSpec) (*model.InventoryItem, error) {
	if spec.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	var existing model.InventoryItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ? AND name = ?", playerID, spec.Name).
		First(&existing).Error
	switch {
	case err == nil:
		if err := tx.Model(&existing).
			Update("quantity", gorm.Expr("quantity + ?", spec.Quantity)).Error; err != nil {
			return nil, err
		}
		existing.Quantity += spec.Quantity
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	item := &model.InventoryItem{
		PlayerID: playerID,
		Name:     spec.Name,
		Icon:     spec.Icon,
		Quantity: spec.Quantity,
		ItemType: spec.Type,
		Rarity:   spec.Rarity,
	}
	if item.ItemType == "" {
		item.ItemType = model.ItemTypeMaterial
	}
	if item.Rarity == "" {
		item.Rarity = model.RarityCommon
	}
	if err := tx.Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// Remove takes quantity units from the player's row itemID. The row is
// deleted once nothing is left. Returns the remaining quantity.
func (svc *InventoryService) Remove(ctx context.Context, playerID, itemID int64, quantity int) (int, error) {
	var left int
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv model.InventoryItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND player_id = ?", itemID, playerID).
			First(&inv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrItemNotFound, itemID)
		}
		if err != nil {
			return err
		}
		left, err = RemoveTx(tx, &inv, quantity)
		return err
	})
	return left, err
}

// RemoveTx decrements a row already loaded (and locked) by the caller.
func RemoveTx(tx *gorm.DB, inv *model.InventoryItem, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	left := inv.Quantity - quantity
	if left <= 0 {
		if err := tx.Delete(&model.InventoryItem{}, inv.ID).Error; err != nil {
			return 0, err
		}
		inv.Quantity = 0
		return 0, nil
	}
	if err := tx.Model(inv).Update("quantity", left).Error; err != nil {
		return 0, err
	}
	inv.Quantity = left
	return left, nil
}

// FindByNameTx locks and returns the player's row for name.
func FindByNameTx(tx *gorm.DB, playerID int64, name string) (*model.InventoryItem, error) {
	var inv model.InventoryItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ? AND name = ?", playerID, name).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrItemNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
