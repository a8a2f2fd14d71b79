package model

// Item types and rarities used by the starter bundle and as request defaults.
const (
	ItemTypeMaterial = "material"
	ItemTypePotion   = "potion"
	ItemTypeFood     = "food"

	RarityCommon = "common"
)

// InventoryItem is a stack of fungible items in a player's bag.
// A (player_id, name) pair is unique: repeated grants merge into one row.
type InventoryItem struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID int64  `gorm:"uniqueIndex:idx_player_item_name;not null" json:"player_id"`
	Name     string `gorm:"uniqueIndex:idx_player_item_name;size:100;not null" json:"name"`
	Icon     string `gorm:"size:16;not null" json:"icon"`
	Quantity int    `gorm:"not null" json:"quantity"`
	ItemType string `gorm:"size:50;not null" json:"item_type"`
	Rarity   string `gorm:"size:20;not null" json:"rarity"`
}
