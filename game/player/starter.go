package player

import (
	"fmt"

	"github.com/kasuganosora/vkrpg/model"
)

// DefaultSkin is granted to and worn by every new player.
const DefaultSkin = "default"

// Starter values for a freshly created player.
const (
	starterLevel    = 1
	starterClass    = "⚔️ Warrior"
	starterAttack   = 10
	starterDefense  = 5
	starterGold     = 100
	starterCrystals = 50
)

func newPlayer(vkID int64) *model.Player {
	return &model.Player{
		VKID:        vkID,
		Name:        fmt.Sprintf("Player %d", vkID),
		Level:       starterLevel,
		PlayerClass: starterClass,
		Attack:      starterAttack,
		Defense:     starterDefense,
		Gold:        starterGold,
		Crystals:    starterCrystals,
		CurrentSkin: DefaultSkin,
	}
}

func starterEquipment(playerID int64) *model.Equipment {
	return &model.Equipment{
		PlayerID:     playerID,
		WeaponName:   "Wooden Sword",
		WeaponIcon:   "🗡️",
		WeaponAttack: 5,
	}
}

func starterItems(playerID int64) []model.InventoryItem {
	return []model.InventoryItem{
		{PlayerID: playerID, Name: "Wood", Icon: "🪵", Quantity: 20, ItemType: model.ItemTypeMaterial, Rarity: model.RarityCommon},
		{PlayerID: playerID, Name: "Health Potion", Icon: "❤️", Quantity: 5, ItemType: model.ItemTypePotion, Rarity: model.RarityCommon},
		{PlayerID: playerID, Name: "Food", Icon: "🍖", Quantity: 10, ItemType: model.ItemTypeFood, Rarity: model.RarityCommon},
	}
}
