package model

import "time"

// Player is the profile of one social-platform user.
type Player struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	VKID         int64      `gorm:"column:vk_id;uniqueIndex;not null" json:"vk_id"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	Level        int        `gorm:"not null" json:"level"`
	PlayerClass  string     `gorm:"size:50;not null" json:"player_class"`
	Attack       int        `gorm:"not null" json:"attack"`
	Defense      int        `gorm:"not null" json:"defense"`
	Gold         int64      `gorm:"not null" json:"gold"`
	Crystals     int64      `gorm:"not null" json:"crystals"`
	IsPremium    bool       `gorm:"not null;index:idx_player_premium" json:"is_premium"`
	PremiumUntil *time.Time `json:"premium_until"`
	CurrentSkin  string     `gorm:"size:50;not null" json:"current_skin"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Equipment  *Equipment  `gorm:"foreignKey:PlayerID" json:"equipment,omitempty"`
	OwnedSkins []OwnedSkin `gorm:"foreignKey:PlayerID" json:"owned_skins,omitempty"`
}

// Equipment holds the items a player has equipped; one row per player.
// Empty names mean the slot is free.
type Equipment struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID      int64  `gorm:"uniqueIndex;not null" json:"player_id"`
	WeaponName    string `gorm:"size:100" json:"weapon_name"`
	WeaponIcon    string `gorm:"size:16" json:"weapon_icon"`
	WeaponAttack  int    `json:"weapon_attack"`
	ArmorName     string `gorm:"size:100" json:"armor_name"`
	ArmorIcon     string `gorm:"size:16" json:"armor_icon"`
	ArmorDefense  int    `json:"armor_defense"`
	AccessoryName string `gorm:"size:100" json:"accessory_name"`
	AccessoryIcon string `gorm:"size:16" json:"accessory_icon"`
}

// TableName keeps the singular table name used by the frontend tooling.
func (Equipment) TableName() string { return "equipment" }

// OwnedSkin records a cosmetic skin unlocked by a player.
type OwnedSkin struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  int64     `gorm:"uniqueIndex:idx_player_skin;not null" json:"player_id"`
	SkinID    string    `gorm:"uniqueIndex:idx_player_skin;size:50;not null" json:"skin_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
