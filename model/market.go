package model

import "time"

// MarketListing is an offer to sell Quantity units of a named item at Price
// gold each. Item fields are a snapshot; units are fungible by name.
// IsActive flips to false exactly once, when the listing is bought.
type MarketListing struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID   int64      `gorm:"index:idx_listing_seller;not null" json:"seller_id"`
	ItemName   string     `gorm:"size:100;not null" json:"item_name"`
	ItemIcon   string     `gorm:"size:16;not null" json:"item_icon"`
	ItemRarity string     `gorm:"size:20;not null" json:"item_rarity"`
	ItemType   string     `gorm:"size:50;not null" json:"item_type"`
	Price      int64      `gorm:"not null" json:"price"`
	Quantity   int        `gorm:"not null" json:"quantity"`
	IsActive   bool       `gorm:"index:idx_listing_active;not null" json:"is_active"`
	BuyerID    *int64     `json:"buyer_id,omitempty"`
	SoldAt     *time.Time `json:"sold_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index:idx_listing_active;autoCreateTime" json:"created_at"`

	Seller *Player `gorm:"foreignKey:SellerID" json:"-"`
}

// Total is the full price the buyer pays.
func (l *MarketListing) Total() int64 {
	return l.Price * int64(l.Quantity)
}
