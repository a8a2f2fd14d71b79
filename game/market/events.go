package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kasuganosora/vkrpg/cache"
)

// EventsChannel is the pub/sub channel the SSE stream relays.
const EventsChannel = "market:events"

// Event types.
const (
	EventListed   = "listed"
	EventSold     = "sold"
	EventAnnounce = "announce"
)

// Event is one market stream message.
type Event struct {
	Type      string    `json:"type"`
	ListingID int64     `json:"listing_id,omitempty"`
	ItemName  string    `json:"item_name,omitempty"`
	ItemIcon  string    `json:"item_icon,omitempty"`
	Price     int64     `json:"price,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	SellerID  int64     `json:"seller_id,omitempty"`
	BuyerID   int64     `json:"buyer_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Publish encodes ev onto EventsChannel.
func Publish(ctx context.Context, ps cache.PubSub, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ps.Publish(ctx, EventsChannel, string(b))
}
