package order

import (
	"time"

	"github.com/MarcGrol/webshopbackend/services/address"
	"github.com/MarcGrol/webshopbackend/services/basket"
)

type Status int

const (
	StatusCreated Status = iota
	StatusCancelled
	StatusTaken
	StatusPreparing
	StatusShipping
	StatusShipped
)

// Order is immutable once written: it carries frozen snapshots of the
// source basket's items and the delivery address, decoupled from any later
// mutation of those records.
type Order struct {
	UID       string
	UserUID   string
	BasketUID string
	Address   address.Address
	Items     []basket.BasketItem
	Status    Status
	CreatedAt time.Time
}
