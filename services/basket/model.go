package basket

import (
	"time"
)

// Basket is owned by exactly one user. Per user at most one basket has
// Active set; historical baskets stay around deactivated and are never
// read again by the flows below.
type Basket struct {
	UID          string
	UserUID      string
	Active       bool
	Items        []BasketItem
	CreatedAt    time.Time
	LastModified *time.Time
}

// BasketItem is one line in a basket. The (ProductUID, SellerUID) pair is
// unique within the basket; Count never goes below 1 because a decrement
// to zero removes the line instead.
type BasketItem struct {
	ProductUID string
	SellerUID  string
	ListingUID string
	Count      int
}

func (b Basket) findItem(productUID string, sellerUID string) int {
	for idx, item := range b.Items {
		if item.ProductUID == productUID && item.SellerUID == sellerUID {
			return idx
		}
	}
	return -1
}

func (b Basket) ItemCount() int {
	total := 0
	for _, item := range b.Items {
		total += item.Count
	}
	return total
}
