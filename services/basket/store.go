package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
)

// Store owns the active-basket invariant and all line-item mutations.
//
// The operations below do not start transactions themselves: they operate on
// whatever context they are given. Callers compose them inside
// RunInTransaction so that each check-and-mutate sequence hits the
// underlying store atomically. Plain reads (GetActive) are safe outside a
// transaction as well.
//
// Every mutation returns the basket as written. Reads inside a transaction
// observe the state at transaction start, not the transaction's own buffered
// writes, so callers must take the post-mutation content from these return
// values and never from a re-read.
type Store struct {
	store mystore.Store[Basket]
}

func NewStore(store mystore.Store[Basket]) *Store {
	return &Store{
		store: store,
	}
}

func (bs *Store) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	return bs.store.RunInTransaction(c, f)
}

// GetActive returns the single active basket of a user. Finding more than
// one is reported as an invariant violation, never resolved by picking one:
// it signals a bug in concurrent basket creation that operators must see.
func (bs *Store) GetActive(c context.Context, userUID string) (Basket, bool, error) {
	matches, err := bs.store.Query(c, []mystore.Filter{
		{Field: "Active", Compare: "=", Value: true},
		{Field: "UserUID", Compare: "=", Value: userUID},
	}, "")
	if err != nil {
		return Basket{}, false, myerrors.NewInternalError(fmt.Errorf("error querying active basket of user %s: %s", userUID, err))
	}

	switch len(matches) {
	case 0:
		return Basket{}, false, nil
	case 1:
		return matches[0], true, nil
	default:
		return Basket{}, false, myerrors.NewInvariantViolationError(
			fmt.Errorf("user %s has %d active baskets", userUID, len(matches)))
	}
}

// Create stores a new active basket holding a single line item. It fails
// when the user already has an active basket, so it must run inside a
// transaction together with the GetActive check that precedes it.
func (bs *Store) Create(c context.Context, basketUID string, userUID string, item BasketItem, now time.Time) (Basket, error) {
	_, exists, err := bs.GetActive(c, userUID)
	if err != nil {
		return Basket{}, err
	}
	if exists {
		return Basket{}, myerrors.NewInvariantViolationError(
			fmt.Errorf("user %s already has an active basket", userUID))
	}

	basket := Basket{
		UID:       basketUID,
		UserUID:   userUID,
		Active:    true,
		Items:     []BasketItem{item},
		CreatedAt: now,
	}
	err = bs.store.Put(c, basket.UID, basket)
	if err != nil {
		return Basket{}, myerrors.NewInternalError(fmt.Errorf("error storing basket %s: %s", basket.UID, err))
	}

	return basket, nil
}

// IncrementItem adds delta to the count of the matching line item in the
// user's active basket and returns the updated basket. A false ok-flag means
// the line item (or the active basket) does not exist; that is expected
// control flow, not an error.
func (bs *Store) IncrementItem(c context.Context, userUID string, productUID string, sellerUID string, delta int, now time.Time) (Basket, bool, error) {
	basket, found, err := bs.GetActive(c, userUID)
	if err != nil {
		return Basket{}, false, err
	}
	if !found {
		return Basket{}, false, nil
	}

	idx := basket.findItem(productUID, sellerUID)
	if idx < 0 {
		return Basket{}, false, nil
	}

	basket.Items[idx].Count += delta
	basket.LastModified = &now

	err = bs.store.Put(c, basket.UID, basket)
	if err != nil {
		return Basket{}, false, myerrors.NewInternalError(fmt.Errorf("error storing basket %s: %s", basket.UID, err))
	}

	return basket, true, nil
}

// AddItem appends a new line item with count 1 to the user's active basket
// and returns the updated basket. Only to be called after IncrementItem
// reported the item absent; it does not guard against duplicates itself.
func (bs *Store) AddItem(c context.Context, userUID string, item BasketItem, now time.Time) (Basket, error) {
	basket, found, err := bs.GetActive(c, userUID)
	if err != nil {
		return Basket{}, err
	}
	if !found {
		return Basket{}, myerrors.NewNotFoundError(fmt.Errorf("user %s has no active basket", userUID))
	}

	basket.Items = append(basket.Items, item)
	basket.LastModified = &now

	err = bs.store.Put(c, basket.UID, basket)
	if err != nil {
		return Basket{}, myerrors.NewInternalError(fmt.Errorf("error storing basket %s: %s", basket.UID, err))
	}

	return basket, nil
}

// RemoveItem pulls the matching line item out of the active basket and
// returns the updated basket. Used when a decrement would take the count to
// zero.
func (bs *Store) RemoveItem(c context.Context, userUID string, productUID string, sellerUID string, now time.Time) (Basket, error) {
	basket, found, err := bs.GetActive(c, userUID)
	if err != nil {
		return Basket{}, err
	}
	if !found {
		return Basket{}, myerrors.NewNotFoundError(fmt.Errorf("user %s has no active basket", userUID))
	}

	idx := basket.findItem(productUID, sellerUID)
	if idx < 0 {
		return Basket{}, myerrors.NewNotFoundError(fmt.Errorf("product %s of seller %s not in basket %s", productUID, sellerUID, basket.UID))
	}

	basket.Items = append(basket.Items[:idx], basket.Items[idx+1:]...)
	basket.LastModified = &now

	err = bs.store.Put(c, basket.UID, basket)
	if err != nil {
		return Basket{}, myerrors.NewInternalError(fmt.Errorf("error storing basket %s: %s", basket.UID, err))
	}

	return basket, nil
}

// Deactivate flips the active flag of the user's current active basket and
// returns its prior content, so the snapshot handed to an order and the
// deactivation come from the same document version.
func (bs *Store) Deactivate(c context.Context, userUID string, now time.Time) (Basket, bool, error) {
	basket, found, err := bs.GetActive(c, userUID)
	if err != nil {
		return Basket{}, false, err
	}
	if !found {
		return Basket{}, false, nil
	}

	snapshot := basket

	basket.Active = false
	basket.LastModified = &now
	err = bs.store.Put(c, basket.UID, basket)
	if err != nil {
		return Basket{}, false, myerrors.NewInternalError(fmt.Errorf("error storing basket %s: %s", basket.UID, err))
	}

	return snapshot, true, nil
}

// DeactivateByUID deactivates a specific basket regardless of its owner.
// Used by the order reconciliation path when the regular deactivation after
// order creation did not happen.
func (bs *Store) DeactivateByUID(c context.Context, basketUID string, now time.Time) (bool, error) {
	basket, found, err := bs.store.Get(c, basketUID)
	if err != nil {
		return false, myerrors.NewInternalError(fmt.Errorf("error fetching basket %s: %s", basketUID, err))
	}
	if !found {
		return false, myerrors.NewNotFoundError(fmt.Errorf("basket %s not found", basketUID))
	}
	if !basket.Active {
		// already done, idempotent
		return false, nil
	}

	basket.Active = false
	basket.LastModified = &now
	err = bs.store.Put(c, basket.UID, basket)
	if err != nil {
		return false, myerrors.NewInternalError(fmt.Errorf("error storing basket %s: %s", basket.UID, err))
	}

	return true, nil
}
