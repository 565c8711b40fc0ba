package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/mylog"
	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/mypubsub"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/basket/basketapi"
	"github.com/MarcGrol/webshopbackend/services/basket/basketevents"
	"github.com/MarcGrol/webshopbackend/services/identity"
)

//go:generate mockgen -source=service.go -package basket -destination guests_mock.go GuestCreator

// GuestCreator creates an empty user record for a first-time anonymous
// caller. Implemented by the user service.
type GuestCreator interface {
	CreateGuest(c context.Context) (string, error)
}

type service struct {
	basketStore *Store
	guests      GuestCreator
	resolver    *identity.Resolver
	publisher   mypublisher.Publisher
	subscriber  mypubsub.PubSub
	nower       mytime.Nower
	uuider      myuuid.UUIDer
	logger      mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(basketStore *Store, guests GuestCreator, resolver *identity.Resolver, publisher mypublisher.Publisher, subscriber mypubsub.PubSub, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		basketStore: basketStore,
		guests:      guests,
		resolver:    resolver,
		publisher:   publisher,
		subscriber:  subscriber,
		nower:       nower,
		uuider:      uuider,
		logger:      logger,
	}
}

type addItemResult struct {
	Basket Basket
	// NewSessionToken is set when the caller was anonymous and a guest
	// session was minted for it
	NewSessionToken string
}

// addItem implements add-to-basket for both known identities and anonymous
// callers. An anonymous caller first becomes a guest user with a fresh
// session; the basket is keyed on that same subject id so it survives a
// later promotion to registered.
func (s *service) addItem(c context.Context, ident identity.Identity, hasIdentity bool, req basketapi.AddItem) (addItemResult, error) {
	if !hasIdentity {
		return s.addItemForNewGuest(c, req)
	}

	basket, err := s.addItemForUser(c, ident.UserUID, req)
	if err != nil {
		return addItemResult{}, err
	}
	return addItemResult{Basket: basket}, nil
}

func (s *service) addItemForNewGuest(c context.Context, req basketapi.AddItem) (addItemResult, error) {
	userUID, err := s.guests.CreateGuest(c)
	if err != nil {
		return addItemResult{}, myerrors.NewInternalError(fmt.Errorf("error creating guest user: %s", err))
	}

	token, err := s.resolver.MintGuest(userUID)
	if err != nil {
		return addItemResult{}, myerrors.NewInternalError(err)
	}

	s.logger.Log(c, userUID, mylog.SeverityInfo, "Created guest user %s for anonymous add-to-basket", userUID)

	basket, err := s.addItemForUser(c, userUID, req)
	if err != nil {
		return addItemResult{}, err
	}

	return addItemResult{
		Basket:          basket,
		NewSessionToken: token,
	}, nil
}

// addItemForUser runs the whole check-and-mutate sequence in one store
// transaction: two concurrent adds for the same user can not both observe
// "no active basket" and create two.
func (s *service) addItemForUser(c context.Context, userUID string, req basketapi.AddItem) (Basket, error) {
	now := s.nower.Now()

	var result Basket
	err := s.basketStore.RunInTransaction(c, func(c context.Context) error {
		active, found, err := s.basketStore.GetActive(c, userUID)
		if err != nil {
			return err
		}

		if !found {
			created, err := s.basketStore.Create(c, s.uuider.Create(), userUID, BasketItem{
				ProductUID: req.ProductUID,
				SellerUID:  req.SellerUID,
				ListingUID: req.ListingUID,
				Count:      1,
			}, now)
			if err != nil {
				return err
			}
			result = created

			return s.publisher.Publish(c, basketevents.TopicName, basketevents.BasketCreated{
				BasketUID: created.UID,
				UserUID:   userUID,
			})
		}

		// the mutated basket must come from the mutation's return value:
		// a re-read inside the transaction would not see the buffered write
		updated, exists, err := s.basketStore.IncrementItem(c, userUID, req.ProductUID, req.SellerUID, 1, now)
		if err != nil {
			return err
		}
		if !exists {
			// product not yet in the basket
			updated, err = s.basketStore.AddItem(c, userUID, BasketItem{
				ProductUID: req.ProductUID,
				SellerUID:  req.SellerUID,
				ListingUID: req.ListingUID,
				Count:      1,
			}, now)
			if err != nil {
				return err
			}
		}
		result = updated

		return s.publisher.Publish(c, basketevents.TopicName, basketevents.BasketItemAdded{
			BasketUID:  active.UID,
			UserUID:    userUID,
			ProductUID: req.ProductUID,
			SellerUID:  req.SellerUID,
		})
	})
	if err != nil {
		return Basket{}, err
	}

	s.logger.Log(c, result.UID, mylog.SeverityInfo, "Added product %s of seller %s to basket %s of user %s",
		req.ProductUID, req.SellerUID, result.UID, userUID)

	return result, nil
}

// changeQuantity applies a relative delta of exactly one unit. A decrement
// that would reach zero removes the line item so a zero count is never
// persisted.
func (s *service) changeQuantity(c context.Context, userUID string, req basketapi.ChangeQuantity) (Basket, error) {
	now := s.nower.Now()

	var result Basket
	err := s.basketStore.RunInTransaction(c, func(c context.Context) error {
		if req.Count > 0 {
			updated, exists, err := s.basketStore.IncrementItem(c, userUID, req.ProductUID, req.SellerUID, 1, now)
			if err != nil {
				return err
			}
			if !exists {
				return myerrors.NewNotFoundError(fmt.Errorf("product %s of seller %s not in active basket of user %s",
					req.ProductUID, req.SellerUID, userUID))
			}
			result = updated
			return nil
		}

		updated, err := s.decrementItem(c, userUID, req, now)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return Basket{}, err
	}

	s.logger.Log(c, result.UID, mylog.SeverityInfo, "Changed quantity of product %s in basket %s of user %s",
		req.ProductUID, result.UID, userUID)

	return result, nil
}

func (s *service) decrementItem(c context.Context, userUID string, req basketapi.ChangeQuantity, now time.Time) (Basket, error) {
	active, found, err := s.basketStore.GetActive(c, userUID)
	if err != nil {
		return Basket{}, err
	}
	if !found {
		return Basket{}, myerrors.NewNotFoundError(fmt.Errorf("user %s has no active basket", userUID))
	}

	idx := active.findItem(req.ProductUID, req.SellerUID)
	if idx < 0 {
		return Basket{}, myerrors.NewNotFoundError(fmt.Errorf("product %s of seller %s not in basket %s",
			req.ProductUID, req.SellerUID, active.UID))
	}

	// check-for-one before decrementing so a zero count never hits the store
	if active.Items[idx].Count == 1 {
		return s.basketStore.RemoveItem(c, userUID, req.ProductUID, req.SellerUID, now)
	}

	updated, _, err := s.basketStore.IncrementItem(c, userUID, req.ProductUID, req.SellerUID, -1, now)
	return updated, err
}

func (s *service) getActiveBasket(c context.Context, userUID string) (Basket, error) {
	basket, found, err := s.basketStore.GetActive(c, userUID)
	if err != nil {
		return Basket{}, err
	}
	if !found {
		return Basket{}, myerrors.NewNotFoundError(fmt.Errorf("user %s has no active basket", userUID))
	}
	return basket, nil
}
