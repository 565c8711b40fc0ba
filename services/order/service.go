package order

import (
	"context"
	"fmt"
	"sort"

	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/mylog"
	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/myqueue"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/address"
	"github.com/MarcGrol/webshopbackend/services/basket"
	"github.com/MarcGrol/webshopbackend/services/basket/basketevents"
	"github.com/MarcGrol/webshopbackend/services/order/orderevents"
)

// Outcome enumerates the expected results of order creation. These are
// control flow, not errors: the web layer maps each to its own response.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeAddressNotFound
	OutcomeActiveBasketNotFound
	// OutcomeBasketDeactivationFailed: the order was written but the
	// source basket was no longer active when we tried to deactivate it.
	// The caller must learn about the missing cart-clearing side effect.
	OutcomeBasketDeactivationFailed
)

type CreateOrderResult struct {
	Outcome Outcome
	Order   Order
}

// AddressFinder is the lookup-only contract the order service has on the
// address service.
type AddressFinder interface {
	Find(c context.Context, addressUID string) (address.Address, bool, error)
}

type service struct {
	orderStore  mystore.Store[Order]
	basketStore *basket.Store
	addresses   AddressFinder
	publisher   mypublisher.Publisher
	queue       myqueue.TaskQueuer
	nower       mytime.Nower
	uuider      myuuid.UUIDer
	logger      mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(orderStore mystore.Store[Order], basketStore *basket.Store, addresses AddressFinder, publisher mypublisher.Publisher, queue myqueue.TaskQueuer, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		orderStore:  orderStore,
		basketStore: basketStore,
		addresses:   addresses,
		publisher:   publisher,
		queue:       queue,
		nower:       nower,
		uuider:      uuider,
		logger:      logger,
	}
}

// createOrder converts a user's active basket into an immutable order and
// deactivates the basket it came from. The order write and the
// deactivation run in one transaction context; when the active basket
// vanished between the pre-read and the transaction the order stands, the
// caller is told the deactivation did not happen, and a reconciliation
// task re-attempts it.
func (s *service) createOrder(c context.Context, userUID string, addressUID string) (CreateOrderResult, error) {
	addr, found, err := s.addresses.Find(c, addressUID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if !found {
		return CreateOrderResult{Outcome: OutcomeAddressNotFound}, nil
	}

	active, found, err := s.basketStore.GetActive(c, userUID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if !found {
		// an order can not be created out of an empty cart state
		return CreateOrderResult{Outcome: OutcomeActiveBasketNotFound}, nil
	}

	now := s.nower.Now()
	order := Order{
		UID:       s.uuider.Create(),
		UserUID:   userUID,
		BasketUID: active.UID,
		Address:   addr,
		Items:     active.Items,
		Status:    StatusCreated,
		CreatedAt: now,
	}

	deactivated := false
	err = s.basketStore.RunInTransaction(c, func(c context.Context) error {
		// deactivate first: its returned prior content is the document
		// version the deactivation hits, and that version is what the order
		// must freeze. The pre-read copy only serves the miss branch below.
		snapshot, flipped, err := s.basketStore.Deactivate(c, userUID, now)
		if err != nil {
			return err
		}
		deactivated = flipped
		if flipped {
			order.BasketUID = snapshot.UID
			order.Items = snapshot.Items
		}

		err = s.orderStore.Put(c, order.UID, order)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing order %s: %s", order.UID, err))
		}

		if flipped {
			err = s.publisher.Publish(c, basketevents.TopicName, basketevents.BasketCompleted{
				BasketUID: order.BasketUID,
				UserUID:   userUID,
				OrderUID:  order.UID,
			})
			if err != nil {
				return err
			}
		}

		return s.publisher.Publish(c, orderevents.TopicName, orderevents.OrderCreated{
			OrderUID:  order.UID,
			UserUID:   userUID,
			BasketUID: order.BasketUID,
		})
	})
	if err != nil {
		return CreateOrderResult{}, err
	}

	if !deactivated {
		// order exists but the cart-clearing side effect is pending;
		// hand the signal to the reconciliation task instead of losing it
		s.logger.Log(c, order.UID, mylog.SeverityWarn, "Order %s created but basket %s was no longer active; enqueueing reconciliation",
			order.UID, active.UID)

		err = s.queue.Enqueue(c, myqueue.Task{
			UID:            order.UID,
			WebhookURLPath: fmt.Sprintf("/api/order/reconcile/%s", active.UID),
			Payload:        []byte{},
		})
		if err != nil {
			return CreateOrderResult{}, myerrors.NewInternalError(fmt.Errorf("error enqueueing reconciliation for basket %s: %s", active.UID, err))
		}

		return CreateOrderResult{Outcome: OutcomeBasketDeactivationFailed, Order: order}, nil
	}

	s.logger.Log(c, order.UID, mylog.SeverityInfo, "Created order %s for user %s out of basket %s",
		order.UID, userUID, active.UID)

	return CreateOrderResult{Outcome: OutcomeCreated, Order: order}, nil
}

func (s *service) listOrders(c context.Context, userUID string) ([]Order, error) {
	orders, err := s.orderStore.Query(c, []mystore.Filter{
		{Field: "UserUID", Compare: "=", Value: userUID},
	}, "")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error querying orders of user %s: %s", userUID, err))
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	return orders, nil
}

// reconcileBasket is driven by the task queue: it re-attempts deactivation
// of a basket whose order was written without the basket flip landing.
func (s *service) reconcileBasket(c context.Context, basketUID string) error {
	now := s.nower.Now()

	return s.basketStore.RunInTransaction(c, func(c context.Context) error {
		flipped, err := s.basketStore.DeactivateByUID(c, basketUID, now)
		if err != nil {
			return err
		}
		if flipped {
			s.logger.Log(c, basketUID, mylog.SeverityInfo, "Reconciliation deactivated basket %s", basketUID)
		}
		return nil
	})
}
