package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/myqueue"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/address"
	"github.com/MarcGrol/webshopbackend/services/basket"
	"github.com/MarcGrol/webshopbackend/services/basket/basketevents"
	"github.com/MarcGrol/webshopbackend/services/identity"
	"github.com/MarcGrol/webshopbackend/services/order/orderevents"
)

type fixture struct {
	ctx         context.Context
	router      *mux.Router
	orderStore  mystore.Store[Order]
	basketStore mystore.Store[basket.Basket]
	addrStore   mystore.Store[address.Address]
	resolver    *identity.Resolver
	uuider      *myuuid.MockUUIDer
	publisher   *mypublisher.MockPublisher
	queue       *myqueue.MockTaskQueuer
}

func activeBasket() basket.Basket {
	return basket.Basket{
		UID:     "basket-1",
		UserUID: "user-1",
		Active:  true,
		Items: []basket.BasketItem{
			{ProductUID: "product-1", SellerUID: "seller-1", ListingUID: "listing-1", Count: 2},
		},
		CreatedAt: time.Date(2023, 2, 27, 12, 0, 0, 0, time.UTC),
	}
}

func deliveryAddress() address.Address {
	return address.Address{
		UID:     "address-1",
		UserUID: "user-1",
		Name:    "Jane",
		Surname: "Smith",
		Title:   "home",
		Text:    "Main street 1",
	}
}

func TestOrderService(t *testing.T) {

	t.Run("Create order snapshots basket and deactivates it", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		b := activeBasket()
		f.basketStore.Put(f.ctx, b.UID, b)
		a := deliveryAddress()
		f.addrStore.Put(f.ctx, a.UID, a)
		f.uuider.EXPECT().Create().Return("order-1")
		f.publisher.EXPECT().Publish(gomock.Any(), basketevents.TopicName, basketevents.BasketCompleted{
			BasketUID: "basket-1",
			UserUID:   "user-1",
			OrderUID:  "order-1",
		}).Return(nil)
		f.publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, orderevents.OrderCreated{
			OrderUID:  "order-1",
			UserUID:   "user-1",
			BasketUID: "basket-1",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/order",
			strings.NewReader(`{"address_uid":"address-1"}`))
		assert.NoError(t, err)
		addSessionCookie(t, request, f.resolver, "user-1")
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		resp := orderResponse{}
		err = json.Unmarshal(response.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Equal(t, "order-1", resp.Order.UID)
		assert.False(t, resp.BasketDeactivationFailed)

		stored, exists, _ := f.orderStore.Get(f.ctx, "order-1")
		assert.True(t, exists)
		assert.Equal(t, StatusCreated, stored.Status)
		assert.Equal(t, "basket-1", stored.BasketUID)
		assert.Equal(t, "address-1", stored.Address.UID)
		assert.Len(t, stored.Items, 1)
		assert.Equal(t, 2, stored.Items[0].Count)

		storedBasket, _, _ := f.basketStore.Get(f.ctx, "basket-1")
		assert.False(t, storedBasket.Active)
	})

	t.Run("Create order without active basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		a := deliveryAddress()
		f.addrStore.Put(f.ctx, a.UID, a)

		// when
		request, err := http.NewRequest(http.MethodPost, "/order",
			strings.NewReader(`{"address_uid":"address-1"}`))
		assert.NoError(t, err)
		addSessionCookie(t, request, f.resolver, "user-1")
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
		orders, _ := f.orderStore.List(f.ctx)
		assert.Empty(t, orders)
	})

	t.Run("Create order with unknown address", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		b := activeBasket()
		f.basketStore.Put(f.ctx, b.UID, b)

		// when
		request, err := http.NewRequest(http.MethodPost, "/order",
			strings.NewReader(`{"address_uid":"unknown"}`))
		assert.NoError(t, err)
		addSessionCookie(t, request, f.resolver, "user-1")
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
		orders, _ := f.orderStore.List(f.ctx)
		assert.Empty(t, orders)

		storedBasket, _, _ := f.basketStore.Get(f.ctx, "basket-1")
		assert.True(t, storedBasket.Active)
	})

	t.Run("Create order without session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPost, "/order",
			strings.NewReader(`{"address_uid":"address-1"}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 403, response.Code)
	})

	t.Run("List orders newest first", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		older := Order{UID: "order-1", UserUID: "user-1", CreatedAt: time.Date(2023, 2, 27, 12, 0, 0, 0, time.UTC)}
		newer := Order{UID: "order-2", UserUID: "user-1", CreatedAt: time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC)}
		other := Order{UID: "order-3", UserUID: "user-2", CreatedAt: time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)}
		f.orderStore.Put(f.ctx, older.UID, older)
		f.orderStore.Put(f.ctx, newer.UID, newer)
		f.orderStore.Put(f.ctx, other.UID, other)

		// when
		request, err := http.NewRequest(http.MethodGet, "/order", nil)
		assert.NoError(t, err)
		addSessionCookie(t, request, f.resolver, "user-1")
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		resp := orderListResponse{}
		err = json.Unmarshal(response.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Len(t, resp.Orders, 2)
		assert.Equal(t, "order-2", resp.Orders[0].UID)
		assert.Equal(t, "order-1", resp.Orders[1].UID)
	})

	t.Run("Reconcile deactivates leftover basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		f := setup(t, ctrl)

		// given
		b := activeBasket()
		f.basketStore.Put(f.ctx, b.UID, b)

		// when
		request, err := http.NewRequest(http.MethodPut, "/api/order/reconcile/basket-1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		f.router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		storedBasket, _, _ := f.basketStore.Get(f.ctx, "basket-1")
		assert.False(t, storedBasket.Active)

		// a second run finds nothing left to do
		response = httptest.NewRecorder()
		request, _ = http.NewRequest(http.MethodPut, "/api/order/reconcile/basket-1", nil)
		f.router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) fixture {
	c := context.TODO()
	orderStore, _, _ := mystore.New[Order](c)
	basketStore, _, _ := mystore.New[basket.Basket](c)
	addrStore, _, _ := mystore.New[address.Address](c)
	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
	uuider := myuuid.NewMockUUIDer(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)
	queue := myqueue.NewMockTaskQueuer(ctrl)
	resolver := identity.NewResolver(identity.Config{Secret: []byte("test-secret")}, nower)

	addresses := address.NewService(addrStore, resolver, nower, uuider)

	sut := NewService(orderStore, basket.NewStore(basketStore), addresses.Finder(), resolver, publisher, queue, nower, uuider)
	router := mux.NewRouter()

	// Called by the following call to RegisterEndpoints()
	publisher.EXPECT().CreateTopic(c, orderevents.TopicName).Return(nil)

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return fixture{
		ctx:         c,
		router:      router,
		orderStore:  orderStore,
		basketStore: basketStore,
		addrStore:   addrStore,
		resolver:    resolver,
		uuider:      uuider,
		publisher:   publisher,
		queue:       queue,
	}
}

func addSessionCookie(t *testing.T, r *http.Request, resolver *identity.Resolver, userUID string) {
	token, err := resolver.MintRegistered(userUID)
	assert.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: identity.CookieName, Value: token})
}
