package basket

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

	"github.com/MarcGrol/webshopbackend/lib/myevents"
	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/mypubsub"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/basket/basketevents"
	"github.com/MarcGrol/webshopbackend/services/identity"
	"github.com/MarcGrol/webshopbackend/services/order/orderevents"
)

// aBasket returns a fresh fixture per test: the store hands out shallow
// copies, so sharing one Items slice across tests would leak mutations
func aBasket() Basket {
	return Basket{
		UID:     "basket-1",
		UserUID: "user-1",
		Active:  true,
		Items: []BasketItem{
			{ProductUID: "product-1", SellerUID: "seller-1", ListingUID: "listing-1", Count: 1},
		},
		CreatedAt: time.Date(2023, 2, 27, 12, 0, 0, 0, time.UTC),
	}
}

func TestBasketService(t *testing.T) {

	t.Run("Add item as anonymous caller creates guest with session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, guests, uuider, publisher := setup(t, ctrl)

		// given
		guests.EXPECT().CreateGuest(gomock.Any()).Return("user-1", nil)
		uuider.EXPECT().Create().Return("basket-1")
		publisher.EXPECT().Publish(gomock.Any(), basketevents.TopicName, basketevents.BasketCreated{
			BasketUID: "basket-1",
			UserUID:   "user-1",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/basket/item",
			strings.NewReader(`{"product_uid":"product-1","seller_uid":"seller-1","listing_uid":"listing-1"}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.True(t, hasSessionCookie(response), "expected a session cookie for the new guest")

		basket, exists, _ := storer.Get(ctx, "basket-1")
		assert.True(t, exists)
		assert.True(t, basket.Active)
		assert.Equal(t, "user-1", basket.UserUID)
		assert.Equal(t, 1, basket.ItemCount())
	})

	t.Run("Add item via form encoding", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, guests, uuider, publisher := setup(t, ctrl)

		// given
		guests.EXPECT().CreateGuest(gomock.Any()).Return("user-1", nil)
		uuider.EXPECT().Create().Return("basket-1")
		publisher.EXPECT().Publish(gomock.Any(), basketevents.TopicName, gomock.Any()).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/basket/item",
			strings.NewReader("productUid=product-1&sellerUid=seller-1&listingUid=listing-1"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		basket, exists, _ := storer.Get(ctx, "basket-1")
		assert.True(t, exists)
		assert.Equal(t, 1, basket.ItemCount())
	})

	t.Run("Add same product again increments its count", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _, _, publisher := setup(t, ctrl)

		// given
		seeded := aBasket()
		storer.Put(ctx, seeded.UID, seeded)
		publisher.EXPECT().Publish(gomock.Any(), basketevents.TopicName, basketevents.BasketItemAdded{
			BasketUID:  "basket-1",
			UserUID:    "user-1",
			ProductUID: "product-1",
			SellerUID:  "seller-1",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/basket/item",
			strings.NewReader(`{"product_uid":"product-1","seller_uid":"seller-1","listing_uid":"listing-1"}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		assert.False(t, hasSessionCookie(response), "no new session for a known caller")

		basket, _, _ := storer.Get(ctx, "basket-1")
		assert.Len(t, basket.Items, 1)
		assert.Equal(t, 2, basket.Items[0].Count)
	})

	t.Run("Add different product appends a line item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _, _, publisher := setup(t, ctrl)

		// given
		seeded := aBasket()
		storer.Put(ctx, seeded.UID, seeded)
		publisher.EXPECT().Publish(gomock.Any(), basketevents.TopicName, gomock.Any()).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/basket/item",
			strings.NewReader(`{"product_uid":"product-2","seller_uid":"seller-1","listing_uid":"listing-2"}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		basket, _, _ := storer.Get(ctx, "basket-1")
		assert.Len(t, basket.Items, 2)
		assert.Equal(t, 2, basket.ItemCount())
	})

	t.Run("Decrement at count one removes the line item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _, _, _ := setup(t, ctrl)

		// given
		seeded := aBasket()
		storer.Put(ctx, seeded.UID, seeded)

		// when
		request, err := http.NewRequest(http.MethodPut, "/basket/item",
			strings.NewReader(`{"product_uid":"product-1","seller_uid":"seller-1","count":-1}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		basket, _, _ := storer.Get(ctx, "basket-1")
		assert.Empty(t, basket.Items)
		assert.True(t, basket.Active)
	})

	t.Run("Decrement at count two lowers the count", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _, _, _ := setup(t, ctrl)

		// given
		seeded := aBasket()
		seeded.Items = []BasketItem{
			{ProductUID: "product-1", SellerUID: "seller-1", ListingUID: "listing-1", Count: 2},
		}
		storer.Put(ctx, seeded.UID, seeded)

		// when
		request, err := http.NewRequest(http.MethodPut, "/basket/item",
			strings.NewReader(`{"product_uid":"product-1","seller_uid":"seller-1","count":-1}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		basket, _, _ := storer.Get(ctx, "basket-1")
		assert.Len(t, basket.Items, 1)
		assert.Equal(t, 1, basket.Items[0].Count)
	})

	t.Run("Change quantity of unknown product", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _, _, _ := setup(t, ctrl)

		// given
		seeded := aBasket()
		storer.Put(ctx, seeded.UID, seeded)

		// when
		request, err := http.NewRequest(http.MethodPut, "/basket/item",
			strings.NewReader(`{"product_uid":"unknown","seller_uid":"seller-1","count":1}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Change quantity without session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPut, "/basket/item",
			strings.NewReader(`{"product_uid":"product-1","seller_uid":"seller-1","count":1}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 403, response.Code)
	})

	t.Run("Get active basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _, _, _ := setup(t, ctrl)

		// given
		seeded := aBasket()
		storer.Put(ctx, seeded.UID, seeded)

		// when
		request, err := http.NewRequest(http.MethodGet, "/basket", nil)
		assert.NoError(t, err)
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		resp := basketResponse{}
		err = json.Unmarshal(response.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Equal(t, "basket-1", resp.Basket.UID)
		assert.Equal(t, 1, resp.Basket.ItemCount())
	})

	t.Run("Get active basket without session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodGet, "/basket", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 403, response.Code)
	})

	t.Run("Handle async order-created event", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _, _, _ := setup(t, ctrl)

		// given
		seeded := aBasket()
		storer.Put(ctx, seeded.UID, seeded)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/basket/event",
			strings.NewReader(createPubsubMessage(orderevents.OrderCreated{
				OrderUID:  "order-1",
				UserUID:   "user-1",
				BasketUID: "basket-1",
			})))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		basket, _, _ := storer.Get(ctx, "basket-1")
		assert.False(t, basket.Active)
	})

	t.Run("Get active basket when none exists", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, resolver, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodGet, "/basket", nil)
		assert.NoError(t, err)
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Basket], *identity.Resolver, *MockGuestCreator, *myuuid.MockUUIDer, *mypublisher.MockPublisher) {
	c := context.TODO()
	storer, _, _ := mystore.New[Basket](c)
	guests := NewMockGuestCreator(ctrl)
	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
	uuider := myuuid.NewMockUUIDer(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)
	subscriber := mypubsub.NewMockPubSub(ctrl)
	resolver := identity.NewResolver(identity.Config{Secret: []byte("test-secret")}, nower)

	sut := NewService(storer, guests, resolver, publisher, subscriber, nower, uuider)
	router := mux.NewRouter()

	// These are called by the following call to RegisterEndpoints()
	publisher.EXPECT().CreateTopic(c, basketevents.TopicName).Return(nil)
	subscriber.EXPECT().Subscribe(c, orderevents.TopicName, "http://localhost:8080/api/basket/event").Return(nil)

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, resolver, guests, uuider, publisher
}

func createPubsubMessage(event orderevents.OrderCreated) string {
	eventBytes, _ := json.Marshal(event)
	envelope := myevents.EventEnvelope{
		UID:           "event-1",
		CreatedAt:     mytime.ExampleTime,
		Topic:         orderevents.TopicName,
		AggregateUID:  event.OrderUID,
		EventTypeName: event.GetEventTypeName(),
		EventPayload:  string(eventBytes),
	}
	envelopeBytes, _ := json.Marshal(envelope)

	req := myevents.PushRequest{
		Message: myevents.PushMessage{
			Data: envelopeBytes,
		},
		Subscription: orderevents.TopicName,
	}

	reqBytes, _ := json.Marshal(req)

	return string(reqBytes)
}

func addSessionCookie(t *testing.T, r *http.Request, resolver *identity.Resolver, userUID string) {
	token, err := resolver.MintGuest(userUID)
	assert.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: identity.CookieName, Value: token})
}

func hasSessionCookie(response *httptest.ResponseRecorder) bool {
	for _, cookie := range response.Result().Cookies() {
		if cookie.Name == identity.CookieName && cookie.Value != "" {
			return true
		}
	}
	return false
}
