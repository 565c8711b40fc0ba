package basket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/webshopbackend/lib/mycontext"
	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/myhttp"
	"github.com/MarcGrol/webshopbackend/lib/mylog"
	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/mypubsub"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/basket/basketapi"
	"github.com/MarcGrol/webshopbackend/services/basket/basketevents"
	"github.com/MarcGrol/webshopbackend/services/identity"
	"github.com/MarcGrol/webshopbackend/services/order/orderevents"
)

// storeTimeout bounds each request's store round trips: a slow store
// surfaces as a failure, never as a not-found
const storeTimeout = 10 * time.Second

type webService struct {
	logger   mylog.Logger
	service  *service
	resolver *identity.Resolver
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(basketStore mystore.Store[Basket], guests GuestCreator, resolver *identity.Resolver, publisher mypublisher.Publisher, subscriber mypubsub.PubSub, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("basket")
	return &webService{
		logger:   logger,
		service:  newService(NewStore(basketStore), guests, resolver, publisher, subscriber, nower, uuider, logger),
		resolver: resolver,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/basket", s.getActiveBasketPage()).Methods("GET")
	router.HandleFunc("/basket/item", s.addItemPage()).Methods("POST")
	router.HandleFunc("/basket/item", s.changeQuantityPage()).Methods("PUT")

	// driven by pubsub push, not by end users
	router.HandleFunc("/api/basket/event", s.eventPage()).Methods("POST")

	err := s.service.publisher.CreateTopic(c, basketevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", basketevents.TopicName, err)
	}

	err = s.service.Subscribe(c)
	if err != nil {
		return fmt.Errorf("error subscribing to order events: %s", err)
	}

	return nil
}

type basketResponse struct {
	Basket Basket
}

func (s *webService) addItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		req, err := basketapi.NewAddItemFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)

		result, err := s.service.addItem(c, ident, hasIdentity, req)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		if result.NewSessionToken != "" {
			http.SetCookie(w, &http.Cookie{
				Name:  identity.CookieName,
				Value: result.NewSessionToken,
				Path:  "/",
			})
		}

		errorWriter.Write(c, w, http.StatusOK, basketResponse{Basket: result.Basket})
	}
}

func (s *webService) changeQuantityPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		req, err := basketapi.NewChangeQuantityFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)
		if !hasIdentity {
			errorWriter.WriteError(c, w, 2, myerrors.NewAuthenticationError(fmt.Errorf("no session")))
			return
		}

		basket, err := s.service.changeQuantity(c, ident.UserUID, req)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, basketResponse{Basket: basket})
	}
}

func (s *webService) eventPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		err := orderevents.DispatchEvent(c, r.Body, s.service)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed event",
		})
	}
}

func (s *webService) getActiveBasketPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)
		if !hasIdentity {
			errorWriter.WriteError(c, w, 1, myerrors.NewAuthenticationError(fmt.Errorf("no session")))
			return
		}

		basket, err := s.service.getActiveBasket(c, ident.UserUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, basketResponse{Basket: basket})
	}
}
