package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/webshopbackend/lib/mycontext"
	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/myhttp"
	"github.com/MarcGrol/webshopbackend/lib/mylog"
	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/myqueue"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/basket"
	"github.com/MarcGrol/webshopbackend/services/identity"
	"github.com/MarcGrol/webshopbackend/services/order/orderevents"
)

const storeTimeout = 10 * time.Second

type webService struct {
	logger   mylog.Logger
	service  *service
	resolver *identity.Resolver
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(orderStore mystore.Store[Order], basketStore *basket.Store, addresses AddressFinder, resolver *identity.Resolver, publisher mypublisher.Publisher, queue myqueue.TaskQueuer, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("order")
	return &webService{
		logger:   logger,
		service:  newService(orderStore, basketStore, addresses, publisher, queue, nower, uuider, logger),
		resolver: resolver,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/order", s.createOrderPage()).Methods("POST")
	router.HandleFunc("/order", s.listOrdersPage()).Methods("GET")

	// driven by the task queue, not by end users
	router.HandleFunc("/api/order/reconcile/{basketUID}", s.reconcilePage()).Methods("PUT")

	err := s.service.publisher.CreateTopic(c, orderevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", orderevents.TopicName, err)
	}

	return nil
}

type createOrderBody struct {
	AddressUID string `json:"address_uid"`
}

type orderResponse struct {
	Order Order
	// BasketDeactivationFailed tells the client the order exists but the
	// cart was not cleared as part of this request
	BasketDeactivationFailed bool `json:",omitempty"`
}

type orderListResponse struct {
	Orders []Order
}

func (s *webService) createOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)
		if !hasIdentity {
			errorWriter.WriteError(c, w, 1, myerrors.NewAuthenticationError(fmt.Errorf("no session")))
			return
		}

		body := createOrderBody{}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(fmt.Errorf("error decoding body: %s", err)))
			return
		}
		if body.AddressUID == "" {
			errorWriter.WriteError(c, w, 3, myerrors.NewInvalidInputErrorf("missing address_uid"))
			return
		}

		result, err := s.service.createOrder(c, ident.UserUID, body.AddressUID)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		switch result.Outcome {
		case OutcomeAddressNotFound:
			errorWriter.WriteError(c, w, 5, myerrors.NewNotFoundError(fmt.Errorf("address %s not found", body.AddressUID)))
		case OutcomeActiveBasketNotFound:
			errorWriter.WriteError(c, w, 6, myerrors.NewNotFoundError(fmt.Errorf("user %s has no active basket", ident.UserUID)))
		case OutcomeBasketDeactivationFailed:
			errorWriter.Write(c, w, http.StatusOK, orderResponse{Order: result.Order, BasketDeactivationFailed: true})
		default:
			errorWriter.Write(c, w, http.StatusOK, orderResponse{Order: result.Order})
		}
	}
}

func (s *webService) listOrdersPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)
		if !hasIdentity {
			errorWriter.WriteError(c, w, 1, myerrors.NewAuthenticationError(fmt.Errorf("no session")))
			return
		}

		orders, err := s.service.listOrders(c, ident.UserUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, orderListResponse{Orders: orders})
	}
}

func (s *webService) reconcilePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		basketUID := mux.Vars(r)["basketUID"]

		err := s.service.reconcileBasket(c, basketUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: fmt.Sprintf("Reconciled basket %s", basketUID),
		})
	}
}
