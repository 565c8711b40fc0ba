package address

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
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/identity"
)

const storeTimeout = 10 * time.Second

type webService struct {
	logger   mylog.Logger
	service  *service
	resolver *identity.Resolver
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(store mystore.Store[Address], resolver *identity.Resolver, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("address")
	return &webService{
		logger:   logger,
		service:  newService(store, nower, uuider, logger),
		resolver: resolver,
	}
}

// Finder gives the order service lookup-only access to addresses
func (s *webService) Finder() *service {
	return s.service
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/address", s.createAddressPage()).Methods("POST")
	router.HandleFunc("/address", s.listAddressesPage()).Methods("GET")
	router.HandleFunc("/address/{addressUID}", s.updateAddressPage()).Methods("PUT")

	return nil
}

type addressBody struct {
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Title          string `json:"title"`
	Text           string `json:"text"`
	DistrictID     int    `json:"district_id"`
	NeighborhoodID int    `json:"neighborhood_id"`
}

type addressResponse struct {
	Address Address
}

type addressListResponse struct {
	Addresses []Address
}

func (s *webService) createAddressPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)
		if !hasIdentity {
			errorWriter.WriteError(c, w, 1, myerrors.NewAuthenticationError(fmt.Errorf("no session")))
			return
		}

		body := addressBody{}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(fmt.Errorf("error decoding body: %s", err)))
			return
		}

		addr, err := s.service.create(c, Address{
			UserUID:        ident.UserUID,
			Name:           body.Name,
			Surname:        body.Surname,
			Title:          body.Title,
			Text:           body.Text,
			DistrictID:     body.DistrictID,
			NeighborhoodID: body.NeighborhoodID,
		})
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, addressResponse{Address: addr})
	}
}

func (s *webService) listAddressesPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)
		if !hasIdentity {
			errorWriter.WriteError(c, w, 1, myerrors.NewAuthenticationError(fmt.Errorf("no session")))
			return
		}

		addresses, err := s.service.listForUser(c, ident.UserUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, addressListResponse{Addresses: addresses})
	}
}

func (s *webService) updateAddressPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		ident, hasIdentity := s.resolver.ResolveFromRequest(r)
		if !hasIdentity {
			errorWriter.WriteError(c, w, 1, myerrors.NewAuthenticationError(fmt.Errorf("no session")))
			return
		}

		body := addressBody{}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputError(fmt.Errorf("error decoding body: %s", err)))
			return
		}

		addr, err := s.service.update(c, ident.UserUID, Address{
			UID:            mux.Vars(r)["addressUID"],
			Name:           body.Name,
			Surname:        body.Surname,
			Title:          body.Title,
			Text:           body.Text,
			DistrictID:     body.DistrictID,
			NeighborhoodID: body.NeighborhoodID,
		})
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, addressResponse{Address: addr})
	}
}
