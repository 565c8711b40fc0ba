package user

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
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/identity"
	"github.com/MarcGrol/webshopbackend/services/user/userevents"
)

const storeTimeout = 10 * time.Second

type webService struct {
	logger   mylog.Logger
	service  *service
	resolver *identity.Resolver
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(userStore mystore.Store[User], resolver *identity.Resolver, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("user")
	return &webService{
		logger:   logger,
		service:  newService(userStore, resolver, publisher, nower, uuider, logger),
		resolver: resolver,
	}
}

// Guests gives the basket service access to guest user creation
func (s *webService) Guests() *service {
	return s.service
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/user", s.registerPage()).Methods("POST")
	router.HandleFunc("/user/login", s.loginPage()).Methods("POST")

	err := s.service.publisher.CreateTopic(c, userevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", userevents.TopicName, err)
	}

	return nil
}

type credentialsBody struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (b credentialsBody) validate() error {
	if b.Phone == "" || b.Password == "" {
		return myerrors.NewInvalidInputErrorf("missing phone or password")
	}
	return nil
}

type sessionResponse struct {
	UserUID string
	Token   string
}

func (s *webService) registerPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		body := credentialsBody{}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error decoding body: %s", err)))
			return
		}
		err = body.validate()
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		// a guest session is optional here: with one, the guest record is
		// promoted in place, without one a fresh registered user is created
		ident, hasIdentity := s.resolver.ResolveFromRequest(r)

		result, err := s.service.register(c, ident, hasIdentity, body.Phone, body.Password)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		switch result.Outcome {
		case RegisterOutcomePhoneTaken:
			errorWriter.WriteError(c, w, 4, myerrors.NewInvalidInputErrorf("phone already registered"))
		case RegisterOutcomeGuestNotFound:
			errorWriter.WriteError(c, w, 5, myerrors.NewNotFoundError(fmt.Errorf("guest user %s not found", ident.UserUID)))
		default:
			s.setSessionCookie(w, result.Token)
			errorWriter.Write(c, w, http.StatusOK, sessionResponse{
				UserUID: result.User.UID,
				Token:   result.Token,
			})
		}
	}
}

func (s *webService) loginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, cancel := context.WithTimeout(mycontext.ContextFromHTTPRequest(r), storeTimeout)
		defer cancel()
		errorWriter := myhttp.NewWriter(s.logger)

		body := credentialsBody{}
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error decoding body: %s", err)))
			return
		}
		err = body.validate()
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		result, err := s.service.login(c, body.Phone, body.Password)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		switch result.Outcome {
		case LoginOutcomeUserNotExists:
			errorWriter.WriteError(c, w, 4, myerrors.NewNotFoundError(fmt.Errorf("no user with this phone")))
		case LoginOutcomeNotVerified:
			errorWriter.WriteError(c, w, 5, myerrors.NewAuthenticationError(fmt.Errorf("password verification failed")))
		default:
			s.setSessionCookie(w, result.Token)
			errorWriter.Write(c, w, http.StatusOK, sessionResponse{
				UserUID: result.User.UID,
				Token:   result.Token,
			})
		}
	}
}

func (s *webService) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:  identity.CookieName,
		Value: token,
		Path:  "/",
	})
}
