package user

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/mylog"
	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/identity"
	"github.com/MarcGrol/webshopbackend/services/user/userevents"
)

// RegisterOutcome enumerates the expected results of registration. These
// are control flow, not errors: the web layer maps each to its own response.
type RegisterOutcome int

const (
	RegisterOutcomeRegistered RegisterOutcome = iota
	RegisterOutcomePhoneTaken
	// RegisterOutcomeGuestNotFound: the caller presented a guest session
	// whose user record does not exist, so there is nothing to promote
	RegisterOutcomeGuestNotFound
)

type RegisterResult struct {
	Outcome RegisterOutcome
	User    User
	Token   string
}

type LoginOutcome int

const (
	LoginOutcomeVerified LoginOutcome = iota
	LoginOutcomeUserNotExists
	LoginOutcomeNotVerified
)

type LoginResult struct {
	Outcome LoginOutcome
	User    User
	Token   string
}

type service struct {
	userStore mystore.Store[User]
	resolver  *identity.Resolver
	publisher mypublisher.Publisher
	nower     mytime.Nower
	uuider    myuuid.UUIDer
	logger    mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(userStore mystore.Store[User], resolver *identity.Resolver, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		userStore: userStore,
		resolver:  resolver,
		publisher: publisher,
		nower:     nower,
		uuider:    uuider,
		logger:    logger,
	}
}

// CreateGuest stores an empty user record for a first-time anonymous
// caller and returns its uid. The basket service calls this when an
// anonymous visitor adds a first item.
func (s *service) CreateGuest(c context.Context) (string, error) {
	user := User{
		UID:       s.uuider.Create(),
		Guest:     true,
		CreatedAt: s.nower.Now(),
	}

	err := s.userStore.RunInTransaction(c, func(c context.Context) error {
		err := s.userStore.Put(c, user.UID, user)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing guest user %s: %s", user.UID, err))
		}
		return s.publisher.Publish(c, userevents.TopicName, userevents.GuestCreated{
			UserUID: user.UID,
		})
	})
	if err != nil {
		return "", err
	}

	return user.UID, nil
}

// register creates a registered user or promotes the caller's guest record
// in place. Promotion keeps the uid, so the guest's basket stays attached
// to the account.
func (s *service) register(c context.Context, ident identity.Identity, hasIdentity bool, phone string, password string) (RegisterResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, myerrors.NewInternalError(fmt.Errorf("error hashing password: %s", err))
	}

	now := s.nower.Now()
	promoteGuest := hasIdentity && ident.IsGuest()

	var result RegisterResult
	err = s.userStore.RunInTransaction(c, func(c context.Context) error {
		taken, err := s.phoneExists(c, phone)
		if err != nil {
			return err
		}
		if taken {
			result = RegisterResult{Outcome: RegisterOutcomePhoneTaken}
			return nil
		}

		var user User
		if promoteGuest {
			existing, found, err := s.userStore.Get(c, ident.UserUID)
			if err != nil {
				return myerrors.NewInternalError(fmt.Errorf("error fetching user %s: %s", ident.UserUID, err))
			}
			if !found {
				result = RegisterResult{Outcome: RegisterOutcomeGuestNotFound}
				return nil
			}
			existing.Phone = phone
			existing.PasswordHash = hash
			existing.Guest = false
			existing.LastModified = &now
			user = existing
		} else {
			user = User{
				UID:          s.uuider.Create(),
				Phone:        phone,
				PasswordHash: hash,
				Guest:        false,
				CreatedAt:    now,
			}
		}

		err = s.userStore.Put(c, user.UID, user)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing user %s: %s", user.UID, err))
		}

		result = RegisterResult{Outcome: RegisterOutcomeRegistered, User: user}

		return s.publisher.Publish(c, userevents.TopicName, userevents.UserRegistered{
			UserUID:  user.UID,
			WasGuest: promoteGuest,
		})
	})
	if err != nil {
		return RegisterResult{}, err
	}

	if result.Outcome != RegisterOutcomeRegistered {
		return result, nil
	}

	token, err := s.resolver.MintRegistered(result.User.UID)
	if err != nil {
		return RegisterResult{}, myerrors.NewInternalError(err)
	}
	result.Token = token

	s.logger.Log(c, result.User.UID, mylog.SeverityInfo, "Registered user %s (promoted guest: %t)",
		result.User.UID, promoteGuest)

	return result, nil
}

func (s *service) login(c context.Context, phone string, password string) (LoginResult, error) {
	users, err := s.userStore.Query(c, []mystore.Filter{
		{Field: "Phone", Compare: "=", Value: phone},
	}, "")
	if err != nil {
		return LoginResult{}, myerrors.NewInternalError(fmt.Errorf("error querying user by phone: %s", err))
	}
	if len(users) == 0 {
		return LoginResult{Outcome: LoginOutcomeUserNotExists}, nil
	}
	user := users[0]

	err = bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password))
	if err != nil {
		return LoginResult{Outcome: LoginOutcomeNotVerified}, nil
	}

	token, err := s.resolver.MintRegistered(user.UID)
	if err != nil {
		return LoginResult{}, myerrors.NewInternalError(err)
	}

	s.logger.Log(c, user.UID, mylog.SeverityInfo, "User %s logged in", user.UID)

	return LoginResult{Outcome: LoginOutcomeVerified, User: user, Token: token}, nil
}

func (s *service) phoneExists(c context.Context, phone string) (bool, error) {
	users, err := s.userStore.Query(c, []mystore.Filter{
		{Field: "Phone", Compare: "=", Value: phone},
	}, "")
	if err != nil {
		return false, myerrors.NewInternalError(fmt.Errorf("error querying user by phone: %s", err))
	}
	return len(users) > 0, nil
}
