package address

import (
	"context"
	"fmt"
	"sort"

	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/mylog"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
)

type service struct {
	addressStore mystore.Store[Address]
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	logger       mylog.Logger
}

func newService(store mystore.Store[Address], nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		addressStore: store,
		nower:        nower,
		uuider:       uuider,
		logger:       logger,
	}
}

func (s *service) create(c context.Context, addr Address) (Address, error) {
	addr.UID = s.uuider.Create()
	addr.CreatedAt = s.nower.Now()

	s.logger.Log(c, addr.UID, mylog.SeverityInfo, "Creating address %s for user %s", addr.UID, addr.UserUID)

	err := s.addressStore.Put(c, addr.UID, addr)
	if err != nil {
		return Address{}, myerrors.NewInternalError(fmt.Errorf("error storing address %s: %s", addr.UID, err))
	}

	return addr, nil
}

func (s *service) listForUser(c context.Context, userUID string) ([]Address, error) {
	addresses, err := s.addressStore.Query(c, []mystore.Filter{
		{Field: "UserUID", Compare: "=", Value: userUID},
	}, "")
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error querying addresses of user %s: %s", userUID, err))
	}

	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].CreatedAt.After(addresses[j].CreatedAt)
	})

	return addresses, nil
}

func (s *service) update(c context.Context, userUID string, addr Address) (Address, error) {
	now := s.nower.Now()

	err := s.addressStore.RunInTransaction(c, func(c context.Context) error {
		existing, found, err := s.addressStore.Get(c, addr.UID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("address %s not found", addr.UID))
		}
		if existing.UserUID != userUID {
			return myerrors.NewAuthenticationError(fmt.Errorf("address %s does not belong to user %s", addr.UID, userUID))
		}

		addr.UserUID = existing.UserUID
		addr.CreatedAt = existing.CreatedAt
		addr.LastModified = &now

		return s.addressStore.Put(c, addr.UID, addr)
	})
	if err != nil {
		return Address{}, err
	}

	return addr, nil
}

// Find looks up an address by uid. Consumed by the order service when it
// snapshots the delivery address into a new order.
func (s *service) Find(c context.Context, addressUID string) (Address, bool, error) {
	addr, found, err := s.addressStore.Get(c, addressUID)
	if err != nil {
		return Address{}, false, myerrors.NewInternalError(fmt.Errorf("error fetching address %s: %s", addressUID, err))
	}
	return addr, found, nil
}
