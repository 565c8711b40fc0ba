package address

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/identity"
)

func TestAddressService(t *testing.T) {

	t.Run("Create address", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, uuider := setup(t, ctrl)

		// given
		uuider.EXPECT().Create().Return("address-1")

		// when
		request, err := http.NewRequest(http.MethodPost, "/address",
			strings.NewReader(`{"name":"Jane","surname":"Smith","title":"home","text":"Main street 1","district_id":5,"neighborhood_id":12}`))
		assert.NoError(t, err)
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)

		stored, exists, _ := storer.Get(ctx, "address-1")
		assert.True(t, exists)
		assert.Equal(t, "user-1", stored.UserUID)
		assert.Equal(t, "Main street 1", stored.Text)
		assert.Equal(t, 5, stored.DistrictID)
	})

	t.Run("List addresses of caller only", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _ := setup(t, ctrl)

		// given
		storer.Put(ctx, "address-1", Address{UID: "address-1", UserUID: "user-1", Title: "home"})
		storer.Put(ctx, "address-2", Address{UID: "address-2", UserUID: "user-2", Title: "work"})

		// when
		request, err := http.NewRequest(http.MethodGet, "/address", nil)
		assert.NoError(t, err)
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		resp := addressListResponse{}
		err = json.Unmarshal(response.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Len(t, resp.Addresses, 1)
		assert.Equal(t, "address-1", resp.Addresses[0].UID)
	})

	t.Run("Update address", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _ := setup(t, ctrl)

		// given
		storer.Put(ctx, "address-1", Address{UID: "address-1", UserUID: "user-1", Title: "home", Text: "Main street 1"})

		// when
		request, err := http.NewRequest(http.MethodPut, "/address/address-1",
			strings.NewReader(`{"name":"Jane","surname":"Smith","title":"home","text":"Side street 2"}`))
		assert.NoError(t, err)
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "address-1")
		assert.Equal(t, "Side street 2", stored.Text)
		assert.NotNil(t, stored.LastModified)
	})

	t.Run("Update address of another user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, resolver, _ := setup(t, ctrl)

		// given
		storer.Put(ctx, "address-1", Address{UID: "address-1", UserUID: "user-2", Title: "home"})

		// when
		request, err := http.NewRequest(http.MethodPut, "/address/address-1",
			strings.NewReader(`{"title":"home","text":"Side street 2"}`))
		assert.NoError(t, err)
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 403, response.Code)
	})

	t.Run("Update unknown address", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, resolver, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPut, "/address/unknown",
			strings.NewReader(`{"title":"home","text":"Side street 2"}`))
		assert.NoError(t, err)
		addSessionCookie(t, request, resolver, "user-1")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Address], *identity.Resolver, *myuuid.MockUUIDer) {
	c := context.TODO()
	storer, _, _ := mystore.New[Address](c)
	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
	uuider := myuuid.NewMockUUIDer(ctrl)
	resolver := identity.NewResolver(identity.Config{Secret: []byte("test-secret")}, nower)

	sut := NewService(storer, resolver, nower, uuider)
	router := mux.NewRouter()

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, resolver, uuider
}

func addSessionCookie(t *testing.T, r *http.Request, resolver *identity.Resolver, userUID string) {
	token, err := resolver.MintRegistered(userUID)
	assert.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: identity.CookieName, Value: token})
}
