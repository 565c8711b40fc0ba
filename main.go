package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/webshopbackend/lib/mypublisher"
	"github.com/MarcGrol/webshopbackend/lib/mypubsub"
	"github.com/MarcGrol/webshopbackend/lib/myqueue"
	"github.com/MarcGrol/webshopbackend/lib/mystore"
	"github.com/MarcGrol/webshopbackend/lib/mytime"
	"github.com/MarcGrol/webshopbackend/lib/myuuid"
	"github.com/MarcGrol/webshopbackend/services/address"
	"github.com/MarcGrol/webshopbackend/services/basket"
	"github.com/MarcGrol/webshopbackend/services/identity"
	"github.com/MarcGrol/webshopbackend/services/order"
	"github.com/MarcGrol/webshopbackend/services/user"
)

func main() {
	c := context.Background()

	router := mux.NewRouter()

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	resolver := identity.NewResolver(identityConfigFromEnv(), nower)

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task queue: %s", err)
	}
	defer queueCleanup()

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	userStore, userStoreCleanup, err := mystore.New[user.User](c)
	if err != nil {
		log.Fatalf("Error creating user store: %s", err)
	}
	defer userStoreCleanup()

	userService := user.NewService(userStore, resolver, publisher, nower, uuider)
	err = userService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering user endpoints: %s", err)
	}

	basketStore, basketStoreCleanup, err := mystore.New[basket.Basket](c)
	if err != nil {
		log.Fatalf("Error creating basket store: %s", err)
	}
	defer basketStoreCleanup()

	basketService := basket.NewService(basketStore, userService.Guests(), resolver, publisher, pubsub, nower, uuider)
	err = basketService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering basket endpoints: %s", err)
	}

	addressStore, addressStoreCleanup, err := mystore.New[address.Address](c)
	if err != nil {
		log.Fatalf("Error creating address store: %s", err)
	}
	defer addressStoreCleanup()

	addressService := address.NewService(addressStore, resolver, nower, uuider)
	err = addressService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering address endpoints: %s", err)
	}

	orderStore, orderStoreCleanup, err := mystore.New[order.Order](c)
	if err != nil {
		log.Fatalf("Error creating order store: %s", err)
	}
	defer orderStoreCleanup()

	orderService := order.NewService(orderStore, basket.NewStore(basketStore), addressService.Finder(), resolver, publisher, queue, nower, uuider)
	err = orderService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering order endpoints: %s", err)
	}

	startWebServerBlocking(router)
}

func identityConfigFromEnv() identity.Config {
	secret := os.Getenv("SESSION_TOKEN_SECRET")
	if secret == "" {
		log.Fatalf("Missing env-var SESSION_TOKEN_SECRET")
	}

	ttl := time.Duration(0)
	ttlValue := os.Getenv("SESSION_TOKEN_TTL")
	if ttlValue != "" {
		var err error
		ttl, err = time.ParseDuration(ttlValue)
		if err != nil {
			log.Fatalf("Error parsing env-var SESSION_TOKEN_TTL: %s", err)
		}
	}

	return identity.Config{
		Secret:   []byte(secret),
		TokenTTL: ttl,
	}
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
