package basket

import (
	"context"
	"fmt"

	"github.com/MarcGrol/webshopbackend/lib/myhttp"
	"github.com/MarcGrol/webshopbackend/lib/mylog"
	"github.com/MarcGrol/webshopbackend/services/order/orderevents"
)

func (s *service) Subscribe(c context.Context) error {
	err := s.subscriber.Subscribe(c, orderevents.TopicName, myhttp.GuessHostnameWithScheme()+"/api/basket/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", orderevents.TopicName, err)
	}

	return nil
}

// OnOrderCreated is the event-driven backstop for basket deactivation: the
// order flow deactivates in its own transaction, but when that write is
// lost this consumer flips the basket on the published fact instead.
func (s *service) OnOrderCreated(c context.Context, topic string, event orderevents.OrderCreated) error {
	s.logger.Log(c, event.BasketUID, mylog.SeverityInfo, "Event: order %s created out of basket %s", event.OrderUID, event.BasketUID)

	now := s.nower.Now()

	return s.basketStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		flipped, err := s.basketStore.DeactivateByUID(c, event.BasketUID, now)
		if err != nil {
			return err
		}
		if flipped {
			s.logger.Log(c, event.BasketUID, mylog.SeverityWarn, "Basket %s was still active after order %s; deactivated via event",
				event.BasketUID, event.OrderUID)
		}
		return nil
	})
}
