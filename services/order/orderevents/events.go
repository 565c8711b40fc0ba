package orderevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MarcGrol/webshopbackend/lib/myerrors"
	"github.com/MarcGrol/webshopbackend/lib/myevents"
)

const (
	TopicName        = "order"
	orderCreatedName = TopicName + ".created"
)

// OrderEventService is implemented by services that want to act on order
// events pushed to their event endpoint.
type OrderEventService interface {
	Subscribe(c context.Context) error
	OnOrderCreated(c context.Context, topic string, event OrderCreated) error
}

func DispatchEvent(c context.Context, reader io.Reader, service OrderEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case orderCreatedName:
		{
			event := OrderCreated{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnOrderCreated(c, envelope.Topic, event)
		}
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("%s", envelope.EventTypeName))
	}
}

type OrderCreated struct {
	OrderUID  string
	UserUID   string
	BasketUID string
}

func (e OrderCreated) GetEventTypeName() string {
	return orderCreatedName
}

func (e OrderCreated) GetAggregateName() string {
	return e.OrderUID
}
