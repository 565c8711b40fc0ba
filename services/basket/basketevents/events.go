package basketevents

const (
	TopicName           = "basket"
	basketCreatedName   = TopicName + ".created"
	basketItemAddedName = TopicName + ".itemadded"
	basketCompletedName = TopicName + ".completed"
)

type BasketCreated struct {
	BasketUID string
	UserUID   string
}

func (e BasketCreated) GetEventTypeName() string {
	return basketCreatedName
}

func (e BasketCreated) GetAggregateName() string {
	return e.BasketUID
}

type BasketItemAdded struct {
	BasketUID  string
	UserUID    string
	ProductUID string
	SellerUID  string
}

func (e BasketItemAdded) GetEventTypeName() string {
	return basketItemAddedName
}

func (e BasketItemAdded) GetAggregateName() string {
	return e.BasketUID
}

// BasketCompleted is published when a basket is deactivated because it has
// been converted into an order.
type BasketCompleted struct {
	BasketUID string
	UserUID   string
	OrderUID  string
}

func (e BasketCompleted) GetEventTypeName() string {
	return basketCompletedName
}

func (e BasketCompleted) GetAggregateName() string {
	return e.BasketUID
}
