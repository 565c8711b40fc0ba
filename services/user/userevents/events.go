package userevents

const (
	TopicName          = "user"
	guestCreatedName   = TopicName + ".guestcreated"
	userRegisteredName = TopicName + ".registered"
)

type GuestCreated struct {
	UserUID string
}

func (e GuestCreated) GetEventTypeName() string {
	return guestCreatedName
}

func (e GuestCreated) GetAggregateName() string {
	return e.UserUID
}

type UserRegistered struct {
	UserUID string
	// WasGuest tells whether this registration promoted an existing guest
	WasGuest bool
}

func (e UserRegistered) GetEventTypeName() string {
	return userRegisteredName
}

func (e UserRegistered) GetAggregateName() string {
	return e.UserUID
}
