package identity

// Kind tells whether a user record has been promoted with phone+password
// or still is an anonymous-born guest.
type Kind string

const (
	KindGuest      Kind = "guest"
	KindRegistered Kind = "registered"
)

// Identity is the resolved caller of a request. Absence of an Identity
// (anonymous caller) is expressed with a false ok-flag, never with an error:
// what "no identity" means is decided per operation by the caller.
type Identity struct {
	UserUID string
	Kind    Kind
}

func (i Identity) IsGuest() bool {
	return i.Kind == KindGuest
}

// CookieName is the cookie that carries the session token
const CookieName = "access_token"
