package identity

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MarcGrol/webshopbackend/lib/mytime"
)

type Config struct {
	// Secret signs and verifies session tokens. Injected, never a
	// compile-time constant, so tests can run with their own secret.
	Secret []byte
	// TokenTTL of 0 mints tokens without expiry
	TokenTTL time.Duration
}

type sessionClaims struct {
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Resolver mints and verifies the stateless bearer tokens that identify
// guest and registered users.
type Resolver struct {
	config Config
	nower  mytime.Nower
}

func NewResolver(config Config, nower mytime.Nower) *Resolver {
	return &Resolver{
		config: config,
		nower:  nower,
	}
}

func (tr *Resolver) MintGuest(userUID string) (string, error) {
	return tr.mint(userUID, KindGuest)
}

func (tr *Resolver) MintRegistered(userUID string) (string, error) {
	return tr.mint(userUID, KindRegistered)
}

func (tr *Resolver) mint(userUID string, kind Kind) (string, error) {
	claims := sessionClaims{
		UserType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userUID,
			IssuedAt: jwt.NewNumericDate(tr.nower.Now()),
		},
	}
	if tr.config.TokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(tr.nower.Now().Add(tr.config.TokenTTL))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tr.config.Secret)
	if err != nil {
		return "", fmt.Errorf("error signing %s token for user %s: %s", kind, userUID, err)
	}
	return token, nil
}

// Parse verifies a raw token. A missing, malformed or unverifiable token
// yields a false ok-flag: it means "anonymous", not "request failed".
func (tr *Resolver) Parse(rawToken string) (Identity, bool) {
	if rawToken == "" {
		return Identity{}, false
	}

	claims := sessionClaims{}
	token, err := jwt.ParseWithClaims(rawToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return tr.config.Secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, false
	}

	kind := Kind(claims.UserType)
	if kind != KindGuest && kind != KindRegistered {
		return Identity{}, false
	}
	if claims.Subject == "" {
		return Identity{}, false
	}

	return Identity{
		UserUID: claims.Subject,
		Kind:    kind,
	}, true
}

// ResolveFromRequest extracts the session token from the access_token
// cookie or, failing that, a bearer Authorization header.
func (tr *Resolver) ResolveFromRequest(r *http.Request) (Identity, bool) {
	cookie, err := r.Cookie(CookieName)
	if err == nil && cookie.Value != "" {
		return tr.Parse(cookie.Value)
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return tr.Parse(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return Identity{}, false
}
