// Package token mints and verifies room-scoped media access credentials.
//
// Credentials are HS256 JWTs using the LiveKit claim layout: the key id is the
// issuer, the participant identity is the subject and the room grant lives in
// the "video" claim.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long a credential stays valid when no TTL is configured.
const DefaultTTL = time.Hour

// ErrConfiguration means the signing key id or secret is missing.
var ErrConfiguration = errors.New("signing key material not configured")

// IssuanceError means signing was attempted and failed. Its message never
// includes key material.
type IssuanceError struct {
	Err error
}

func (e *IssuanceError) Error() string { return "failed to sign access credential" }

func (e *IssuanceError) Unwrap() error { return e.Err }

// VideoGrant is the set of room permissions carried by a credential.
type VideoGrant struct {
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	Room         string `json:"room,omitempty"`
	CanPublish   *bool  `json:"canPublish,omitempty"`
	CanSubscribe *bool  `json:"canSubscribe,omitempty"`
}

// Allows reports whether the grant lets its holder join room.
func (g *VideoGrant) Allows(room string) bool {
	return g != nil && g.RoomJoin && g.Room != "" && g.Room == room
}

// Claims are the JWT claims of an access credential.
type Claims struct {
	Name     string      `json:"name,omitempty"`
	Metadata string      `json:"metadata,omitempty"`
	Video    *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

// Credential is a signed access token plus the values it encodes.
type Credential struct {
	Token     string
	Identity  string
	Room      string
	Grant     VideoGrant
	ExpiresAt time.Time
}

// Issuer signs credentials with one key id/secret pair.
type Issuer struct {
	keyID  string
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. Missing key material is only reported when
// Issue is called, so a misconfigured broker can still serve its health probe.
func NewIssuer(keyID, secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{keyID: keyID, secret: secret, ttl: ttl, now: time.Now}
}

// Configured reports whether the issuer holds usable key material.
func (i *Issuer) Configured() bool {
	return i.keyID != "" && i.secret != ""
}

// Issue mints a credential that lets participant join, publish to and
// subscribe in room, and nothing else. Metadata is optional participant
// metadata the media layer hands to the agent.
func (i *Issuer) Issue(room, participant, metadata string) (*Credential, error) {
	if !i.Configured() {
		return nil, ErrConfiguration
	}
	if room == "" || participant == "" {
		return nil, fmt.Errorf("room and participant are required")
	}

	now := i.now()
	expires := now.Add(i.ttl)
	grant := VideoGrant{
		RoomJoin:     true,
		Room:         room,
		CanPublish:   boolPtr(true),
		CanSubscribe: boolPtr(true),
	}
	claims := Claims{
		Name:     participant,
		Metadata: metadata,
		Video:    &grant,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.keyID,
			Subject:   participant,
			ID:        participant,
			ExpiresAt: jwt.NewNumericDate(expires),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.secret))
	if err != nil {
		return nil, &IssuanceError{Err: err}
	}

	return &Credential{
		Token:     signed,
		Identity:  participant,
		Room:      room,
		Grant:     grant,
		ExpiresAt: expires,
	}, nil
}

// Verify parses a credential signed by this issuer and checks its signature,
// issuer and expiry. Room scope is checked by the caller with Claims.Video.Allows.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if !i.Configured() {
		return nil, ErrConfiguration
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(i.secret), nil
	},
		jwt.WithIssuer(i.keyID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid credential: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid credential claims")
	}
	return claims, nil
}

func boolPtr(b bool) *bool { return &b }
