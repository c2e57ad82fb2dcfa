package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token is the decoded session cookie. Subject holds the user id.
type Token struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

type tokenCodec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func newTokenCodec(secret string, maxAge time.Duration) *tokenCodec {
	return &tokenCodec{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

func (c *tokenCodec) encode(u *User) (string, time.Time, error) {
	now := c.now()
	expires := now.Add(c.maxAge)
	tok := Token{
		Name:    u.Name,
		Email:   u.Email,
		Picture: u.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tok).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

func (c *tokenCodec) decode(raw string) (*Token, error) {
	tok := &Token{}
	_, err := jwt.ParseWithClaims(raw, tok, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return tok, nil
}
