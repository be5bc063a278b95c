// Package auth provides the bearer credential shared by the REST and realtime clients.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoCredential    = errors.New("token or token file is required")
	ErrEmptyToken      = errors.New("token file is empty")
	ErrCredentialValue = errors.New("token contains whitespace")
)

// Credentials holds the bearer token for one session.
type Credentials struct {
	Token string
}

// LoadCredentials returns credentials from token, or from tokenPath when
// token is empty.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	if token == "" {
		if tokenPath == "" {
			return nil, ErrNoCredential
		}
		var err error
		token, err = LoadToken(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
	}

	token = strings.TrimSpace(token)
	if strings.ContainsAny(token, " \t\r\n") {
		return nil, ErrCredentialValue
	}

	return &Credentials{Token: token}, nil
}

// LoadToken reads a token file, trimming surrounding whitespace.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// SetBearer sets the Authorization header. An empty token leaves h untouched.
func SetBearer(h http.Header, token string) {
	if token == "" {
		return
	}
	h.Set("Authorization", "Bearer "+token)
}

// Header returns the request headers that authenticate these credentials.
func (c *Credentials) Header() http.Header {
	h := http.Header{}
	SetBearer(h, c.Token)
	return h
}

// ExpiresAt returns the exp claim when the token is a JWT. The signature is
// not verified; the order service does that. Opaque tokens report false.
func (c *Credentials) ExpiresAt() (time.Time, bool) {
	claims := gojwt.MapClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token carries an exp claim before now.
func (c *Credentials) Expired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	return ok && !now.Before(exp)
}

// String redacts the token for logging.
func (c *Credentials) String() string {
	if len(c.Token) <= 8 {
		return "Bearer ****"
	}
	return "Bearer " + c.Token[:4] + "****"
}
