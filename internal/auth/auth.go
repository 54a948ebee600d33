// Package auth guards the control API with a single operator account and
// HS256 bearer tokens. Credentials and the signing secret come from the
// environment; with AUTH_ENABLED unset the whole layer is a no-op.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("authentication is disabled")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
)

// Claims carries the operator name inside issued tokens.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator validates the operator credential pair and issues tokens.
type Authenticator struct {
	enabled      bool
	username     string
	passwordHash []byte
	secret       []byte
	expiry       time.Duration
}

// NewAuthenticator reads AUTH_ENABLED, AUTH_USERNAME, AUTH_PASSWORD,
// JWT_SECRET and JWT_EXPIRY from the environment. AUTH_PASSWORD may be
// either plaintext or a pre-computed bcrypt hash.
func NewAuthenticator() *Authenticator {
	a := &Authenticator{
		enabled:  os.Getenv("AUTH_ENABLED") == "true",
		username: os.Getenv("AUTH_USERNAME"),
		expiry:   24 * time.Hour,
	}
	if a.username == "" {
		a.username = "admin"
	}
	if exp := os.Getenv("JWT_EXPIRY"); exp != "" {
		if d, err := time.ParseDuration(exp); err == nil {
			a.expiry = d
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		a.secret = []byte(secret)
	} else {
		// Random per-process secret; tokens do not survive restarts (dev mode)
		buf := make([]byte, 32)
		rand.Read(buf)
		a.secret = []byte(hex.EncodeToString(buf))
	}

	if password := os.Getenv("AUTH_PASSWORD"); a.enabled && password != "" {
		if len(password) == 60 && password[0] == '$' {
			a.passwordHash = []byte(password)
		} else {
			if hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err == nil {
				a.passwordHash = hash
			}
		}
	}
	return a
}

// IsEnabled returns whether authentication is enabled
func (a *Authenticator) IsEnabled() bool {
	return a.enabled
}

// Authenticate checks the credential pair and returns a signed token plus
// its unix expiry.
func (a *Authenticator) Authenticate(username, password string) (string, int64, error) {
	if !a.enabled {
		return "", 0, ErrAuthDisabled
	}
	if username != a.username {
		return "", 0, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", 0, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(a.expiry)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "hazlabel",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", 0, err
	}
	return token, expiresAt.Unix(), nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword produces a bcrypt hash suitable for AUTH_PASSWORD.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
