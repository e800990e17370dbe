// Package auth authenticates operators and issues their session tokens.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/events"
	"github.com/talkincode/toughpos/pkg/common"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrOperatorDisabled   = errors.New("operator is disabled")
	ErrSessionRevoked     = errors.New("session has been signed out")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims carried by an operator token
type Claims struct {
	OperatorID int64  `json:"oid,string"`
	Username   string `json:"usr"`
	Level      string `json:"lvl"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 operator tokens. Signed-out token ids
// are remembered until the token would have expired anyway.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	bus    *events.Bus

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewSessions(secret string, ttl time.Duration, bus *events.Bus) *Sessions {
	return &Sessions{
		secret:  []byte(secret),
		ttl:     ttl,
		bus:     bus,
		revoked: make(map[string]time.Time),
	}
}

// Issue signs a token for opr
func (s *Sessions) Issue(opr *domain.SysOpr) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		OperatorID: opr.ID,
		Username:   opr.Username,
		Level:      opr.Level,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        common.UUIDString(),
			Subject:   strconv.FormatInt(opr.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	s.bus.Publish(events.TopicAuth, "signin", opr.Username)
	return token, claims, nil
}

// Parse validates a token string and returns its claims
func (s *Sessions) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if !s.Present(claims.ID) {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Present reports whether the session jti has not been signed out
func (s *Sessions) Present(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, revoked := s.revoked[jti]
	return !revoked
}

// Revoke signs out the session of claims
func (s *Sessions) Revoke(claims *Claims) {
	expires := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	s.mu.Lock()
	s.revoked[claims.ID] = expires
	s.mu.Unlock()
	s.bus.Publish(events.TopicAuth, "signout", claims.Username)
}

// Purge forgets revocations of tokens that have expired
func (s *Sessions) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for jti, expires := range s.revoked {
		if now.After(expires) {
			delete(s.revoked, jti)
			n++
		}
	}
	return n
}
