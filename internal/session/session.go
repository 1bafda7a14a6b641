// Package session holds the current bearer credential and the user identity
// derived from it. Login and refresh flows live elsewhere; this store only
// reflects whatever credential the embedding application hands it.
package session

import (
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Store is the process-wide session state. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	token  string
	userID string
}

// NewStore starts with an optional initial credential.
func NewStore(token string) *Store {
	s := &Store{}
	if token != "" {
		s.SetCredential(token)
	}
	return s
}

// SetCredential replaces the bearer credential and re-derives the user id.
func (s *Store) SetCredential(token string) {
	userID := UserIDFromToken(token)
	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.mu.Unlock()
}

// Clear drops the credential; the session becomes a guest.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.userID = ""
	s.mu.Unlock()
}

// Token returns the current bearer credential, empty for guests.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID returns the current user id, empty for guests.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// UserIDFromToken extracts the "sub" claim without verifying the signature.
// Verification is the backend's job; the client only needs a stable identity
// to key the ledger and the push channel. Garbage tokens yield an empty id.
func UserIDFromToken(token string) string {
	if token == "" {
		return ""
	}
	unverified, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		log.Debug().Err(err).Msg("session: credential is not a parseable JWT")
		return ""
	}
	claims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
