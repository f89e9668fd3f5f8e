package playground

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/formfold/formfold/engine"
)

// Store keeps live playground sessions in a TTL cache. Sessions are
// ephemeral; an expired session simply vanishes and the client starts a
// fresh one (or restores from its share token).
type Store struct {
	sessions *cache.Cache
	factory  func() *engine.Engine
}

// NewStore creates a session store. factory builds a fully wired engine
// for each new session.
func NewStore(ttl time.Duration, factory func() *engine.Engine) *Store {
	return &Store{
		sessions: cache.New(ttl, 2*ttl),
		factory:  factory,
	}
}

// Create builds a new session and returns its id.
func (s *Store) Create() (string, *engine.Engine) {
	id := uuid.NewString()
	e := s.factory()
	s.sessions.Set(id, e, cache.DefaultExpiration)
	return id, e
}

// Get returns the session for id, refreshing its TTL.
func (s *Store) Get(id string) (*engine.Engine, bool) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s.sessions.Set(id, v, cache.DefaultExpiration)
	return v.(*engine.Engine), true
}
