// Package profiles is the single authority for per-guild moderation
// configuration. Reads go through an in-memory cache, writes invalidate it
// before they are observable as committed.
package profiles

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cufee/botto-guardian/config"
	"github.com/cufee/botto-guardian/database"
)

// ErrNotFound - No profile exists for the guild
var ErrNotFound = database.ErrNotFound

// ErrValidation - Profile rejected before it reached the db
var ErrValidation = errors.New("invalid guild profile")

// Store - Guild profile store with a read-through cache
type Store struct {
	db    *database.Store
	cache *lru.Cache[string, database.GuildProfile]

	// Writers hold the write side across db write + cache invalidation,
	// miss-path fills hold the read side across db read + cache fill. A fill
	// can therefore never land after the invalidation of a newer write.
	mu sync.RWMutex
}

// NewStore - Build a profile store over the persistent db
func NewStore(db *database.Store) (*Store, error) {
	cache, err := lru.New[string, database.GuildProfile](config.ProfileCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// Get - Fetch a guild profile, populating the cache on a miss
func (s *Store) Get(gid string) (database.GuildProfile, error) {
	if p, ok := s.cache.Get(gid); ok {
		return p, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.db.GetGuildProfile(gid)
	if err != nil {
		return database.GuildProfile{}, err
	}
	s.cache.Add(gid, p)
	return p, nil
}

// Upsert - Validate and write a guild profile
func (s *Store) Upsert(p database.GuildProfile) error {
	if err := validate(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.PutGuildProfile(p); err != nil {
		return err
	}
	s.cache.Remove(p.ID)
	return nil
}

// Delete - Remove a guild profile, explicit administrative action only
func (s *Store) Delete(gid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteGuildProfile(gid); err != nil {
		return err
	}
	s.cache.Remove(gid)
	return nil
}

func validate(p database.GuildProfile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing guild id", ErrValidation)
	}
	required := map[string]string{
		"member role":    p.MemberRoleID,
		"moderator role": p.ModeratorRoleID,
		"wait channel":   p.WaitChannelID,
		"laws channel":   p.LawsChannelID,
		"mod channel":    p.ModChannelID,
	}
	for name, id := range required {
		if id == "" || id == "0" {
			return fmt.Errorf("%w: missing %s id", ErrValidation, name)
		}
	}
	if p.HashThreshold < 0 || p.TextThreshold < 0 || p.RepostThreshold < 0 {
		return fmt.Errorf("%w: negative threshold", ErrValidation)
	}
	return nil
}

// HashThreshold - Profile hash distance threshold or the default
func HashThreshold(p database.GuildProfile) int {
	if p.HashThreshold > 0 {
		return p.HashThreshold
	}
	return config.DefaultHashThreshold
}

// TextThreshold - Profile text severity threshold or the default
func TextThreshold(p database.GuildProfile) float64 {
	if p.TextThreshold > 0 {
		return p.TextThreshold
	}
	return config.DefaultTextThreshold
}

// RepostThreshold - Profile repost escalation threshold or the default
func RepostThreshold(p database.GuildProfile) int {
	if p.RepostThreshold > 0 {
		return p.RepostThreshold
	}
	return config.DefaultRepostThreshold
}
