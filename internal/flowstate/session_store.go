package flowstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 24 * time.Hour

// SessionStore persists WizardState snapshots in Redis keyed by visit ID,
// so an abandoned wizard can be resumed via Hydrate. The in-memory Store
// stays authoritative during a session; this is only the resume snapshot.
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if client == nil {
		panic("flowstate: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{redis: client, ttl: ttl}
}

// Save overwrites the snapshot for the visit.
func (s *SessionStore) Save(ctx context.Context, visitID string, state WizardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("flowstate: marshal session snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(visitID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("flowstate: persist session snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot for the visit, or (nil, nil) when none exists.
func (s *SessionStore) Load(ctx context.Context, visitID string) (*WizardState, error) {
	data, err := s.redis.Get(ctx, sessionKey(visitID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("flowstate: load session snapshot: %w", err)
	}
	var state WizardState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("flowstate: decode session snapshot: %w", err)
	}
	return &state, nil
}

// Delete removes the snapshot, used when a flow resets.
func (s *SessionStore) Delete(ctx context.Context, visitID string) error {
	if err := s.redis.Del(ctx, sessionKey(visitID)).Err(); err != nil {
		return fmt.Errorf("flowstate: delete session snapshot: %w", err)
	}
	return nil
}

func sessionKey(visitID string) string {
	return fmt.Sprintf("wizard_session:%s", visitID)
}
