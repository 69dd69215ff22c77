package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// Store holds in-flight WebAuthn ceremonies between begin and finish.
type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

func regKey(token string) string { return fmt.Sprintf("library:webauthn:reg:%s", token) }
func authKey(sid string) string  { return fmt.Sprintf("library:webauthn:auth:%s", sid) }
func addKey(uid string) string   { return fmt.Sprintf("library:webauthn:add:%s", uid) }

func (s *Store) save(ctx context.Context, k string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, k, b, s.ttl).Err()
}

// take reads and removes the ceremony so a response cannot be replayed.
func (s *Store) take(ctx context.Context, k string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, k).Bytes()
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

// Registration by invite token.

func (s *Store) SaveReg(ctx context.Context, token string, sd *webauthn.SessionData) error {
	return s.save(ctx, regKey(token), sd)
}

func (s *Store) TakeReg(ctx context.Context, token string) (*webauthn.SessionData, error) {
	return s.take(ctx, regKey(token))
}

// Login, keyed by a random ceremony id handed to the browser.

func (s *Store) SaveAuth(ctx context.Context, sid string, sd *webauthn.SessionData) error {
	return s.save(ctx, authKey(sid), sd)
}

func (s *Store) TakeAuth(ctx context.Context, sid string) (*webauthn.SessionData, error) {
	return s.take(ctx, authKey(sid))
}

// Adding a passkey to a signed-in account.

func (s *Store) SaveAdd(ctx context.Context, userID string, sd *webauthn.SessionData) error {
	return s.save(ctx, addKey(userID), sd)
}

func (s *Store) TakeAdd(ctx context.Context, userID string) (*webauthn.SessionData, error) {
	return s.take(ctx, addKey(userID))
}
