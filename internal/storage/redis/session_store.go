package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/idlewatch/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client    *redis.Client
	retention time.Duration

	start  *redis.Script
	append *redis.Script
	finish *redis.Script
}

func newSessionStore(client *redis.Client, retention time.Duration) *sessionStore {
	return &sessionStore{
		client:    client,
		retention: retention,
		start:     redis.NewScript(startSessionScript),
		append:    redis.NewScript(appendTransitionScript),
		finish:    redis.NewScript(finishSessionScript),
	}
}

// StartSession creates a new open session
func (s *sessionStore) StartSession(ctx context.Context, session storage.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	keys := []string{sessionKey(session.ID), sessionIndexKey, openSessionsKey}
	args := []interface{}{
		session.ID,
		session.Host,
		session.StartedAt.Format(time.RFC3339Nano),
		session.State,
		int64(session.IdleThreshold),
		int64(session.CheckInterval),
		session.StartedAt.UnixMilli(),
	}

	created, err := s.start.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return err
	}
	if created == 0 {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	return nil
}

// AppendTransition records a state change within a session
func (s *sessionStore) AppendTransition(ctx context.Context, tr storage.TransitionRecord) error {
	record, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("failed to encode transition: %w", err)
	}

	keys := []string{sessionKey(tr.SessionID), transitionsKey(tr.SessionID)}
	args := []interface{}{
		tr.To,
		totalField(tr.From),
		int64(tr.Duration),
		string(record),
	}

	ok, err := s.append.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FinishSession stores final totals and closes the session
func (s *sessionStore) FinishSession(ctx context.Context, session storage.Session) error {
	keys := []string{sessionKey(session.ID), transitionsKey(session.ID), openSessionsKey}
	args := []interface{}{
		session.ID,
		session.EndedAt.Format(time.RFC3339Nano),
		session.State,
		int64(session.Active),
		int64(session.Idle),
		int64(session.DisplaySleep),
		int64(session.SystemSleep),
		int64(s.retention / time.Second),
	}

	ok, err := s.finish.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *sessionStore) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseSession(data)
}

// ListSessions returns up to limit sessions, newest first. A limit of zero
// or less returns every indexed session.
func (s *sessionStore) ListSessions(ctx context.Context, limit int) ([]storage.Session, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, sessionIndexKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.Session{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, sessionKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	sessions := make([]storage.Session, 0, len(ids))
	var expired []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			expired = append(expired, ids[i])
			continue
		}

		session, err := parseSession(data)
		if err != nil {
			continue
		}
		sessions = append(sessions, *session)
	}

	// Sessions whose hash expired still sit in the index
	if len(expired) > 0 {
		s.client.ZRem(ctx, sessionIndexKey, expired...)
	}

	return sessions, nil
}

// ListTransitions returns the transitions of a session in order
func (s *sessionStore) ListTransitions(ctx context.Context, sessionID string) ([]storage.TransitionRecord, error) {
	exists, err := s.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, storage.ErrNotFound
	}

	raw, err := s.client.LRange(ctx, transitionsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storage.TransitionRecord, 0, len(raw))
	for _, r := range raw {
		var tr storage.TransitionRecord
		if err := json.Unmarshal([]byte(r), &tr); err != nil {
			return nil, fmt.Errorf("failed to decode transition: %w", err)
		}
		records = append(records, tr)
	}

	return records, nil
}

// DeleteSessionsBefore removes sessions started before cutoff
func (s *sessionStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, sessionIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.client.Del(ctx, sessionKey(id), transitionsKey(id)).Err(); err != nil {
			return deleted, err
		}
		if err := s.client.ZRem(ctx, sessionIndexKey, id).Err(); err != nil {
			return deleted, err
		}
		s.client.SRem(ctx, openSessionsKey, id)
		deleted++
	}

	return deleted, nil
}
