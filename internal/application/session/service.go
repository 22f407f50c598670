package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hr-workforce-api/internal/domain"
	"github.com/hr-workforce-api/internal/pkg/id"
)

const keyPrefix = "session:"

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
}

type mirrorStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Service creates, validates and revokes sessions. The durable row is
// authoritative for audit and listing; the ephemeral mirror is the hot path
// for validation and the one invalidated synchronously on logout.
type Service struct {
	sessions sessionStore
	mirror   mirrorStore
	ttl      time.Duration
}

func NewService(sessions sessionStore, mirror mirrorStore, ttl time.Duration) *Service {
	return &Service{sessions: sessions, mirror: mirror, ttl: ttl}
}

// Open persists a new session and mirrors the identity snapshot under the
// same id with a matching TTL. Both writes must succeed: a mirror failure
// disables the durable row so no valid-looking session exists without its
// fast-path entry.
func (s *Service) Open(ctx context.Context, u *domain.User, ip, userAgent string) (string, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		UserID:    u.UserID,
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.ttl).Unix(),
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}

	snap, err := json.Marshal(u.Snapshot())
	if err != nil {
		return "", fmt.Errorf("marshal session snapshot: %w", err)
	}
	if err := s.mirror.Set(ctx, keyPrefix+sess.SessionID, string(snap), s.ttl); err != nil {
		if dbErr := s.sessions.Disable(ctx, sess.SessionID); dbErr != nil {
			slog.Warn("failed to roll back session after mirror write failure",
				"session_id", sess.SessionID, "err", dbErr)
		}
		return "", fmt.Errorf("mirror session: %w", err)
	}
	return sess.SessionID, nil
}

// Validate resolves the identity snapshot for a session id from the mirror
// only; the durable store is never touched on this path.
func (s *Service) Validate(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	raw, ok, err := s.mirror.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session not active: %w", domain.ErrNotFound)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("corrupt session snapshot: %w", err)
	}
	return &snap, nil
}

// Close disables the durable row and deletes the mirror entry. Idempotent:
// closing an already-closed or unknown session is not an error.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	if err := s.sessions.Disable(ctx, sessionID); err != nil {
		return fmt.Errorf("disable session: %w", err)
	}
	return s.mirror.Delete(ctx, keyPrefix+sessionID)
}
