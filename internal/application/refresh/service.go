package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hr-workforce-api/internal/domain"
)

const keyPrefix = "refresh:"

type tokenStore interface {
	Put(ctx context.Context, t *domain.RefreshToken) error
	GetByValue(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	LinkReplacement(ctx context.Context, token, replacedBy string) error
}

type mirrorStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	DeleteExisting(ctx context.Context, key string) (bool, error)
}

// Service tracks, rotates and revokes refresh tokens by value. Token values
// are minted by the token issuer; this service owns their lifecycle. The
// durable record is authoritative for revocation; the mirror accelerates
// the positive lookup and serves as the atomic claim during rotation.
type Service struct {
	tokens tokenStore
	mirror mirrorStore
	ttl    time.Duration
}

func NewService(tokens tokenStore, mirror mirrorStore, ttl time.Duration) *Service {
	return &Service{tokens: tokens, mirror: mirror, ttl: ttl}
}

// Issue registers a freshly minted token value for userID: durable row plus
// mirror entry with matching TTL, one failure unit. When replaces is
// non-empty the predecessor's row is linked forward to the new value,
// extending the rotation chain for audit.
func (s *Service) Issue(ctx context.Context, value, userID, ip, userAgent, replaces string) error {
	now := time.Now().UTC()
	rec := &domain.RefreshToken{
		Token:     value,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl).Unix(),
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
	}
	if err := s.tokens.Put(ctx, rec); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	if err := s.mirror.Set(ctx, keyPrefix+value, userID, s.ttl); err != nil {
		if dbErr := s.tokens.Revoke(ctx, value); dbErr != nil {
			slog.Warn("failed to roll back refresh token after mirror write failure", "err", dbErr)
		}
		return fmt.Errorf("mirror refresh token: %w", err)
	}
	if replaces != "" {
		if err := s.tokens.LinkReplacement(ctx, replaces, value); err != nil {
			slog.Warn("failed to link replacement token", "err", err)
		}
	}
	return nil
}

// Rotate validates the presented token, claims it, and revokes it. The
// mirror lookup rejects unknown tokens fast; the durable record then decides
// revocation and expiry even if the mirror still holds the entry. The atomic
// mirror delete is the claim: two concurrent rotations of the same value
// yield exactly one success, which is the replay-protection invariant.
func (s *Service) Rotate(ctx context.Context, presented string) (*domain.RefreshToken, error) {
	_, ok, err := s.mirror.Get(ctx, keyPrefix+presented)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}

	rec, err := s.tokens.GetByValue(ctx, presented)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if rec.Revoked {
		return nil, fmt.Errorf("refresh token revoked: %w", domain.ErrUnauthorized)
	}
	if rec.ExpiresAt < time.Now().Unix() {
		return nil, fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}

	claimed, err := s.mirror.DeleteExisting(ctx, keyPrefix+presented)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("refresh token already rotated: %w", domain.ErrUnauthorized)
	}

	if err := s.tokens.Revoke(ctx, presented); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return rec, nil
}

// Revoke marks the token revoked and drops its mirror entry. Idempotent.
func (s *Service) Revoke(ctx context.Context, value string) error {
	if err := s.tokens.Revoke(ctx, value); err != nil {
		return err
	}
	return s.mirror.Delete(ctx, keyPrefix+value)
}
