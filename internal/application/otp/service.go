package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTP purposes. Each (purpose, email) pair holds at most one active code.
const (
	PurposeRegistration  = "registration"
	PurposeLogin         = "login"
	PurposePasswordReset = "password-reset"
)

// store is the slice of the ephemeral store the challenge needs: TTL'd
// writes and the atomic compare-and-delete that makes consumption
// exactly-once under concurrent verification.
type store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// Service generates, stores and consumes one-time codes.
type Service struct {
	store  store
	length int
}

func NewService(st store, length int) *Service {
	if length < 4 {
		length = 6
	}
	return &Service{store: st, length: length}
}

func key(purpose, email string) string {
	return "otp:" + purpose + ":" + email
}

// Issue generates a numeric code of the configured length (left-zero-padded),
// stores it under (purpose, email) with the given TTL, overwriting any prior
// code for that key, and returns it for out-of-band delivery.
func (s *Service) Issue(ctx context.Context, purpose, email string, ttl time.Duration) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%0*d", s.length, n)
	if err := s.store.Set(ctx, key(purpose, email), code, ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Verify consumes the stored code. An absent (never issued or expired) or
// mismatched code fails closed without deleting anything; a match deletes
// the key and succeeds. At most one concurrent caller can succeed per code.
func (s *Service) Verify(ctx context.Context, purpose, email, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	return s.store.CompareAndDelete(ctx, key(purpose, email), candidate)
}

// Invalidate drops any outstanding code for (purpose, email).
func (s *Service) Invalidate(ctx context.Context, purpose, email string) error {
	return s.store.Delete(ctx, key(purpose, email))
}

// InvalidateAll drops outstanding codes for email across every purpose.
// Called after a credential change so codes issued before it cannot be used.
func (s *Service) InvalidateAll(ctx context.Context, email string) error {
	return s.store.DeletePattern(ctx, "otp:*:"+email)
}
