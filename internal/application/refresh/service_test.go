package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hr-workforce-api/internal/domain"
	"github.com/hr-workforce-api/internal/infrastructure/cache"
)

type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) Put(ctx context.Context, t *domain.RefreshToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockTokenStore) GetByValue(ctx context.Context, token string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockTokenStore) Revoke(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenStore) LinkReplacement(ctx context.Context, token, replacedBy string) error {
	args := m.Called(ctx, token, replacedBy)
	return args.Error(0)
}

// newMirror backs the service with a real ephemeral store so the atomic
// claim behaves exactly as it does in production.
func newMirror(t *testing.T) *cache.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return cache.NewStore(rdb)
}

func liveRecord(value string) *domain.RefreshToken {
	return &domain.RefreshToken{
		Token:     value,
		UserID:    "usr_1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		CreatedAt: time.Now().UTC(),
	}
}

func TestIssue_WritesDurableAndMirror(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	var stored *domain.RefreshToken
	tokens.On("Put", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.RefreshToken)
		}).Return(nil)

	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "10.0.0.5", "agent", ""))

	require.NotNil(t, stored)
	assert.Equal(t, "tok_1", stored.Token)
	assert.Equal(t, "usr_1", stored.UserID)
	assert.False(t, stored.Revoked)

	owner, ok, err := mirror.Get(ctx, keyPrefix+"tok_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "usr_1", owner)

	tokens.AssertNotCalled(t, "LinkReplacement", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssue_LinksPredecessor(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	tokens.On("LinkReplacement", mock.Anything, "tok_old", "tok_new").Return(nil)

	require.NoError(t, svc.Issue(context.Background(), "tok_new", "usr_1", "", "", "tok_old"))
	tokens.AssertExpectations(t)
}

func TestIssue_DurableFailureLeavesNoMirror(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)

	tokens.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	require.Error(t, svc.Issue(context.Background(), "tok_1", "usr_1", "", "", ""))

	_, ok, err := mirror.Get(context.Background(), keyPrefix+"tok_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRotate_HappyPath(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "", "", ""))

	tokens.On("GetByValue", mock.Anything, "tok_1").Return(liveRecord("tok_1"), nil)
	tokens.On("Revoke", mock.Anything, "tok_1").Return(nil)

	rec, err := svc.Rotate(ctx, "tok_1")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", rec.UserID)

	// The claim removed the mirror entry.
	_, ok, err := mirror.Get(ctx, keyPrefix+"tok_1")
	require.NoError(t, err)
	assert.False(t, ok)
	tokens.AssertCalled(t, "Revoke", mock.Anything, "tok_1")
}

func TestRotate_UnknownTokenFailsFast(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)

	_, err := svc.Rotate(context.Background(), "never-issued")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	tokens.AssertNotCalled(t, "GetByValue", mock.Anything, mock.Anything)
}

func TestRotate_DurableLookupFailureIsNotUnauthorized(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "", "", ""))

	// A throttled read is an outage, not an invalid token.
	tokens.On("GetByValue", mock.Anything, "tok_1").Return(nil, errors.New("dynamo throttled"))

	_, err := svc.Rotate(ctx, "tok_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)

	// The mirror entry survives, so the token stays usable after recovery.
	_, ok, err := mirror.Get(ctx, keyPrefix+"tok_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRotate_ReplayFails(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "", "", ""))

	tokens.On("GetByValue", mock.Anything, "tok_1").Return(liveRecord("tok_1"), nil)
	tokens.On("Revoke", mock.Anything, "tok_1").Return(nil)

	_, err := svc.Rotate(ctx, "tok_1")
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, "tok_1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRotate_DurableRevocationWinsOverLiveMirror(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "", "", ""))

	revoked := liveRecord("tok_1")
	revoked.Revoked = true
	tokens.On("GetByValue", mock.Anything, "tok_1").Return(revoked, nil)

	_, err := svc.Rotate(ctx, "tok_1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// The stale mirror entry must not have been consumed as a claim.
	_, ok, err := mirror.Get(ctx, keyPrefix+"tok_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRotate_ExpiredRecordFails(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "", "", ""))

	expired := liveRecord("tok_1")
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	tokens.On("GetByValue", mock.Anything, "tok_1").Return(expired, nil)

	_, err := svc.Rotate(ctx, "tok_1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRotate_ConcurrentCallsExactlyOneSucceeds(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "", "", ""))

	tokens.On("GetByValue", mock.Anything, "tok_1").Return(liveRecord("tok_1"), nil)
	tokens.On("Revoke", mock.Anything, "tok_1").Return(nil)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Rotate(ctx, "tok_1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRevoke_DropsDurableAndMirror(t *testing.T) {
	tokens := new(mockTokenStore)
	mirror := newMirror(t)
	svc := NewService(tokens, mirror, time.Hour)
	ctx := context.Background()

	tokens.On("Put", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.Issue(ctx, "tok_1", "usr_1", "", "", ""))

	tokens.On("Revoke", mock.Anything, "tok_1").Return(nil)
	require.NoError(t, svc.Revoke(ctx, "tok_1"))

	_, ok, err := mirror.Get(ctx, keyPrefix+"tok_1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Revoking again is harmless.
	require.NoError(t, svc.Revoke(ctx, "tok_1"))
}
