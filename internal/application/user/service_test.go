package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hr-workforce-api/internal/domain"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	args := m.Called(ctx, userID, updates)
	return args.Error(0)
}

func (m *mockUserStore) SoftDelete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type activitySpy struct {
	events []domain.ActivityEvent
}

func (a *activitySpy) Record(_ context.Context, ev domain.ActivityEvent) {
	a.events = append(a.events, ev)
}

func TestUpdateProfile_AppliesOnlyProvidedFields(t *testing.T) {
	repo := new(mockUserStore)
	spy := &activitySpy{}
	svc := NewService(repo, spy)

	first := "Janet"
	method := domain.LoginMethodOtp
	var updates map[string]interface{}
	repo.On("Update", mock.Anything, "usr_1", mock.Anything).
		Run(func(args mock.Arguments) {
			updates = args.Get(2).(map[string]interface{})
		}).Return(nil)
	repo.On("Get", mock.Anything, "usr_1").Return(&domain.User{UserID: "usr_1", FirstName: first}, nil)

	_, err := svc.UpdateProfile(context.Background(), "usr_1", domain.UpdateProfileRequest{
		FirstName:   &first,
		LoginMethod: &method,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"first_name":   "Janet",
		"login_method": domain.LoginMethodOtp,
	}, updates)
	require.Len(t, spy.events, 1)
	assert.Equal(t, domain.ActionUpdate, spy.events[0].Action)
}

func TestUpdateProfile_RejectsUnknownLoginMethod(t *testing.T) {
	repo := new(mockUserStore)
	svc := NewService(repo, &activitySpy{})

	bad := "Facial_recognition"
	_, err := svc.UpdateProfile(context.Background(), "usr_1", domain.UpdateProfileRequest{LoginMethod: &bad})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfile_EmptyRequestIsARead(t *testing.T) {
	repo := new(mockUserStore)
	svc := NewService(repo, &activitySpy{})

	repo.On("Get", mock.Anything, "usr_1").Return(&domain.User{UserID: "usr_1"}, nil)

	u, err := svc.UpdateProfile(context.Background(), "usr_1", domain.UpdateProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, "usr_1", u.UserID)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetStatus_ValidatesStatus(t *testing.T) {
	repo := new(mockUserStore)
	spy := &activitySpy{}
	svc := NewService(repo, spy)

	err := svc.SetStatus(context.Background(), "usr_1", "Suspended")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	repo.On("Update", mock.Anything, "usr_1", map[string]interface{}{"status": domain.StatusInactive}).Return(nil)
	require.NoError(t, svc.SetStatus(context.Background(), "usr_1", domain.StatusInactive))
	require.Len(t, spy.events, 1)
	assert.Equal(t, domain.ActionStatusChange, spy.events[0].Action)
}

func TestDelete_SoftDeletes(t *testing.T) {
	repo := new(mockUserStore)
	spy := &activitySpy{}
	svc := NewService(repo, spy)

	repo.On("SoftDelete", mock.Anything, "usr_1").Return(nil)
	require.NoError(t, svc.Delete(context.Background(), "usr_1"))
	repo.AssertExpectations(t)
	require.Len(t, spy.events, 1)
}
