package user

import (
	"context"
	"fmt"

	"github.com/hr-workforce-api/internal/domain"
)

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
}

type activityRecorder interface {
	Record(ctx context.Context, ev domain.ActivityEvent)
}

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	SetStatus(ctx context.Context, userID, status string) error
	Delete(ctx context.Context, userID string) error
}

type service struct {
	repo     userStore
	activity activityRecorder
}

func NewService(repo userStore, activity activityRecorder) Service {
	return &service{repo: repo, activity: activity}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.LoginMethod != nil {
		if !domain.ValidLoginMethod(*req.LoginMethod) {
			return nil, fmt.Errorf("invalid login method: %w", domain.ErrBadRequest)
		}
		updates["login_method"] = *req.LoginMethod
	}
	if req.AllowedIPs != nil {
		updates["allowed_ips"] = req.AllowedIPs
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      userID,
		Action:      domain.ActionUpdate,
		Description: "profile updated",
	})
	return s.repo.Get(ctx, userID)
}

func (s *service) SetStatus(ctx context.Context, userID, status string) error {
	if status != domain.StatusActive && status != domain.StatusInactive {
		return fmt.Errorf("invalid status: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{"status": status}); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      userID,
		Action:      domain.ActionStatusChange,
		Description: "status set to " + status,
	})
	return nil
}

// Delete soft-deletes the account; rows are never physically removed.
func (s *service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.SoftDelete(ctx, userID); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      userID,
		Action:      domain.ActionUpdate,
		Description: "account deactivated",
	})
	return nil
}
