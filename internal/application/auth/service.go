package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hr-workforce-api/internal/application/otp"
	"github.com/hr-workforce-api/internal/application/policy"
	"github.com/hr-workforce-api/internal/domain"
	jwtinfra "github.com/hr-workforce-api/internal/infrastructure/jwt"
	"github.com/hr-workforce-api/internal/pkg/id"
)

const pendingKeyPrefix = "pending:reg:"

// Statuses returned by the two-call login protocol.
const (
	StatusOK          = "ok"
	StatusOTPRequired = "otp_required"
	StatusPending     = "pending_verification"
)

type RegisterRequest struct {
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required,min=8,max=72"`
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	Phone      *string `json:"phone"`
	OtpChannel string  `json:"otp_channel" validate:"required,oneof=EMAIL SMS"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned by both halves of the login protocol. Tokens are
// only present when the session was completed; a challenge response carries
// Status=otp_required and nothing else.
type LoginResult struct {
	Status       string              `json:"status"`
	AccessToken  string              `json:"access_token,omitempty"`
	RefreshToken string              `json:"refresh_token,omitempty"`
	SessionID    string              `json:"session_id,omitempty"`
	OtpSkipped   bool                `json:"otp_skipped"`
	BypassReason string              `json:"bypass_reason,omitempty"`
	User         *domain.Snapshot    `json:"user,omitempty"`
	Permissions  *domain.Permissions `json:"permissions,omitempty"`
}

// RefreshResult is the rotated token pair.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordMessage is returned for every forgot-password call, found
// or not, to prevent account enumeration.
const ForgotPasswordMessage = "If the email exists, a reset code has been sent"

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (string, error)
	ConfirmRegistration(ctx context.Context, email, code string) (*domain.User, error)
	Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*LoginResult, error)
	VerifyLogin(ctx context.Context, email, code, ip, userAgent string) (*LoginResult, error)
	Refresh(ctx context.Context, presented, ip, userAgent string) (*RefreshResult, error)
	Logout(ctx context.Context, userID, sessionID, ip string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type pendingStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

type otpChallenge interface {
	Issue(ctx context.Context, purpose, email string, ttl time.Duration) (string, error)
	Verify(ctx context.Context, purpose, email, candidate string) (bool, error)
	InvalidateAll(ctx context.Context, email string) error
}

type policyEngine interface {
	Evaluate(ctx context.Context, u *domain.User, requestIP string) (policy.Decision, error)
}

type sessionManager interface {
	Open(ctx context.Context, u *domain.User, ip, userAgent string) (string, error)
	Close(ctx context.Context, sessionID string) error
}

type tokenRotator interface {
	Issue(ctx context.Context, value, userID, ip, userAgent, replaces string) error
	Rotate(ctx context.Context, presented string) (*domain.RefreshToken, error)
}

type tokenIssuer interface {
	SignPair(userID, email, role, sessionID string) (access, refresh string, err error)
	SignAccess(userID, email, role, sessionID string) (string, error)
	SignRefresh(userID, email, role, sessionID string) (string, error)
	VerifyRefresh(tokenStr string) (*jwtinfra.Claims, error)
}

type otpDispatcher interface {
	SendOTP(ctx context.Context, channel, recipient, code string) error
}

type activityRecorder interface {
	Record(ctx context.Context, ev domain.ActivityEvent)
}

type passwordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type service struct {
	users       userStore
	pending     pendingStore
	otps        otpChallenge
	policy      policyEngine
	sessions    sessionManager
	rotator     tokenRotator
	issuer      tokenIssuer
	dispatcher  otpDispatcher
	activity    activityRecorder
	hasher      passwordHasher
	otpTTL      time.Duration
	loginOtpTTL time.Duration
}

type ServiceDeps struct {
	Users       userStore
	Pending     pendingStore
	OTPs        otpChallenge
	Policy      policyEngine
	Sessions    sessionManager
	Rotator     tokenRotator
	Issuer      tokenIssuer
	Dispatcher  otpDispatcher
	Activity    activityRecorder
	Hasher      passwordHasher
	OTPTTL      time.Duration
	LoginOTPTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:       deps.Users,
		pending:     deps.Pending,
		otps:        deps.OTPs,
		policy:      deps.Policy,
		sessions:    deps.Sessions,
		rotator:     deps.Rotator,
		issuer:      deps.Issuer,
		dispatcher:  deps.Dispatcher,
		activity:    deps.Activity,
		hasher:      deps.Hasher,
		otpTTL:      deps.OTPTTL,
		loginOtpTTL: deps.LoginOTPTTL,
	}
}

// Register starts the two-phase registration: the payload is parked in the
// ephemeral store under the email and a registration OTP is dispatched. No
// durable account exists until the code is confirmed.
func (s *service) Register(ctx context.Context, req RegisterRequest) (string, error) {
	// Only a definitive not-found clears the email; a store failure must
	// not let a duplicate registration through.
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return "", fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if req.OtpChannel == domain.ChannelSMS && req.Phone == nil {
		return "", fmt.Errorf("phone number required for SMS verification: %w", domain.ErrBadRequest)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(domain.PendingRegistration{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		OtpChannel:   req.OtpChannel,
	})
	if err != nil {
		return "", err
	}
	// Overwrites any prior pending registration for this email.
	if err := s.pending.Set(ctx, pendingKeyPrefix+req.Email, string(payload), s.otpTTL); err != nil {
		return "", err
	}

	code, err := s.otps.Issue(ctx, otp.PurposeRegistration, req.Email, s.otpTTL)
	if err != nil {
		return "", err
	}
	recipient := req.Email
	if req.OtpChannel == domain.ChannelSMS {
		recipient = *req.Phone
	}
	if err := s.dispatcher.SendOTP(ctx, req.OtpChannel, recipient, code); err != nil {
		return "", err
	}
	return StatusPending, nil
}

// ConfirmRegistration consumes the registration OTP and the pending payload.
// Both TTL'd records must still be alive; either one missing is a distinct
// terminal failure and the whole registration must be restarted.
func (s *service) ConfirmRegistration(ctx context.Context, email, code string) (*domain.User, error) {
	ok, err := s.otps.Verify(ctx, otp.PurposeRegistration, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("invalid or expired OTP: %w", domain.ErrBadRequest)
	}

	raw, found, err := s.pending.Get(ctx, pendingKeyPrefix+email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("registration expired, please register again: %w", domain.ErrBadRequest)
	}
	var pend domain.PendingRegistration
	if err := json.Unmarshal([]byte(raw), &pend); err != nil {
		return nil, fmt.Errorf("corrupt pending registration: %w", err)
	}

	// Re-check uniqueness right before the put: an account created since
	// the first call must not be shadowed by an unconditional write.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:          id.New(),
		Email:           pend.Email,
		PasswordHash:    pend.PasswordHash,
		Role:            domain.RoleEmployee,
		Status:          domain.StatusActive,
		LoginMethod:     domain.LoginMethodGeneral,
		FirstName:       pend.FirstName,
		LastName:        pend.LastName,
		Phone:           pend.Phone,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.pending.Delete(ctx, pendingKeyPrefix+email); err != nil {
		// The account exists; a leftover pending entry only wastes a TTL slot.
		slog.Warn("failed to drop pending registration", "email", email, "err", err)
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      u.UserID,
		Action:      domain.ActionCreate,
		Description: "account registered",
	})
	return u, nil
}

// Login is the first call of the two-call protocol. Credential failures of
// every kind collapse to one generic error to avoid account enumeration.
func (s *service) Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*LoginResult, error) {
	u, err := s.resolveCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	decision, err := s.policy.Evaluate(ctx, u, ip)
	if err != nil {
		return nil, err
	}
	if decision.IPCheckRequired && !decision.IPCheckPassed {
		return nil, fmt.Errorf("login from this address is not allowed: %w", domain.ErrUnauthorized)
	}

	if !decision.OTPRequired {
		return s.completeSession(ctx, u, ip, userAgent, decision.BypassReason)
	}

	code, err := s.otps.Issue(ctx, otp.PurposeLogin, u.Email, s.loginOtpTTL)
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.SendOTP(ctx, domain.ChannelEmail, u.Email, code); err != nil {
		return nil, err
	}
	return &LoginResult{Status: StatusOTPRequired}, nil
}

// VerifyLogin is the second call. The identity is re-resolved and the IP
// policy re-evaluated rather than trusting the first call's decision.
func (s *service) VerifyLogin(ctx context.Context, email, code, ip, userAgent string) (*LoginResult, error) {
	u, err := s.resolveIdentity(ctx, email)
	if err != nil {
		return nil, err
	}

	decision, err := s.policy.Evaluate(ctx, u, ip)
	if err != nil {
		return nil, err
	}
	if decision.IPCheckRequired && !decision.IPCheckPassed {
		return nil, fmt.Errorf("login from this address is not allowed: %w", domain.ErrUnauthorized)
	}
	// The OTP stands in for the password on this call. Identities whose
	// policy skips the OTP complete their session on the first call, so
	// there is no credential this endpoint could accept for them.
	if !decision.OTPRequired {
		return nil, fmt.Errorf("no verification pending for this account: %w", domain.ErrUnauthorized)
	}
	ok, err := s.otps.Verify(ctx, otp.PurposeLogin, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("invalid or expired OTP: %w", domain.ErrUnauthorized)
	}
	return s.completeSession(ctx, u, ip, userAgent, decision.BypassReason)
}

// completeSession is the shared tail of both login paths: token pair,
// session open, initial refresh-token registration, last-login stamp,
// audit event, response assembly.
func (s *service) completeSession(ctx context.Context, u *domain.User, ip, userAgent, bypassReason string) (*LoginResult, error) {
	sessionID, err := s.sessions.Open(ctx, u, ip, userAgent)
	if err != nil {
		return nil, err
	}
	access, refreshTok, err := s.issuer.SignPair(u.UserID, u.Email, u.Role, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.rotator.Issue(ctx, refreshTok, u.UserID, ip, userAgent, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{
		"last_login_at": now.Format(time.RFC3339),
		"last_login_ip": ip,
	}); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      u.UserID,
		Action:      domain.ActionLogin,
		Description: "logged in",
		IP:          ip,
	})

	snap := u.Snapshot()
	return &LoginResult{
		Status:       StatusOK,
		AccessToken:  access,
		RefreshToken: refreshTok,
		SessionID:    sessionID,
		OtpSkipped:   bypassReason != "",
		BypassReason: bypassReason,
		User:         &snap,
		Permissions: &domain.Permissions{
			Role:         u.Role,
			IsSuperAdmin: u.Role == domain.RoleSuperAdmin,
		},
	}, nil
}

// Refresh rotates the presented refresh token and mints a new pair. The
// session id is carried over from the presented token; no session is opened.
func (s *service) Refresh(ctx context.Context, presented, ip, userAgent string) (*RefreshResult, error) {
	// Signature check first: a forged or expired JWT never reaches the stores.
	claims, err := s.issuer.VerifyRefresh(presented)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
	}
	rec, err := s.rotator.Rotate(ctx, presented)
	if err != nil {
		return nil, err
	}
	if rec.UserID != claims.Subject {
		return nil, fmt.Errorf("refresh token subject mismatch: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.Get(ctx, rec.UserID)
	if err != nil || u.DeletedAt != nil || u.Status != domain.StatusActive {
		return nil, fmt.Errorf("account unavailable: %w", domain.ErrUnauthorized)
	}

	access, err := s.issuer.SignAccess(u.UserID, u.Email, u.Role, "")
	if err != nil {
		return nil, err
	}
	next, err := s.issuer.SignRefresh(u.UserID, u.Email, u.Role, "")
	if err != nil {
		return nil, err
	}
	if err := s.rotator.Issue(ctx, next, u.UserID, ip, userAgent, presented); err != nil {
		return nil, err
	}
	return &RefreshResult{AccessToken: access, RefreshToken: next}, nil
}

// Logout closes the session. Outstanding refresh tokens stay valid until
// they expire or are rotated; logout is session-scoped.
func (s *service) Logout(ctx context.Context, userID, sessionID, ip string) error {
	if err := s.sessions.Close(ctx, sessionID); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      userID,
		Action:      domain.ActionLogout,
		Description: "logged out",
		IP:          ip,
	})
	return nil
}

// ChangePassword requires re-verification of the current password.
func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, u.PasswordHash) {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrBadRequest)
	}
	if err := s.writePassword(ctx, u, newPassword); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      u.UserID,
		Action:      domain.ActionPasswordChange,
		Description: "password changed",
	})
	return nil
}

// ForgotPassword issues a reset OTP when the account exists, and returns
// the identical message either way to prevent enumeration.
func (s *service) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || u.DeletedAt != nil {
		return ForgotPasswordMessage, nil
	}
	code, err := s.otps.Issue(ctx, otp.PurposePasswordReset, u.Email, s.otpTTL)
	if err != nil {
		return "", err
	}
	if err := s.dispatcher.SendOTP(ctx, domain.ChannelEmail, u.Email, code); err != nil {
		return "", err
	}
	return ForgotPasswordMessage, nil
}

// ResetPassword consumes the reset OTP and writes the new hash.
func (s *service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	ok, err := s.otps.Verify(ctx, otp.PurposePasswordReset, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invalid or expired OTP: %w", domain.ErrBadRequest)
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("invalid or expired OTP: %w", domain.ErrBadRequest)
	}
	if err := s.writePassword(ctx, u, newPassword); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		UserID:      u.UserID,
		Action:      domain.ActionPasswordChange,
		Description: "password reset",
	})
	return nil
}

func (s *service) writePassword(ctx context.Context, u *domain.User, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{
		"password_hash":       hash,
		"password_changed_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	// Codes issued before the credential change must not remain redeemable.
	if err := s.otps.InvalidateAll(ctx, u.Email); err != nil {
		slog.Warn("failed to invalidate outstanding codes", "user_id", u.UserID, "err", err)
	}
	return nil
}

// resolveCredentials collapses unknown email, soft-deleted account and
// wrong password into one generic unauthorized error.
func (s *service) resolveCredentials(ctx context.Context, email, plaintext string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || u.DeletedAt != nil || !s.hasher.Verify(plaintext, u.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if u.Status != domain.StatusActive {
		return nil, fmt.Errorf("account is not active: %w", domain.ErrUnauthorized)
	}
	return u, nil
}

// resolveIdentity re-resolves the account for the second login call, where
// possession of the OTP stands in for the password.
func (s *service) resolveIdentity(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || u.DeletedAt != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if u.Status != domain.StatusActive {
		return nil, fmt.Errorf("account is not active: %w", domain.ErrUnauthorized)
	}
	return u, nil
}
