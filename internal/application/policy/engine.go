package policy

import (
	"context"

	"github.com/hr-workforce-api/internal/domain"
)

// Bypass reasons recorded in login decisions for audit.
const (
	BypassRole   = "role"   // ADMIN / SUPER_ADMIN never face an OTP challenge
	BypassMethod = "method" // login method does not request OTP
)

// Decision is the transient output of evaluating a login attempt against the
// identity's login method, role and the request IP. It is never persisted.
type Decision struct {
	IPCheckRequired bool
	IPCheckPassed   bool
	OTPRequired     bool
	BypassReason    string
}

// GlobalIPChecker looks up the separately maintained global allow-list,
// consulted when the user's own list does not match.
type GlobalIPChecker interface {
	IsAllowed(ctx context.Context, ip string) (bool, error)
}

// Engine decides, per login attempt, whether an IP check applies and whether
// an OTP challenge is required. Pure over (user, ip) plus the global lookup.
type Engine struct {
	globalIPs GlobalIPChecker
}

func NewEngine(globalIPs GlobalIPChecker) *Engine {
	return &Engine{globalIPs: globalIPs}
}

// Evaluate applies the rules in order: the IP gate first, then the OTP
// requirement. The decision is returned even when the IP check fails; the
// caller turns a failed required check into a terminal authorization error.
// The returned error is only ever a global-list lookup failure.
func (e *Engine) Evaluate(ctx context.Context, u *domain.User, requestIP string) (Decision, error) {
	var d Decision

	ipMethod := u.LoginMethod == domain.LoginMethodIP || u.LoginMethod == domain.LoginMethodIPOtp
	d.IPCheckRequired = ipMethod && u.Role != domain.RoleSuperAdmin
	if d.IPCheckRequired {
		passed, err := e.ipAllowed(ctx, u, requestIP)
		if err != nil {
			return d, err
		}
		d.IPCheckPassed = passed
	} else {
		d.IPCheckPassed = true
	}

	otpMethod := u.LoginMethod == domain.LoginMethodOtp || u.LoginMethod == domain.LoginMethodIPOtp
	adminRole := u.Role == domain.RoleAdmin || u.Role == domain.RoleSuperAdmin
	d.OTPRequired = otpMethod && !adminRole
	if !d.OTPRequired {
		if otpMethod {
			d.BypassReason = BypassRole
		} else {
			d.BypassReason = BypassMethod
		}
	}
	return d, nil
}

func (e *Engine) ipAllowed(ctx context.Context, u *domain.User, requestIP string) (bool, error) {
	for _, ip := range u.AllowedIPs {
		if ip == domain.IPWildcard || ip == requestIP {
			return true, nil
		}
	}
	return e.globalIPs.IsAllowed(ctx, requestIP)
}
