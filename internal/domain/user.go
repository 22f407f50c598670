package domain

import "time"

// Roles, ordered by privilege. ADMIN and SUPER_ADMIN bypass OTP challenges.
const (
	RoleEmployee   = "EMPLOYEE"
	RoleManager    = "MANAGER"
	RoleHR         = "HR"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// Account statuses. Only Active accounts may log in.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Login methods. Ip_address and Ip_Otp gate the attempt on the IP allow-list;
// Otp and Ip_Otp additionally require a one-time code.
const (
	LoginMethodGeneral = "General"
	LoginMethodOtp     = "Otp"
	LoginMethodIP      = "Ip_address"
	LoginMethodIPOtp   = "Ip_Otp"
)

// IPWildcard in a user's allow-list admits any request IP.
const IPWildcard = "*"

type User struct {
	UserID            string     `json:"id" dynamodbav:"user_id"`
	Email             string     `json:"email" dynamodbav:"email"`
	PasswordHash      string     `json:"-" dynamodbav:"password_hash"`
	Role              string     `json:"role" dynamodbav:"role"`
	Status            string     `json:"status" dynamodbav:"status"`
	LoginMethod       string     `json:"login_method" dynamodbav:"login_method"`
	AllowedIPs        []string   `json:"allowed_ips,omitempty" dynamodbav:"allowed_ips"`
	FirstName         string     `json:"first_name" dynamodbav:"first_name"`
	LastName          string     `json:"last_name" dynamodbav:"last_name"`
	Phone             *string    `json:"phone,omitempty" dynamodbav:"phone"`
	IsEmailVerified   bool       `json:"is_email_verified" dynamodbav:"is_email_verified"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty" dynamodbav:"last_login_at"`
	LastLoginIP       string     `json:"last_login_ip,omitempty" dynamodbav:"last_login_ip"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty" dynamodbav:"password_changed_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt         time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// Snapshot is the minimal identity projection mirrored into the ephemeral
// store alongside a session, and returned on session validation.
type Snapshot struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	LoginMethod string `json:"login_method"`
}

func (u *User) Snapshot() Snapshot {
	return Snapshot{
		UserID:      u.UserID,
		Email:       u.Email,
		Role:        u.Role,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		LoginMethod: u.LoginMethod,
	}
}

// Permissions is the effective-permissions view assembled into login
// responses. The permission strings themselves are opaque to this core.
type Permissions struct {
	Role         string   `json:"role"`
	Grants       []string `json:"grants"`
	IsSuperAdmin bool     `json:"is_super_admin"`
}

type UpdateProfileRequest struct {
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	Phone       *string  `json:"phone"`
	LoginMethod *string  `json:"login_method"`
	AllowedIPs  []string `json:"allowed_ips"`
}

func ValidRole(r string) bool {
	switch r {
	case RoleEmployee, RoleManager, RoleHR, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func ValidLoginMethod(m string) bool {
	switch m {
	case LoginMethodGeneral, LoginMethodOtp, LoginMethodIP, LoginMethodIPOtp:
		return true
	}
	return false
}
