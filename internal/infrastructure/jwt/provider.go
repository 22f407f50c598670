package jwtinfra

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hr-workforce-api/internal/config"
)

// Claims holds the JWT payload fields shared by access and refresh tokens.
// Subject (sub) carries the user id; SessionID is empty on tokens minted
// outside a session (refresh-grant access tokens).
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 token pairs. Access and refresh tokens
// use distinct secrets and distinct lifetimes.
type Provider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("jwt secrets must be configured")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &Provider{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
	}, nil
}

// SignPair mints an access and a refresh token for the same identity.
func (p *Provider) SignPair(userID, email, role, sessionID string) (access, refresh string, err error) {
	access, err = p.sign(userID, email, role, sessionID, p.accessSecret, p.accessExpiry)
	if err != nil {
		return "", "", err
	}
	refresh, err = p.sign(userID, email, role, sessionID, p.refreshSecret, p.refreshExpiry)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// SignAccess mints only an access token, used on the refresh grant where no
// new session is opened.
func (p *Provider) SignAccess(userID, email, role, sessionID string) (string, error) {
	return p.sign(userID, email, role, sessionID, p.accessSecret, p.accessExpiry)
}

// SignRefresh mints only a refresh token, used when rotating an existing one.
func (p *Provider) SignRefresh(userID, email, role, sessionID string) (string, error) {
	return p.sign(userID, email, role, sessionID, p.refreshSecret, p.refreshExpiry)
}

func (p *Provider) sign(userID, email, role, sessionID string, secret []byte, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyAccess validates an access token and returns its claims.
func (p *Provider) VerifyAccess(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, p.accessSecret)
}

// VerifyRefresh validates a refresh JWT and returns its claims.
func (p *Provider) VerifyRefresh(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, p.refreshSecret)
}

func (p *Provider) verify(tokenStr string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
