package domain

import "time"

// RefreshToken is the durable record of a refresh token, keyed by the token
// value itself. Rotation
// revokes the presented token and links it to its successor via ReplacedBy,
// forming an audit chain. The durable row is authoritative for revocation;
// the ephemeral mirror only accelerates the positive lookup.
type RefreshToken struct {
	Token      string     `json:"-" dynamodbav:"token"`
	UserID     string     `json:"user_id" dynamodbav:"user_id"`
	ExpiresAt  int64      `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	Revoked    bool       `json:"revoked" dynamodbav:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" dynamodbav:"revoked_at"`
	ReplacedBy string     `json:"replaced_by,omitempty" dynamodbav:"replaced_by"`
	IP         string     `json:"ip" dynamodbav:"ip"`
	UserAgent  string     `json:"user_agent" dynamodbav:"user_agent"`
	CreatedAt  time.Time  `json:"created" dynamodbav:"created_at"`
}
