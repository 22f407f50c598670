package domain

import "time"

// Session is the durable record of an authenticated session. A minimal
// identity snapshot is mirrored into the ephemeral store under the same id
// for fast validation; the durable row is authoritative for audit/listing.
type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	IP        string    `json:"ip" dynamodbav:"ip"`
	UserAgent string    `json:"user_agent" dynamodbav:"user_agent"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}
