package domain

// OTP delivery channels. The set is closed; each channel maps to one sender
// implementation in the notification gateway.
const (
	ChannelEmail = "EMAIL"
	ChannelSMS   = "SMS"
)

// PendingRegistration is the ephemeral half of a two-phase registration.
// It is keyed by email in the ephemeral store, overwritten by a repeated
// register call, and consumed on successful OTP confirmation. If its TTL
// elapses first the whole registration must be restarted.
type PendingRegistration struct {
	Email        string  `json:"email"`
	PasswordHash string  `json:"password_hash"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Phone        *string `json:"phone,omitempty"`
	OtpChannel   string  `json:"otp_channel"` // EMAIL | SMS
}

func ValidChannel(c string) bool {
	return c == ChannelEmail || c == ChannelSMS
}
