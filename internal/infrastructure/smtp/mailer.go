package smtp

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hr-workforce-api/internal/config"
)

// Mailer delivers transactional mail. The auth flows only ever send
// one-time codes, so that is the whole surface.
type Mailer interface {
	SendCode(to, code string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (m *mailer) SendCode(to, code string) error {
	msg := codeMessage(m.from, to, code)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}

func codeMessage(from, to, code string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your verification code\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your verification code is %s.\r\n", code)
	b.WriteString("\r\n")
	b.WriteString("The code expires shortly and can be used once. If you did not request it, ignore this message.\r\n")
	return b.String()
}
