package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeMessage(t *testing.T) {
	msg := codeMessage("noreply@corp.test", "jane@corp.test", "123456")

	assert.True(t, strings.HasPrefix(msg, "From: noreply@corp.test\r\n"))
	assert.Contains(t, msg, "To: jane@corp.test\r\n")
	assert.Contains(t, msg, "Subject: Your verification code\r\n")
	assert.Contains(t, msg, "123456")
	// Headers and body must be separated by a blank line.
	assert.Contains(t, msg, "\r\n\r\n")
}
