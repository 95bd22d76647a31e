package mail

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendIsNoopWhenDisabled(t *testing.T) {
	s := New(Config{Enable: false})
	require.False(t, s.Enabled())
	require.NoError(t, s.Send(Message{To: []string{"a@b.com"}, Subject: "x"}))
}

func TestPasswordResetTemplateRenders(t *testing.T) {
	html, err := renderTemplate(passwordResetTpl, PasswordResetData{
		ResetURL: "https://app.example.com/reset-password?token=abc",
		ValidFor: "1 hour",
		SiteName: "Event Planner",
	})
	require.NoError(t, err)

	assert.Contains(t, html, `href="https://app.example.com/reset-password?token=abc"`)
	assert.Contains(t, html, "expires in 1 hour")
	assert.Contains(t, html, "Event Planner")
	assert.Contains(t, html, fmt.Sprintf("&copy;%d", time.Now().Year()))
}

func TestPasswordResetTemplateEscapesURL(t *testing.T) {
	html, err := renderTemplate(passwordResetTpl, PasswordResetData{
		ResetURL: `"><script>alert(1)</script>`,
		ValidFor: "1 hour",
		SiteName: "Event Planner",
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(html, "<script>alert(1)</script>"))
}
