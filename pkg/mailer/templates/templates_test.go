package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInviteLink(t *testing.T) {
	assert.Equal(t, "https://app.example.com/invite?token=a+b%2F", InviteLink("https://app.example.com/invite", "a b/"))
	assert.Equal(t, "https://x.io/accept?ref=mail&token=abc", InviteLink("https://x.io/accept?ref=mail", "abc"))
	assert.Equal(t, "?token=abc", InviteLink("", "abc"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Super Admin", titleFn("SUPER_ADMIN"))
	assert.Equal(t, "Teacher", titleFn("TEACHER"))
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, _, _, err := Render("missing", nil)
	assert.Error(t, err)
}
