package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Phone    string `json:"phone" binding:"omitempty,phoneish"`
	Code     string `json:"code" binding:"omitempty,otp"`
	Internal string `json:"-" binding:"omitempty,max=1"`
}

func TestNew_UsesBindingTagsAndJSONNames(t *testing.T) {
	v := New()

	err := v.Struct(sample{Email: "nope", Password: "short", Phone: "123", Code: "12"})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must be 8 to 72 characters long", details["password"])
	assert.Equal(t, "must be a phone number of at least 10 characters", details["phone"])
	assert.Equal(t, "must be a code of 4 to 10 characters", details["code"])
}

func TestNew_Valid(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(sample{Email: "a@example.com", Password: "long enough"}))
}

func TestToDetails_JSONErrors(t *testing.T) {
	var dst sample
	err := json.Unmarshal([]byte(`{"email":`), &dst)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
	assert.Nil(t, ToDetails(nil))
}
