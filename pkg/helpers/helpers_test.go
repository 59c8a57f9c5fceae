package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenToken(t *testing.T) {
	a, err := GenToken(InviteSecretBytes)
	require.NoError(t, err)
	b, err := GenToken(InviteSecretBytes)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
	assert.NotContains(t, HashToken("secret"), "secret")
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CompareHashAndPassword(hash, "correct horse"))
	assert.False(t, CompareHashAndPassword(hash, "wrong horse"))
	assert.False(t, CompareHashAndPassword("", "correct horse"))

	_, err = HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("access", "refresh", time.Minute, time.Hour)

	access, exp, err := m.GenerateAccessToken("u1", "s1", "TEACHER")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := m.ParseAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, "TEACHER", claims.Role)

	_, err = m.ParseRefreshToken(access)
	assert.Error(t, err, "access token must not pass as refresh token")

	refresh, _, err := m.GenerateRefreshToken("u1", "s1", "TEACHER")
	require.NoError(t, err)
	_, err = m.ParseRefreshToken(refresh)
	assert.NoError(t, err)
}

func TestCookiePair(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	m := NewCookie("example.com", true)
	m.SetPair(c, "acc", time.Now().Add(time.Minute), "ref", time.Now().Add(time.Hour))

	cookies := (&http.Response{Header: w.Header()}).Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, ck := range cookies {
		byName[ck.Name] = ck
	}
	assert.Equal(t, "/", byName[AccessCookie].Path)
	assert.Equal(t, "/api/refresh", byName[RefreshCookie].Path)
	assert.True(t, byName[RefreshCookie].HttpOnly)
	assert.True(t, byName[RefreshCookie].Secure)
}
