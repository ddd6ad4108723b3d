package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "0123456789abcdef-test"
	testIssuer = "tahfeez"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("42", RoleTeacher, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, RoleTeacher, claims.Role)
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	_, err := Issue("42", "device", testIssuer, testKey, time.Hour)
	assert.Error(t, err)
}

func TestParseFailures(t *testing.T) {
	good, err := Issue("1", RoleStudent, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	expired, err := Issue("1", RoleStudent, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	foreignRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Subject:          "1",
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer},
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{"wrong key", good.AccessToken, "another-key-entirely", testIssuer},
		{"wrong issuer", good.AccessToken, testKey, "someone-else"},
		{"expired", expired.AccessToken, testKey, testIssuer},
		{"garbage", "not.a.token", testKey, testIssuer},
		{"role not allowed", foreignRole, testKey, testIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.key, tt.issuer)
			assert.Error(t, err)
		})
	}
}

func TestRequireUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireUser(testKey, testIssuer), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Role+":"+claims.Subject)
	})

	tok, err := Issue("7", RoleStudent, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"invalid", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + tok.AccessToken, http.StatusOK, "student:7"},
		{"lowercase scheme", "bearer " + tok.AccessToken, http.StatusOK, "student:7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
