package jwt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrzscan/mrzscan-backend/pkg/config"
	apperrors "github.com/mrzscan/mrzscan-backend/pkg/errors"
	"github.com/mrzscan/mrzscan-backend/pkg/httputil"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	"github.com/mrzscan/mrzscan-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Enabled:      true,
		Secret:       "test-secret",
		AccessExpiry: 15 * time.Minute,
		Issuer:       "mrzscan",
		Roles:        []string{"scanner"},
	}
}

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager(testConfig())

	token, err := m.GenerateAccessToken("border-kiosk-7", "scanner")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(900), token.ExpiresIn)

	claims, err := m.ValidateAccessToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "border-kiosk-7", claims.Subject)
	assert.Equal(t, "scanner", claims.Role)
	assert.Equal(t, "mrzscan", claims.Issuer)
}

func TestManager_Rejects(t *testing.T) {
	m := NewManager(testConfig())
	token, err := m.GenerateAccessToken("client", "scanner")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewManager(testConfig())
		later.now = func() time.Time { return time.Now().Add(time.Hour) }

		_, err := later.ValidateAccessToken(token.AccessToken)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "TOKEN_EXPIRED", appErr.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		cfg := testConfig()
		cfg.Secret = "other"

		_, err := NewManager(cfg).ValidateAccessToken(token.AccessToken)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "TOKEN_INVALID", appErr.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := testConfig()
		cfg.Issuer = "someone-else"

		_, err := NewManager(cfg).ValidateAccessToken(token.AccessToken)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateAccessToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	m := NewManager(testConfig())
	token, err := m.GenerateAccessToken("client-1", "scanner")
	require.NoError(t, err)
	auditor, err := m.GenerateAccessToken("client-2", "auditor")
	require.NoError(t, err)

	var gotSubject, gotRole string
	h := m.Middleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = httputil.GetSubject(r.Context())
		gotRole = httputil.GetRole(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		bearer string
		header string
		status int
		code   string
	}{
		{name: "valid", bearer: token.AccessToken, status: http.StatusNoContent},
		{name: "missing", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "bad token", bearer: "nope", status: http.StatusUnauthorized, code: "TOKEN_INVALID"},
		{name: "role not admitted", bearer: auditor.AccessToken, status: http.StatusForbidden, code: "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/extract/x", nil)
			switch {
			case tt.bearer != "":
				testutil.WithBearer(req, tt.bearer)
			case tt.header != "":
				req.Header.Set("Authorization", tt.header)
			}
			rr := testutil.ExecuteRequest(h, req)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())

			if tt.code != "" {
				var resp httputil.Response
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.code, resp.Error.Code)
			}
		})
	}

	assert.Equal(t, "client-1", gotSubject)
	assert.Equal(t, "scanner", gotRole)
}

func TestRoleAllowed(t *testing.T) {
	assert.True(t, NewManager(testConfig()).RoleAllowed("scanner"))
	assert.False(t, NewManager(testConfig()).RoleAllowed("auditor"))

	open := testConfig()
	open.Roles = nil
	assert.True(t, NewManager(open).RoleAllowed("auditor"))
}
