package services

import (
	"testing"
	"time"

	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "test-secret-key-for-token-service"

func createTestTokenService(t *testing.T) TokenService {
	t.Helper()
	service, err := NewTokenService(15*time.Minute, 24*time.Hour, "campsight-segmentation", "campsight-api", testSecretKey)
	require.NoError(t, err)
	return service
}

func TestNewTokenService(t *testing.T) {
	t.Run("requires a secret key", func(t *testing.T) {
		_, err := NewTokenService(time.Minute, time.Hour, "issuer", "audience", "")
		assert.Error(t, err)
	})

	t.Run("creates a service with a secret key", func(t *testing.T) {
		service, err := NewTokenService(time.Minute, time.Hour, "issuer", "audience", "secret")
		require.NoError(t, err)
		assert.NotNil(t, service)
	})
}

func TestGenerateAndValidateTokens(t *testing.T) {
	service := createTestTokenService(t)

	tests := []struct {
		name   string
		tenant scope.TenantContext
	}{
		{
			name:   "platform operator",
			tenant: scope.TenantContext{UserID: 1, IsPlatform: true},
		},
		{
			name:   "organization staff",
			tenant: scope.TenantContext{UserID: 2, OrganizationID: utils.ToPtr(uint(10))},
		},
		{
			name: "property staff",
			tenant: scope.TenantContext{
				UserID:         3,
				OrganizationID: utils.ToPtr(uint(10)),
				CampgroundID:   utils.ToPtr(uint(100)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accessToken, refreshToken, err := service.GenerateTokens(tt.tenant)
			require.NoError(t, err)
			assert.NotEmpty(t, accessToken)
			assert.NotEmpty(t, refreshToken)
			assert.NotEqual(t, accessToken, refreshToken)

			claims, err := service.ValidateToken(accessToken)
			require.NoError(t, err)

			assert.Equal(t, "access", claims.TokenType)
			assert.NotEmpty(t, claims.TokenID)
			assert.Equal(t, tt.tenant, claims.TenantContext())
			assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
		})
	}
}

func TestValidateTokenRejections(t *testing.T) {
	service := createTestTokenService(t)

	t.Run("refresh tokens are not accepted for access", func(t *testing.T) {
		_, refreshToken, err := service.GenerateTokens(scope.TenantContext{UserID: 1})
		require.NoError(t, err)

		_, err = service.ValidateToken(refreshToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := service.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("token signed with a different key", func(t *testing.T) {
		other, err := NewTokenService(time.Minute, time.Hour, "issuer", "audience", "another-secret")
		require.NoError(t, err)

		accessToken, _, err := other.GenerateTokens(scope.TenantContext{UserID: 1})
		require.NoError(t, err)

		_, err = service.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		shortLived, err := NewTokenService(-time.Minute, time.Hour, "issuer", "audience", testSecretKey)
		require.NoError(t, err)

		accessToken, _, err := shortLived.GenerateTokens(scope.TenantContext{UserID: 1})
		require.NoError(t, err)

		_, err = service.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("missing user id", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"token_type": "access",
			"exp":        time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(testSecretKey))
		require.NoError(t, err)

		_, err = service.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unexpected signing algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"user_id":    float64(1),
			"token_type": "access",
			"exp":        time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
