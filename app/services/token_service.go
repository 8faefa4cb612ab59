// Package services provides external service integrations and technical concerns like tokens
package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService handles JWT token generation and validation. Tokens are
// issued by the platform's identity service; this service only needs to
// validate them and extract the tenant context, but generation is kept for
// tests and local tooling.
type TokenService interface {
	GenerateTokens(tenant scope.TenantContext) (accessToken, refreshToken string, err error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in a JWT token
type TokenClaims struct {
	UserID         uint      `json:"user_id"`
	OrganizationID *uint     `json:"organization_id,omitempty"`
	CampgroundID   *uint     `json:"campground_id,omitempty"`
	IsPlatform     bool      `json:"is_platform"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	TokenType      string    `json:"token_type"` // "access" or "refresh"
	TokenID        string    `json:"jti"`
}

// TenantContext converts the validated claims into the caller's tenant context
func (c *TokenClaims) TenantContext() scope.TenantContext {
	return scope.TenantContext{
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		CampgroundID:   c.CampgroundID,
		IsPlatform:     c.IsPlatform,
	}
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	secretKey       []byte
	issuer          string
	audience        string
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL, refreshTokenTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}

	return &TokenServiceImpl{
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		secretKey:       []byte(secretKey),
		issuer:          issuer,
		audience:        audience,
	}, nil
}

// GenerateTokens generates access and refresh tokens carrying the tenant context
func (s *TokenServiceImpl) GenerateTokens(tenant scope.TenantContext) (accessToken, refreshToken string, err error) {
	now := utils.UTCNow()

	accessTokenID, err := generateTokenID()
	if err != nil {
		return "", "", err
	}

	refreshTokenID, err := generateTokenID()
	if err != nil {
		return "", "", err
	}

	accessClaims := s.tenantClaims(tenant, "access", accessTokenID, now, s.accessTokenTTL)
	accessToken, err = s.generateToken(accessClaims)
	if err != nil {
		return "", "", err
	}

	refreshClaims := s.tenantClaims(tenant, "refresh", refreshTokenID, now, s.refreshTokenTTL)
	refreshToken, err = s.generateToken(refreshClaims)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *TokenServiceImpl) tenantClaims(tenant scope.TenantContext, tokenType, tokenID string, now time.Time, ttl time.Duration) jwt.MapClaims {
	claims := jwt.MapClaims{
		"user_id":     tenant.UserID,
		"is_platform": tenant.IsPlatform,
		"token_type":  tokenType,
		"jti":         tokenID,
		"iat":         now.Unix(),
		"exp":         now.Add(ttl).Unix(),
		"iss":         s.issuer,
		"aud":         s.audience,
	}
	if tenant.OrganizationID != nil {
		claims["organization_id"] = *tenant.OrganizationID
	}
	if tenant.CampgroundID != nil {
		claims["campground_id"] = *tenant.CampgroundID
	}
	return claims
}

// ValidateToken validates a JWT token and returns claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	tokenType, _ := claims["token_type"].(string)
	if tokenType != "access" {
		return nil, ErrTokenInvalid
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, ErrTokenInvalid
	}

	out := &TokenClaims{
		UserID:    uint(userID),
		TokenType: tokenType,
	}
	if v, ok := claims["is_platform"].(bool); ok {
		out.IsPlatform = v
	}
	if v, ok := claims["organization_id"].(float64); ok && v > 0 {
		out.OrganizationID = utils.ToPtr(uint(v))
	}
	if v, ok := claims["campground_id"].(float64); ok && v > 0 {
		out.CampgroundID = utils.ToPtr(uint(v))
	}
	if v, ok := claims["jti"].(string); ok {
		out.TokenID = v
	}
	if v, ok := claims["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(v), 0).UTC()
		if utils.IsExpired(out.ExpiresAt) {
			return nil, ErrTokenExpired
		}
	}

	return out, nil
}

// generateToken creates a signed token from claims
func (s *TokenServiceImpl) generateToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// generateTokenID generates a unique identifier for token revocation tracking
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
