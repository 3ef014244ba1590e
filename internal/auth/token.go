// Package auth resolves who is calling: it verifies gateway access tokens
// and keeps the signed-in identity for single-user processes.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"plaza/internal/gateway"
	"plaza/internal/models"
)

var ErrInvalidToken = errors.New("invalid access token")

// Resolver 把 access token 解析为用户
type Resolver interface {
	Resolve(ctx context.Context, accessToken string) (*models.Identity, error)
}

// Claims 网关签发的 access token 内容
type Claims struct {
	Email        string `json:"email"`
	UserMetadata struct {
		UserName  string `json:"user_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() *models.Identity {
	return &models.Identity{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: c.UserMetadata.UserName,
		AvatarURL:   c.UserMetadata.AvatarURL,
	}
}

// Verifier 使用网关的 JWT 密钥在本地校验 token
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Resolve(_ context.Context, accessToken string) (*models.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return claims.Identity(), nil
}

// GatewayResolver 未配置 JWT 密钥时，交给网关认证服务校验
type GatewayResolver struct {
	Auth gateway.Auth
}

func (r GatewayResolver) Resolve(ctx context.Context, accessToken string) (*models.Identity, error) {
	identity, err := r.Auth.Lookup(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identity, nil
}
