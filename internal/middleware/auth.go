package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plaza/internal/auth"
	"plaza/internal/gateway"
	"plaza/internal/models"
)

const (
	IdentityKey    = "identity"
	AccessTokenKey = "access_token"

	// session 中保存的字段
	SessionAccessToken  = "access_token"
	SessionRefreshToken = "refresh_token"
	SessionVerifier     = "pkce_verifier"
)

// LoadIdentity 从 session 或 Authorization 头读取 access token 并解析当前用户
func LoadIdentity(resolver auth.Resolver, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Sugar().Named("middleware")
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(SessionAccessToken).(string)
		fromSession := token != ""
		if !fromSession {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}

		if token != "" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			identity, err := resolver.Resolve(ctx, token)
			cancel()
			if err == nil {
				c.Set(IdentityKey, identity)
				c.Set(AccessTokenKey, token)
			} else {
				log.Debugf("discarding access token: %v", err)
				if fromSession {
					session.Delete(SessionAccessToken)
					session.Delete(SessionRefreshToken)
					_ = session.Save()
				}
			}
		}
		c.Next()
	}
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentIdentity(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"ok":        false,
				"details":   "You must be logged in.",
				"timestamp": time.Now(),
			})
			return
		}
		c.Next()
	}
}

// CurrentIdentity 当前请求的用户，未登录为 nil
func CurrentIdentity(c *gin.Context) *models.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

// RequestContext 带上当前用户 token 的 context，网关以该用户身份执行
func RequestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if token := c.GetString(AccessTokenKey); token != "" {
		ctx = gateway.WithAccessToken(ctx, token)
	}
	return ctx
}
