package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plaza/internal/gateway"
	"plaza/internal/middleware"
)

type AuthHandler struct {
	auth    gateway.Auth
	siteURL string
	log     *zap.SugaredLogger
}

func NewAuthHandler(auth gateway.Auth, siteURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, siteURL: siteURL, log: logger.Sugar().Named("auth")}
}

// Login 跳转到第三方登录（github / google）
func (h *AuthHandler) Login(c *gin.Context) {
	provider := c.Param("provider")
	if !gateway.ValidProvider(provider) {
		badRequest(c, "unsupported provider: "+provider)
		return
	}
	req, err := h.auth.SignIn(c.Request.Context(), provider)
	if err != nil {
		RespondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionVerifier, req.Verifier)
	if err := session.Save(); err != nil {
		RespondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, req.URL)
}

// Callback 第三方登录回调，换取 token 后写入 session
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		details := c.Query("error_description")
		if details == "" {
			details = "missing authorization code"
		}
		badRequest(c, details)
		return
	}

	session := sessions.Default(c)
	verifier, _ := session.Get(middleware.SessionVerifier).(string)
	token, err := h.auth.Exchange(c.Request.Context(), code, verifier)
	if err != nil {
		h.log.Warnf("code exchange failed: %v", err)
		RespondError(c, err)
		return
	}

	session.Delete(middleware.SessionVerifier)
	session.Set(middleware.SessionAccessToken, token.AccessToken)
	session.Set(middleware.SessionRefreshToken, token.RefreshToken)
	if err := session.Save(); err != nil {
		RespondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.siteURL+"/")
}

// Logout 退出登录
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.SignOut(middleware.RequestContext(c)); err != nil {
		h.log.Warnf("gateway sign out failed: %v", err)
	}
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBasicResponse(true, "signed out"))
}

// Me 当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentIdentity(c))
}
