package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"plaza/internal/gateway"
	"plaza/internal/models"
)

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		UserName  string `json:"user_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

func (u *userResponse) identity() *models.Identity {
	return &models.Identity{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.UserMetadata.UserName,
		AvatarURL:   u.UserMetadata.AvatarURL,
	}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

// SignIn 生成 PKCE verifier 并返回第三方登录跳转地址
func (c *Client) SignIn(ctx context.Context, provider string) (*gateway.SignInRequest, error) {
	if !gateway.ValidProvider(provider) {
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
	verifier := oauth2.GenerateVerifier()

	v := url.Values{}
	v.Set("provider", provider)
	if c.redirectURL != "" {
		v.Set("redirect_to", c.redirectURL)
	}
	v.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	v.Set("code_challenge_method", "s256")

	return &gateway.SignInRequest{
		URL:      c.baseURL + "/auth/v1/authorize?" + v.Encode(),
		Verifier: verifier,
	}, nil
}

// Exchange 用回调里的 code 换取会话
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	payload := map[string]string{"auth_code": code, "code_verifier": verifier}
	req, err := c.jsonRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=pkce", payload)
	if err != nil {
		return nil, err
	}
	// code 交换只能用匿名 key
	req.Header.Set("Authorization", "Bearer "+c.anonKey)

	body, _, err := c.do("auth.exchange", req)
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &gateway.GatewayError{Status: http.StatusBadGateway, Message: "invalid token response", Err: err}
	}

	token := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if c.persist {
		c.setSession(token, tr.User.identity())
	}
	return token, nil
}

// Lookup 通过 access token 向认证服务查询用户
func (c *Client) Lookup(ctx context.Context, accessToken string) (*models.Identity, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, _, err := c.do("auth.user", req)
	if err != nil {
		return nil, err
	}
	var u userResponse
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &gateway.GatewayError{Status: http.StatusBadGateway, Message: "invalid user response", Err: err}
	}
	return u.identity(), nil
}

// SetSession 恢复已有的 access token，例如命令行从环境变量读取
func (c *Client) SetSession(ctx context.Context, accessToken string) error {
	identity, err := c.Lookup(ctx, accessToken)
	if err != nil {
		return err
	}
	c.setSession(&oauth2.Token{AccessToken: accessToken, TokenType: "bearer"}, identity)
	return nil
}

func (c *Client) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	c.mu.RLock()
	session, identity := c.session, c.identity
	c.mu.RUnlock()
	if session == nil {
		return nil, nil
	}
	if identity != nil {
		return identity, nil
	}
	return c.Lookup(ctx, session.AccessToken)
}

// SignOut 注销当前 token，并清空本地会话
func (c *Client) SignOut(ctx context.Context) error {
	token := gateway.AccessToken(ctx)
	c.mu.RLock()
	hadSession := c.session != nil
	if token == "" && hadSession {
		token = c.session.AccessToken
	}
	c.mu.RUnlock()
	if token == "" {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if _, _, err := c.do("auth.logout", req); err != nil {
		return err
	}
	if hadSession {
		c.setSession(nil, nil)
	}
	return nil
}

func (c *Client) OnIdentityChange(fn func(*models.Identity)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) setSession(token *oauth2.Token, identity *models.Identity) {
	c.mu.Lock()
	c.session = token
	c.identity = identity
	fns := make([]func(*models.Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
