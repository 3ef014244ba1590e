package memstore

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"plaza/internal/gateway"
	"plaza/internal/models"
)

type authState struct {
	mu          sync.Mutex
	codes       map[string]models.Identity
	tokens      map[string]models.Identity
	current     *models.Identity
	currentTok  string
	redirectURL string
	devCode     string
	listeners   map[int]func(*models.Identity)
	nextID      int
}

func newAuthState() *authState {
	return &authState{
		codes:     make(map[string]models.Identity),
		tokens:    make(map[string]models.Identity),
		listeners: make(map[int]func(*models.Identity)),
	}
}

// WithDevUser 注册一个开发用账号，登录时直接跳回 redirectURL 并携带其授权码
func WithDevUser(redirectURL string, identity models.Identity) Option {
	return func(s *Store) {
		if identity.ID == "" {
			identity.ID = uuid.NewString()
		}
		s.auth.redirectURL = redirectURL
		s.auth.devCode = "dev-" + identity.ID
		s.AddUser(s.auth.devCode, identity)
	}
}

// AddUser 注册授权码对应的用户，返回其 access token
func (s *Store) AddUser(code string, identity models.Identity) string {
	a := s.auth
	a.mu.Lock()
	defer a.mu.Unlock()
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	token := "mem-" + identity.ID
	a.codes[code] = identity
	a.tokens[token] = identity
	return token
}

func (s *Store) SignIn(ctx context.Context, provider string) (*gateway.SignInRequest, error) {
	if !gateway.ValidProvider(provider) {
		return nil, &gateway.GatewayError{Status: 400, Message: "Unsupported provider: provider is not enabled"}
	}
	verifier := oauth2.GenerateVerifier()

	a := s.auth
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.devCode != "" {
		return &gateway.SignInRequest{
			URL:      a.redirectURL + "?code=" + url.QueryEscape(a.devCode),
			Verifier: verifier,
		}, nil
	}
	v := url.Values{}
	v.Set("provider", provider)
	v.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	return &gateway.SignInRequest{URL: "memory://authorize?" + v.Encode(), Verifier: verifier}, nil
}

func (s *Store) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	a := s.auth
	a.mu.Lock()
	identity, ok := a.codes[code]
	if !ok {
		a.mu.Unlock()
		return nil, &gateway.GatewayError{Status: 400, Message: "invalid flow state, no valid flow state found"}
	}
	token := "mem-" + identity.ID
	a.current = &identity
	a.currentTok = token
	fns := a.snapshot()
	a.mu.Unlock()

	for _, fn := range fns {
		fn(&identity)
	}
	return &oauth2.Token{AccessToken: token, TokenType: "bearer"}, nil
}

func (s *Store) Lookup(ctx context.Context, accessToken string) (*models.Identity, error) {
	a := s.auth
	a.mu.Lock()
	defer a.mu.Unlock()
	identity, ok := a.tokens[accessToken]
	if !ok {
		return nil, &gateway.GatewayError{Status: 401, Message: "invalid JWT"}
	}
	return &identity, nil
}

func (s *Store) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	a := s.auth
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, nil
}

func (s *Store) SignOut(ctx context.Context) error {
	a := s.auth
	a.mu.Lock()
	if a.current == nil {
		a.mu.Unlock()
		return nil
	}
	a.current = nil
	a.currentTok = ""
	fns := a.snapshot()
	a.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

func (s *Store) OnIdentityChange(fn func(*models.Identity)) func() {
	a := s.auth
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *authState) snapshot() []func(*models.Identity) {
	fns := make([]func(*models.Identity), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	return fns
}
