package auth

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"plaza/internal/gateway"
	"plaza/internal/models"
)

// Session 进程内的登录状态，启动时创建，Close 后不再接收网关通知
type Session struct {
	gw gateway.Auth

	mu        sync.RWMutex
	identity  *models.Identity
	changed   bool
	listeners map[int]func(*models.Identity)
	nextID    int

	unsubscribe func()
	closeOnce   sync.Once
}

// NewSession 订阅网关的登录状态变化并读取当前用户
func NewSession(ctx context.Context, gw gateway.Auth) (*Session, error) {
	s := &Session{gw: gw, listeners: make(map[int]func(*models.Identity))}
	s.unsubscribe = gw.OnIdentityChange(s.set)

	identity, err := gw.CurrentIdentity(ctx)
	if err != nil {
		s.unsubscribe()
		return nil, err
	}
	s.mu.Lock()
	if !s.changed {
		s.identity = identity
	}
	s.mu.Unlock()
	return s, nil
}

// Identity 当前用户，未登录为 nil
func (s *Session) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// OnChange 注册登录状态变化回调，返回取消函数
func (s *Session) OnChange(fn func(*models.Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) SignIn(ctx context.Context, provider string) (*gateway.SignInRequest, error) {
	return s.gw.SignIn(ctx, provider)
}

// Complete 完成第三方登录回调
func (s *Session) Complete(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return s.gw.Exchange(ctx, code, verifier)
}

func (s *Session) SignOut(ctx context.Context) error {
	return s.gw.SignOut(ctx)
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.mu.Lock()
		s.listeners = make(map[int]func(*models.Identity))
		s.mu.Unlock()
	})
}

func (s *Session) set(identity *models.Identity) {
	s.mu.Lock()
	s.identity = identity
	s.changed = true
	fns := make([]func(*models.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
