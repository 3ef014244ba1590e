package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"plaza/internal/gateway/memstore"
	"plaza/internal/models"
)

const (
	testSecret = "super-secret-jwt-token-with-at-least-32-characters"
	testUserID = "0b3f8f2e-3c39-4c3f-9a7e-6f3a3f1d9c11"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return token
}

func validClaims() *Claims {
	c := &Claims{Email: "neo@example.com"}
	c.UserMetadata.UserName = "neo"
	c.UserMetadata.AvatarURL = "https://avatars.example.com/neo.png"
	c.Subject = testUserID
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	return c
}

func TestVerifierResolve(t *testing.T) {
	v := NewVerifier(testSecret)
	identity, err := v.Resolve(context.Background(), sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := models.Identity{
		ID:          testUserID,
		Email:       "neo@example.com",
		DisplayName: "neo",
		AvatarURL:   "https://avatars.example.com/neo.png",
	}
	if *identity != want {
		t.Errorf("Expected %+v, got %+v", want, *identity)
	}
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier(testSecret)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	badSubject := validClaims()
	badSubject.Subject = "anon"

	tests := []struct {
		name  string
		token string
	}{
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{"subject not a user id", sign(t, jwt.SigningMethodHS256, []byte(testSecret), badSubject)},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret"), validClaims())},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{"garbage", "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Resolve(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestGatewayResolver(t *testing.T) {
	store := memstore.New()
	token := store.AddUser("code", models.Identity{ID: testUserID, Email: "neo@example.com"})
	r := GatewayResolver{Auth: store}

	identity, err := r.Resolve(context.Background(), token)
	if err != nil || identity.ID != testUserID {
		t.Fatalf("Expected %s, got %+v (%v)", testUserID, identity, err)
	}
	if _, err := r.Resolve(context.Background(), "unknown"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionFollowsGateway(t *testing.T) {
	store := memstore.New()
	store.AddUser("code-1", models.Identity{ID: testUserID, DisplayName: "neo"})
	ctx := context.Background()

	s, err := NewSession(ctx, store)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if s.Identity() != nil {
		t.Fatalf("Expected no identity before sign in")
	}

	var seen []*models.Identity
	s.OnChange(func(id *models.Identity) { seen = append(seen, id) })

	req, err := s.SignIn(ctx, "github")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if _, err := s.Complete(ctx, "code-1", req.Verifier); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if id := s.Identity(); id == nil || id.DisplayName != "neo" {
		t.Errorf("Expected neo after sign in, got %+v", id)
	}

	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if s.Identity() != nil {
		t.Errorf("Expected no identity after sign out")
	}
	if len(seen) != 2 || seen[0] == nil || seen[1] != nil {
		t.Errorf("Expected sign in then sign out notifications, got %v", seen)
	}

	// Close 之后不再跟随网关变化
	s.Close()
	s.Close()
	if _, err := store.Exchange(ctx, "code-1", ""); err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if s.Identity() != nil || len(seen) != 2 {
		t.Errorf("Expected closed session to ignore gateway changes")
	}
}

func TestSessionRestoresCurrentIdentity(t *testing.T) {
	store := memstore.New()
	store.AddUser("code", models.Identity{ID: testUserID})
	if _, err := store.Exchange(context.Background(), "code", ""); err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}

	s, err := NewSession(context.Background(), store)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()
	if id := s.Identity(); id == nil || id.ID != testUserID {
		t.Errorf("Expected restored identity, got %+v", id)
	}
}

func TestSignInRejectsUnknownProvider(t *testing.T) {
	s, err := NewSession(context.Background(), memstore.New())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()
	if _, err := s.SignIn(context.Background(), "myspace"); err == nil {
		t.Errorf("Expected error for unsupported provider")
	}
}
