package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"notevault-server/internal/domain"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (m *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *fakeUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *fakeUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := m.users[id]; ok {
		u := *user
		return &u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *fakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func newTestAuthService() (*AuthService, *fakeUserRepo, *fakeCache) {
	repo := newFakeUserRepo()
	c := newFakeCache()
	return NewAuthService(repo, c, "test-secret-key", 15*time.Minute, 24*time.Hour), repo, c
}

func TestAuthService_Register(t *testing.T) {
	svc, repo, _ := newTestAuthService()

	user, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if user.ID == "" {
		t.Error("expected user ID to be generated")
	}
	if user.Password != "" {
		t.Error("response must not carry the password")
	}

	stored := repo.users[user.ID]
	if stored.Password == "" {
		t.Error("stored password hash must survive registration")
	}
	if stored.Password == "password123" {
		t.Error("stored password must be hashed")
	}

	_, err = svc.Register(context.Background(), &domain.RegisterRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	svc, _, c := newTestAuthService()

	if _, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email:    "bob@example.com",
		Password: "password123",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "bob@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("expected both tokens to be issued")
	}

	stored := c.data[refreshTokenKey(resp.User.ID)]
	if string(stored) != resp.RefreshToken {
		t.Error("refresh token must be stored server-side")
	}

	// Wrong password and unknown email collapse to the same error.
	if _, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "bob@example.com",
		Password: "wrong-password",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc, _, _ := newTestAuthService()

	if _, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email:    "carol@example.com",
		Password: "password123",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "carol@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	tokens, err := svc.RefreshToken(context.Background(), &domain.RefreshTokenRequest{
		RefreshToken: resp.RefreshToken,
	})
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if tokens.AccessToken == "" {
		t.Error("expected a fresh access token")
	}

	if _, err := svc.RefreshToken(context.Background(), &domain.RefreshTokenRequest{
		RefreshToken: "garbage",
	}); err == nil {
		t.Error("expected error for a malformed refresh token")
	}
}

func TestAuthService_LogoutRevokesRefreshToken(t *testing.T) {
	svc, _, _ := newTestAuthService()

	if _, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Email:    "dave@example.com",
		Password: "password123",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "dave@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	svc.Logout(context.Background(), resp.User.ID)

	// The signature is still valid but the stored copy is gone.
	if _, err := svc.RefreshToken(context.Background(), &domain.RefreshTokenRequest{
		RefreshToken: resp.RefreshToken,
	}); err == nil {
		t.Error("expected revoked refresh token to be rejected")
	}
}
