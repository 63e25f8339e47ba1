package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"formsnap/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	users          map[string]store.User // keyed by email
	resets         map[string]string     // tokenHash -> userID
	usedResets     map[string]bool
	passwordByUser map[string]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:          map[string]store.User{},
		resets:         map[string]string{},
		usedResets:     map[string]bool{},
		passwordByUser: map[string]string{},
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.passwordByUser[userID] = passwordHash
	return nil
}

func (f *fakeUserStore) CreatePasswordReset(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.resets[tokenHash] = userID
	return nil
}

func (f *fakeUserStore) GetPasswordReset(_ context.Context, tokenHash string) (string, error) {
	if f.usedResets[tokenHash] {
		return "", sql.ErrNoRows
	}
	userID, ok := f.resets[tokenHash]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeUserStore) MarkPasswordResetUsed(_ context.Context, tokenHash string) error {
	f.usedResets[tokenHash] = true
	return nil
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing name", RegisterRequest{Email: "a@b.com", Password: "secret1"}},
		{"missing email", RegisterRequest{Name: "A", Password: "secret1"}},
		{"missing password", RegisterRequest{Name: "A", Email: "a@b.com"}},
		{"short password", RegisterRequest{Name: "A", Email: "a@b.com", Password: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Name: "Asha", Email: "Asha@Example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "asha@example.com" {
		t.Errorf("email should be lowercased, got %q", user.Email)
	}
	if user.PasswordHash == "secret123" {
		t.Error("password must not be stored in plain text")
	}

	if _, err := svc.Register(ctx, RegisterRequest{Name: "B", Email: "asha@example.com", Password: "secret123"}); !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}

	if _, err := svc.Login(ctx, "asha@example.com", "secret123"); err != nil {
		t.Errorf("Login failed: %v", err)
	}
	if _, err := svc.Login(ctx, "asha@example.com", "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret123"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "original1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, token, err := svc.RequestPasswordReset(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a raw token")
	}
	if _, ok := fs.resets[token]; ok {
		t.Error("raw token must not be stored; only its hash")
	}

	if err := svc.ResetPassword(ctx, token, "newpassword"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	hash := fs.passwordByUser[user.ID]
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("newpassword")); err != nil {
		t.Error("new password hash does not verify")
	}

	// Token is single-use.
	if err := svc.ResetPassword(ctx, token, "another-one"); !errors.Is(err, ErrInvalidReset) {
		t.Errorf("expected ErrInvalidReset on reuse, got %v", err)
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	if _, _, err := svc.RequestPasswordReset(context.Background(), "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
