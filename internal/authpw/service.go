// Package authpw registers and signs in users by email and credential digest.
// Clients send the SHA-256 hex digest of the password, never the password.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"sra/api/internal/rbac"
	"sra/api/internal/store"
	"sra/api/internal/util"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("Email taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Service provides digest based authentication
type Service struct {
	store UserStore
	cost  int
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// ValidateDigest reports whether s is a lowercase 64 character hex digest.
func ValidateDigest(s string) bool {
	return digestPattern.MatchString(s)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Email  string
	Digest string
	Role   string
}

// Register creates an account. The role defaults to owner.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return store.User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if !ValidateDigest(req.Digest) {
		return store.User{}, fmt.Errorf("%w: password must be a 64 character lowercase hex digest", ErrInvalidInput)
	}
	role := rbac.RoleOwner
	if requested := strings.ToLower(strings.TrimSpace(req.Role)); requested != "" {
		if !rbac.Valid(requested) {
			return store.User{}, fmt.Errorf("%w: role must be owner or approver", ErrInvalidInput)
		}
		role = rbac.Role(requested)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Digest), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         string(role),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, ErrEmailTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks the digest against the stored hash.
func (s *Service) Login(ctx context.Context, email, digest string) (store.User, error) {
	email = NormalizeEmail(email)
	if email == "" || digest == "" {
		return store.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(digest)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GenerateRefreshToken creates an opaque random token.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
