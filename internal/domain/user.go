package domain

import (
	"context"
	"time"
)

// Role codes.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a registered account
// swagger:model User
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Claims are the identity facts carried by an access token.
type Claims struct {
	UserID   int64
	Username string
	Role     string
}

// IsAdmin reports whether the claims carry the admin role.
func (c Claims) IsAdmin() bool { return c.Role == RoleAdmin }

// PasswordHasher handles salt generation, hashing, and verification.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated user.
type TokenIssuer interface {
	Issue(user *User, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, username, email, password string, actor Actor) (*User, error)
	Login(ctx context.Context, username, password string, actor Actor) (token string, user *User, err error)
	GetByID(ctx context.Context, id int64) (*User, error)
}
