package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/domain"
)

func TestJWTIssuer_Issue(t *testing.T) {
	secret := "test-secret"
	issuer := NewJWTIssuer(secret)

	token, err := issuer.Issue(&domain.User{ID: 123, Username: "alice", Role: domain.RoleAdmin}, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Parse and verify claims
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims, ok := parsed.Claims.(*jwtClaims)
	require.True(t, ok)
	assert.Equal(t, "123", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestJWTVerifier_Verify(t *testing.T) {
	user := &domain.User{ID: 7, Username: "bob", Role: domain.RoleUser}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		want    *domain.Claims
		wantErr bool
	}{
		{
			name: "valid",
			token: func(t *testing.T) string {
				tok, err := NewJWTIssuer("s3cret").Issue(user, time.Hour)
				require.NoError(t, err)
				return tok
			},
			want: &domain.Claims{UserID: 7, Username: "bob", Role: domain.RoleUser},
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, err := NewJWTIssuer("other").Issue(user, time.Hour)
				require.NoError(t, err)
				return tok
			},
			wantErr: true,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				iss := &jwtIssuer{secret: []byte("s3cret"), now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
				tok, err := iss.Issue(user, time.Hour)
				require.NoError(t, err)
				return tok
			},
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func(t *testing.T) string { return "not-a-jwt" },
			wantErr: true,
		},
	}

	verifier := NewJWTVerifier("s3cret")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := verifier.Verify(tt.token(t))
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
