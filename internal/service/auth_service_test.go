package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/model"
)

func newAuth(t *testing.T) (*AuthService, *fakeUsers, *fakeRevoker) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: 4}
	users := newFakeUsers()
	revoker := &fakeRevoker{}
	return NewAuthService(cfg, users, revoker), users, revoker
}

func TestLoginIssuesRoleToken(t *testing.T) {
	auth, users, _ := newAuth(t)
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	u := users.add("North High", "exams@north.example", model.RoleInstitute, hash)

	token, got, err := auth.Login(context.Background(), "exams@north.example", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleInstitute, claims.Role)
	assert.Equal(t, u.ID.String(), claims.Subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, users, _ := newAuth(t)
	hash, err := auth.HashPassword("right-pass")
	require.NoError(t, err)
	users.add("Ada", "ada@student.example", model.RoleStudent, hash)

	_, _, err = auth.Login(context.Background(), "ada@student.example", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Login(context.Background(), "nobody@student.example", "right-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	auth, users, revoker := newAuth(t)
	u := users.add("Reviewer", "admin@portal.example", model.RoleAdmin, "")

	token, err := auth.GenerateToken(u)
	require.NoError(t, err)
	claims, err := auth.Authenticate(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(context.Background(), claims))
	assert.Contains(t, revoker.revoked, claims.ID)
	assert.LessOrEqual(t, revoker.revoked[claims.ID], time.Hour)

	_, err = auth.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	auth, users, _ := newAuth(t)
	u := users.add("Ada", "ada@student.example", model.RoleStudent, "")

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, users, &fakeRevoker{})
	token, err := other.GenerateToken(u)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
	_, err = auth.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}
