package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"golang.org/x/crypto/bcrypt"
)

func newService(accessExp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  accessExp,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "libris.test",
	})
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newService(time.Hour)
	user := &models.User{ID: 42, Username: "alice", Profile: models.Profile{RoleType: models.RoleLibrarian}}

	pair, err := svc.GenerateTokenPair(user)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 3600, pair.ExpiresIn)

	claims, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "LB", claims.RoleType)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateToken_Rejects(t *testing.T) {
	user := &models.User{ID: 1, Username: "bob"}

	expired, err := newService(-time.Minute).GenerateTokenPair(user)
	require.NoError(t, err)
	_, err = newService(time.Hour).ValidateToken(expired.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

	other := NewJWTService(JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour, TokenIssuer: "libris.test"})
	foreign, err := other.GenerateTokenPair(user)
	require.NoError(t, err)
	_, err = newService(time.Hour).ValidateToken(foreign.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	_, err = newService(time.Hour).ValidateToken("")
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	_, err = ExtractBearerToken("  ")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	BcryptCost = bcrypt.MinCost
	t.Cleanup(func() { BcryptCost = 12 })

	hash, err := HashPassword("Secret1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "Secret1"))
	assert.False(t, CheckPassword(hash, "secret1"))
}
