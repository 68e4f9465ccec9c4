package memory

import (
	"context"
	"time"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// TokenRepository keeps refresh tokens in memory
type TokenRepository struct {
	store *Store
}

// CreateToken stores a new refresh token
func (r *TokenRepository) CreateToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	return r.store.write(ctx, func() error {
		r.store.nextTokenID++
		r.store.tokens[token] = models.RefreshToken{
			ID:        r.store.nextTokenID,
			Token:     token,
			UserID:    userID,
			ExpiresAt: expiresAt,
			CreatedAt: time.Now(),
		}
		return nil
	})
}

// GetTokenByValue returns the owner of a live refresh token
func (r *TokenRepository) GetTokenByValue(ctx context.Context, token string) (int64, error) {
	var (
		t  models.RefreshToken
		ok bool
	)
	r.store.read(ctx, func() { t, ok = r.store.tokens[token] })

	switch {
	case !ok:
		return 0, apperrors.ErrTokenNotFound
	case t.Revoked:
		return 0, apperrors.ErrTokenRevoked
	case t.ExpiresAt.Before(time.Now()):
		return 0, apperrors.ErrTokenExpired
	}
	return t.UserID, nil
}

// RevokeToken marks a refresh token as revoked
func (r *TokenRepository) RevokeToken(ctx context.Context, token string) error {
	return r.store.write(ctx, func() error {
		t, ok := r.store.tokens[token]
		if !ok {
			return apperrors.ErrTokenNotFound
		}
		t.Revoked = true
		r.store.tokens[token] = t
		return nil
	})
}

// RevokeAllUserTokens revokes every active token of userID
func (r *TokenRepository) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	return r.store.write(ctx, func() error {
		for k, t := range r.store.tokens {
			if t.UserID == userID {
				t.Revoked = true
				r.store.tokens[k] = t
			}
		}
		return nil
	})
}

// CleanupExpiredTokens removes expired tokens and revoked ones older than 30 days
func (r *TokenRepository) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.store.write(ctx, func() error {
		now := time.Now()
		for k, t := range r.store.tokens {
			if t.ExpiresAt.Before(now) || (t.Revoked && t.CreatedAt.Before(now.Add(-30*24*time.Hour))) {
				delete(r.store.tokens, k)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}
