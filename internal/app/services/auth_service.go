package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/revocation"
	"github.com/yigit/libris/internal/pkg/validation"
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo   repositories.UserRepository
	tokenRepo  repositories.TokenRepository
	jwtService *auth.JWTService
	revoked    revocation.List
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repositories.UserRepository,
	tokenRepo repositories.TokenRepository,
	jwtService *auth.JWTService,
	revoked revocation.List,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtService: jwtService,
		revoked:    revoked,
		logger:     logger,
	}
}

// ensureIdentityFree checks username and email uniqueness, ignoring excludeID
func ensureIdentityFree(ctx context.Context, repo repositories.UserRepository, username, email string, excludeID int64) error {
	if username != "" {
		exists, err := repo.UsernameExists(ctx, username, excludeID)
		if err != nil {
			return fmt.Errorf("error checking if username exists: %w", err)
		}
		if exists {
			return apperrors.NewCustomError(apperrors.ErrUsernameExists, "a user with that username already exists").WithField("username")
		}
	}

	if email != "" {
		exists, err := repo.EmailExists(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("error checking if email exists: %w", err)
		}
		if exists {
			return apperrors.NewCustomError(apperrors.ErrEmailAlreadyExists, "a user with that email already exists").WithField("email")
		}
	}
	return nil
}

// Register creates a new account with the User role
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := validation.Username(username); err != nil {
		return nil, err
	}
	if err := validation.Password(req.Password); err != nil {
		return nil, err
	}
	if req.Password != req.Password2 {
		return nil, apperrors.NewValidationError("password2", "passwords do not match")
	}
	if err := ensureIdentityFree(ctx, s.userRepo, username, email, 0); err != nil {
		return nil, err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Profile: models.Profile{
			RoleType: models.RoleUser,
			Age:      req.Age,
			Avatar:   models.DefaultAvatar,
		},
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("username", user.Username).Msg("User registered")
	return user, nil
}

// Login authenticates a user by username and password
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, apperrors.NewBadRequestError("username and password are required")
	}

	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		s.logger.Debug().Str("username", user.Username).Msg("Login failed: wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Failed to record last login")
	} else {
		now := time.Now()
		user.LastLoginAt = &now
	}

	token, err := s.generateTokenResponse(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Msg("User logged in")
	return &dto.AuthResponse{Token: *token, User: dto.NewUserResponse(user)}, nil
}

// RefreshToken rotates a refresh token and issues a new access token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.ErrTokenInvalid
	}

	userID, err := s.tokenRepo.GetTokenByValue(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, err
	}

	// Revoke old token so it cannot be reused
	if err := s.tokenRepo.RevokeToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke old token: %w", err)
	}

	return s.generateTokenResponse(ctx, user)
}

// Logout revokes the refresh token, when given, and blocks the access token
// identified by jti until it expires
func (s *AuthService) Logout(ctx context.Context, userID int64, jti string, expiresAt time.Time, refreshToken string) error {
	if refreshToken != "" {
		owner, err := s.tokenRepo.GetTokenByValue(ctx, refreshToken)
		switch {
		case err == nil && owner != userID:
			return apperrors.NewForbiddenError("refresh token belongs to another user")
		case err == nil:
			if err := s.tokenRepo.RevokeToken(ctx, refreshToken); err != nil {
				return fmt.Errorf("failed to revoke refresh token: %w", err)
			}
		case !apperrors.Is(err, apperrors.ErrTokenRevoked, apperrors.ErrTokenExpired, apperrors.ErrTokenNotFound):
			return err
		}
	}

	if jti != "" {
		if err := s.revoked.Revoke(ctx, jti, expiresAt); err != nil {
			return fmt.Errorf("failed to revoke access token: %w", err)
		}
	}

	s.logger.Info().Int64("userID", userID).Msg("User logged out")
	return nil
}

// Authenticate validates an access token and loads its user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, nil, apperrors.ErrTokenRevoked
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, nil, apperrors.ErrTokenInvalid
		}
		return nil, nil, err
	}
	return user, claims, nil
}

// CleanupExpiredTokens purges refresh tokens that can no longer be used
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokenRepo.CleanupExpiredTokens(ctx)
}

// generateTokenResponse issues a token pair and stores the refresh token
func (s *AuthService) generateTokenResponse(ctx context.Context, user *models.User) (*dto.TokenResponse, error) {
	pair, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("token generation error: %w", err)
	}

	if err := s.tokenRepo.CreateToken(ctx, pair.RefreshToken, user.ID, pair.RefreshExpiresAt); err != nil {
		return nil, fmt.Errorf("token saving error: %w", err)
	}

	return &dto.TokenResponse{
		AccessToken:           pair.AccessToken,
		TokenType:             "Bearer",
		ExpiresIn:             pair.ExpiresIn,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresIn: pair.RefreshExpiresIn,
	}, nil
}
