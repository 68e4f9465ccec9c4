package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/rs/zerolog"
	appauth "github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/filestorage"
	"github.com/yigit/libris/internal/pkg/validation"
)

// UserService manages accounts and profiles
type UserService struct {
	tx        repositories.Transactor
	userRepo  repositories.UserRepository
	bookRepo  repositories.BookRepository
	tokenRepo repositories.TokenRepository
	storage   filestorage.Storage
	logger    zerolog.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	tx repositories.Transactor,
	userRepo repositories.UserRepository,
	bookRepo repositories.BookRepository,
	tokenRepo repositories.TokenRepository,
	storage filestorage.Storage,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		tx:        tx,
		userRepo:  userRepo,
		bookRepo:  bookRepo,
		tokenRepo: tokenRepo,
		storage:   storage,
		logger:    logger,
	}
}

// ListUsers returns one page of users
func (s *UserService) ListUsers(ctx context.Context, actor *models.User, offset, limit int) ([]*models.User, int64, error) {
	if err := appauth.ValidateUserManager(actor); err != nil {
		return nil, 0, err
	}
	return s.userRepo.List(ctx, offset, limit)
}

// GetUser retrieves a user the actor is allowed to see
func (s *UserService) GetUser(ctx context.Context, id int64, actor *models.User) (*models.User, error) {
	if err := appauth.ValidateSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, id)
}

// CreateUser creates an account with any role
func (s *UserService) CreateUser(ctx context.Context, req *dto.CreateUserRequest, actor *models.User) (*models.User, error) {
	if err := appauth.ValidateUserManager(actor); err != nil {
		return nil, err
	}

	role := models.RoleUser
	if req.Type != "" {
		role = models.RoleType(req.Type)
		if !role.IsValid() {
			return nil, apperrors.NewValidationError("type", fmt.Sprintf("%q is not a valid role", req.Type))
		}
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Username(username); err != nil {
		return nil, err
	}
	if err := validation.Password(req.Password); err != nil {
		return nil, err
	}
	if err := ensureIdentityFree(ctx, s.userRepo, username, email, 0); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hash,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Profile: models.Profile{
			RoleType: role,
			Age:      req.Age,
			Avatar:   models.DefaultAvatar,
		},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("role", string(role)).Int64("createdBy", actor.ID).Msg("User created")
	return user, nil
}

// UpdateUser applies a partial update. The role is never changed here.
func (s *UserService) UpdateUser(ctx context.Context, id int64, req *dto.UpdateUserRequest, actor *models.User) (*models.User, error) {
	if err := appauth.ValidateSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var username, email string
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if err := validation.Username(username); err != nil {
			return nil, err
		}
		if strings.EqualFold(username, user.Username) {
			username = ""
		}
	}
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		if email == strings.ToLower(user.Email) {
			email = ""
		}
	}
	if err := ensureIdentityFree(ctx, s.userRepo, username, email, user.ID); err != nil {
		return nil, err
	}

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Age != nil {
		user.Profile.Age = req.Age
	}

	var newHash string
	if req.Password != nil {
		if newHash, err = s.passwordChange(user, req, actor); err != nil {
			return nil, err
		}
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		if newHash == "" {
			return nil
		}
		if err := s.userRepo.UpdatePassword(ctx, user.ID, newHash); err != nil {
			return err
		}
		// Outstanding sessions end with the old password
		return s.tokenRepo.RevokeAllUserTokens(ctx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Int64("updatedBy", actor.ID).Bool("passwordChanged", newHash != "").Msg("User updated")
	return user, nil
}

// passwordChange validates a password change and returns the new hash.
// Admins editing someone else skip the current password check.
func (s *UserService) passwordChange(user *models.User, req *dto.UpdateUserRequest, actor *models.User) (string, error) {
	if err := validation.Password(*req.Password); err != nil {
		return "", err
	}

	if actor.ID == user.ID || !appauth.IsAdmin(actor) {
		if req.CurrentPassword == nil || *req.CurrentPassword == "" {
			return "", apperrors.NewValidationError("current_password", "current password is required to change the password")
		}
		if !auth.CheckPassword(user.Password, *req.CurrentPassword) {
			return "", apperrors.NewValidationError("current_password", "current password is incorrect")
		}
	}

	hash, err := auth.HashPassword(*req.Password)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return hash, nil
}

// UpdateRole promotes or demotes a user
func (s *UserService) UpdateRole(ctx context.Context, id int64, role models.RoleType, actor *models.User) (*models.User, error) {
	if err := appauth.ValidateUserManager(actor); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, apperrors.NewValidationError("role", fmt.Sprintf("%q is not a valid role", role))
	}
	if actor.ID == id && role != models.RoleAdmin {
		return nil, apperrors.NewValidationError("role", "admins cannot demote themselves")
	}

	if err := s.userRepo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", id).Str("role", string(role)).Int64("changedBy", actor.ID).Msg("User role changed")
	return user, nil
}

// DeleteUser removes a user. Their loans go back on the shelf, catalogue
// attribution is cleared and their refresh tokens are revoked, all in the
// same transaction as the delete.
func (s *UserService) DeleteUser(ctx context.Context, id int64, actor *models.User) error {
	if err := appauth.ValidateUserManager(actor); err != nil {
		return err
	}
	if actor.ID == id {
		return apperrors.NewValidationError("id", "admins cannot delete their own account")
	}

	var (
		released int64
		avatar   string
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		avatar = user.Profile.Avatar

		if released, err = s.bookRepo.ReleaseLoansOf(ctx, id); err != nil {
			return fmt.Errorf("error releasing loans: %w", err)
		}
		if err := s.bookRepo.ClearAddedBy(ctx, id); err != nil {
			return fmt.Errorf("error clearing catalogue attribution: %w", err)
		}
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, id); err != nil {
			return fmt.Errorf("error revoking tokens: %w", err)
		}
		return s.userRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if avatar != "" && avatar != models.DefaultAvatar {
		if err := s.storage.DeleteFile(avatar); err != nil {
			s.logger.Warn().Err(err).Str("avatar", avatar).Msg("Failed to delete avatar")
		}
	}

	s.logger.Info().Int64("userID", id).Int64("releasedBooks", released).Int64("deletedBy", actor.ID).Msg("User deleted")
	return nil
}

// UploadAvatar stores a new avatar image for a user
func (s *UserService) UploadAvatar(ctx context.Context, id int64, file *multipart.FileHeader, actor *models.User) (*models.User, error) {
	if err := appauth.ValidateSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ref, err := s.storage.SaveFile(file, "avatars")
	if err != nil {
		return nil, err
	}

	previous := user.Profile.Avatar
	user.Profile.Avatar = ref
	if err := s.userRepo.Update(ctx, user); err != nil {
		_ = s.storage.DeleteFile(ref)
		return nil, err
	}

	if previous != "" && previous != models.DefaultAvatar {
		if err := s.storage.DeleteFile(previous); err != nil {
			s.logger.Warn().Err(err).Str("avatar", previous).Msg("Failed to delete previous avatar")
		}
	}
	return user, nil
}
