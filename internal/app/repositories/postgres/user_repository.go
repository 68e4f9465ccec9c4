package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/db"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/dberrors"
	"github.com/yigit/libris/internal/pkg/logger"
)

var userColumns = []string{
	"u.id", "u.username", "u.email", "u.password", "u.first_name", "u.last_name",
	"u.date_joined", "u.last_login_at", "p.role_type", "p.age", "p.avatar",
}

// UserRepository handles user and profile database operations
type UserRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(database *db.PostgresDB) *UserRepository {
	return &UserRepository{
		db: database,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *UserRepository) selectUsers() squirrel.SelectBuilder {
	return r.sb.Select(userColumns...).
		From("users u").
		Join("user_profiles p ON p.user_id = u.id")
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.FirstName, &user.LastName,
		&user.DateJoined, &user.LastLoginAt, &user.Profile.RoleType, &user.Profile.Age, &user.Profile.Avatar,
	)
	if err != nil {
		return nil, err
	}
	user.Profile.UserID = user.ID
	return &user, nil
}

func mapUserWriteError(err error) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, dberrors.ConstraintUsersUsername):
		return apperrors.NewCustomError(apperrors.ErrUsernameExists, "a user with that username already exists").WithField("username")
	case dberrors.IsDuplicateConstraintError(err, dberrors.ConstraintUsersEmail):
		return apperrors.NewCustomError(apperrors.ErrEmailAlreadyExists, "a user with that email already exists").WithField("email")
	}
	return err
}

// Create inserts the identity row and its profile in one transaction
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		if user.DateJoined.IsZero() {
			user.DateJoined = time.Now()
		}

		sql, args, err := r.sb.Insert("users").
			Columns("username", "email", "password", "first_name", "last_name", "date_joined").
			Values(user.Username, strings.ToLower(user.Email), user.Password, user.FirstName, user.LastName, user.DateJoined).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build create user query: %w", err)
		}

		if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&user.ID); err != nil {
			if mapped := mapUserWriteError(err); mapped != err {
				return mapped
			}
			logger.Error().Err(err).Str("username", user.Username).Msg("Error creating user")
			return fmt.Errorf("error creating user: %w", err)
		}

		if user.Profile.RoleType == "" {
			user.Profile.RoleType = models.RoleUser
		}
		if user.Profile.Avatar == "" {
			user.Profile.Avatar = models.DefaultAvatar
		}
		user.Profile.UserID = user.ID

		sql, args, err = r.sb.Insert("user_profiles").
			Columns("user_id", "role_type", "age", "avatar").
			Values(user.ID, user.Profile.RoleType, user.Profile.Age, user.Profile.Avatar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build create profile query: %w", err)
		}

		if _, err := r.db.Conn(ctx).Exec(ctx, sql, args...); err != nil {
			logger.Error().Err(err).Int64("userID", user.ID).Msg("Error creating profile")
			return fmt.Errorf("error creating profile: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.User, error) {
	sql, args, err := r.selectUsers().Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	user, err := scanUser(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Msg("Error getting user")
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"u.id": id})
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"u.username": username})
}

// LockProfile takes a row lock on the user's profile
func (r *UserRepository) LockProfile(ctx context.Context, userID int64) error {
	sql, args, err := r.sb.Select("user_id").
		From("user_profiles").
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lock profile query: %w", err)
	}

	var id int64
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("error locking profile: %w", err)
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	sql, args, err := r.sb.Select("1").
		Prefix("SELECT EXISTS (").
		From("users").
		Where(squirrel.Expr("LOWER("+column+") = LOWER(?)", value)).
		Where(squirrel.NotEq{"id": excludeID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var exists bool
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking %s: %w", column, err)
	}
	return exists, nil
}

// UsernameExists checks whether another user already has username
func (r *UserRepository) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.exists(ctx, "username", username, excludeID)
}

// EmailExists checks whether another user already has email
func (r *UserRepository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

// Update writes identity and profile fields except role and password
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := r.sb.Update("users").
			Set("username", user.Username).
			Set("email", strings.ToLower(user.Email)).
			Set("first_name", user.FirstName).
			Set("last_name", user.LastName).
			Where(squirrel.Eq{"id": user.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update user query: %w", err)
		}

		tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
		if err != nil {
			if mapped := mapUserWriteError(err); mapped != err {
				return mapped
			}
			logger.Error().Err(err).Int64("userID", user.ID).Msg("Error updating user")
			return fmt.Errorf("error updating user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrUserNotFound
		}

		sql, args, err = r.sb.Update("user_profiles").
			Set("age", user.Profile.Age).
			Set("avatar", user.Profile.Avatar).
			Where(squirrel.Eq{"user_id": user.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update profile query: %w", err)
		}

		if _, err := r.db.Conn(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("error updating profile: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) exec(ctx context.Context, query squirrel.UpdateBuilder, what string) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build %s query: %w", what, err)
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msgf("Error executing %s", what)
		return fmt.Errorf("error executing %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return r.exec(ctx, r.sb.Update("users").Set("password", passwordHash).Where(squirrel.Eq{"id": userID}), "update password")
}

// UpdateRole changes the profile role
func (r *UserRepository) UpdateRole(ctx context.Context, userID int64, role models.RoleType) error {
	return r.exec(ctx, r.sb.Update("user_profiles").Set("role_type", role).Where(squirrel.Eq{"user_id": userID}), "update role")
}

// UpdateLastLogin updates the last login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	return r.exec(ctx, r.sb.Update("users").Set("last_login_at", time.Now()).Where(squirrel.Eq{"id": userID}), "update last login")
}

// Delete removes the identity; the profile goes with it through the foreign key
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("users").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete user query: %w", err)
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", id).Msg("Error deleting user")
		return fmt.Errorf("error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// List returns one page of users ordered by ID and the total count
func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	var total int64
	countSQL, _, err := r.sb.Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count users query: %w", err)
	}
	if err := r.db.Conn(ctx).QueryRow(ctx, countSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting users: %w", err)
	}

	query := r.selectUsers().OrderBy("u.id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit)).Offset(uint64(offset))
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list users query: %w", err)
	}

	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing users")
		return nil, 0, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// CountByRole counts users holding role
func (r *UserRepository) CountByRole(ctx context.Context, role models.RoleType) (int64, error) {
	sql, args, err := r.sb.Select("COUNT(*)").From("user_profiles").Where(squirrel.Eq{"role_type": role}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count by role query: %w", err)
	}

	var count int64
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting users by role: %w", err)
	}
	return count, nil
}
