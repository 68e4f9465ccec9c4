package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
)

func TestCreateUser_AnyRoleByAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", models.RoleAdmin)

	user, err := env.services.Users.CreateUser(ctx, &dto.CreateUserRequest{
		Username: "libby",
		Email:    "Libby@Example.com",
		Password: "Shelves9",
		Type:     "LB",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLibrarian, user.Role())
	assert.Equal(t, "libby@example.com", user.Email)
	assert.Equal(t, models.DefaultAvatar, user.Profile.Avatar)

	reader := env.createUser(t, "reader", models.RoleUser)
	_, err = env.services.Users.CreateUser(ctx, &dto.CreateUserRequest{
		Username: "sneaky", Email: "s@example.com", Password: "Sneaky99", Type: "AD",
	}, reader)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestGetUser_SelfOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "alice", models.RoleUser)
	bob := env.createUser(t, "bob", models.RoleUser)
	admin := env.createUser(t, "root", models.RoleAdmin)

	_, err := env.services.Users.GetUser(ctx, a.ID, a)
	assert.NoError(t, err)
	_, err = env.services.Users.GetUser(ctx, a.ID, admin)
	assert.NoError(t, err)
	_, err = env.services.Users.GetUser(ctx, a.ID, bob)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestUpdateUser_PasswordChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "alice", models.RoleUser)
	admin := env.createUser(t, "root", models.RoleAdmin)

	_, err := env.services.Users.UpdateUser(ctx, a.ID, &dto.UpdateUserRequest{Password: strPtr("Newpass1")}, a)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Equal(t, "current_password", apperrors.FieldOf(err))

	_, err = env.services.Users.UpdateUser(ctx, a.ID, &dto.UpdateUserRequest{
		Password: strPtr("Newpass1"), CurrentPassword: strPtr("wrong"),
	}, a)
	assert.Equal(t, "current_password", apperrors.FieldOf(err))

	_, err = env.services.Users.UpdateUser(ctx, a.ID, &dto.UpdateUserRequest{
		Password: strPtr("Newpass1"), CurrentPassword: strPtr("Secret1"),
	}, a)
	require.NoError(t, err)

	stored, err := env.repos.UserRepository.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(stored.Password, "Newpass1"))

	// admins reset other people's passwords without the current one
	_, err = env.services.Users.UpdateUser(ctx, a.ID, &dto.UpdateUserRequest{Password: strPtr("Reset123")}, admin)
	require.NoError(t, err)
	stored, err = env.repos.UserRepository.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(stored.Password, "Reset123"))
}

func TestUpdateUser_KeepsRoleAndChecksUniqueness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "alice", models.RoleUser)
	env.createUser(t, "bob", models.RoleUser)

	_, err := env.services.Users.UpdateUser(ctx, a.ID, &dto.UpdateUserRequest{Username: strPtr("BOB")}, a)
	assert.ErrorIs(t, err, apperrors.ErrUsernameExists)

	age := 30
	updated, err := env.services.Users.UpdateUser(ctx, a.ID, &dto.UpdateUserRequest{
		FirstName: strPtr("Alice"), Age: &age,
	}, a)
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.FirstName)
	assert.Equal(t, models.RoleUser, updated.Role())
	assert.Equal(t, 30, *updated.Profile.Age)
}

func TestUpdateRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", models.RoleAdmin)
	a := env.createUser(t, "alice", models.RoleUser)

	promoted, err := env.services.Users.UpdateRole(ctx, a.ID, models.RoleLibrarian, admin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLibrarian, promoted.Role())

	_, err = env.services.Users.UpdateRole(ctx, admin.ID, models.RoleUser, admin)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = env.services.Users.UpdateRole(ctx, admin.ID, models.RoleAdmin, promoted)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestDeleteUser_ReleasesLoans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", models.RoleAdmin)
	lib := env.createUser(t, "libby", models.RoleLibrarian)
	a := env.createUser(t, "alice", models.RoleUser)

	held := env.createBook(t, "Held")
	_, err := env.services.Circulation.Borrow(ctx, held.ID, a)
	require.NoError(t, err)

	catalogued, err := env.services.Books.CreateBook(ctx, validBookRequest("9780000000555"), lib)
	require.NoError(t, err)

	require.NoError(t, env.services.Users.DeleteUser(ctx, a.ID, admin))
	require.NoError(t, env.services.Users.DeleteUser(ctx, lib.ID, admin))

	_, err = env.repos.UserRepository.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	released := env.reload(t, held.ID)
	assert.True(t, released.Available)
	assertLockStep(t, released)

	assert.Nil(t, env.reload(t, catalogued.ID).AddedByID)
}

func TestDeleteUser_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", models.RoleAdmin)
	a := env.createUser(t, "alice", models.RoleUser)

	assert.ErrorIs(t, env.services.Users.DeleteUser(ctx, admin.ID, admin), apperrors.ErrValidationFailed)
	assert.ErrorIs(t, env.services.Users.DeleteUser(ctx, admin.ID, a), apperrors.ErrPermissionDenied)
	assert.ErrorIs(t, env.services.Users.DeleteUser(ctx, 999, admin), apperrors.ErrUserNotFound)
}

func TestListUsers_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "root", models.RoleAdmin)
	lib := env.createUser(t, "libby", models.RoleLibrarian)

	users, total, err := env.services.Users.ListUsers(ctx, admin, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	_, _, err = env.services.Users.ListUsers(ctx, lib, 0, 10)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestUploadAvatar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createUser(t, "alice", models.RoleUser)

	user, err := env.services.Users.UploadAvatar(ctx, a.ID, coverUpload(t, "me.png"), a)
	require.NoError(t, err)
	assert.Contains(t, user.Profile.Avatar, "avatars/")
}
