package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// UserRepository is the in-memory identity and profile store
type UserRepository struct {
	store *Store
}

func cloneUser(u models.User) *models.User {
	u.LastLoginAt = clonePtr(u.LastLoginAt)
	u.Profile.Age = clonePtr(u.Profile.Age)
	return &u
}

func (s *Store) userTaken(username, email string, excludeID int64) error {
	for id, u := range s.users {
		if id == excludeID {
			continue
		}
		if strings.EqualFold(u.Username, username) {
			return apperrors.NewCustomError(apperrors.ErrUsernameExists, "a user with that username already exists").WithField("username")
		}
		if email != "" && strings.EqualFold(u.Email, email) {
			return apperrors.NewCustomError(apperrors.ErrEmailAlreadyExists, "a user with that email already exists").WithField("email")
		}
	}
	return nil
}

// Create inserts the identity and its profile
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.store.write(ctx, func() error {
		if err := r.store.userTaken(user.Username, user.Email, 0); err != nil {
			return err
		}

		r.store.nextUserID++
		user.ID = r.store.nextUserID
		user.Email = strings.ToLower(user.Email)
		if user.DateJoined.IsZero() {
			user.DateJoined = time.Now()
		}
		if user.Profile.RoleType == "" {
			user.Profile.RoleType = models.RoleUser
		}
		if user.Profile.Avatar == "" {
			user.Profile.Avatar = models.DefaultAvatar
		}
		user.Profile.UserID = user.ID

		r.store.users[user.ID] = *cloneUser(*user)
		return nil
	})
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var out *models.User
	r.store.read(ctx, func() {
		if u, ok := r.store.users[id]; ok {
			out = cloneUser(u)
		}
	})
	if out == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return out, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	r.store.read(ctx, func() {
		for _, u := range r.store.users {
			if u.Username == username {
				out = cloneUser(u)
				return
			}
		}
	})
	if out == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return out, nil
}

// LockProfile only checks existence; the transaction lock already serialises writers
func (r *UserRepository) LockProfile(ctx context.Context, userID int64) error {
	_, err := r.GetByID(ctx, userID)
	return err
}

// UsernameExists checks whether another user already has username
func (r *UserRepository) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	exists := false
	r.store.read(ctx, func() {
		for id, u := range r.store.users {
			if id != excludeID && strings.EqualFold(u.Username, username) {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

// EmailExists checks whether another user already has email
func (r *UserRepository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	exists := false
	r.store.read(ctx, func() {
		for id, u := range r.store.users {
			if id != excludeID && strings.EqualFold(u.Email, email) {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (r *UserRepository) modify(ctx context.Context, id int64, fn func(u *models.User)) error {
	return r.store.write(ctx, func() error {
		u, ok := r.store.users[id]
		if !ok {
			return apperrors.ErrUserNotFound
		}
		fn(&u)
		r.store.users[id] = u
		return nil
	})
}

// Update writes identity and profile fields except role and password
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.store.write(ctx, func() error {
		current, ok := r.store.users[user.ID]
		if !ok {
			return apperrors.ErrUserNotFound
		}
		if err := r.store.userTaken(user.Username, user.Email, user.ID); err != nil {
			return err
		}

		current.Username = user.Username
		current.Email = strings.ToLower(user.Email)
		current.FirstName = user.FirstName
		current.LastName = user.LastName
		current.Profile.Age = clonePtr(user.Profile.Age)
		current.Profile.Avatar = user.Profile.Avatar

		r.store.users[user.ID] = current
		return nil
	})
}

// UpdatePassword stores a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return r.modify(ctx, userID, func(u *models.User) { u.Password = passwordHash })
}

// UpdateRole changes the profile role
func (r *UserRepository) UpdateRole(ctx context.Context, userID int64, role models.RoleType) error {
	return r.modify(ctx, userID, func(u *models.User) { u.Profile.RoleType = role })
}

// UpdateLastLogin updates the last login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	now := time.Now()
	return r.modify(ctx, userID, func(u *models.User) { u.LastLoginAt = &now })
}

// Delete removes the identity together with its profile and tokens
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.users[id]; !ok {
			return apperrors.ErrUserNotFound
		}
		for _, b := range r.store.books {
			if b.BorrowerID != nil && *b.BorrowerID == id {
				return apperrors.NewConflictError("user still holds borrowed books")
			}
		}
		for bookID, b := range r.store.books {
			if b.AddedByID != nil && *b.AddedByID == id {
				b.AddedByID = nil
				r.store.books[bookID] = b
			}
		}
		delete(r.store.users, id)
		for token, t := range r.store.tokens {
			if t.UserID == id {
				delete(r.store.tokens, token)
			}
		}
		return nil
	})
}

// List returns one page of users ordered by ID and the total count
func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	users := make([]*models.User, 0)
	r.store.read(ctx, func() {
		for _, u := range r.store.users {
			users = append(users, cloneUser(u))
		}
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	total := int64(len(users))
	if limit <= 0 {
		return users, total, nil
	}
	if offset >= len(users) {
		return []*models.User{}, total, nil
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], total, nil
}

// CountByRole counts users holding role
func (r *UserRepository) CountByRole(ctx context.Context, role models.RoleType) (int64, error) {
	var count int64
	r.store.read(ctx, func() {
		for _, u := range r.store.users {
			if u.Profile.RoleType == role {
				count++
			}
		}
	})
	return count, nil
}
