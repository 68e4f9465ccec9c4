package repositories

import (
	"context"
	"time"

	"github.com/yigit/libris/internal/app/models"
)

// Transactor runs fn atomically. Repository calls made with the ctx passed
// to fn take part in the transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BookFilter narrows and orders a catalog listing
type BookFilter struct {
	Category  models.Category
	Condition models.Condition
	Language  string
	Available *bool
	// Search is matched case-insensitively against title, author and isbn
	Search   string
	Ordering string
	Offset   int
	Limit    int
}

// BookOrderings lists the accepted values of BookFilter.Ordering
var BookOrderings = []string{
	"id", "-id",
	"title", "-title",
	"author", "-author",
	"publication_year", "-publication_year",
	"due_date", "-due_date",
}

// IsValidBookOrdering reports whether ordering is accepted by List
func IsValidBookOrdering(ordering string) bool {
	if ordering == "" {
		return true
	}
	for _, o := range BookOrderings {
		if o == ordering {
			return true
		}
	}
	return false
}

// BookRepository persists catalog records and their loan state
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Book, error)
	// Update writes catalog fields only; loan fields are left untouched
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter BookFilter) ([]*models.Book, int64, error)
	ISBNExists(ctx context.Context, isbn string, excludeID int64) (bool, error)
	UpdateImage(ctx context.Context, id int64, image string) error

	// CountBorrowedBy counts books currently checked out to userID
	CountBorrowedBy(ctx context.Context, userID int64) (int, error)
	// SaveLoan writes the four loan fields of book, provided the stored row
	// still has available == wasAvailable
	SaveLoan(ctx context.Context, book *models.Book, wasAvailable bool) error
	// ListBorrowed returns checked-out books ordered by borrower username then
	// due date; a non-nil borrowerID restricts the result to that user
	ListBorrowed(ctx context.Context, borrowerID *int64) ([]*models.Book, error)
	// ReleaseLoansOf returns every book held by userID to the shelf
	ReleaseLoansOf(ctx context.Context, userID int64) (int64, error)
	ClearAddedBy(ctx context.Context, userID int64) error
}

// UserRepository persists identities together with their profiles
type UserRepository interface {
	// Create inserts the identity and its profile atomically
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// LockProfile serialises concurrent borrows by the same user
	LockProfile(ctx context.Context, userID int64) error
	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateRole(ctx context.Context, userID int64, role models.RoleType) error
	UpdateLastLogin(ctx context.Context, userID int64) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	CountByRole(ctx context.Context, role models.RoleType) (int64, error)
}

// TokenRepository persists refresh tokens
type TokenRepository interface {
	CreateToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	// GetTokenByValue returns the owner of a live token
	GetTokenByValue(ctx context.Context, token string) (int64, error)
	RevokeToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// Repositories holds all the repository instances
type Repositories struct {
	Transactor      Transactor
	BookRepository  BookRepository
	UserRepository  UserRepository
	TokenRepository TokenRepository
}
