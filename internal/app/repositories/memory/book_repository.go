package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// BookRepository is the in-memory catalog
type BookRepository struct {
	store *Store
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBook(b models.Book) models.Book {
	b.PublicationYear = clonePtr(b.PublicationYear)
	b.AddedByID = clonePtr(b.AddedByID)
	b.BorrowerID = clonePtr(b.BorrowerID)
	b.BorrowDate = clonePtr(b.BorrowDate)
	b.DueDate = clonePtr(b.DueDate)
	b.AddedByName = nil
	b.BorrowerName = nil
	return b
}

// present returns a detached copy with user names resolved; callers hold s.mu
func (s *Store) present(b models.Book) *models.Book {
	out := cloneBook(b)
	if out.AddedByID != nil {
		if u, ok := s.users[*out.AddedByID]; ok {
			name := u.Username
			out.AddedByName = &name
		}
	}
	if out.BorrowerID != nil {
		if u, ok := s.users[*out.BorrowerID]; ok {
			name := u.Username
			out.BorrowerName = &name
		}
	}
	return &out
}

func (s *Store) isbnTaken(isbn string, excludeID int64) bool {
	for id, b := range s.books {
		if id != excludeID && b.ISBN == isbn {
			return true
		}
	}
	return false
}

func duplicateISBN() error {
	return apperrors.NewCustomError(apperrors.ErrISBNAlreadyExists, "a book with this isbn already exists").WithField("isbn")
}

// Create inserts a new book
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	return r.store.write(ctx, func() error {
		if r.store.isbnTaken(book.ISBN, 0) {
			return duplicateISBN()
		}

		r.store.nextBookID++
		now := time.Now()
		book.ID = r.store.nextBookID
		book.Available = true
		book.BorrowerID, book.BorrowDate, book.DueDate, book.BorrowerName = nil, nil, nil, nil
		book.CreatedAt = now
		book.UpdatedAt = now

		r.store.books[book.ID] = cloneBook(*book)
		return nil
	})
}

// GetByID retrieves a book by ID
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	var (
		out *models.Book
		err error
	)
	r.store.read(ctx, func() {
		b, ok := r.store.books[id]
		if !ok {
			err = apperrors.ErrBookNotFound
			return
		}
		out = r.store.present(b)
	})
	return out, err
}

// GetByIDForUpdate retrieves a book by ID. Inside a transaction the store
// lock already excludes every other writer.
func (r *BookRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Book, error) {
	return r.GetByID(ctx, id)
}

// Update writes the catalog fields of book
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	return r.store.write(ctx, func() error {
		current, ok := r.store.books[book.ID]
		if !ok {
			return apperrors.ErrBookNotFound
		}
		if r.store.isbnTaken(book.ISBN, book.ID) {
			return duplicateISBN()
		}

		current.Title = book.Title
		current.Author = book.Author
		current.ISBN = book.ISBN
		current.Category = book.Category
		current.Language = book.Language
		current.Condition = book.Condition
		current.StorageLocation = book.StorageLocation
		current.Publisher = book.Publisher
		current.PublicationYear = clonePtr(book.PublicationYear)
		current.CopyNumber = book.CopyNumber
		current.UpdatedAt = time.Now()
		book.UpdatedAt = current.UpdatedAt

		r.store.books[book.ID] = current
		return nil
	})
}

// UpdateImage sets the cover image reference
func (r *BookRepository) UpdateImage(ctx context.Context, id int64, image string) error {
	return r.store.write(ctx, func() error {
		current, ok := r.store.books[id]
		if !ok {
			return apperrors.ErrBookNotFound
		}
		current.Image = image
		current.UpdatedAt = time.Now()
		r.store.books[id] = current
		return nil
	})
}

// Delete removes a book
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.books[id]; !ok {
			return apperrors.ErrBookNotFound
		}
		delete(r.store.books, id)
		return nil
	})
}

func matchesFilter(b *models.Book, filter repositories.BookFilter) bool {
	if filter.Category != "" && b.Category != filter.Category {
		return false
	}
	if filter.Condition != "" && b.Condition != filter.Condition {
		return false
	}
	if filter.Language != "" && !strings.EqualFold(b.Language, filter.Language) {
		return false
	}
	if filter.Available != nil && b.Available != *filter.Available {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		return strings.Contains(strings.ToLower(b.Title), search) ||
			strings.Contains(strings.ToLower(b.Author), search) ||
			strings.Contains(strings.ToLower(b.ISBN), search)
	}
	return true
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// fieldIsNull reports whether the nullable sort field is unset on b
func fieldIsNull(b *models.Book, field string) bool {
	switch field {
	case "publication_year":
		return b.PublicationYear == nil
	case "due_date":
		return b.DueDate == nil
	}
	return false
}

func compareBooks(a, b *models.Book, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "author":
		return strings.Compare(a.Author, b.Author)
	case "publication_year":
		return sign(*a.PublicationYear - *b.PublicationYear)
	case "due_date":
		return a.DueDate.Compare(*b.DueDate)
	}
	return 0
}

// sortBooks orders books like the SQL ORDER BY: nulls last in both
// directions, ties broken by id in the requested direction
func sortBooks(books []*models.Book, ordering string) {
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")

	sort.SliceStable(books, func(i, j int) bool {
		a, b := books[i], books[j]
		aNull, bNull := fieldIsNull(a, field), fieldIsNull(b, field)
		if aNull != bNull {
			return bNull
		}

		c := 0
		if !aNull {
			c = compareBooks(a, b, field)
		}
		if c == 0 {
			c = sign(int(a.ID - b.ID))
		}
		if desc {
			c = -c
		}
		return c < 0
	})
}

// List returns one page of books matching filter and the total match count
func (r *BookRepository) List(ctx context.Context, filter repositories.BookFilter) ([]*models.Book, int64, error) {
	matched := make([]*models.Book, 0)
	r.store.read(ctx, func() {
		for _, b := range r.store.books {
			book := r.store.present(b)
			if matchesFilter(book, filter) {
				matched = append(matched, book)
			}
		}
	})

	sortBooks(matched, filter.Ordering)

	total := int64(len(matched))
	if filter.Limit <= 0 {
		return matched, total, nil
	}
	if filter.Offset >= len(matched) {
		return []*models.Book{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

// ISBNExists reports whether another book already uses isbn
func (r *BookRepository) ISBNExists(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	var exists bool
	r.store.read(ctx, func() { exists = r.store.isbnTaken(isbn, excludeID) })
	return exists, nil
}

// CountBorrowedBy counts the books currently held by userID
func (r *BookRepository) CountBorrowedBy(ctx context.Context, userID int64) (int, error) {
	count := 0
	r.store.read(ctx, func() {
		for _, b := range r.store.books {
			if b.IsBorrowedBy(userID) {
				count++
			}
		}
	})
	return count, nil
}

// SaveLoan writes the loan fields guarded by the expected previous availability
func (r *BookRepository) SaveLoan(ctx context.Context, book *models.Book, wasAvailable bool) error {
	return r.store.write(ctx, func() error {
		current, ok := r.store.books[book.ID]
		if !ok {
			return apperrors.ErrBookNotFound
		}
		if current.Available != wasAvailable {
			return apperrors.NewConflictError("book availability changed concurrently")
		}

		current.Available = book.Available
		current.BorrowerID = clonePtr(book.BorrowerID)
		current.BorrowDate = clonePtr(book.BorrowDate)
		current.DueDate = clonePtr(book.DueDate)
		current.UpdatedAt = time.Now()
		book.UpdatedAt = current.UpdatedAt

		r.store.books[book.ID] = current
		return nil
	})
}

// ListBorrowed returns checked-out books ordered by borrower username then due date
func (r *BookRepository) ListBorrowed(ctx context.Context, borrowerID *int64) ([]*models.Book, error) {
	books := make([]*models.Book, 0)
	r.store.read(ctx, func() {
		for _, b := range r.store.books {
			if b.Available || (borrowerID != nil && !b.IsBorrowedBy(*borrowerID)) {
				continue
			}
			books = append(books, r.store.present(b))
		}
	})

	sort.SliceStable(books, func(i, j int) bool {
		a, b := books[i], books[j]
		an, bn := derefName(a.BorrowerName), derefName(b.BorrowerName)
		if an != bn {
			return an < bn
		}
		if c := a.DueDate.Compare(*b.DueDate); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	return books, nil
}

func derefName(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ReleaseLoansOf returns all books held by userID to the shelf
func (r *BookRepository) ReleaseLoansOf(ctx context.Context, userID int64) (int64, error) {
	var released int64
	err := r.store.write(ctx, func() error {
		for id, b := range r.store.books {
			if b.BorrowerID != nil && *b.BorrowerID == userID {
				b.CheckIn()
				b.UpdatedAt = time.Now()
				r.store.books[id] = b
				released++
			}
		}
		return nil
	})
	return released, err
}

// ClearAddedBy drops the cataloguer reference to userID
func (r *BookRepository) ClearAddedBy(ctx context.Context, userID int64) error {
	return r.store.write(ctx, func() error {
		for id, b := range r.store.books {
			if b.AddedByID != nil && *b.AddedByID == userID {
				b.AddedByID = nil
				r.store.books[id] = b
			}
		}
		return nil
	})
}
