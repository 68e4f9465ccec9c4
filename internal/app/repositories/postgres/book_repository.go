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
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/db"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/dberrors"
	"github.com/yigit/libris/internal/pkg/logger"
)

var bookColumns = []string{
	"b.id", "b.title", "b.author", "b.isbn", "b.category", "b.language", "b.condition",
	"b.available", "b.image", "b.storage_location", "b.publisher", "b.publication_year",
	"b.copy_number", "b.added_by_id", "au.username", "b.borrower_id", "bu.username",
	"b.borrow_date", "b.due_date", "b.created_at", "b.updated_at",
}

var bookOrderColumns = map[string]string{
	"id":               "b.id",
	"title":            "b.title",
	"author":           "b.author",
	"publication_year": "b.publication_year",
	"due_date":         "b.due_date",
}

// BookRepository handles book database operations
type BookRepository struct {
	db *db.PostgresDB
	sb squirrel.StatementBuilderType
}

// NewBookRepository creates a new BookRepository
func NewBookRepository(database *db.PostgresDB) *BookRepository {
	return &BookRepository{
		db: database,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BookRepository) selectBooks() squirrel.SelectBuilder {
	return r.sb.Select(bookColumns...).
		From("books b").
		LeftJoin("users au ON au.id = b.added_by_id").
		LeftJoin("users bu ON bu.id = b.borrower_id")
}

func scanBook(row pgx.Row) (*models.Book, error) {
	var book models.Book
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.ISBN, &book.Category, &book.Language, &book.Condition,
		&book.Available, &book.Image, &book.StorageLocation, &book.Publisher, &book.PublicationYear,
		&book.CopyNumber, &book.AddedByID, &book.AddedByName, &book.BorrowerID, &book.BorrowerName,
		&book.BorrowDate, &book.DueDate, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func collectBooks(rows pgx.Rows) ([]*models.Book, error) {
	defer rows.Close()

	books := make([]*models.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func mapBookWriteError(err error) error {
	if dberrors.IsDuplicateConstraintError(err, dberrors.ConstraintBooksISBN) {
		return apperrors.NewCustomError(apperrors.ErrISBNAlreadyExists, "a book with this isbn already exists").WithField("isbn")
	}
	return err
}

// Create inserts a new book and fills in its generated fields
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	now := time.Now()
	sql, args, err := r.sb.Insert("books").
		Columns("title", "author", "isbn", "category", "language", "condition", "available",
			"image", "storage_location", "publisher", "publication_year", "copy_number",
			"added_by_id", "created_at", "updated_at").
		Values(book.Title, book.Author, book.ISBN, book.Category, book.Language, book.Condition, true,
			book.Image, book.StorageLocation, book.Publisher, book.PublicationYear, book.CopyNumber,
			book.AddedByID, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create book query: %w", err)
	}

	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&book.ID); err != nil {
		if mapped := mapBookWriteError(err); mapped != err {
			return mapped
		}
		logger.Error().Err(err).Str("isbn", book.ISBN).Msg("Error creating book")
		return fmt.Errorf("error creating book: %w", err)
	}

	book.Available = true
	book.CreatedAt = now
	book.UpdatedAt = now
	return nil
}

func (r *BookRepository) getByID(ctx context.Context, id int64, lock bool) (*models.Book, error) {
	query := r.selectBooks().Where(squirrel.Eq{"b.id": id})
	if lock {
		query = query.Suffix("FOR UPDATE OF b")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get book query: %w", err)
	}

	book, err := scanBook(r.db.Conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookNotFound
		}
		logger.Error().Err(err).Int64("bookID", id).Msg("Error getting book by ID")
		return nil, fmt.Errorf("error getting book: %w", err)
	}
	return book, nil
}

// GetByID retrieves a book by ID
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate retrieves a book by ID and locks its row
func (r *BookRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Book, error) {
	return r.getByID(ctx, id, true)
}

// Update writes the catalog fields of book
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	book.UpdatedAt = time.Now()
	sql, args, err := r.sb.Update("books").
		Set("title", book.Title).
		Set("author", book.Author).
		Set("isbn", book.ISBN).
		Set("category", book.Category).
		Set("language", book.Language).
		Set("condition", book.Condition).
		Set("storage_location", book.StorageLocation).
		Set("publisher", book.Publisher).
		Set("publication_year", book.PublicationYear).
		Set("copy_number", book.CopyNumber).
		Set("updated_at", book.UpdatedAt).
		Where(squirrel.Eq{"id": book.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update book query: %w", err)
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if mapped := mapBookWriteError(err); mapped != err {
			return mapped
		}
		logger.Error().Err(err).Int64("bookID", book.ID).Msg("Error updating book")
		return fmt.Errorf("error updating book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}

// UpdateImage sets the cover image reference
func (r *BookRepository) UpdateImage(ctx context.Context, id int64, image string) error {
	sql, args, err := r.sb.Update("books").
		Set("image", image).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update image query: %w", err)
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating book image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}

// Delete removes a book
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("books").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete book query: %w", err)
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("bookID", id).Msg("Error deleting book")
		return fmt.Errorf("error deleting book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrBookNotFound
	}
	return nil
}

func bookConditions(filter repositories.BookFilter) squirrel.And {
	where := squirrel.And{}
	if filter.Category != "" {
		where = append(where, squirrel.Eq{"b.category": filter.Category})
	}
	if filter.Condition != "" {
		where = append(where, squirrel.Eq{"b.condition": filter.Condition})
	}
	if filter.Language != "" {
		where = append(where, squirrel.ILike{"b.language": filter.Language})
	}
	if filter.Available != nil {
		where = append(where, squirrel.Eq{"b.available": *filter.Available})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"b.title": pattern},
			squirrel.ILike{"b.author": pattern},
			squirrel.ILike{"b.isbn": pattern},
		})
	}
	return where
}

func bookOrderBy(ordering string) string {
	desc := strings.HasPrefix(ordering, "-")
	column, ok := bookOrderColumns[strings.TrimPrefix(ordering, "-")]
	if !ok {
		return "b.id ASC"
	}
	if desc {
		return column + " DESC NULLS LAST, b.id DESC"
	}
	return column + " ASC NULLS LAST, b.id ASC"
}

// List returns one page of books matching filter and the total match count
func (r *BookRepository) List(ctx context.Context, filter repositories.BookFilter) ([]*models.Book, int64, error) {
	where := bookConditions(filter)

	countSQL, countArgs, err := r.sb.Select("COUNT(*)").From("books b").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count books query: %w", err)
	}

	var total int64
	if err := r.db.Conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		logger.Error().Err(err).Msg("Error counting books")
		return nil, 0, fmt.Errorf("error counting books: %w", err)
	}

	query := r.selectBooks().Where(where).OrderBy(bookOrderBy(filter.Ordering))
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list books query: %w", err)
	}

	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing books")
		return nil, 0, fmt.Errorf("error listing books: %w", err)
	}

	books, err := collectBooks(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("error scanning books: %w", err)
	}
	return books, total, nil
}

// ISBNExists reports whether another book already uses isbn
func (r *BookRepository) ISBNExists(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	sql, args, err := r.sb.Select("1").
		Prefix("SELECT EXISTS (").
		From("books").
		Where(squirrel.Eq{"isbn": isbn}).
		Where(squirrel.NotEq{"id": excludeID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build isbn exists query: %w", err)
	}

	var exists bool
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking isbn: %w", err)
	}
	return exists, nil
}

// CountBorrowedBy counts the books currently held by userID
func (r *BookRepository) CountBorrowedBy(ctx context.Context, userID int64) (int, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		From("books").
		Where(squirrel.Eq{"borrower_id": userID, "available": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count borrowed query: %w", err)
	}

	var count int
	if err := r.db.Conn(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error counting borrowed books")
		return 0, fmt.Errorf("error counting borrowed books: %w", err)
	}
	return count, nil
}

// SaveLoan writes the loan fields guarded by the expected previous availability
func (r *BookRepository) SaveLoan(ctx context.Context, book *models.Book, wasAvailable bool) error {
	book.UpdatedAt = time.Now()
	sql, args, err := r.sb.Update("books").
		Set("available", book.Available).
		Set("borrower_id", book.BorrowerID).
		Set("borrow_date", book.BorrowDate).
		Set("due_date", book.DueDate).
		Set("updated_at", book.UpdatedAt).
		Where(squirrel.Eq{"id": book.ID, "available": wasAvailable}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build save loan query: %w", err)
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("bookID", book.ID).Msg("Error saving loan state")
		return fmt.Errorf("error saving loan state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("book availability changed concurrently")
	}
	return nil
}

// ListBorrowed returns checked-out books, optionally for a single borrower
func (r *BookRepository) ListBorrowed(ctx context.Context, borrowerID *int64) ([]*models.Book, error) {
	query := r.selectBooks().
		Where(squirrel.Eq{"b.available": false}).
		OrderBy("bu.username ASC", "b.due_date ASC", "b.id ASC")
	if borrowerID != nil {
		query = query.Where(squirrel.Eq{"b.borrower_id": *borrowerID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list borrowed query: %w", err)
	}

	rows, err := r.db.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing borrowed books")
		return nil, fmt.Errorf("error listing borrowed books: %w", err)
	}

	books, err := collectBooks(rows)
	if err != nil {
		return nil, fmt.Errorf("error scanning borrowed books: %w", err)
	}
	return books, nil
}

// ReleaseLoansOf returns all books held by userID to the shelf
func (r *BookRepository) ReleaseLoansOf(ctx context.Context, userID int64) (int64, error) {
	sql, args, err := r.sb.Update("books").
		Set("available", true).
		Set("borrower_id", nil).
		Set("borrow_date", nil).
		Set("due_date", nil).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"borrower_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build release loans query: %w", err)
	}

	tag, err := r.db.Conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error releasing loans")
		return 0, fmt.Errorf("error releasing loans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClearAddedBy drops the cataloguer reference to userID
func (r *BookRepository) ClearAddedBy(ctx context.Context, userID int64) error {
	sql, args, err := r.sb.Update("books").
		Set("added_by_id", nil).
		Where(squirrel.Eq{"added_by_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build clear added_by query: %w", err)
	}

	if _, err := r.db.Conn(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error clearing added_by: %w", err)
	}
	return nil
}
