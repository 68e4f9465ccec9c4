package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/filestorage"
	"github.com/yigit/libris/internal/pkg/validation"
)

// BookService manages the catalog
type BookService struct {
	bookRepo repositories.BookRepository
	storage  filestorage.Storage
	logger   zerolog.Logger
}

// NewBookService creates a new BookService
func NewBookService(bookRepo repositories.BookRepository, storage filestorage.Storage, logger zerolog.Logger) *BookService {
	return &BookService{
		bookRepo: bookRepo,
		storage:  storage,
		logger:   logger,
	}
}

func validateCategory(value string) (models.Category, error) {
	category := models.Category(strings.ToUpper(strings.TrimSpace(value)))
	if !category.IsValid() {
		return "", apperrors.NewValidationError("category", fmt.Sprintf("%q is not a valid category", value))
	}
	return category, nil
}

func validateCondition(value string) (models.Condition, error) {
	condition := models.Condition(strings.ToUpper(strings.TrimSpace(value)))
	if !condition.IsValid() {
		return "", apperrors.NewValidationError("condition", fmt.Sprintf("%q is not a valid condition", value))
	}
	return condition, nil
}

func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.NewValidationError(field, fmt.Sprintf("%s is required", field))
	}
	return value, nil
}

func validISBN(value string) (string, error) {
	value = strings.TrimSpace(value)
	if err := validation.ISBN(value); err != nil {
		return "", err
	}
	return value, nil
}

func (s *BookService) ensureISBNFree(ctx context.Context, isbn string, excludeID int64) error {
	exists, err := s.bookRepo.ISBNExists(ctx, isbn, excludeID)
	if err != nil {
		return fmt.Errorf("error checking isbn: %w", err)
	}
	if exists {
		return apperrors.NewCustomError(apperrors.ErrISBNAlreadyExists, "a book with this isbn already exists").WithField("isbn")
	}
	return nil
}

// CreateBook adds a copy to the catalog and records actor as its cataloguer
func (s *BookService) CreateBook(ctx context.Context, req *dto.CreateBookRequest, actor *models.User) (*models.Book, error) {
	if err := auth.ValidateCatalogManager(actor); err != nil {
		return nil, err
	}

	book := &models.Book{
		StorageLocation: strings.TrimSpace(req.StorageLocation),
		Publisher:       strings.TrimSpace(req.Publisher),
		PublicationYear: req.PublicationYear,
		CopyNumber:      1,
		Image:           models.DefaultBookImage,
	}
	if req.CopyNumber != nil {
		book.CopyNumber = *req.CopyNumber
	}

	var err error
	if book.Title, err = requireText("title", req.Title); err != nil {
		return nil, err
	}
	if book.Author, err = requireText("author", req.Author); err != nil {
		return nil, err
	}
	if book.ISBN, err = validISBN(req.ISBN); err != nil {
		return nil, err
	}
	if book.Language, err = requireText("language", req.Language); err != nil {
		return nil, err
	}
	if book.Category, err = validateCategory(req.Category); err != nil {
		return nil, err
	}
	if book.Condition, err = validateCondition(req.Condition); err != nil {
		return nil, err
	}

	if err := s.ensureISBNFree(ctx, book.ISBN, 0); err != nil {
		return nil, err
	}

	addedBy := actor.ID
	book.AddedByID = &addedBy

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}

	name := actor.Username
	book.AddedByName = &name

	s.logger.Info().Int64("bookID", book.ID).Str("isbn", book.ISBN).Int64("addedBy", actor.ID).Msg("Book created")
	return book, nil
}

// GetBook retrieves a book by ID
func (s *BookService) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return s.bookRepo.GetByID(ctx, id)
}

// ListBooks returns one page of the catalog
func (s *BookService) ListBooks(ctx context.Context, query *dto.BookListQuery, offset, limit int) ([]*models.Book, int64, error) {
	filter := repositories.BookFilter{
		Language:  strings.TrimSpace(query.Language),
		Available: query.Available,
		Search:    query.Search,
		Ordering:  query.Ordering,
		Offset:    offset,
		Limit:     limit,
	}

	if query.Category != "" {
		category, err := validateCategory(query.Category)
		if err != nil {
			return nil, 0, err
		}
		filter.Category = category
	}
	if query.Condition != "" {
		condition, err := validateCondition(query.Condition)
		if err != nil {
			return nil, 0, err
		}
		filter.Condition = condition
	}
	if !repositories.IsValidBookOrdering(filter.Ordering) {
		return nil, 0, apperrors.NewValidationError("ordering",
			fmt.Sprintf("ordering must be one of: %s", strings.Join(repositories.BookOrderings, ", ")))
	}

	return s.bookRepo.List(ctx, filter)
}

// UpdateBook applies a partial update to the catalog fields of a book.
// Loan state is never touched here.
func (s *BookService) UpdateBook(ctx context.Context, id int64, req *dto.UpdateBookRequest, actor *models.User) (*models.Book, error) {
	if err := auth.ValidateCatalogManager(actor); err != nil {
		return nil, err
	}

	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if book.Title, err = requireText("title", *req.Title); err != nil {
			return nil, err
		}
	}
	if req.Author != nil {
		if book.Author, err = requireText("author", *req.Author); err != nil {
			return nil, err
		}
	}
	if req.Language != nil {
		if book.Language, err = requireText("language", *req.Language); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		if book.Category, err = validateCategory(*req.Category); err != nil {
			return nil, err
		}
	}
	if req.Condition != nil {
		if book.Condition, err = validateCondition(*req.Condition); err != nil {
			return nil, err
		}
	}
	if req.ISBN != nil {
		isbn, err := validISBN(*req.ISBN)
		if err != nil {
			return nil, err
		}
		if isbn != book.ISBN {
			if err := s.ensureISBNFree(ctx, isbn, book.ID); err != nil {
				return nil, err
			}
		}
		book.ISBN = isbn
	}
	if req.StorageLocation != nil {
		book.StorageLocation = strings.TrimSpace(*req.StorageLocation)
	}
	if req.Publisher != nil {
		book.Publisher = strings.TrimSpace(*req.Publisher)
	}
	if req.PublicationYear != nil {
		book.PublicationYear = req.PublicationYear
	}
	if req.CopyNumber != nil {
		book.CopyNumber = *req.CopyNumber
	}

	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("bookID", book.ID).Int64("userID", actor.ID).Msg("Book updated")
	return book, nil
}

// DeleteBook removes a book from the catalog
func (s *BookService) DeleteBook(ctx context.Context, id int64, actor *models.User) error {
	if err := auth.ValidateCatalogManager(actor); err != nil {
		return err
	}

	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.bookRepo.Delete(ctx, id); err != nil {
		return err
	}

	if book.Image != "" && book.Image != models.DefaultBookImage {
		if err := s.storage.DeleteFile(book.Image); err != nil {
			s.logger.Warn().Err(err).Str("image", book.Image).Msg("Failed to delete book cover")
		}
	}

	s.logger.Info().Int64("bookID", id).Int64("userID", actor.ID).Msg("Book deleted")
	return nil
}

// UploadCover stores a new cover image and points the book at it
func (s *BookService) UploadCover(ctx context.Context, id int64, file *multipart.FileHeader, actor *models.User) (*models.Book, error) {
	if err := auth.ValidateCatalogManager(actor); err != nil {
		return nil, err
	}

	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	path, err := s.storage.SaveFile(file, "images")
	if err != nil {
		return nil, err
	}

	if err := s.bookRepo.UpdateImage(ctx, id, path); err != nil {
		_ = s.storage.DeleteFile(path)
		return nil, err
	}

	if book.Image != "" && book.Image != models.DefaultBookImage {
		if err := s.storage.DeleteFile(book.Image); err != nil {
			s.logger.Warn().Err(err).Str("image", book.Image).Msg("Failed to delete previous book cover")
		}
	}

	book.Image = path
	return book, nil
}
