package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/clock"
)

// BorrowerLoans is one borrower and the books they currently hold
type BorrowerLoans struct {
	BorrowerID   int64
	BorrowerName string
	Books        []*models.Book
}

// BorrowedBooks is the result of ListBorrowed. Staff get Groups, everyone
// else gets Own.
type BorrowedBooks struct {
	Grouped bool
	Own     []*models.Book
	Groups  []BorrowerLoans
}

// CirculationService moves books between the shelf and borrowers
type CirculationService struct {
	tx       repositories.Transactor
	bookRepo repositories.BookRepository
	userRepo repositories.UserRepository
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewCirculationService creates a new CirculationService
func NewCirculationService(
	tx repositories.Transactor,
	bookRepo repositories.BookRepository,
	userRepo repositories.UserRepository,
	clk clock.Clock,
	logger zerolog.Logger,
) *CirculationService {
	return &CirculationService{
		tx:       tx,
		bookRepo: bookRepo,
		userRepo: userRepo,
		clock:    clk,
		logger:   logger,
	}
}

// Today returns the calendar date used for loan terms
func (s *CirculationService) Today() time.Time {
	return clock.Today(s.clock)
}

func unavailableError(book *models.Book) error {
	due := "unknown date"
	if book.DueDate != nil {
		due = book.DueDate.Format("2006-01-02")
	}
	borrower := "another user"
	if book.BorrowerName != nil {
		borrower = *book.BorrowerName
	}

	return apperrors.NewCustomError(apperrors.ErrBookUnavailable,
		fmt.Sprintf("'%s' is unavailable: it is checked out by %s until %s", book.Title, borrower, due),
	).WithDetails(map[string]interface{}{
		"due_date": due,
		"borrower": borrower,
	})
}

// Borrow checks book bookID out to actor for LoanPeriodDays.
//
// The book row is locked first, then the actor's profile row, so the
// availability check and the per-user limit check both hold until commit.
func (s *CirculationService) Borrow(ctx context.Context, bookID int64, actor *models.User) (*models.Book, error) {
	if actor == nil {
		return nil, apperrors.NewForbiddenError("authentication required")
	}
	if bookID <= 0 {
		return nil, apperrors.NewValidationError("book_id", "book_id is required")
	}

	var borrowed *models.Book
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		book, err := s.bookRepo.GetByIDForUpdate(ctx, bookID)
		if err != nil {
			return err
		}

		if !book.Available {
			return unavailableError(book)
		}

		if err := s.userRepo.LockProfile(ctx, actor.ID); err != nil {
			return err
		}

		count, err := s.bookRepo.CountBorrowedBy(ctx, actor.ID)
		if err != nil {
			return fmt.Errorf("error counting borrowed books: %w", err)
		}
		if count >= models.MaxBorrowLimit {
			return apperrors.NewCustomError(apperrors.ErrBorrowLimitReached,
				fmt.Sprintf("Borrow limit reached: you cannot borrow more than %d books at a time", models.MaxBorrowLimit),
			).WithDetails(map[string]interface{}{"limit": models.MaxBorrowLimit, "borrowed": count})
		}

		book.CheckOut(actor, s.Today())
		if err := s.bookRepo.SaveLoan(ctx, book, true); err != nil {
			return err
		}

		borrowed = book
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Int64("bookID", bookID).Int64("userID", actor.ID).Msg("Borrow refused")
		return nil, err
	}

	s.logger.Info().
		Int64("bookID", borrowed.ID).
		Int64("userID", actor.ID).
		Time("dueDate", *borrowed.DueDate).
		Msg("Book borrowed")
	return borrowed, nil
}

// Return puts book bookID back on the shelf. The borrower and staff may
// return a book; anyone else is refused.
func (s *CirculationService) Return(ctx context.Context, bookID int64, actor *models.User) (*models.Book, error) {
	if actor == nil {
		return nil, apperrors.NewForbiddenError("authentication required")
	}
	if bookID <= 0 {
		return nil, apperrors.NewValidationError("book_id", "book_id is required")
	}

	var (
		returned   *models.Book
		borrowerID int64
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		book, err := s.bookRepo.GetByIDForUpdate(ctx, bookID)
		if err != nil {
			return err
		}

		if book.Available {
			return apperrors.NewCustomError(apperrors.ErrBookAlreadyAvailable,
				fmt.Sprintf("'%s' is already available", book.Title))
		}

		if !auth.CanReturnFor(actor, book) {
			return apperrors.NewCustomError(apperrors.ErrNotBorrower, "You did not borrow this book")
		}

		borrowerID = *book.BorrowerID
		book.CheckIn()
		if err := s.bookRepo.SaveLoan(ctx, book, false); err != nil {
			return err
		}

		returned = book
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Int64("bookID", bookID).Int64("userID", actor.ID).Msg("Return refused")
		return nil, err
	}

	s.logger.Info().
		Int64("bookID", returned.ID).
		Int64("userID", actor.ID).
		Int64("borrowerID", borrowerID).
		Msg("Book returned")
	return returned, nil
}

// ListBorrowed returns every loan grouped by borrower for staff, or the
// actor's own loans ordered by due date for everyone else
func (s *CirculationService) ListBorrowed(ctx context.Context, actor *models.User) (*BorrowedBooks, error) {
	if actor == nil {
		return nil, apperrors.NewForbiddenError("authentication required")
	}

	if !auth.IsStaff(actor) {
		books, err := s.bookRepo.ListBorrowed(ctx, &actor.ID)
		if err != nil {
			return nil, fmt.Errorf("error listing borrowed books: %w", err)
		}
		return &BorrowedBooks{Own: books}, nil
	}

	books, err := s.bookRepo.ListBorrowed(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error listing borrowed books: %w", err)
	}
	return &BorrowedBooks{Grouped: true, Groups: groupByBorrower(books)}, nil
}

// groupByBorrower relies on books arriving ordered by borrower then due date
func groupByBorrower(books []*models.Book) []BorrowerLoans {
	groups := make([]BorrowerLoans, 0)
	index := make(map[int64]int)

	for _, b := range books {
		if b.BorrowerID == nil {
			continue
		}
		i, ok := index[*b.BorrowerID]
		if !ok {
			name := ""
			if b.BorrowerName != nil {
				name = *b.BorrowerName
			}
			groups = append(groups, BorrowerLoans{BorrowerID: *b.BorrowerID, BorrowerName: name})
			i = len(groups) - 1
			index[*b.BorrowerID] = i
		}
		groups[i].Books = append(groups[i].Books, b)
	}
	return groups
}
