package dto

import (
	"time"

	"github.com/yigit/libris/internal/app/auth"
	"github.com/yigit/libris/internal/app/models"
)

// CheckedOutPlaceholder replaces the borrower name for viewers who may not see it
const CheckedOutPlaceholder = "Checked Out"

const dateLayout = "2006-01-02"

// BookResponse is the read representation of a book for one viewer on one day
type BookResponse struct {
	ID               int64   `json:"id" example:"1"`
	Title            string  `json:"title" example:"Dune"`
	Author           string  `json:"author" example:"Frank Herbert"`
	ISBN             string  `json:"isbn" example:"9780441013593"`
	Category         string  `json:"category" example:"SF"`
	CategoryDisplay  string  `json:"category_display" example:"Science Fiction"`
	Language         string  `json:"language" example:"English"`
	Condition        string  `json:"condition" example:"GD"`
	ConditionDisplay string  `json:"condition_display" example:"Good"`
	Available        bool    `json:"available" example:"false"`
	Image            string  `json:"image" example:"images/library_seal.jpg"`
	Borrower         *string `json:"borrower" example:"alice"`
	BorrowerID       *int64  `json:"borrower_id"`
	BorrowDate       *string `json:"borrow_date" example:"2026-05-01"`
	DueDate          *string `json:"due_date" example:"2026-05-15"`
	StorageLocation  string  `json:"storage_location" example:"A-3"`
	Publisher        string  `json:"publisher" example:"Chilton"`
	PublicationYear  *int    `json:"publication_year" example:"1965"`
	CopyNumber       int     `json:"copy_number" example:"1"`
	AddedBy          *string `json:"added_by" example:"librarian"`
	AddedByID        *int64  `json:"added_by_id"`
	DaysLeft         *int    `json:"days_left" example:"9"`
	Overdue          bool    `json:"overdue" example:"false"`
	DaysOverdue      int     `json:"days_overdue" example:"0"`
	DueToday         bool    `json:"due_today" example:"false"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}

// RedactBorrower returns the borrower label viewer is allowed to see.
// Books on the shelf have no borrower; a checked-out book shows the real
// username only to its borrower and to staff.
func RedactBorrower(book *models.Book, viewer *models.User) (name *string, id *int64) {
	if book.Available {
		return nil, nil
	}
	if auth.CanSeeBorrower(viewer, book) {
		return book.BorrowerName, book.BorrowerID
	}
	placeholder := CheckedOutPlaceholder
	return &placeholder, nil
}

// NewBookResponse presents book to viewer with loan fields derived for today
func NewBookResponse(book *models.Book, viewer *models.User, today time.Time) BookResponse {
	status := models.ComputeLoanStatus(book, today)
	borrower, borrowerID := RedactBorrower(book, viewer)

	image := book.Image
	if image == "" {
		image = models.DefaultBookImage
	}

	return BookResponse{
		ID:               book.ID,
		Title:            book.Title,
		Author:           book.Author,
		ISBN:             book.ISBN,
		Category:         string(book.Category),
		CategoryDisplay:  book.Category.Display(),
		Language:         book.Language,
		Condition:        string(book.Condition),
		ConditionDisplay: book.Condition.Display(),
		Available:        book.Available,
		Image:            image,
		Borrower:         borrower,
		BorrowerID:       borrowerID,
		BorrowDate:       formatDate(book.BorrowDate),
		DueDate:          formatDate(book.DueDate),
		StorageLocation:  book.StorageLocation,
		Publisher:        book.Publisher,
		PublicationYear:  book.PublicationYear,
		CopyNumber:       book.CopyNumber,
		AddedBy:          book.AddedByName,
		AddedByID:        book.AddedByID,
		DaysLeft:         status.DaysLeft,
		Overdue:          status.Overdue,
		DaysOverdue:      status.DaysOverdue,
		DueToday:         status.DueToday,
	}
}

// NewBookResponses presents a list of books
func NewBookResponses(books []*models.Book, viewer *models.User, today time.Time) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, NewBookResponse(b, viewer, today))
	}
	return out
}

// CreateBookRequest holds the writable catalog fields of a new book
type CreateBookRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	Author          string `json:"author" binding:"required,max=255"`
	ISBN            string `json:"isbn" binding:"required,max=17,isbn"`
	Category        string `json:"category" binding:"required"`
	Language        string `json:"language" binding:"required,max=64"`
	Condition       string `json:"condition" binding:"required"`
	StorageLocation string `json:"storage_location" binding:"max=64"`
	Publisher       string `json:"publisher" binding:"max=255"`
	PublicationYear *int   `json:"publication_year" binding:"omitempty,gte=0"`
	CopyNumber      *int   `json:"copy_number" binding:"omitempty,gte=1"`
}

// UpdateBookRequest is a partial update of catalog fields. Loan fields are
// absent on purpose; unknown JSON keys are ignored.
type UpdateBookRequest struct {
	Title           *string `json:"title" binding:"omitempty,min=1,max=255"`
	Author          *string `json:"author" binding:"omitempty,min=1,max=255"`
	ISBN            *string `json:"isbn" binding:"omitempty,max=17,isbn"`
	Category        *string `json:"category"`
	Language        *string `json:"language" binding:"omitempty,min=1,max=64"`
	Condition       *string `json:"condition"`
	StorageLocation *string `json:"storage_location" binding:"omitempty,max=64"`
	Publisher       *string `json:"publisher" binding:"omitempty,max=255"`
	PublicationYear *int    `json:"publication_year" binding:"omitempty,gte=0"`
	CopyNumber      *int    `json:"copy_number" binding:"omitempty,gte=1"`
}

// BookListQuery are the query parameters of the catalog listing
type BookListQuery struct {
	Category  string `form:"category"`
	Condition string `form:"condition"`
	Language  string `form:"language"`
	Available *bool  `form:"available"`
	Search    string `form:"search"`
	Ordering  string `form:"ordering"`
}

// LoanRequest identifies the book to borrow or return
type LoanRequest struct {
	BookID int64 `json:"book_id" binding:"required,gt=0"`
}

// LoanResponse is returned by borrow and return
type LoanResponse struct {
	Message string       `json:"message" example:"You have successfully borrowed 'Dune'."`
	Book    BookResponse `json:"book"`
}

// MyBorrowedBooksResponse lists the caller's own loans
type MyBorrowedBooksResponse struct {
	MyBorrowedBooks []BookResponse `json:"my_borrowed_books"`
}

// BorrowerGroup is one borrower with the books they hold
type BorrowerGroup struct {
	BorrowerID   int64          `json:"borrower_id"`
	BorrowerName string         `json:"borrower_name"`
	Books        []BookResponse `json:"books"`
}

// BorrowedByUserResponse lists every loan grouped by borrower
type BorrowedByUserResponse struct {
	BorrowedBooksByUser []BorrowerGroup `json:"borrowed_books_by_user"`
}
