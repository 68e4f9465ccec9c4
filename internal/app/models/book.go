package models

import (
	"time"

	"github.com/yigit/libris/internal/pkg/clock"
)

const (
	// MaxBorrowLimit is the number of books a user may hold at once
	MaxBorrowLimit = 3
	// LoanPeriodDays is the length of a loan in calendar days
	LoanPeriodDays = 14

	DefaultBookImage = "images/library_seal.jpg"
)

// Book is one physical copy in the catalog.
//
// Available, BorrowerID, BorrowDate and DueDate move together: either the
// book is on the shelf and all loan fields are nil, or it is checked out and
// all of them are set.
type Book struct {
	ID              int64     `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Category        Category  `json:"category" db:"category"`
	Language        string    `json:"language" db:"language"`
	Condition       Condition `json:"condition" db:"condition"`
	Available       bool      `json:"available" db:"available"`
	Image           string    `json:"image" db:"image"`
	StorageLocation string    `json:"storage_location" db:"storage_location"`
	Publisher       string    `json:"publisher" db:"publisher"`
	PublicationYear *int      `json:"publication_year" db:"publication_year"`
	CopyNumber      int       `json:"copy_number" db:"copy_number"`

	AddedByID   *int64  `json:"added_by_id" db:"added_by_id"`
	AddedByName *string `json:"added_by" db:"-"`

	BorrowerID   *int64     `json:"borrower_id" db:"borrower_id"`
	BorrowerName *string    `json:"borrower" db:"-"`
	BorrowDate   *time.Time `json:"borrow_date" db:"borrow_date"`
	DueDate      *time.Time `json:"due_date" db:"due_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CheckOut marks the book as borrowed by borrower starting on today
func (b *Book) CheckOut(borrower *User, today time.Time) {
	borrowDate := clock.Date(today)
	dueDate := borrowDate.AddDate(0, 0, LoanPeriodDays)
	id := borrower.ID
	name := borrower.Username

	b.Available = false
	b.BorrowerID = &id
	b.BorrowerName = &name
	b.BorrowDate = &borrowDate
	b.DueDate = &dueDate
}

// CheckIn puts the book back on the shelf
func (b *Book) CheckIn() {
	b.Available = true
	b.BorrowerID = nil
	b.BorrowerName = nil
	b.BorrowDate = nil
	b.DueDate = nil
}

// LoanStateConsistent reports whether the four loan fields agree
func (b *Book) LoanStateConsistent() bool {
	onShelf := b.BorrowerID == nil && b.BorrowDate == nil && b.DueDate == nil
	checkedOut := b.BorrowerID != nil && b.BorrowDate != nil && b.DueDate != nil
	if b.Available {
		return onShelf
	}
	return checkedOut
}

// IsBorrowedBy reports whether userID currently holds the book
func (b *Book) IsBorrowedBy(userID int64) bool {
	return !b.Available && b.BorrowerID != nil && *b.BorrowerID == userID
}

// LoanStatus holds the values derived from a book's due date on a given day
type LoanStatus struct {
	DaysLeft    *int
	Overdue     bool
	DaysOverdue int
	DueToday    bool
}

// ComputeLoanStatus derives the loan status of b relative to today.
// Nothing is derived for books on the shelf.
func ComputeLoanStatus(b *Book, today time.Time) LoanStatus {
	if b.Available || b.DueDate == nil {
		return LoanStatus{}
	}

	daysLeft := clock.DaysBetween(today, *b.DueDate)
	status := LoanStatus{
		DaysLeft: &daysLeft,
		Overdue:  daysLeft < 0,
		DueToday: daysLeft == 0,
	}
	if status.Overdue {
		status.DaysOverdue = -daysLeft
	}
	return status
}
