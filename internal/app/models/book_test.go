package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func borrowedBook(due time.Time) *Book {
	b := &Book{ID: 1, Available: true}
	b.CheckOut(&User{ID: 7, Username: "alice"}, due.AddDate(0, 0, -LoanPeriodDays))
	return b
}

func TestCheckOutAndCheckIn(t *testing.T) {
	b := &Book{ID: 1, Title: "Dune", Available: true}
	require.True(t, b.LoanStateConsistent())

	b.CheckOut(&User{ID: 7, Username: "alice"}, today.Add(15*time.Hour))

	assert.False(t, b.Available)
	require.NotNil(t, b.BorrowerID)
	assert.Equal(t, int64(7), *b.BorrowerID)
	assert.Equal(t, "alice", *b.BorrowerName)
	assert.Equal(t, today, *b.BorrowDate)
	assert.Equal(t, today.AddDate(0, 0, 14), *b.DueDate)
	assert.True(t, b.LoanStateConsistent())
	assert.True(t, b.IsBorrowedBy(7))
	assert.False(t, b.IsBorrowedBy(8))

	b.CheckIn()

	assert.Equal(t, &Book{ID: 1, Title: "Dune", Available: true}, b)
	assert.True(t, b.LoanStateConsistent())
}

func TestLoanStateConsistent_DetectsDrift(t *testing.T) {
	b := &Book{Available: true}
	due := today
	b.DueDate = &due
	assert.False(t, b.LoanStateConsistent())

	b = &Book{Available: false}
	assert.False(t, b.LoanStateConsistent())
}

func TestComputeLoanStatus(t *testing.T) {
	tests := []struct {
		name        string
		due         time.Time
		daysLeft    int
		overdue     bool
		daysOverdue int
		dueToday    bool
	}{
		{"due in nine days", today.AddDate(0, 0, 9), 9, false, 0, false},
		{"due today", today, 0, false, 0, true},
		{"three days late", today.AddDate(0, 0, -3), -3, true, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := ComputeLoanStatus(borrowedBook(tt.due), today)

			require.NotNil(t, status.DaysLeft)
			assert.Equal(t, tt.daysLeft, *status.DaysLeft)
			assert.Equal(t, tt.overdue, status.Overdue)
			assert.Equal(t, tt.daysOverdue, status.DaysOverdue)
			assert.Equal(t, tt.dueToday, status.DueToday)
		})
	}
}

func TestComputeLoanStatus_AvailableBook(t *testing.T) {
	status := ComputeLoanStatus(&Book{Available: true}, today)

	assert.Nil(t, status.DaysLeft)
	assert.False(t, status.Overdue)
	assert.Zero(t, status.DaysOverdue)
	assert.False(t, status.DueToday)
}

func TestEnums(t *testing.T) {
	assert.True(t, CategoryFantasy.IsValid())
	assert.False(t, Category("XX").IsValid())
	assert.Equal(t, "Science Fiction", CategoryScienceFiction.Display())
	assert.True(t, ConditionPoor.IsValid())
	assert.Equal(t, "Good", ConditionGood.Display())
	assert.Equal(t, "Librarian", RoleLibrarian.Display())
	assert.False(t, RoleType("ST").IsValid())
}
