package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

func intPtr(v int) *int { return &v }

func seedBooks(t *testing.T, repos *repositories.Repositories) []*models.Book {
	t.Helper()
	ctx := context.Background()

	books := []*models.Book{
		{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", Category: models.CategoryScienceFiction, Language: "English", Condition: models.ConditionGood, PublicationYear: intPtr(1965)},
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780547928227", Category: models.CategoryFantasy, Language: "English", Condition: models.ConditionNew, PublicationYear: intPtr(1937)},
		{Title: "Salt Fat Acid Heat", Author: "Samin Nosrat", ISBN: "9781476753836", Category: models.CategoryCooking, Language: "english", Condition: models.ConditionFair},
		{Title: "Der Process", Author: "Franz Kafka", ISBN: "9783150094765", Category: models.CategoryCrime, Language: "German", Condition: models.ConditionPoor, PublicationYear: intPtr(1925)},
	}
	for _, b := range books {
		require.NoError(t, repos.BookRepository.Create(ctx, b))
	}
	return books
}

func TestBookRepository_CreateRejectsDuplicateISBN(t *testing.T) {
	repos := NewRepositories()
	books := seedBooks(t, repos)

	err := repos.BookRepository.Create(context.Background(), &models.Book{Title: "Copy", ISBN: books[0].ISBN})

	assert.ErrorIs(t, err, apperrors.ErrISBNAlreadyExists)
	assert.Equal(t, "isbn", apperrors.FieldOf(err))
}

func TestBookRepository_ListFiltersAndOrdering(t *testing.T) {
	repos := NewRepositories()
	seedBooks(t, repos)
	ctx := context.Background()

	list := func(filter repositories.BookFilter) []string {
		books, _, err := repos.BookRepository.List(ctx, filter)
		require.NoError(t, err)
		titles := make([]string, 0, len(books))
		for _, b := range books {
			titles = append(titles, b.Title)
		}
		return titles
	}

	assert.Equal(t, []string{"Dune", "The Hobbit", "Salt Fat Acid Heat", "Der Process"}, list(repositories.BookFilter{}))
	assert.Equal(t, []string{"Der Process", "Dune", "Salt Fat Acid Heat", "The Hobbit"}, list(repositories.BookFilter{Ordering: "title"}))
	assert.Equal(t, []string{"Dune", "The Hobbit", "Der Process", "Salt Fat Acid Heat"}, list(repositories.BookFilter{Ordering: "-publication_year"}))
	assert.Equal(t, []string{"Der Process", "The Hobbit", "Dune", "Salt Fat Acid Heat"}, list(repositories.BookFilter{Ordering: "publication_year"}))
	assert.Equal(t, []string{"Dune", "The Hobbit", "Salt Fat Acid Heat"}, list(repositories.BookFilter{Language: "ENGLISH"}))
	assert.Equal(t, []string{"Dune", "Der Process"}, list(repositories.BookFilter{Search: "fra"}))
	assert.Equal(t, []string{"The Hobbit"}, list(repositories.BookFilter{Search: "928227"}))
	assert.Equal(t, []string{"Salt Fat Acid Heat"}, list(repositories.BookFilter{Category: models.CategoryCooking}))

	page, total, err := repos.BookRepository.List(ctx, repositories.BookFilter{Offset: 2, Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, page, 2)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	repos := NewRepositories()
	books := seedBooks(t, repos)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repos.Transactor.WithTransaction(ctx, func(ctx context.Context) error {
		book, err := repos.BookRepository.GetByIDForUpdate(ctx, books[0].ID)
		require.NoError(t, err)
		book.CheckOut(&models.User{ID: 99, Username: "ghost"}, time.Now())
		require.NoError(t, repos.BookRepository.SaveLoan(ctx, book, true))
		require.NoError(t, repos.BookRepository.Delete(ctx, books[1].ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	book, err := repos.BookRepository.GetByID(ctx, books[0].ID)
	require.NoError(t, err)
	assert.True(t, book.Available)
	assert.True(t, book.LoanStateConsistent())

	_, err = repos.BookRepository.GetByID(ctx, books[1].ID)
	assert.NoError(t, err)
}

func TestStore_ReadsOutsideTransactionWaitForCommit(t *testing.T) {
	repos := NewRepositories()
	books := seedBooks(t, repos)
	ctx := context.Background()

	saved := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- repos.Transactor.WithTransaction(ctx, func(ctx context.Context) error {
			book, err := repos.BookRepository.GetByIDForUpdate(ctx, books[0].ID)
			if err != nil {
				return err
			}
			book.CheckOut(&models.User{ID: 7, Username: "reader"}, time.Now())
			if err := repos.BookRepository.SaveLoan(ctx, book, true); err != nil {
				return err
			}
			close(saved)
			<-release
			return errors.New("abort")
		})
	}()
	<-saved

	readDone := make(chan *models.Book, 1)
	go func() {
		book, err := repos.BookRepository.GetByID(ctx, books[0].ID)
		assert.NoError(t, err)
		readDone <- book
	}()

	select {
	case <-readDone:
		t.Fatal("read outside the transaction observed uncommitted state")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.Error(t, <-txDone)

	book := <-readDone
	require.NotNil(t, book)
	assert.True(t, book.Available)
	assert.Nil(t, book.BorrowerID)
}

func TestBookRepository_SaveLoanGuard(t *testing.T) {
	repos := NewRepositories()
	books := seedBooks(t, repos)
	ctx := context.Background()

	book, err := repos.BookRepository.GetByID(ctx, books[0].ID)
	require.NoError(t, err)
	book.CheckOut(&models.User{ID: 1, Username: "a"}, time.Now())

	require.NoError(t, repos.BookRepository.SaveLoan(ctx, book, true))
	assert.ErrorIs(t, repos.BookRepository.SaveLoan(ctx, book, true), apperrors.ErrConflict)
}

func TestBookRepository_ReturnedCopiesAreDetached(t *testing.T) {
	repos := NewRepositories()
	books := seedBooks(t, repos)
	ctx := context.Background()

	book, err := repos.BookRepository.GetByID(ctx, books[0].ID)
	require.NoError(t, err)
	*book.PublicationYear = 2000
	book.Title = "changed"

	again, err := repos.BookRepository.GetByID(ctx, books[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1965, *again.PublicationYear)
	assert.Equal(t, "Dune", again.Title)
}

func TestUserRepository_Uniqueness(t *testing.T) {
	repos := NewRepositories()
	ctx := context.Background()

	alice := &models.User{Username: "alice", Email: "Alice@example.com"}
	require.NoError(t, repos.UserRepository.Create(ctx, alice))
	assert.Equal(t, models.RoleUser, alice.Role())
	assert.Equal(t, models.DefaultAvatar, alice.Profile.Avatar)
	assert.Equal(t, "alice@example.com", alice.Email)

	err := repos.UserRepository.Create(ctx, &models.User{Username: "ALICE", Email: "other@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrUsernameExists)

	err = repos.UserRepository.Create(ctx, &models.User{Username: "bob", Email: "alice@EXAMPLE.com"})
	assert.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
	assert.Equal(t, "email", apperrors.FieldOf(err))
}
