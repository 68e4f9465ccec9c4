package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/libris/internal/app/migrations"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/app/repositories/postgres"
	"github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/db"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/clock"
)

// databaseURLEnv names a disposable PostgreSQL database; every table in it
// is truncated by these tests.
const databaseURLEnv = "LIBRIS_TEST_DATABASE_URL"

var testToday = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

func setupRepositories(t *testing.T) *repositories.Repositories {
	t.Helper()

	dsn := os.Getenv(databaseURLEnv)
	if dsn == "" {
		t.Skipf("%s is not set", databaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	migrator := migrations.NewMigrator(pool, zerolog.Nop())
	require.NoError(t, migrator.MigrateFromDirectory(ctx, "../../../../migrations"))

	_, err = pool.Exec(ctx, "TRUNCATE books, refresh_tokens, user_profiles, users RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return postgres.NewRepositories(&db.PostgresDB{Pool: pool})
}

func createUser(t *testing.T, repos *repositories.Repositories, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
		Profile:  models.Profile{RoleType: models.RoleUser},
	}
	require.NoError(t, repos.UserRepository.Create(context.Background(), u))
	return u
}

func createBooks(t *testing.T, repos *repositories.Repositories, n int) []*models.Book {
	t.Helper()
	books := make([]*models.Book, 0, n)
	for i := 0; i < n; i++ {
		b := &models.Book{
			Title:      fmt.Sprintf("Volume %d", i+1),
			Author:     "Anonymous",
			ISBN:       fmt.Sprintf("978000000%04d", i+1),
			Category:   models.CategoryHistory,
			Language:   "English",
			Condition:  models.ConditionGood,
			Image:      models.DefaultBookImage,
			CopyNumber: 1,
		}
		require.NoError(t, repos.BookRepository.Create(context.Background(), b))
		books = append(books, b)
	}
	return books
}

func circulation(repos *repositories.Repositories) *services.CirculationService {
	return services.NewCirculationService(repos.Transactor, repos.BookRepository, repos.UserRepository, clock.Fixed(testToday), zerolog.Nop())
}

func TestPostgres_ConcurrentBorrowsOfOneBook(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	book := createBooks(t, repos, 1)[0]

	const contenders = 10
	users := make([]*models.User, contenders)
	for i := range users {
		users[i] = createUser(t, repos, fmt.Sprintf("reader%d", i))
	}

	svc := circulation(repos)
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		winners    []int64
		unexpected []error
	)
	for _, u := range users {
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			_, err := svc.Borrow(ctx, book.ID, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, u.ID)
			case !errors.Is(err, apperrors.ErrBookUnavailable):
				unexpected = append(unexpected, err)
			}
		}(u)
	}
	wg.Wait()

	require.Empty(t, unexpected)
	require.Len(t, winners, 1)

	stored, err := repos.BookRepository.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)
	require.NotNil(t, stored.BorrowerID)
	assert.Equal(t, winners[0], *stored.BorrowerID)
	assert.True(t, stored.LoanStateConsistent())
}

func TestPostgres_ConcurrentBorrowsAtLimit(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	reader := createUser(t, repos, "reader")
	books := createBooks(t, repos, models.MaxBorrowLimit+5)

	svc := circulation(repos)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		borrowed int
		refused  int
		other    []error
	)
	for _, b := range books {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.Borrow(ctx, id, reader)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				borrowed++
			case errors.Is(err, apperrors.ErrBorrowLimitReached):
				refused++
			default:
				other = append(other, err)
			}
		}(b.ID)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, models.MaxBorrowLimit, borrowed)
	assert.Equal(t, len(books)-models.MaxBorrowLimit, refused)

	count, err := repos.BookRepository.CountBorrowedBy(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxBorrowLimit, count)

	held, err := repos.BookRepository.ListBorrowed(ctx, &reader.ID)
	require.NoError(t, err)
	assert.Len(t, held, models.MaxBorrowLimit)
}

func TestPostgres_SaveLoanGuard(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	reader := createUser(t, repos, "reader")
	book := createBooks(t, repos, 1)[0]

	book.CheckOut(reader, testToday)
	require.NoError(t, repos.BookRepository.SaveLoan(ctx, book, true))
	assert.ErrorIs(t, repos.BookRepository.SaveLoan(ctx, book, true), apperrors.ErrConflict)
}

func TestPostgres_TransactionRollsBack(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	reader := createUser(t, repos, "reader")
	book := createBooks(t, repos, 1)[0]

	err := repos.Transactor.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := repos.BookRepository.GetByIDForUpdate(ctx, book.ID)
		if err != nil {
			return err
		}
		locked.CheckOut(reader, testToday)
		if err := repos.BookRepository.SaveLoan(ctx, locked, true); err != nil {
			return err
		}
		return apperrors.NewCustomError(apperrors.ErrBookUnavailable, "abandoned")
	})
	require.ErrorIs(t, err, apperrors.ErrBookUnavailable)

	stored, err := repos.BookRepository.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, stored.Available)
	assert.Nil(t, stored.BorrowerID)
}

func TestPostgres_ReleaseLoansOf(t *testing.T) {
	repos := setupRepositories(t)
	ctx := context.Background()
	alice := createUser(t, repos, "alice")
	bob := createUser(t, repos, "bob")
	books := createBooks(t, repos, 3)

	svc := circulation(repos)
	_, err := svc.Borrow(ctx, books[0].ID, alice)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, books[1].ID, alice)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, books[2].ID, bob)
	require.NoError(t, err)

	all, err := repos.BookRepository.ListBorrowed(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, alice.ID, *all[0].BorrowerID)
	assert.Equal(t, bob.ID, *all[2].BorrowerID)

	released, err := repos.BookRepository.ReleaseLoansOf(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, released)

	for _, b := range books[:2] {
		stored, err := repos.BookRepository.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, stored.Available)
		assert.True(t, stored.LoanStateConsistent())
	}

	count, err := repos.BookRepository.CountBorrowedBy(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
