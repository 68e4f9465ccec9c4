package services

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/app/repositories/memory"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/clock"
	"github.com/yigit/libris/internal/pkg/filestorage"
	"github.com/yigit/libris/internal/pkg/revocation"
	"golang.org/x/crypto/bcrypt"
)

var isbnSeq atomic.Int64

var testToday = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type testEnv struct {
	repos    *repositories.Repositories
	services *Services
	jwt      *auth.JWTService
	revoked  *revocation.MemoryList
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	storage, err := filestorage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	repos := memory.NewRepositories()
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "libris.test",
	})
	revoked := revocation.NewMemoryList()

	return &testEnv{
		repos:    repos,
		services: NewServices(repos, jwtService, revoked, storage, clock.Fixed(testToday.Add(10*time.Hour)), zerolog.Nop()),
		jwt:      jwtService,
		revoked:  revoked,
	}
}

// circulationAt returns a circulation service over the same store whose
// calendar reads today
func (e *testEnv) circulationAt(today time.Time) *CirculationService {
	return NewCirculationService(e.repos.Transactor, e.repos.BookRepository, e.repos.UserRepository,
		clock.Fixed(today), zerolog.Nop())
}

func (e *testEnv) createUser(t *testing.T, username string, role models.RoleType) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("Secret1")
	require.NoError(t, err)

	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
		Profile:  models.Profile{RoleType: role},
	}
	require.NoError(t, e.repos.UserRepository.Create(context.Background(), u))
	return u
}

func (e *testEnv) createBook(t *testing.T, title string) *models.Book {
	t.Helper()

	year := 2001
	b := &models.Book{
		Title:           title,
		Author:          "Author of " + title,
		ISBN:            fmt.Sprintf("978-%06d", isbnSeq.Add(1)),
		Category:        models.CategoryMystery,
		Language:        "English",
		Condition:       models.ConditionGood,
		Image:           models.DefaultBookImage,
		PublicationYear: &year,
		CopyNumber:      1,
	}
	require.NoError(t, e.repos.BookRepository.Create(context.Background(), b))
	return b
}

func (e *testEnv) reload(t *testing.T, id int64) *models.Book {
	t.Helper()
	b, err := e.repos.BookRepository.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}
