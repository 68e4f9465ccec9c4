// Package seed creates the data a fresh installation needs
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	appModels "github.com/yigit/libris/internal/app/models"
	appRepos "github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/apperrors"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/validation"
)

// Admin describes the administrator account to create
type Admin struct {
	Username string
	Email    string
	Password string
}

// CreateAdmin creates an administrator account. An existing account with
// the same username is left untouched and returned as is.
func CreateAdmin(ctx context.Context, users appRepos.UserRepository, admin Admin, lgr zerolog.Logger) (*appModels.User, error) {
	username := strings.TrimSpace(admin.Username)
	if err := validation.Username(username); err != nil {
		return nil, err
	}

	existing, err := users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		lgr.Info().Str("username", username).Msg("Admin user already exists, skipping creation")
		return existing, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return nil, fmt.Errorf("error checking for admin user: %w", err)
	}

	if err := validation.Password(admin.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing admin password: %w", err)
	}

	user := &appModels.User{
		Username:  username,
		Email:     strings.ToLower(strings.TrimSpace(admin.Email)),
		Password:  hash,
		FirstName: "System",
		LastName:  "Administrator",
		Profile: appModels.Profile{
			RoleType: appModels.RoleAdmin,
			Avatar:   appModels.DefaultAvatar,
		},
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating admin user: %w", err)
	}

	lgr.Info().Int64("adminID", user.ID).Str("username", username).Msg("Admin user created")
	return user, nil
}

// CreateDefaultData creates the configured admin and, when sampleBooks is
// set, a small starter catalog attributed to that admin. Errors are
// collected so one failed book does not stop the rest.
func CreateDefaultData(ctx context.Context, repos *appRepos.Repositories, admin Admin, sampleBooks bool, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data...")

	if admin.Password == "" {
		lgr.Warn().Msg("No admin password configured, skipping default admin")
		return nil
	}

	user, err := CreateAdmin(ctx, repos.UserRepository, admin, lgr)
	if err != nil {
		return err
	}

	var finalErr error
	if sampleBooks {
		finalErr = createSampleBooks(ctx, repos.BookRepository, user.ID, lgr)
	}

	lgr.Info().Msg("Default data check/creation finished.")
	return finalErr
}

func createSampleBooks(ctx context.Context, books appRepos.BookRepository, addedBy int64, lgr zerolog.Logger) error {
	var finalErr error
	created := 0
	for _, sample := range sampleCatalog() {
		exists, err := books.ISBNExists(ctx, sample.ISBN, 0)
		if err != nil {
			finalErr = errors.Join(finalErr, err)
			continue
		}
		if exists {
			continue
		}

		book := sample
		book.AddedByID = &addedBy
		if err := books.Create(ctx, &book); err != nil {
			lgr.Error().Err(err).Str("isbn", book.ISBN).Msg("Error creating sample book")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		created++
	}
	lgr.Info().Int("created", created).Msg("Sample catalog checked")
	return finalErr
}

func year(y int) *int { return &y }

func sampleCatalog() []appModels.Book {
	shelf := func(title, author, isbn string, category appModels.Category, published int, location string) appModels.Book {
		return appModels.Book{
			Title:           title,
			Author:          author,
			ISBN:            isbn,
			Category:        category,
			Language:        "English",
			Condition:       appModels.ConditionGood,
			Available:       true,
			Image:           appModels.DefaultBookImage,
			StorageLocation: location,
			PublicationYear: year(published),
			CopyNumber:      1,
		}
	}

	return []appModels.Book{
		shelf("The Hound of the Baskervilles", "Arthur Conan Doyle", "978-0-14-043786-5", appModels.CategoryMystery, 1902, "A1"),
		shelf("Murder on the Orient Express", "Agatha Christie", "978-0-06-269366-2", appModels.CategoryCrime, 1934, "A2"),
		shelf("Dune", "Frank Herbert", "978-0-441-17271-9", appModels.CategoryScienceFiction, 1965, "B1"),
		shelf("The Hobbit", "J. R. R. Tolkien", "978-0-547-92822-7", appModels.CategoryFantasy, 1937, "B2"),
		shelf("Pride and Prejudice", "Jane Austen", "978-0-14-143951-8", appModels.CategoryRomance, 1813, "C1"),
		shelf("The Guns of August", "Barbara W. Tuchman", "978-0-345-47609-8", appModels.CategoryHistory, 1962, "C2"),
		shelf("Salt, Fat, Acid, Heat", "Samin Nosrat", "978-1-4767-5383-6", appModels.CategoryCooking, 2017, "D1"),
		shelf("Introduction to Algorithms", "Cormen, Leiserson, Rivest, Stein", "978-0-262-04630-5", appModels.CategoryTextbook, 2022, "D2"),
	}
}
