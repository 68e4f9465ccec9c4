package services

import (
	"github.com/rs/zerolog"
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/clock"
	"github.com/yigit/libris/internal/pkg/filestorage"
	"github.com/yigit/libris/internal/pkg/revocation"
)

// Services holds every service the HTTP layer talks to
type Services struct {
	Auth        *AuthService
	Books       *BookService
	Circulation *CirculationService
	Users       *UserService
}

// NewServices wires the services on top of a repository set
func NewServices(
	repos *repositories.Repositories,
	jwtService *auth.JWTService,
	revoked revocation.List,
	storage filestorage.Storage,
	clk clock.Clock,
	logger zerolog.Logger,
) *Services {
	return &Services{
		Auth: NewAuthService(repos.UserRepository, repos.TokenRepository, jwtService, revoked,
			logger.With().Str("service", "auth").Logger()),
		Books: NewBookService(repos.BookRepository, storage,
			logger.With().Str("service", "books").Logger()),
		Circulation: NewCirculationService(repos.Transactor, repos.BookRepository, repos.UserRepository, clk,
			logger.With().Str("service", "circulation").Logger()),
		Users: NewUserService(repos.Transactor, repos.UserRepository, repos.BookRepository, repos.TokenRepository, storage,
			logger.With().Str("service", "users").Logger()),
	}
}
