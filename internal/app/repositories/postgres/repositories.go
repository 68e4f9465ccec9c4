// Package postgres implements the repository contracts on PostgreSQL
package postgres

import (
	"github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/db"
)

// NewRepositories wires every repository to the same pool
func NewRepositories(database *db.PostgresDB) *repositories.Repositories {
	return &repositories.Repositories{
		Transactor:      database,
		BookRepository:  NewBookRepository(database),
		UserRepository:  NewUserRepository(database),
		TokenRepository: NewTokenRepository(database),
	}
}
