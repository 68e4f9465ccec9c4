// Package memory implements the repository contracts in process memory.
// Transactions are serialised by a single mutex and roll back by restoring
// a snapshot.
package memory

import (
	"context"
	"sync"

	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/repositories"
)

type txKey struct{}

// Store is the shared state behind every memory repository
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	books  map[int64]models.Book
	users  map[int64]models.User
	tokens map[string]models.RefreshToken

	nextBookID  int64
	nextUserID  int64
	nextTokenID int64
}

type snapshot struct {
	books                              map[int64]models.Book
	users                              map[int64]models.User
	tokens                             map[string]models.RefreshToken
	nextBookID, nextUserID, nextTokenID int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		books:  make(map[int64]models.Book),
		users:  make(map[int64]models.User),
		tokens: make(map[string]models.RefreshToken),
	}
}

// NewRepositories wires every repository to a fresh store
func NewRepositories() *repositories.Repositories {
	store := NewStore()
	return &repositories.Repositories{
		Transactor:      store,
		BookRepository:  &BookRepository{store: store},
		UserRepository:  &UserRepository{store: store},
		TokenRepository: &TokenRepository{store: store},
	}
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// WithTransaction runs fn while holding the store's transaction lock and
// restores the previous state when fn fails or panics
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
	}
	return err
}

// write runs fn under the data lock. Outside a transaction it also holds the
// transaction lock for the duration of fn.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// read runs fn under the shared data lock. Outside a transaction it waits for
// any open transaction to finish, so callers never observe half-applied state.
func (s *Store) read(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		books:       make(map[int64]models.Book, len(s.books)),
		users:       make(map[int64]models.User, len(s.users)),
		tokens:      make(map[string]models.RefreshToken, len(s.tokens)),
		nextBookID:  s.nextBookID,
		nextUserID:  s.nextUserID,
		nextTokenID: s.nextTokenID,
	}
	for k, v := range s.books {
		snap.books[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.tokens {
		snap.tokens[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books = snap.books
	s.users = snap.users
	s.tokens = snap.tokens
	s.nextBookID = snap.nextBookID
	s.nextUserID = snap.nextUserID
	s.nextTokenID = snap.nextTokenID
}
