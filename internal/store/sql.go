package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/MediSynth-io/authkit/internal/database"
	"github.com/MediSynth-io/authkit/internal/models"
)

// SQLStore implements UserStore on the users table of a migrated database.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a store on top of an opened database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

const userColumns = "id, email, password, name, created_at"

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (s *SQLStore) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, s.db.Rebind(query), arg).Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.Name,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error) {
	user := &models.User{
		Email:     email,
		Password:  passwordHash,
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	const insert = "INSERT INTO users (email, password, name, created_at) VALUES (?, ?, ?, ?)"
	args := []any{user.Email, user.Password, user.Name, user.CreatedAt}

	if s.db.Dialect == database.DialectPostgres {
		err := s.db.QueryRowContext(ctx, s.db.Rebind(insert+" RETURNING id"), args...).Scan(&user.ID)
		if err != nil {
			return nil, mapInsertError(err)
		}
		return user, nil
	}

	result, err := s.db.ExecContext(ctx, insert, args...)
	if err != nil {
		return nil, mapInsertError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read user id: %w", err)
	}
	user.ID = id
	return user, nil
}

// mapInsertError turns driver unique-constraint violations into ErrEmailTaken.
func mapInsertError(err error) error {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrEmailTaken
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return fmt.Errorf("insert user: %w", err)
}
