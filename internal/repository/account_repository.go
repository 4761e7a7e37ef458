package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/school-portal-api/internal/models"
)

var (
	// ErrAccountExists is returned when an account with the same email already exists.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
)

const uniqueViolation = "23505"

// AccountRepository persists credential accounts in Postgres.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	const query = `INSERT INTO accounts (id, email, password_hash, created_at, last_sign_in_at) VALUES (:id, :email, :password_hash, :created_at, :last_sign_in_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrAccountExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// FindByEmail returns the account registered under email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	const query = `SELECT id, email, password_hash, created_at, last_sign_in_at FROM accounts WHERE email = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &account, nil
}

// FindByID returns the account with the given uid.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	const query = `SELECT id, email, password_hash, created_at, last_sign_in_at FROM accounts WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// UpdateLastSignIn records the latest successful sign-in.
func (r *AccountRepository) UpdateLastSignIn(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE accounts SET last_sign_in_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last sign in: %w", err)
	}
	return nil
}

// MemoryAccountRepository keeps accounts in process memory.
type MemoryAccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.Account
	byEmail map[string]string
}

// NewMemoryAccountRepository constructs an empty in-memory account repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{byID: make(map[string]models.Account), byEmail: make(map[string]string)}
}

// Create inserts a new account.
func (r *MemoryAccountRepository) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(account.Email)
	if _, ok := r.byEmail[email]; ok {
		return ErrAccountExists
	}
	r.byID[account.ID] = *account
	r.byEmail[email] = account.ID
	return nil
}

// FindByEmail returns the account registered under email.
func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account := r.byID[id]
	return &account, nil
}

// FindByID returns the account with the given uid.
func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

// UpdateLastSignIn records the latest successful sign-in.
func (r *MemoryAccountRepository) UpdateLastSignIn(_ context.Context, id string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.LastSignInAt = &ts
	r.byID[id] = account
	return nil
}
