package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/contentvault/ledger/internal/models"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
)

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account is nil", pkgerrors.ErrInvalidInput)
	}
	if account.Username == "" || account.PasswordHash == "" {
		return fmt.Errorf("%w: username and password are required", pkgerrors.ErrInvalidInput)
	}

	query := `
	INSERT INTO accounts (username, password_hash, balance, spins_remaining, next_spin_reset)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		account.Username,
		account.PasswordHash,
		account.Balance,
		account.SpinsRemaining,
		account.NextSpinReset,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrUsernameExists
		}
		return storeErr(fmt.Errorf("failed to create account: %w", err))
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id int32) (*models.Account, error) {
	query := `
	SELECT id, username, password_hash, balance, last_check_in, spins_remaining, next_spin_reset, created_at
	FROM accounts WHERE id = $1`

	var account models.Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Balance,
		&account.LastCheckIn,
		&account.SpinsRemaining,
		&account.NextSpinReset,
		&account.CreatedAt,
	)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrAccountNotFound
	case err != nil:
		return nil, storeErr(fmt.Errorf("failed to get account: %w", err))
	}
	return &account, nil
}

func (r *PostgresAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrInvalidInput)
	}

	query := `
	SELECT id, username, password_hash, balance, last_check_in, spins_remaining, next_spin_reset, created_at
	FROM accounts WHERE username = $1`

	var account models.Account
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Balance,
		&account.LastCheckIn,
		&account.SpinsRemaining,
		&account.NextSpinReset,
		&account.CreatedAt,
	)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrAccountNotFound
	case err != nil:
		return nil, storeErr(fmt.Errorf("failed to get account by username: %w", err))
	}
	return &account, nil
}

func (r *PostgresAccountRepository) GetBalance(ctx context.Context, id int32) (int32, error) {
	var balance int32
	query := `SELECT balance FROM accounts WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&balance)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return 0, pkgerrors.ErrAccountNotFound
	case err != nil:
		return 0, storeErr(fmt.Errorf("failed to get balance: %w", err))
	}
	return balance, nil
}

func (r *PostgresAccountRepository) CompareAndSetBalance(ctx context.Context, id, expected, next int32) (bool, error) {
	if next < 0 {
		return false, fmt.Errorf("%w: balance cannot go negative", pkgerrors.ErrInvalidInput)
	}

	query := `UPDATE accounts SET balance = $3 WHERE id = $1 AND balance = $2`
	res, err := r.db.ExecContext(ctx, query, id, expected, next)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to swap balance: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected == 1, nil
}

func (r *PostgresAccountRepository) ApplyCheckIn(ctx context.Context, id, reward int32, checkInAt, dayStart time.Time) (int32, error) {
	query := `
	UPDATE accounts
	SET balance = balance + $2, last_check_in = $3
	WHERE id = $1 AND (last_check_in IS NULL OR last_check_in < $4)
	RETURNING balance
	`
	var balance int32
	err := r.db.QueryRowContext(ctx, query, id, reward, checkInAt, dayStart).Scan(&balance)
	if stderrors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetBalance(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, pkgerrors.ErrAlreadyCheckedIn
	}
	if err != nil {
		return 0, storeErr(fmt.Errorf("failed to apply check-in: %w", err))
	}
	slog.Info("check-in applied", "user_id", id, "reward", reward)
	return balance, nil
}

func (r *PostgresAccountRepository) ApplySpin(ctx context.Context, id, reward int32) (int32, int32, error) {
	query := `
	UPDATE accounts
	SET balance = balance + $2, spins_remaining = spins_remaining - 1
	WHERE id = $1 AND spins_remaining > 0
	RETURNING balance, spins_remaining
	`
	var balance, remaining int32
	err := r.db.QueryRowContext(ctx, query, id, reward).Scan(&balance, &remaining)
	if stderrors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetBalance(ctx, id); getErr != nil {
			return 0, 0, getErr
		}
		return 0, 0, pkgerrors.ErrNoSpinsRemaining
	}
	if err != nil {
		return 0, 0, storeErr(fmt.Errorf("failed to apply spin: %w", err))
	}
	slog.Info("spin applied", "user_id", id, "reward", reward, "spins_remaining", remaining)
	return balance, remaining, nil
}

func (r *PostgresAccountRepository) ResetSpins(ctx context.Context, id, maxSpins int32, now, nextReset time.Time) (bool, error) {
	query := `
	UPDATE accounts
	SET spins_remaining = $2, next_spin_reset = $4
	WHERE id = $1 AND next_spin_reset IS NOT NULL AND next_spin_reset <= $3
	`
	res, err := r.db.ExecContext(ctx, query, id, maxSpins, now, nextReset)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to reset spins: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected == 1, nil
}
