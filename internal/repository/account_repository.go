package repository

import (
	"context"
	"time"

	"github.com/contentvault/ledger/internal/models"
)

//go:generate mockgen -destination=./mocks/mock_repository.go -package=mocks github.com/contentvault/ledger/internal/repository AccountRepository,ContentRepository,RequestRepository,TransferRepository,EventRepository

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int32) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetBalance(ctx context.Context, id int32) (int32, error)

	// CompareAndSetBalance swaps the balance only if it still equals
	// expected. Returns false when the guard lost the race.
	CompareAndSetBalance(ctx context.Context, id, expected, next int32) (bool, error)

	// ApplyCheckIn credits reward and stamps last_check_in, guarded in SQL
	// so only the first call whose last_check_in predates dayStart wins.
	// Returns the new balance, or ErrAlreadyCheckedIn.
	ApplyCheckIn(ctx context.Context, id, reward int32, checkInAt, dayStart time.Time) (int32, error)

	// ApplySpin credits reward and burns one spin; ErrNoSpinsRemaining
	// when spins_remaining is already zero.
	ApplySpin(ctx context.Context, id, reward int32) (balance, remaining int32, err error)

	// ResetSpins refills spins_remaining once next_spin_reset has passed.
	// Returns false when the deadline has not been reached (or another
	// caller reset first).
	ResetSpins(ctx context.Context, id, maxSpins int32, now, nextReset time.Time) (bool, error)
}
