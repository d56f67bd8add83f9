package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Accounts is the account store contract. The backing table must carry a
// unique index on email; the repository reports a violation of it as
// ErrDuplicateEmail so the service never has to trust its own
// check-then-insert window.
type Accounts interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error)
	GetByRecoveryToken(ctx context.Context, token string) (*Account, error)
	GetByRecoveryTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error)
	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	Update(ctx context.Context, record *Account) (*Account, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, record *Account, token string) error
	ConsumeRecoveryTokenTx(ctx context.Context, tx bun.IDB, record *Account, token string) error
	DeleteByID(ctx context.Context, id int64) (bool, error)
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id int64) (bool, error)
	List(ctx context.Context) ([]*Account, error)
}

type accounts struct {
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository creates the bun backed Accounts repository.
func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{db: db}
}

func (a *accounts) GetByID(ctx context.Context, id int64) (*Account, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Account, error) {
	return a.getByColumn(ctx, tx, "id", id)
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getByColumn(ctx, tx, "email", strings.TrimSpace(email))
}

func (a *accounts) GetByVerificationToken(ctx context.Context, token string) (*Account, error) {
	return a.GetByVerificationTokenTx(ctx, a.db, token)
}

func (a *accounts) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error) {
	return a.getByColumn(ctx, tx, "verification_token", token)
}

func (a *accounts) GetByRecoveryToken(ctx context.Context, token string) (*Account, error) {
	return a.GetByRecoveryTokenTx(ctx, a.db, token)
}

func (a *accounts) GetByRecoveryTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error) {
	return a.getByColumn(ctx, tx, "recovery_token", token)
}

func (a *accounts) getByColumn(ctx context.Context, tx bun.IDB, column string, value any) (*Account, error) {
	record := &Account{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query account")
	}

	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert account")
	}
	return record, nil
}

func (a *accounts) Update(ctx context.Context, record *Account) (*Account, error) {
	return a.UpdateTx(ctx, a.db, record)
}

func (a *accounts) UpdateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	res, err := tx.NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrAccountNotFound
	}

	return record, nil
}

// ConsumeVerificationTokenTx persists record only while the stored
// verification token still equals token. Zero rows affected means another
// transaction consumed or superseded the token first.
func (a *accounts) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, record *Account, token string) error {
	return a.consumeTokenTx(ctx, tx, record, "verification_token", token)
}

// ConsumeRecoveryTokenTx is the recovery counterpart of
// ConsumeVerificationTokenTx.
func (a *accounts) ConsumeRecoveryTokenTx(ctx context.Context, tx bun.IDB, record *Account, token string) error {
	return a.consumeTokenTx(ctx, tx, record, "recovery_token", token)
}

// consumeTokenTx writes the post-consumption record guarded by the token
// pre-image. The guard is what makes a token single-use at read-committed
// isolation: of two racing transactions only the first update matches the
// stored value, the loser sees zero rows and reports ErrInvalidToken.
func (a *accounts) consumeTokenTx(ctx context.Context, tx bun.IDB, record *Account, column, token string) error {
	res, err := tx.NewUpdate().
		Model(record).
		WherePK().
		Where("?TableAlias."+column+" = ?", token).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume token")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrInvalidToken
	}

	return nil
}

func (a *accounts) DeleteByID(ctx context.Context, id int64) (bool, error) {
	return a.DeleteByIDTx(ctx, a.db, id)
}

func (a *accounts) DeleteByIDTx(ctx context.Context, tx bun.IDB, id int64) (bool, error) {
	res, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read delete result")
	}

	return affected > 0, nil
}

func (a *accounts) List(ctx context.Context) ([]*Account, error) {
	records := []*Account{}

	err := a.db.NewSelect().
		Model(&records).
		Order("acc.id ASC").
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list accounts")
	}

	return records, nil
}

// isUniqueViolation sniffs driver error messages for a unique index
// violation. Covers sqlite and the postgres wire error (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE=23505") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
