package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CreateSchema creates the accounts and account_activity tables. The
// unique index on accounts.email is load-bearing: the service relies on
// the store to be the authority on email uniqueness.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Account)(nil),
		(*ActivityLog)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}

	_, err := db.NewCreateIndex().
		Model((*Account)(nil)).
		Index("idx_accounts_email").
		Column("email").
		Unique().
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create email index")
	}

	return nil
}
