package repository

import "github.com/jmoiron/sqlx"

// orDB lets transactional repository methods also run outside a transaction.
func orDB(exec sqlx.ExtContext, db *sqlx.DB) sqlx.ExtContext {
	if exec == nil {
		return db
	}
	return exec
}
