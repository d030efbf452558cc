package repository

import (
	"database/sql"
	"errors"

	"github.com/Dhoini/subscription-service/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation код ошибки PostgreSQL для нарушения уникальности
const pgUniqueViolation = "23505"

// mapDBError приводит ошибки драйвера к доменным
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrDuplicate
	}
	return err
}
