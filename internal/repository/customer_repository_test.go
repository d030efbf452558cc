package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return sqlx.NewDb(conn, "pgx"), mock
}

func TestCustomerRepositoryGetBySubscriberID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomerRepository(db, logger.NewNop())

	want := domain.NewCustomer("user-1", "cus_1", "user@example.com")
	rows := sqlmock.NewRows([]string{"id", "subscriber_id", "stripe_id", "email", "created_at", "updated_at"}).
		AddRow(want.ID.String(), want.SubscriberID, want.StripeID, want.Email, want.CreatedAt, want.UpdatedAt)
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers")).WithArgs("user-1").WillReturnRows(rows)

	got, err := repo.GetBySubscriberID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "cus_1", got.StripeID)
	assert.Equal(t, "user@example.com", got.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepositoryGetBySubscriberIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomerRepository(db, logger.NewNop())

	mock.ExpectQuery("FROM customers").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subscriber_id", "stripe_id", "email", "created_at", "updated_at"}))

	_, err := repo.GetBySubscriberID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomerRepositoryCreate(t *testing.T) {
	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{name: "inserted"},
		{name: "duplicate", dbErr: &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, wantErr: domain.ErrDuplicate},
		{name: "connection lost", dbErr: errors.New("conn closed"), wantErr: errors.New("conn closed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewCustomerRepository(db, logger.NewNop())

			exp := mock.ExpectExec(regexp.QuoteMeta("INSERT INTO customers"))
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			err := repo.Create(context.Background(), domain.NewCustomer("user-1", "cus_1", ""))
			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, domain.ErrDuplicate):
				assert.ErrorIs(t, err, domain.ErrDuplicate)
			default:
				require.Error(t, err)
				assert.NotErrorIs(t, err, domain.ErrDuplicate)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMapDBError(t *testing.T) {
	assert.NoError(t, mapDBError(nil))
	assert.ErrorIs(t, mapDBError(&pgconn.PgError{Code: pgUniqueViolation}), domain.ErrDuplicate)

	other := &pgconn.PgError{Code: "40001"}
	assert.Equal(t, error(other), mapDBError(other))

}
