package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

const tableCountQuery = "SELECT COUNT"

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	t.Run("skips migration when tables exist", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(tableCountQuery).
			WithArgs(requiredTables).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(len(requiredTables)))

		require.NoError(t, EnsureSchema(context.Background(), mock))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("applies migration when tables are missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(tableCountQuery).
			WithArgs(requiredTables).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectQuery(tableCountQuery).
			WithArgs(requiredTables).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(len(requiredTables)))

		require.NoError(t, EnsureSchema(context.Background(), mock))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports migration failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(tableCountQuery).
			WithArgs(requiredTables).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
			WillReturnError(errors.New("permission denied"))

		err = EnsureSchema(context.Background(), mock)
		require.ErrorContains(t, err, "apply initial migration")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
