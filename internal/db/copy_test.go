package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "airports", []string{"icao", "name"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"airports"}, []string{"icao", "name"}).WillReturnResult(2)

	rows := [][]any{{"KPAO", "Palo Alto"}, {"KSQL", "San Carlos"}}
	n, err := CopyFrom(context.Background(), mock, "airports", []string{"icao", "name"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"airports"}, []string{"icao"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "airports", []string{"icao"}, [][]any{{"KPAO"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO airports")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_RowWidthMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = CopyFrom(context.Background(), mock, "airports", []string{"icao", "name"}, [][]any{{"KPAO", "Palo Alto"}, {"KSQL"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 has 1 values for 2 columns")
	assert.NoError(t, mock.ExpectationsWereMet())
}
