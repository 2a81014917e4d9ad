package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStoreFromDB(sqlx.NewDb(db, "postgres")), mock
}

var workerColumns = []string{"id", "name", "code_cid", "metadata", "active"}

func TestPostgresStoreGet(t *testing.T) {
	store, mock := newTestPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, code_cid, metadata, active FROM workers WHERE id = \$1`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows(workerColumns).
			AddRow("w1", "resizer", "bafy-1", []byte(`{"runtime":"wasm"}`), true))

	def, err := store.Get(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", def.ID)
	assert.Equal(t, "resizer", def.Name)
	assert.Equal(t, "bafy-1", def.CodeCID)
	assert.Equal(t, map[string]string{"runtime": "wasm"}, def.Metadata)
	assert.True(t, def.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	store, mock := newTestPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, code_cid, metadata, active FROM workers WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(workerColumns))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrWorkerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetByCID(t *testing.T) {
	store, mock := newTestPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, code_cid, metadata, active FROM workers WHERE code_cid = \$1`).
		WithArgs("bafy-1").
		WillReturnRows(sqlmock.NewRows(workerColumns).
			AddRow("w1", "", "bafy-1", nil, true))

	def, err := store.GetByCID(context.Background(), "bafy-1")
	require.NoError(t, err)
	assert.Equal(t, "w1", def.ID)
	assert.Nil(t, def.Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListActive(t *testing.T) {
	store, mock := newTestPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, code_cid, metadata, active FROM workers WHERE active ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(workerColumns).
			AddRow("w1", "a", "c1", nil, true).
			AddRow("w2", "b", "c2", nil, true))

	defs, err := store.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "w1", defs[0].ID)
	assert.Equal(t, "w2", defs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorePropagatesErrors(t *testing.T) {
	store, mock := newTestPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, code_cid, metadata, active FROM workers WHERE id = \$1`).
		WithArgs("w1").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "w1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWorkerNotFound)
}
