package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestMigrate_AppliesPendingInOrder(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_reports.sql": "CREATE TABLE a (id int);",
		"002_log.sql":     "CREATE TABLE b (id int);",
		"003_empty.sql":   "   \n",
		"README.md":       "not sql",
	})
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"filename"}).AddRow("001_reports.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_log.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var out bytes.Buffer
	ok, failed, err := migrate(db, dir, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)
	assert.Contains(t, out.String(), "002_log.sql ... OK")
	assert.NotContains(t, out.String(), "001_reports.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnError(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_a.sql": "BROKEN;",
		"002_b.sql": "CREATE TABLE b (id int);",
	})
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"filename"}))
	mock.ExpectBegin()
	mock.ExpectExec(`BROKEN`).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	var out bytes.Buffer
	ok, failed, err := migrate(db, dir, &out)
	require.NoError(t, err)
	assert.Zero(t, ok)
	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "ERROR: syntax error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsDirParses(t *testing.T) {
	entries, err := os.ReadDir("../../migrations")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2)
}
