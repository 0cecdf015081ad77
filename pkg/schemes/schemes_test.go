package schemes

import (
	"context"
	"regexp"
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/corpus/pkg/tenant"
)

func TestTableFor(t *testing.T) {
	table, err := TableFor("workType")
	require.NoError(t, err)
	assert.Equal(t, "work_type_schemes", table)

	_, err = TableFor("colorScheme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scheme")
}

func TestIDsSorted(t *testing.T) {
	ids := IDs()
	assert.Len(t, ids, 11)
	assert.True(t, sort.StringsAreSorted(ids))
	assert.Contains(t, ids, "contributorRole")
	assert.Contains(t, ids, "groupAccountType")
}

func TestListOrdersByKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT key, label FROM position_type_schemes ORDER BY key")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "label"}).
			AddRow("academic", "Academic Staff").
			AddRow("phd", "PhD Student"))

	store := NewStore(tenant.NewStore(db))
	values, err := store.List(context.Background(), db, "positionType")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, Value{Key: "academic", Label: "Academic Staff"}, values[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceReconcilesRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Stored: alpha, beta, gamma. Submitted: alpha unchanged, beta with a
	// new label, delta new. Expect one UPDATE, one DELETE, one INSERT and a
	// revision bump; alpha is untouched.
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT key, label FROM work_type_schemes ORDER BY key")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "label"}).
			AddRow("alpha", "Alpha").
			AddRow("beta", "Beta").
			AddRow("gamma", "Gamma"))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE work_type_schemes SET label = $1 WHERE key = $2")).
		WithArgs("Beta Revised", "beta").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"DELETE FROM work_type_schemes WHERE key = $1")).
		WithArgs("gamma").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO work_type_schemes (key, label) VALUES ($1, $2)")).
		WithArgs("delta", "Delta").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE tenants SET config_revision = config_revision + 1 WHERE namespace = $1 RETURNING config_revision")).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"config_revision"}).AddRow(int64(4)))

	store := NewStore(tenant.NewStore(db))
	revision, err := store.Replace(context.Background(), db, "acme", "workType", []Value{
		{Key: "alpha", Label: "Alpha"},
		{Key: "beta", Label: "Beta Revised"},
		{Key: "delta", Label: "Delta"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceUnknownScheme(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(tenant.NewStore(db))
	_, err = store.Replace(context.Background(), db, "acme", "nope", nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultsCoverEveryScheme(t *testing.T) {
	defaults := Defaults()
	for _, id := range IDs() {
		assert.NotEmpty(t, defaults[id], "scheme %s has no seed values", id)
	}
	assert.Len(t, defaults, len(IDs()))
}
