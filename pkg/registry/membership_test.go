package registry

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/corpus/pkg/principal"
)

func TestMembershipListSnippets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	admin := principal.NewSet(principal.Authenticated, principal.RoleAdmin)

	// One row per person with the matched group ids aggregated; the count
	// runs over the grouped rollup, not the raw membership rows.
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(pq.Array([]int64{5, 6})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT page.id, page.name, page.group_ids").
		WithArgs(pq.Array([]int64{5, 6})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "group_ids", "works"}).
			AddRow(int64(1), "Doe, J.", "{5,6}", 3))

	store := NewMembershipStore(testDecider(), nil)
	total, snippets, err := store.ListSnippets(context.Background(), db, admin, []int64{5, 6}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, snippets, 1)
	assert.Equal(t, int64(1), snippets[0].PersonID)
	assert.Equal(t, "Doe, J.", snippets[0].PersonName)
	assert.Equal(t, []int64{5, 6}, snippets[0].GroupIDs)
	assert.Equal(t, 3, snippets[0].Works)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadMembershipsForPerson(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM memberships WHERE person_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "person_id", "group_id", "start_date", "end_date"}).
			AddRow(int64(40), int64(1), int64(5), nil, nil))

	memberships, err := loadMembershipsForPerson(context.Background(), db, 1)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, int64(5), memberships[0].GroupID)
	assert.Nil(t, memberships[0].StartDate)
}
