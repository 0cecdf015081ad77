package registry

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeWorkSearchTerms(t *testing.T) {
	w := Work{Title: "The Great Survey"}
	composeWorkSearchTerms(&w)
	assert.Equal(t, "the great survey", w.SearchTerms)
}

func TestLoadContributorsGroupsAffiliations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM contributors WHERE work_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "work_id", "person_id", "group_id", "role", "position"}).
			AddRow(int64(100), int64(1), int64(5), nil, "author", 0).
			AddRow(int64(101), int64(1), nil, int64(9), "editor", 1))
	mock.ExpectQuery("SELECT (.+) FROM affiliations WHERE work_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "work_id", "contributor_id", "group_id", "position"}).
			AddRow(int64(200), int64(1), int64(100), int64(12), 0).
			AddRow(int64(201), int64(1), int64(100), int64(13), 1))

	w := &Work{ID: 1}
	err = loadContributors(context.Background(), db, w)
	require.NoError(t, err)

	contributors := *w.Contributors
	require.Len(t, contributors, 2)

	first := contributors[0]
	require.NotNil(t, first.PersonID)
	assert.Equal(t, int64(5), *first.PersonID)
	assert.Nil(t, first.GroupID)
	affiliations := *first.Affiliations
	require.Len(t, affiliations, 2)
	assert.Equal(t, int64(12), affiliations[0].GroupID)
	assert.Equal(t, int64(13), affiliations[1].GroupID)

	second := contributors[1]
	assert.Nil(t, second.PersonID)
	require.NotNil(t, second.GroupID)
	assert.Equal(t, int64(9), *second.GroupID)
	assert.Empty(t, *second.Affiliations)
}

func TestSaveMeasuresReplacesChangedValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	persisted := &Work{
		ID:       1,
		Measures: &[]*Measure{{ID: 300, WorkID: 1, Type: "cites", Value: "10"}},
	}
	submitted := &Work{
		ID:       1,
		Measures: &[]*Measure{{Type: "cites", Value: "12"}},
	}

	// A changed reading is a remove plus an add; the delete runs first so
	// the one-measure-per-type constraint never sees both rows.
	mock.ExpectExec("DELETE FROM work_measures WHERE id").
		WithArgs(int64(300)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO work_measures").
		WithArgs(int64(1), "cites", "12").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(301)))

	err = saveMeasures(context.Background(), db, persisted, submitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	measures := *submitted.Measures
	require.Len(t, measures, 1)
	assert.Equal(t, int64(301), measures[0].ID)
}

func TestSaveIdentifiersAbsentCollectionUntouched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	persisted := &Work{
		ID:          1,
		Identifiers: &[]*Identifier{{ID: 400, WorkID: 1, Type: "doi", Value: "10.1/x"}},
	}
	submitted := &Work{ID: 1}

	err = saveIdentifiers(context.Background(), db, persisted, submitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.NotNil(t, submitted.Identifiers)
	assert.Equal(t, int64(400), (*submitted.Identifiers)[0].ID)
}

func TestSaveContributorsNestedAffiliations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	personID := int64(5)
	existingAffs := []*Affiliation{{ID: 200, WorkID: 1, ContributorID: 100, GroupID: 12, Position: 0}}
	persisted := &Work{
		ID: 1,
		Contributors: &[]*Contributor{
			{ID: 100, WorkID: 1, PersonID: &personID, Role: "author", Position: 0, Affiliations: &existingAffs},
		},
	}
	submittedAffs := []*Affiliation{{GroupID: 13}}
	submitted := &Work{
		ID: 1,
		Contributors: &[]*Contributor{
			{ID: 100, PersonID: &personID, Role: "author", Affiliations: &submittedAffs},
		},
	}

	// The contributor row survives with an UPDATE; its affiliation list is
	// reconciled underneath it: group 12 out, group 13 in.
	mock.ExpectExec("UPDATE contributors SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM affiliations WHERE id").
		WithArgs(int64(200)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO affiliations").
		WithArgs(int64(1), int64(100), int64(13), 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(201)))

	err = saveContributors(context.Background(), db, persisted, submitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	contributors := *submitted.Contributors
	require.Len(t, contributors, 1)
	affiliations := *contributors[0].Affiliations
	require.Len(t, affiliations, 1)
	assert.Equal(t, int64(13), affiliations[0].GroupID)
	assert.Equal(t, int64(201), affiliations[0].ID)
}
