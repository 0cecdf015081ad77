package registry

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/corpus/pkg/groups"
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/repository"
	"github.com/platinummonkey/corpus/pkg/storage"
)

func TestComposePersonName(t *testing.T) {
	tests := []struct {
		name   string
		person Person
		want   string
		terms  string
	}{
		{
			name: "full",
			person: Person{
				FamilyName: "Aardvark", FamilyNamePrefix: "van der",
				Initials: "J.A.", GivenName: "John",
			},
			want:  "van der Aardvark, J.A. (John)",
			terms: "Aardvark van der J.A. John",
		},
		{
			name:   "family name only",
			person: Person{FamilyName: "Aardvark"},
			want:   "Aardvark",
			terms:  "Aardvark",
		},
		{
			name:   "initials without given name",
			person: Person{FamilyName: "Aardvark", Initials: "J."},
			want:   "Aardvark, J.",
			terms:  "Aardvark J.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composePersonName(&tt.person)
			assert.Equal(t, tt.want, tt.person.Name)
			assert.Equal(t, tt.terms, tt.person.SearchTerms)
		})
	}
}

func TestSavePersonChildrenReconciles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	persisted := &Person{
		ID: 1,
		Accounts: &[]*Account{
			{ID: 10, OwnerID: 1, Type: "email", Value: "a@example.org"},
			{ID: 11, OwnerID: 1, Type: "orcid", Value: "0000-0001"},
		},
		Positions: &[]*Position{
			{ID: 20, PersonID: 1, GroupID: 5, Type: "academic", Position: 0},
		},
	}
	submitted := &Person{
		ID: 1,
		Accounts: &[]*Account{
			{Type: "email", Value: "a@example.org"},
			{Type: "wikipedia", Value: "Aardvark"},
		},
		Positions: &[]*Position{
			{ID: 20, GroupID: 5, Type: "honorary"},
			{GroupID: 6, Type: "academic"},
		},
	}

	// The orcid account disappears, the wikipedia account is new, the
	// matching email account is left untouched. Position 20 changes type in
	// place; the second position is a fresh row at index 1.
	mock.ExpectExec("DELETE FROM person_accounts WHERE id").
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO person_accounts").
		WithArgs(int64(1), "wikipedia", "Aardvark").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectExec("UPDATE positions SET").
		WithArgs(int64(5), "honorary", "", nil, nil, 0, int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO positions").
		WithArgs(int64(1), int64(6), "academic", "", nil, nil, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))

	err = savePersonChildren(context.Background(), db, persisted, submitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	accounts := *submitted.Accounts
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(10), accounts[0].ID)
	assert.Equal(t, int64(12), accounts[1].ID)

	positions := *submitted.Positions
	require.Len(t, positions, 2)
	assert.Equal(t, int64(20), positions[0].ID)
	assert.Equal(t, "honorary", positions[0].Type)
	assert.Equal(t, 0, positions[0].Position)
	assert.Equal(t, int64(21), positions[1].ID)
	assert.Equal(t, 1, positions[1].Position)
}

func TestPutDuplicateAccountsSurfaceStorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPersonStore(testDecider(), nil)
	person := &Person{
		FamilyName: "Aardvark",
		Accounts: &[]*Account{
			{Type: "local", Value: "1234"},
			{Type: "local", Value: "1234"},
		},
	}

	mock.ExpectQuery("INSERT INTO persons").
		WithArgs("Aardvark", "Aardvark", "", "", "", "", "", "Aardvark").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	// Both duplicate rows reach the database; the second insert trips the
	// (owner_id, type, value) uniqueness constraint.
	mock.ExpectQuery("INSERT INTO person_accounts").
		WithArgs(int64(1), "local", "1234").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(30)))
	mock.ExpectQuery("INSERT INTO person_accounts").
		WithArgs(int64(1), "local", "1234").
		WillReturnError(&pq.Error{
			Code:       "23505",
			Constraint: "person_accounts_owner_id_type_value_key",
			Message:    "duplicate key value violates unique constraint",
		})

	_, err = store.Put(context.Background(), db, person,
		principal.NewSet(principal.Authenticated, principal.RoleAdmin))
	var serr *storage.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "accounts", serr.Location)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGrantsThroughTransitiveGroupOwnership(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := New(nil)
	resolver := groups.NewClosureResolver(reg.Groups.Expander(db))
	parentOwner := principal.NewSet(principal.Authenticated, principal.GroupOwner(5))

	personRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "name", "family_name", "family_name_prefix", "given_name",
			"initials", "alternative_name", "honorary", "search_terms",
		}).AddRow(int64(1), "Aardvark", "Aardvark", "", "", "", "", "", "Aardvark")
	}
	expectChildren := func() {
		mock.ExpectQuery("SELECT (.+) FROM person_accounts").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "type", "value"}))
		mock.ExpectQuery("SELECT (.+) FROM positions").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "person_id", "group_id", "type", "description",
				"start_date", "end_date", "position",
			}))
		mock.ExpectQuery("SELECT (.+) FROM memberships").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "person_id", "group_id", "start_date", "end_date"}).
				AddRow(int64(40), int64(1), int64(6), nil, nil))
	}

	// Without expansion the parent group's owner does not reach a member of
	// the child group.
	mock.ExpectQuery("SELECT (.+) FROM persons WHERE").
		WithArgs(int64(1)).
		WillReturnRows(personRows())
	expectChildren()

	_, err = reg.Persons.Get(context.Background(), db, 1, parentOwner)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	// With expansion, owning group 5 covers its descendant group 6.
	mock.ExpectQuery("SELECT (.+) FROM persons WHERE").
		WithArgs(int64(1)).
		WillReturnRows(personRows())
	expectChildren()
	mock.ExpectQuery("SELECT id FROM groups WHERE parent_id").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(6)))
	mock.ExpectQuery("SELECT id FROM groups WHERE parent_id").
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	loaded, err := reg.Persons.Get(context.Background(), db, 1, parentOwner,
		policy.WithTransitiveGroups(resolver))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(1), loaded.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePersonChildrenAbsentCollectionsUntouched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	persisted := &Person{
		ID:       1,
		Accounts: &[]*Account{{ID: 10, OwnerID: 1, Type: "email", Value: "a@example.org"}},
		Positions: &[]*Position{
			{ID: 20, PersonID: 1, GroupID: 5, Type: "academic"},
		},
	}
	submitted := &Person{ID: 1, FamilyName: "Renamed"}

	// Nil collection pointers mean the payload did not mention them: no
	// child statement may run and the persisted collections carry over.
	err = savePersonChildren(context.Background(), db, persisted, submitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.NotNil(t, submitted.Accounts)
	assert.Equal(t, int64(10), (*submitted.Accounts)[0].ID)
	require.NotNil(t, submitted.Positions)
	assert.Equal(t, int64(20), (*submitted.Positions)[0].ID)
}

func TestSavePersonChildrenEmptyCollectionClears(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	persisted := &Person{
		ID:        1,
		Accounts:  &[]*Account{{ID: 10, OwnerID: 1, Type: "email", Value: "a@example.org"}},
		Positions: &[]*Position{},
	}
	empty := []*Account{}
	noPositions := []*Position{}
	submitted := &Person{ID: 1, Accounts: &empty, Positions: &noPositions}

	mock.ExpectExec("DELETE FROM person_accounts WHERE id").
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = savePersonChildren(context.Background(), db, persisted, submitted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, *submitted.Accounts)
}
