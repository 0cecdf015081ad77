package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateErrorNil(t *testing.T) {
	assert.NoError(t, TranslateError(nil, nil))
}

func TestTranslateErrorPassesThroughNonDriverErrors(t *testing.T) {
	err := errors.New("context deadline exceeded")
	assert.Equal(t, err, TranslateError(err, nil))
}

func TestTranslateErrorPassesThroughOtherPQCodes(t *testing.T) {
	err := &pq.Error{Code: "42P01", Message: "relation does not exist"}
	assert.Equal(t, error(err), TranslateError(err, nil))
}

func TestTranslateErrorUniqueViolation(t *testing.T) {
	err := &pq.Error{
		Code:       "23505",
		Message:    `duplicate key value violates unique constraint "person_accounts_owner_id_type_value_key"`,
		Constraint: "person_accounts_owner_id_type_value_key",
	}
	locations := ConstraintLocations{
		"person_accounts_owner_id_type_value_key": "accounts",
	}

	translated := TranslateError(err, locations)
	var serr *StorageError
	require.ErrorAs(t, translated, &serr)
	assert.Equal(t, "accounts", serr.Location)
	assert.Contains(t, serr.Error(), "accounts")
	assert.ErrorIs(t, translated, error(err))
}

func TestTranslateErrorForeignKeyViolation(t *testing.T) {
	err := &pq.Error{
		Code:       "23503",
		Message:    `insert or update on table "memberships" violates foreign key constraint "memberships_group_id_fkey"`,
		Constraint: "memberships_group_id_fkey",
	}
	translated := TranslateError(err, ConstraintLocations{"memberships_group_id_fkey": "group_id"})

	var serr *StorageError
	require.ErrorAs(t, translated, &serr)
	assert.Equal(t, "group_id", serr.Location)
}

func TestTranslateErrorNotNullFallsBackToColumn(t *testing.T) {
	err := &pq.Error{
		Code:    "23502",
		Message: "null value in column \"family_name\" violates not-null constraint",
		Column:  "family_name",
	}
	translated := TranslateError(err, nil)

	var serr *StorageError
	require.ErrorAs(t, translated, &serr)
	assert.Equal(t, "family_name", serr.Location)
}

func TestTranslateErrorUnregisteredConstraint(t *testing.T) {
	err := &pq.Error{Code: "23505", Message: "duplicate", Constraint: "mystery_key"}
	translated := TranslateError(err, ConstraintLocations{})

	var serr *StorageError
	require.ErrorAs(t, translated, &serr)
	assert.Empty(t, serr.Location)
	assert.Equal(t, "storage error: duplicate", serr.Error())
}

func TestTranslateErrorWrappedDriverError(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Message: "duplicate", Constraint: "users_userid_key"}
	wrapped := fmt.Errorf("saving user: %w", pqErr)

	translated := TranslateError(wrapped, ConstraintLocations{"users_userid_key": "userid"})
	var serr *StorageError
	require.ErrorAs(t, translated, &serr)
	assert.Equal(t, "userid", serr.Location)
}
