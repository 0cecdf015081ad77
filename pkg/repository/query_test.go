package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectQuerySQL(t *testing.T) {
	sql, args := NewSelect("persons", "persons.id", "persons.name").
		Where("persons.name ILIKE ?", "%doe%").
		OrderBy("persons.name ASC").
		Page(10, 20).
		SQL()

	assert.Equal(t,
		"SELECT persons.id, persons.name FROM persons WHERE persons.name ILIKE $1 ORDER BY persons.name ASC LIMIT 10 OFFSET 20",
		sql)
	assert.Equal(t, []any{"%doe%"}, args)
}

func TestSelectQueryJoinIdempotent(t *testing.T) {
	q := NewSelect("persons", "persons.id").
		Join("memberships", "JOIN memberships ON memberships.person_id = persons.id").
		Join("memberships", "JOIN memberships ON memberships.person_id = persons.id")

	sql, _ := q.SQL()
	assert.Equal(t,
		"SELECT persons.id FROM persons JOIN memberships ON memberships.person_id = persons.id",
		sql)
}

func TestSelectQueryBaseTableNeverJoined(t *testing.T) {
	q := NewSelect("persons", "persons.id")
	assert.True(t, q.Joined("persons"))
	q.Join("persons", "JOIN persons ON 1=1")
	sql, _ := q.SQL()
	assert.Equal(t, "SELECT persons.id FROM persons", sql)
}

func TestSelectQueryMarkJoined(t *testing.T) {
	q := NewSelect("works", "works.id").MarkJoined("contributors")
	assert.True(t, q.Joined("contributors"))
	q.Join("contributors", "JOIN contributors ON contributors.work_id = works.id")
	sql, _ := q.SQL()
	assert.Equal(t, "SELECT works.id FROM works", sql)
}

func TestSelectQueryRenumbering(t *testing.T) {
	sql, args := NewSelect("works", "works.id").
		Where("works.type = ?", "article").
		Where("works.id IN (?, ?)", int64(1), int64(2)).
		SQL()

	assert.Equal(t,
		"SELECT works.id FROM works WHERE works.type = $1 AND works.id IN ($2, $3)",
		sql)
	assert.Equal(t, []any{"article", int64(1), int64(2)}, args)
}

func TestSelectQueryCountSQLDropsPagination(t *testing.T) {
	q := NewSelect("persons", "persons.id").
		Where("persons.family_name = ?", "Doe").
		OrderBy("persons.name ASC").
		Page(10, 5)

	sql, args := q.CountSQL()
	assert.Equal(t,
		"SELECT COUNT(*) FROM (SELECT persons.id FROM persons WHERE persons.family_name = $1) AS _count",
		sql)
	assert.Equal(t, []any{"Doe"}, args)
}

func TestSelectQueryGroupByCountsGroups(t *testing.T) {
	q := NewSelect("memberships", "person_id").GroupBy("person_id")
	sql, _ := q.CountSQL()
	assert.Equal(t,
		"SELECT COUNT(*) FROM (SELECT person_id FROM memberships GROUP BY person_id) AS _count",
		sql)
}

func TestFromSubqueryKeepsInnerPagination(t *testing.T) {
	inner := NewSelect("works", "works.id", "works.title").
		Where("works.type = ?", "article").
		OrderBy("works.id DESC").
		Page(5, 0)

	outer := FromSubquery(inner, "page", "page.id", "page.title")
	sql, args := outer.SQL()
	assert.Equal(t,
		"SELECT page.id, page.title FROM (SELECT works.id, works.title FROM works WHERE works.type = $1 ORDER BY works.id DESC LIMIT 5 OFFSET 0) AS page",
		sql)
	assert.Equal(t, []any{"article"}, args)
}

func TestFromSubqueryArgOrdering(t *testing.T) {
	inner := NewSelect("works", "works.id").Where("works.type = ?", "article")
	outer := FromSubquery(inner, "page", "page.id").
		Where("page.id > ?", int64(10))

	sql, args := outer.SQL()
	assert.Equal(t,
		"SELECT page.id FROM (SELECT works.id FROM works WHERE works.type = $1) AS page WHERE page.id > $2",
		sql)
	assert.Equal(t, []any{"article", int64(10)}, args)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}
