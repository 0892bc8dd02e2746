package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectBuilder(t *testing.T) {
	b := From("contacts", "c").
		Select("c.id", "c.first_name", "co.name").
		Join("LEFT JOIN companies co ON co.id = c.company_id").
		ForTenant("t1").
		WhereIf(true, "c.status = ?", "LEAD").
		WhereIf(false, "c.source = ?", "ignored").
		Search("ada", "first_name", "co.name").
		OrderBy("c.created_at DESC").
		Page(2, 20)

	q := b.Build()
	assert.Equal(t,
		"SELECT c.id, c.first_name, co.name FROM contacts c LEFT JOIN companies co ON co.id = c.company_id "+
			"WHERE c.tenant_id = ? AND c.status = ? AND (c.first_name LIKE ? OR co.name LIKE ?) "+
			"ORDER BY c.created_at DESC LIMIT 20 OFFSET 20", q.SQL)
	assert.Equal(t, []interface{}{"t1", "LEAD", "%ada%", "%ada%"}, q.Params)

	count := b.Count()
	assert.Equal(t,
		"SELECT COUNT(*) FROM contacts c LEFT JOIN companies co ON co.id = c.company_id "+
			"WHERE c.tenant_id = ? AND c.status = ? AND (c.first_name LIKE ? OR co.name LIKE ?)", count.SQL)
}

func TestWhereIn(t *testing.T) {
	q := From("activities", "").ForTenant("t1").WhereIn("id", []string{"a", "b"}).Select("COUNT(*)").Build()
	assert.Equal(t, "SELECT COUNT(*) FROM activities WHERE tenant_id = ? AND id IN (?, ?)", q.SQL)
	assert.Equal(t, []interface{}{"t1", "a", "b"}, q.Params)

	empty := From("activities", "").WhereIn("id", nil).Build()
	assert.Equal(t, "SELECT * FROM activities WHERE 1 = 0", empty.SQL)
}

func TestUpdateBuilder(t *testing.T) {
	b := Update("contacts").
		SetMap(map[string]interface{}{"status": "CUSTOMER", "lead_score": 40}).
		Set("first_name", "Ada").
		Where("tenant_id = ?", "t1").
		Where("id = ?", "c1")

	assert.True(t, b.HasValues())
	q := b.Build()
	assert.Equal(t, "UPDATE contacts SET first_name = ?, lead_score = ?, status = ? WHERE tenant_id = ? AND id = ?", q.SQL)
	assert.Equal(t, []interface{}{"Ada", 40, "CUSTOMER", "t1", "c1"}, q.Params)
}

func TestDeleteBuilder(t *testing.T) {
	q := Delete("activities").ForTenant("t1").WhereIn("id", []string{"x"}).Build()
	assert.Equal(t, "DELETE FROM activities WHERE tenant_id = ? AND id IN (?)", q.SQL)
	assert.Equal(t, []interface{}{"t1", "x"}, q.Params)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}
