// Package query builds parameterised SQL for list filters and partial updates.
package query

import (
	"fmt"
	"sort"
	"strings"
)

// QueryType represents the type of SQL query
type QueryType string

const (
	QueryTypeSelect QueryType = "SELECT"
	QueryTypeUpdate QueryType = "UPDATE"
	QueryTypeDelete QueryType = "DELETE"
)

// QueryResult represents the built SQL query and parameters
type QueryResult struct {
	SQL    string
	Params []interface{}
}

// Builder is a fluent SQL query builder. Identifiers are trusted input from
// callers; only values travel as parameters.
type Builder struct {
	queryType    QueryType
	table        string
	alias        string
	fields       []string
	joins        []string
	whereClauses []string
	params       []interface{}
	orderBy      string
	groupBy      string
	limit        *int
	offset       *int
	values       map[string]interface{}
}

// From creates a new SELECT query builder. alias may be empty.
func From(table, alias string) *Builder {
	return &Builder{queryType: QueryTypeSelect, table: table, alias: alias}
}

// Update creates a new UPDATE query builder
func Update(table string) *Builder {
	return &Builder{queryType: QueryTypeUpdate, table: table, values: make(map[string]interface{})}
}

// Delete creates a new DELETE query builder
func Delete(table string) *Builder {
	return &Builder{queryType: QueryTypeDelete, table: table}
}

func (b *Builder) col(name string) string {
	if b.alias == "" || strings.ContainsAny(name, ".(`") {
		return name
	}
	return b.alias + "." + name
}

// Select specifies raw select expressions
func (b *Builder) Select(fields ...string) *Builder {
	b.fields = append(b.fields, fields...)
	return b
}

// Join adds a raw JOIN clause, e.g. "LEFT JOIN companies co ON co.id = c.company_id"
func (b *Builder) Join(join string) *Builder {
	b.joins = append(b.joins, join)
	return b
}

// ForTenant restricts rows to one tenant
func (b *Builder) ForTenant(tenantID string) *Builder {
	return b.Where(b.col("tenant_id")+" = ?", tenantID)
}

// Where adds a WHERE condition
func (b *Builder) Where(condition string, value ...interface{}) *Builder {
	b.whereClauses = append(b.whereClauses, condition)
	b.params = append(b.params, value...)
	return b
}

// WhereIf adds the condition only when ok is true
func (b *Builder) WhereIf(ok bool, condition string, value ...interface{}) *Builder {
	if !ok {
		return b
	}
	return b.Where(condition, value...)
}

// WhereIn adds "column IN (?, ...)". An empty set matches nothing.
func (b *Builder) WhereIn(column string, values []string) *Builder {
	if len(values) == 0 {
		return b.Where("1 = 0")
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return b.Where(fmt.Sprintf("%s IN (%s)", b.col(column), Placeholders(len(values))), args...)
}

// Search adds an OR of LIKE matches across columns; blank terms are ignored
func (b *Builder) Search(term string, columns ...string) *Builder {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return b
	}
	likes := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, c := range columns {
		likes[i] = b.col(c) + " LIKE ?"
		args[i] = "%" + term + "%"
	}
	return b.Where("("+strings.Join(likes, " OR ")+")", args...)
}

// Set sets values for an UPDATE query
func (b *Builder) Set(column string, value interface{}) *Builder {
	b.values[column] = value
	return b
}

// SetMap merges values for an UPDATE query
func (b *Builder) SetMap(data map[string]interface{}) *Builder {
	for k, v := range data {
		b.values[k] = v
	}
	return b
}

// HasValues reports whether an UPDATE has anything to set
func (b *Builder) HasValues() bool {
	return len(b.values) > 0
}

// OrderBy sets a raw ORDER BY expression
func (b *Builder) OrderBy(expr string) *Builder {
	b.orderBy = "ORDER BY " + expr
	return b
}

// GroupBy sets a raw GROUP BY expression
func (b *Builder) GroupBy(expr string) *Builder {
	b.groupBy = "GROUP BY " + expr
	return b
}

// Limit adds LIMIT clause
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset adds OFFSET clause
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// Page applies LIMIT and OFFSET for a 1-based page
func (b *Builder) Page(page, limit int) *Builder {
	if page < 1 {
		page = 1
	}
	return b.Limit(limit).Offset((page - 1) * limit)
}

// Build constructs the final SQL query
func (b *Builder) Build() QueryResult {
	switch b.queryType {
	case QueryTypeUpdate:
		sql, params := b.buildUpdate()
		return QueryResult{SQL: sql, Params: params}
	case QueryTypeDelete:
		return QueryResult{SQL: b.buildDelete(), Params: b.params}
	}
	return QueryResult{SQL: b.buildSelect(), Params: b.params}
}

// Count builds a COUNT(*) over the same FROM, JOIN and WHERE
func (b *Builder) Count() QueryResult {
	parts := []string{"SELECT COUNT(*) FROM " + b.from()}
	parts = append(parts, b.joins...)
	if w := b.where(); w != "" {
		parts = append(parts, w)
	}
	return QueryResult{SQL: strings.Join(parts, " "), Params: b.params}
}

func (b *Builder) from() string {
	if b.alias != "" {
		return b.table + " " + b.alias
	}
	return b.table
}

func (b *Builder) where() string {
	if len(b.whereClauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.whereClauses, " AND ")
}

func (b *Builder) buildSelect() string {
	fields := "*"
	if len(b.fields) > 0 {
		fields = strings.Join(b.fields, ", ")
	}
	parts := []string{fmt.Sprintf("SELECT %s FROM %s", fields, b.from())}
	parts = append(parts, b.joins...)
	if w := b.where(); w != "" {
		parts = append(parts, w)
	}
	if b.groupBy != "" {
		parts = append(parts, b.groupBy)
	}
	if b.orderBy != "" {
		parts = append(parts, b.orderBy)
	}
	if b.limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *b.limit))
	}
	if b.offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *b.offset))
	}
	return strings.Join(parts, " ")
}

// buildUpdate emits SET columns in sorted order so statements are stable
func (b *Builder) buildUpdate() (string, []interface{}) {
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setClauses := make([]string, 0, len(keys))
	params := make([]interface{}, 0, len(keys)+len(b.params))
	for _, k := range keys {
		setClauses = append(setClauses, k+" = ?")
		params = append(params, b.values[k])
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", b.table, strings.Join(setClauses, ", "))
	if w := b.where(); w != "" {
		sql += " " + w
		params = append(params, b.params...)
	}
	return sql, params
}

func (b *Builder) buildDelete() string {
	sql := "DELETE FROM " + b.table
	if w := b.where(); w != "" {
		sql += " " + w
	}
	return sql
}

// Placeholders returns n comma separated "?" markers
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
