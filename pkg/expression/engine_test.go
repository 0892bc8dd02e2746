package expression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_EvaluateBool(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name     string
		expr     string
		env      map[string]interface{}
		expected bool
		wantErr  bool
	}{
		{name: "empty is true", expr: "  ", expected: true},
		{name: "score threshold", expr: "leadScore >= 50", env: map[string]interface{}{"leadScore": 70}, expected: true},
		{name: "nested access", expr: "contact.status == 'LEAD'", env: map[string]interface{}{"contact": map[string]interface{}{"status": "LEAD"}}, expected: true},
		{name: "has tag", expr: "HAS_TAG(tags, 'vip')", env: map[string]interface{}{"tags": []interface{}{"VIP", "new"}}, expected: true},
		{name: "contains", expr: "CONTAINS(message, 'PRICE')", env: map[string]interface{}{"message": "what is the price?"}, expected: true},
		{name: "undefined variable", expr: "source == 'Website'", env: map[string]interface{}{}, expected: false},
		{name: "days since", expr: "DAYS_SINCE(createdAt) >= 2", env: map[string]interface{}{"createdAt": time.Now().Add(-72 * time.Hour).Format(time.RFC3339)}, expected: true},
		{name: "non bool", expr: "1 + 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateBool(tt.expr, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEngine_Validate(t *testing.T) {
	e := NewEngine()
	assert.NoError(t, e.Validate("leadScore > 10 && LEN(tags) > 0"))
	assert.Error(t, e.Validate("leadScore >"))
}

func TestEngine_ProgramCache(t *testing.T) {
	e := NewEngine()
	_, err := e.Evaluate("UPPER(name)", map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Len(t, e.programCache, 1)

	out, err := e.Evaluate("UPPER(name)", map[string]interface{}{"name": "grace"})
	require.NoError(t, err)
	assert.Equal(t, "GRACE", out)
	assert.Len(t, e.programCache, 1)
}

func TestEngine_IF(t *testing.T) {
	e := NewEngine()
	out, err := e.Evaluate("IF(value > 1000, 'big', 'small')", map[string]interface{}{"value": 5000})
	require.NoError(t, err)
	assert.Equal(t, "big", out)
}
