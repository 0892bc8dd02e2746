package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Corp", "acme-corp"},
		{"  Hello,  World!! ", "hello-world"},
		{"Über GmbH & Co.", "ber-gmbh-co"},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "Newsletter_2024_", SafeFilename("Newsletter 2024!"))
}

func TestPagination(t *testing.T) {
	p := NewPagination("3", "", 20)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset())

	p = NewPagination("-1", "10000", 20)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 500, p.Limit)

	p = NewPagination("1", "20", 20).WithTotal(41)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(41), p.Total)
}

func TestNumbers(t *testing.T) {
	assert.Equal(t, int64(1999), ToCents(19.99))
	assert.Equal(t, 19.99, FromCents(1999))

	assert.Equal(t, int64(0), Percentage(5, 0))
	assert.Equal(t, int64(0), Percentage(5, -1))
	assert.Equal(t, int64(33), Percentage(1, 3))

	assert.Equal(t, int64(0), Growth(10, 0))
	assert.Equal(t, int64(50), Growth(15, 10))
	assert.Equal(t, int64(-50), Growth(5, 10))

	v, ok := ToFloat("12.5")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
	_, ok = ToFloat("unlimited")
	assert.False(t, ok)
	_, ok = ToInt64(nil)
	assert.False(t, ok)

	assert.True(t, ToBool("yes"))
	assert.True(t, ToBool([]byte("1")))
	assert.False(t, ToBool("nope"))
	assert.Equal(t, "3", ToString(float64(3)))
}
