package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
)

const landingSlugExistsSQL = "SELECT EXISTS\\(SELECT 1 FROM landing_pages WHERE tenant_id = \\? AND slug = \\? AND id != \\?\\)"

func expectSlugTaken(mock sqlmock.Sqlmock, slug string, taken bool) {
	mock.ExpectQuery(landingSlugExistsSQL).WithArgs(testTenantID, slug, "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(taken))
}

func TestLandingPageService_FreeCopySlug(t *testing.T) {
	tests := []struct {
		name  string
		taken []string
		want  string
	}{
		{"first copy", nil, "promo-copy"},
		{"second copy", []string{"promo-copy"}, "promo-copy-2"},
		{"third copy", []string{"promo-copy", "promo-copy-2"}, "promo-copy-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			svc := NewLandingPageService(persistence.NewLandingPageRepository(db), &recordingAuditor{})
			for _, s := range tt.taken {
				expectSlugTaken(mock, s, true)
			}
			expectSlugTaken(mock, tt.want, false)

			got, err := svc.freeCopySlug(context.Background(), testTenantID, "promo")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLandingPageService_FreeCopySlug_Exhausted(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewLandingPageService(persistence.NewLandingPageRepository(db), &recordingAuditor{})
	for i := 0; i < maxSlugCopies; i++ {
		mock.ExpectQuery(landingSlugExistsSQL).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}

	_, err := svc.freeCopySlug(context.Background(), testTenantID, "promo")
	require.Error(t, err)
	assert.Equal(t, "Too many copies of this page", err.Error())
}
