package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

const (
	selectEmailListSQL   = "SELECT (.+) FROM email_lists l WHERE l.id = \\? AND l.tenant_id = \\?"
	emailListCountsSQL   = "SELECT status, COUNT\\(\\*\\) FROM email_subscribers WHERE list_id = \\? GROUP BY status"
	subscriberExistsSQL  = "SELECT EXISTS\\(SELECT 1 FROM email_subscribers WHERE list_id = \\? AND email = \\?\\)"
	insertSubscriberSQL  = "INSERT INTO email_subscribers"
	importMappingAllCols = `{"email": 0, "firstName": 1, "lastName": 2}`
)

func newEmailServiceWithMock(t *testing.T, auditor *recordingAuditor) (*EmailService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return NewEmailService(persistence.NewEmailRepository(db), auditor), mock
}

func expectEmailList(mock sqlmock.Sqlmock, doubleOptIn bool) {
	now := time.Now()
	mock.ExpectQuery(selectEmailListSQL).WithArgs("list-1", testTenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "description", "double_opt_in", "created_by", "created_at", "updated_at"}).
			AddRow("list-1", testTenantID, "Newsletter", nil, doubleOptIn, testUserID, now, now))
	mock.ExpectQuery(emailListCountsSQL).WithArgs("list-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}))
}

func expectSubscriberExists(mock sqlmock.Sqlmock, email string, exists bool) {
	mock.ExpectQuery(subscriberExistsSQL).WithArgs("list-1", email).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestParseCSVMapping(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    csvColumns
		wantErr string
	}{
		{"all columns", importMappingAllCols, csvColumns{0, 1, 2}, ""},
		{"email only", `{"email": 3}`, csvColumns{3, -1, -1}, ""},
		{"unmapped names", `{"email": 0, "firstName": -1, "lastName": "x"}`, csvColumns{0, -1, -1}, ""},
		{"missing", "", csvColumns{}, "Column mapping is required"},
		{"not json", "{email:", csvColumns{}, "Invalid mapping format"},
		{"not an object", "[0]", csvColumns{}, "Invalid mapping format"},
		{"no email", `{"firstName": 1}`, csvColumns{}, "Email column mapping is required"},
		{"negative email", `{"email": -1}`, csvColumns{}, "Email column mapping is required"},
		{"email as string", `{"email": "0"}`, csvColumns{}, "Email column mapping is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCSVMapping(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmailService_ImportCSV(t *testing.T) {
	auditor := &recordingAuditor{}
	svc, mock := newEmailServiceWithMock(t, auditor)
	expectEmailList(mock, true)

	// Row 2 new, row 3 already subscribed, row 4 has no email, row 5 is malformed.
	file := strings.Join([]string{
		"Email,First Name,Last Name",
		`"Ada@Example.com","Lovelace, Ada",`,
		"bob@example.com,Bob,Builder",
		",Nobody,",
		"not-an-email,X,Y",
	}, "\n")

	expectSubscriberExists(mock, "ada@example.com", false)
	mock.ExpectExec(insertSubscriberSQL).
		WithArgs(sqlmock.AnyArg(), "list-1", "ada@example.com", "Lovelace, Ada", nil,
			constants.SubscriberPending, csvImportSource, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSubscriberExists(mock, "bob@example.com", true)

	res, err := svc.ImportCSV(context.Background(), GetTestUser(constants.RoleSales), "list-1",
		CSVImport{File: strings.NewReader(file), Mapping: importMappingAllCols})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.TotalErrors)
	assert.Equal(t, []string{
		"Row 4: Missing email address",
		"Row 5: Invalid email format: not-an-email",
	}, res.Errors)
	assert.Equal(t, "Successfully imported 1 subscribers, skipped 1 duplicates, 2 errors", res.Message)
	assert.Equal(t, []string{constants.AuditImport}, auditor.actions())
}

func TestEmailService_ImportCSV_ErrorsAreCapped(t *testing.T) {
	svc, mock := newEmailServiceWithMock(t, &recordingAuditor{})
	expectEmailList(mock, false)

	lines := []string{"email"}
	for i := 0; i < 12; i++ {
		lines = append(lines, fmt.Sprintf("bad-%d", i))
	}

	res, err := svc.ImportCSV(context.Background(), GetTestUser(constants.RoleTenantAdmin), "list-1",
		CSVImport{File: strings.NewReader(strings.Join(lines, "\n")), Mapping: `{"email": 0}`})
	require.NoError(t, err)
	assert.Equal(t, 12, res.TotalErrors)
	assert.Len(t, res.Errors, csvImportErrorsMax)
	assert.Equal(t, "Successfully imported 0 subscribers, 12 errors", res.Message)
}

func TestEmailService_ImportCSV_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		in      CSVImport
		wantMsg string
	}{
		{"no file", CSVImport{Mapping: `{"email": 0}`}, "No file provided"},
		{"no mapping", CSVImport{File: strings.NewReader("email\na@b.co")}, "Column mapping is required"},
		{"header only", CSVImport{File: strings.NewReader("email\n"), Mapping: `{"email": 0}`},
			"CSV file must contain at least a header and one data row"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newEmailServiceWithMock(t, &recordingAuditor{})
			expectEmailList(mock, false)

			_, err := svc.ImportCSV(context.Background(), GetTestUser(constants.RoleTenantAdmin), "list-1", tt.in)
			require.Error(t, err)
			assert.Equal(t, 400, errors.GetHTTPStatus(err))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestEmailService_ImportCSV_ListOfOtherTenant(t *testing.T) {
	svc, mock := newEmailServiceWithMock(t, &recordingAuditor{})
	mock.ExpectQuery(selectEmailListSQL).WithArgs("list-1", testTenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.ImportCSV(context.Background(), GetTestUser(constants.RoleTenantAdmin), "list-1",
		CSVImport{File: strings.NewReader("email\na@b.co"), Mapping: `{"email": 0}`})
	require.Error(t, err)
	assert.Equal(t, 404, errors.GetHTTPStatus(err))
}
