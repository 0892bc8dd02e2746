package services

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

const (
	csvImportSource    = "CSV_IMPORT"
	csvImportErrorsMax = 10
)

// CSVImport is an uploaded subscriber file. Mapping is a JSON object of
// zero-based column indexes: {"email": 0, "firstName": 1, "lastName": -1}.
type CSVImport struct {
	File    io.Reader
	Mapping string
}

// CSVImportResult summarizes a CSV import. Errors holds the first few row errors.
type CSVImportResult struct {
	Imported    int      `json:"imported"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
	TotalErrors int      `json:"totalErrors"`
	Message     string   `json:"message"`
}

type csvColumns struct {
	email, firstName, lastName int
}

func parseCSVMapping(raw string) (csvColumns, error) {
	if strings.TrimSpace(raw) == "" {
		return csvColumns{}, errors.BadRequest("Column mapping is required")
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return csvColumns{}, errors.BadRequest("Invalid mapping format")
	}
	email := gjson.Get(raw, "email")
	if email.Type != gjson.Number || email.Int() < 0 {
		return csvColumns{}, errors.BadRequest("Email column mapping is required")
	}
	optional := func(key string) int {
		v := gjson.Get(raw, key)
		if v.Type != gjson.Number {
			return -1
		}
		return int(v.Int())
	}
	return csvColumns{email: int(email.Int()), firstName: optional("firstName"), lastName: optional("lastName")}, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ImportCSV adds subscribers from an uploaded CSV file. The first record is
// the header. Rows already on the list are skipped and row problems are
// reported in the result rather than failing the import.
func (s *EmailService) ImportCSV(ctx context.Context, user *auth.UserSession, listID string, in CSVImport) (*CSVImportResult, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	list, err := s.loadList(ctx, tenantID, listID)
	if err != nil {
		return nil, err
	}
	if in.File == nil {
		return nil, errors.BadRequest("No file provided")
	}
	cols, err := parseCSVMapping(in.Mapping)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(in.File)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if stderrors.As(err, &perr) {
			return nil, errors.BadRequest("Invalid CSV file: %v", perr)
		}
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.BadRequest("CSV file must contain at least a header and one data row")
	}

	result := &CSVImportResult{}
	var rowErrors []string
	for i, record := range records[1:] {
		row := i + 2
		email := auth.NormalizeEmail(cell(record, cols.email))
		if email == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Missing email address", row))
			continue
		}
		if !auth.IsValidEmail(email) {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Invalid email format: %s", row, email))
			continue
		}

		taken, err := s.repo.SubscriberExists(ctx, listID, email)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Failed to import %s: %v", row, email, err))
			continue
		}
		if taken {
			result.Skipped++
			continue
		}
		first, last := cell(record, cols.firstName), cell(record, cols.lastName)
		source := csvImportSource
		if err := s.repo.CreateSubscriber(ctx, newSubscriber(list, email, &first, &last, &source)); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Failed to import %s: %v", row, email, err))
			continue
		}
		result.Imported++
	}

	result.TotalErrors = len(rowErrors)
	if len(rowErrors) > csvImportErrorsMax {
		rowErrors = rowErrors[:csvImportErrorsMax]
	}
	result.Errors = rowErrors
	result.Message = fmt.Sprintf("Successfully imported %d subscribers", result.Imported)
	if result.Skipped > 0 {
		result.Message += fmt.Sprintf(", skipped %d duplicates", result.Skipped)
	}
	if result.TotalErrors > 0 {
		result.Message += fmt.Sprintf(", %d errors", result.TotalErrors)
	}

	if result.Imported > 0 {
		s.auditor.Record(ctx, auditEntry(user, constants.AuditImport, constants.ResourceEmailList, list.ID, nil,
			map[string]interface{}{"imported": result.Imported, "skipped": result.Skipped, "source": csvImportSource}))
	}
	return result, nil
}
