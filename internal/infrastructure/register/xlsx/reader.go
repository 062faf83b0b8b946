package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// PreferredSheet is read when present; otherwise the first sheet is used.
const PreferredSheet = "permits"

const (
	colID             = "id"
	colFilepath       = "filepath"
	colTitle          = "document_title"
	colOrganization   = "organization"
	colPermitType     = "permit_type"
	colKeywords       = "keywords"
	colIssueDate      = "issue_date"
	colExpirationDate = "expiration_date"
	colPermitNumber   = "permit_number"
	colPermitSummary  = "permit_summary"
	colInstallation   = "installation"
)

var requiredColumns = []string{colTitle, colOrganization, colPermitType}

var dateLayouts = []string{
	domain.DateLayout,
	time.RFC3339,
	"02/01/2006",
	"01-02-06",
	"2006/01/02",
}

func ReadFile(path string) ([]domain.PermitDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open register %s: %w", path, err)
	}
	defer f.Close()
	return readWorkbook(f)
}

func Read(r io.Reader) ([]domain.PermitDocument, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open register: %w", err)
	}
	defer f.Close()
	return readWorkbook(f)
}

// readWorkbook turns one row per permit record into documents. Rows are
// grouped by id, or by title when the id column is blank.
func readWorkbook(f *excelize.File) ([]domain.PermitDocument, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.InvalidInput("read register", "workbook has no sheets")
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, PreferredSheet) {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, domain.InvalidInput("read register", "sheet %q is empty", sheet)
	}

	columns := indexHeader(rows[0])
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, domain.InvalidInput("read register", "sheet %q has no %s column", sheet, name)
		}
	}

	var order []string
	docs := make(map[string]*domain.PermitDocument)
	for i, row := range rows[1:] {
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		title := cell(colTitle)
		if title == "" && cell(colPermitNumber) == "" {
			continue
		}

		key := cell(colID)
		if key == "" {
			key = "title:" + title
		}
		doc, ok := docs[key]
		if !ok {
			doc = &domain.PermitDocument{
				ID:            cell(colID),
				Filepath:      cell(colFilepath),
				DocumentTitle: title,
				Organization:  cell(colOrganization),
				PermitType:    domain.PermitType(cell(colPermitType)),
				Keywords:      splitKeywords(cell(colKeywords)),
			}
			docs[key] = doc
			order = append(order, key)
		}

		issue, err := normalizeDate(cell(colIssueDate))
		if err != nil {
			return nil, domain.InvalidInput("read register", "row %d: issue date: %v", i+2, err)
		}
		expiration, err := normalizeDate(cell(colExpirationDate))
		if err != nil {
			return nil, domain.InvalidInput("read register", "row %d: expiration date: %v", i+2, err)
		}
		doc.Permits = append(doc.Permits, domain.PermitRecord{
			IssueDate:      issue,
			ExpirationDate: expiration,
			PermitNumber:   cell(colPermitNumber),
			PermitSummary:  cell(colPermitSummary),
			Installation:   cell(colInstallation),
		})
	}

	out := make([]domain.PermitDocument, 0, len(order))
	for _, key := range order {
		out = append(out, *docs[key])
	}
	return out, nil
}

// indexHeader maps normalized header names to column positions. Headers
// are matched case-insensitively with spaces, dashes and camelCase folded
// to snake_case.
func indexHeader(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, raw := range header {
		name := normalizeHeader(raw)
		if name == "title" {
			name = colTitle
		}
		if _, dup := out[name]; !dup && name != "" {
			out[name] = i
		}
	}
	return out
}

func normalizeHeader(raw string) string {
	var sb strings.Builder
	prevLower := false
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r == ' ' || r == '-' || r == '_':
			if sb.Len() > 0 {
				sb.WriteByte('_')
			}
			prevLower = false
		case r >= 'A' && r <= 'Z':
			if prevLower {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
			prevLower = false
		default:
			sb.WriteRune(r)
			prevLower = true
		}
	}
	return sb.String()
}

func normalizeDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(domain.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
