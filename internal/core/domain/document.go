package domain

import (
	"fmt"
	"strings"
	"time"
)

type PermitType string

const (
	PermitTypePLO                   PermitType = "PLO"
	PermitTypeKKPR                  PermitType = "KKPR"
	PermitTypeKKPRL                 PermitType = "KKPRL"
	PermitTypeEnvironmentalApproval PermitType = "Ijin Lingkungan"
)

// PermitTypes lists every permit type in display order.
func PermitTypes() []PermitType {
	return []PermitType{PermitTypePLO, PermitTypeKKPR, PermitTypeKKPRL, PermitTypeEnvironmentalApproval}
}

// ParsePermitType accepts the canonical names case-insensitively plus the
// English aliases used for the environmental approval.
func ParsePermitType(raw string) (PermitType, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	switch normalized {
	case "plo":
		return PermitTypePLO, nil
	case "kkpr":
		return PermitTypeKKPR, nil
	case "kkprl":
		return PermitTypeKKPRL, nil
	case "ijin lingkungan", "izin lingkungan", "persetujuan lingkungan",
		"environmental-approval", "environmental approval", "environmental_approval":
		return PermitTypeEnvironmentalApproval, nil
	}
	return "", InvalidInput("parse permit type", "unsupported permit type %q", raw)
}

// PermitDocument is one stored permit document with its permit records.
type PermitDocument struct {
	ID            string         `json:"id"`
	Filepath      string         `json:"filepath"`
	DocumentTitle string         `json:"documentTitle"`
	Organization  string         `json:"organization"`
	PermitType    PermitType     `json:"permitType"`
	Keywords      []string       `json:"keywords,omitempty"`
	Permits       []PermitRecord `json:"permits"`
	UpdatedAt     time.Time      `json:"updatedAt,omitempty"`
}

type PermitRecord struct {
	IssueDate      string `json:"issueDate"`
	ExpirationDate string `json:"expirationDate"`
	PermitNumber   string `json:"permitNumber"`
	PermitSummary  string `json:"permitSummary"`
	Installation   string `json:"installation,omitempty"`
}

// Validate checks the invariants a document must hold before it is stored.
func (d *PermitDocument) Validate() error {
	const op = "validate permit document"
	if strings.TrimSpace(d.DocumentTitle) == "" {
		return InvalidInput(op, "documentTitle is required")
	}
	if strings.TrimSpace(d.Organization) == "" {
		return InvalidInput(op, "organization is required for %q", d.DocumentTitle)
	}
	permitType, err := ParsePermitType(string(d.PermitType))
	if err != nil {
		return WrapError(ErrInvalidInput, op, err)
	}
	d.PermitType = permitType
	for i, record := range d.Permits {
		for _, date := range []string{record.IssueDate, record.ExpirationDate} {
			if date == "" {
				continue
			}
			if _, err := time.Parse(DateLayout, DateOnly(date)); err != nil {
				return InvalidInput(op, "permit %d of %q has malformed date %q", i, d.DocumentTitle, date)
			}
		}
		if d.PermitType == PermitTypePLO && strings.TrimSpace(record.ExpirationDate) == "" {
			return InvalidInput(op, "PLO permit %d of %q has no expiration date", i, d.DocumentTitle)
		}
	}
	return nil
}

// PermitRow is one document joined with one of its permit records.
type PermitRow struct {
	DocumentTitle  string     `json:"documentTitle"`
	PermitType     PermitType `json:"permitType"`
	Organization   string     `json:"organization"`
	Filepath       string     `json:"filepath"`
	IssueDate      string     `json:"issueDate"`
	ExpirationDate string     `json:"expirationDate"`
	PermitSummary  string     `json:"permitSummary"`
	PermitNumber   string     `json:"permitNumber"`
	Installation   string     `json:"installation,omitempty"`
}

// Rows flattens the document into one row per permit record.
func (d PermitDocument) Rows() []PermitRow {
	rows := make([]PermitRow, 0, len(d.Permits))
	for _, record := range d.Permits {
		rows = append(rows, PermitRow{
			DocumentTitle:  d.DocumentTitle,
			PermitType:     d.PermitType,
			Organization:   d.Organization,
			Filepath:       d.Filepath,
			IssueDate:      record.IssueDate,
			ExpirationDate: record.ExpirationDate,
			PermitSummary:  record.PermitSummary,
			PermitNumber:   record.PermitNumber,
			Installation:   record.Installation,
		})
	}
	return rows
}

const DateLayout = "2006-01-02"

// DateOnly trims a timestamp-shaped date down to its YYYY-MM-DD prefix.
func DateOnly(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > len(DateLayout) {
		return value[:len(DateLayout)]
	}
	return value
}

func (t PermitType) String() string {
	return string(t)
}

func (r PermitRow) String() string {
	return fmt.Sprintf("%s (%s, %s)", r.DocumentTitle, r.PermitType, r.Organization)
}
