package usecase

import (
	"sort"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// ResultCaps bounds how many items each operation renders. Zero means unbounded.
type ResultCaps struct {
	IssuedByYear       int
	ExpiringByYear     int
	AlreadyExpired     int
	ExpirationInterval int
	AllByOrganization  int
}

func DefaultResultCaps() ResultCaps {
	return ResultCaps{
		IssuedByYear:      20,
		AllByOrganization: 30,
	}
}

func dateValue(row domain.PermitRow, field domain.PermitField) string {
	switch field {
	case domain.FieldIssueDate:
		return row.IssueDate
	case domain.FieldExpirationDate:
		return row.ExpirationDate
	default:
		return ""
	}
}

// rankRows sorts a copy of rows by the date field and then truncates it.
// Empty dates compare as the empty string, so they sort last for latest and
// first for earliest.
func rankRows(rows []domain.PermitRow, field domain.PermitField, order domain.OrderBy, limit int) []domain.PermitRow {
	out := make([]domain.PermitRow, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := dateValue(out[i], field), dateValue(out[j], field)
		if order == domain.OrderEarliest {
			return a < b
		}
		return a > b
	})

	return trimRows(out, limit)
}

func trimRows(rows []domain.PermitRow, limit int) []domain.PermitRow {
	if limit <= 0 || len(rows) <= limit {
		return rows
	}
	return rows[:limit]
}
