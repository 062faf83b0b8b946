package postgres

import (
	"fmt"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

const selectPermitRows = `SELECT d.document_title, d.permit_type, d.organization, d.filepath,
	p.issue_date, p.expiration_date, p.permit_summary, p.permit_number, p.installation
FROM permit_documents d
JOIN permits p ON p.document_id = d.id`

var fieldColumns = map[domain.PermitField]string{
	domain.FieldDocumentTitle:  "d.document_title",
	domain.FieldOrganization:   "d.organization",
	domain.FieldPermitType:     "d.permit_type",
	domain.FieldIssueDate:      "p.issue_date",
	domain.FieldExpirationDate: "p.expiration_date",
}

// renderPermitQuery turns q into a parameterized SELECT. Bindings become
// $n placeholders in predicate order.
func renderPermitQuery(q domain.PermitQuery) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var args []any
	clauses := make([]string, 0, len(q.Predicates()))
	for _, p := range q.Predicates() {
		clause, err := renderPredicate(p, &args)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}

	var sb strings.Builder
	sb.WriteString(selectPermitRows)
	if len(clauses) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(clauses, "\n  AND "))
	}
	sb.WriteString("\nORDER BY d.document_title, p.position")
	return sb.String(), args, nil
}

func renderPredicate(p domain.Predicate, args *[]any) (string, error) {
	if p.Kind() == domain.PredicateNever {
		return "FALSE", nil
	}
	column, ok := fieldColumns[p.Field()]
	if !ok {
		return "", domain.InvalidInput("render permit query", "unknown field %q", p.Field())
	}
	bind := func(value any) string {
		*args = append(*args, value)
		return fmt.Sprintf("$%d", len(*args))
	}
	date := fmt.Sprintf("NULLIF(%s, '')::date", column)
	bindings := p.Bindings()

	switch p.Kind() {
	case domain.PredicateNotEmpty:
		return fmt.Sprintf("COALESCE(%s, '') <> ''", column), nil
	case domain.PredicateEquals:
		return fmt.Sprintf("%s = %s", column, bind(bindings[0].Value)), nil
	case domain.PredicateLiteralEquals:
		literal, _ := p.Literal()
		return fmt.Sprintf("%s = %s", column, quoteLiteral(literal)), nil
	case domain.PredicateIn:
		placeholders := make([]string, 0, len(bindings))
		for _, b := range bindings {
			placeholders = append(placeholders, bind(b.Value))
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), nil
	case domain.PredicateYear:
		return fmt.Sprintf("EXTRACT(YEAR FROM %s)::int %s %s", date, p.Comparison(), bind(bindings[0].Value)), nil
	case domain.PredicateMonth:
		return fmt.Sprintf("EXTRACT(MONTH FROM %s)::int = %s", date, bind(bindings[0].Value)), nil
	case domain.PredicateBefore:
		return fmt.Sprintf("%s < %s::date", date, bind(bindings[0].Value)), nil
	case domain.PredicateWithinMonths:
		return fmt.Sprintf("%s BETWEEN CURRENT_DATE AND (CURRENT_DATE + make_interval(months => %s))::date",
			date, bind(bindings[0].Value)), nil
	default:
		return "", domain.InvalidInput("render permit query", "unsupported predicate %s", p.Kind())
	}
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
