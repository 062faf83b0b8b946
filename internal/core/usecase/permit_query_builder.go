package usecase

import (
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// yearPredicate applies a year comparison when either an operator or a year
// was given. A missing year means the current one; a missing operator means equal.
func yearPredicate(field domain.PermitField, year *int, operator domain.YearOperator, now time.Time) (domain.Predicate, bool) {
	if year == nil && operator == "" {
		return domain.Predicate{}, false
	}
	if operator == "" {
		operator = domain.YearEqual
	}
	y := now.Year()
	if year != nil {
		y = *year
	}
	return domain.YearCompare(field, operator.Comparison(), y), true
}

func withOrganization(q domain.PermitQuery, org domain.OrgFilter) domain.PermitQuery {
	if p, ok := org.Predicate(); ok {
		return q.With(p)
	}
	return q
}

func buildIssueYearQuery(params domain.IssueYearQuery, org domain.OrgFilter, now time.Time) domain.PermitQuery {
	q := domain.NewPermitQuery(domain.NotEmpty(domain.FieldIssueDate))
	if params.PermitType != "" {
		q = q.With(domain.Equals(domain.FieldPermitType, string(params.PermitType)))
	}
	if p, ok := yearPredicate(domain.FieldIssueDate, params.Year, params.Operator, now); ok {
		q = q.With(p)
	}
	if params.Year != nil && params.Month != nil {
		q = q.With(domain.MonthEquals(domain.FieldIssueDate, *params.Month))
	}
	return withOrganization(q, org)
}

func buildExpirationYearQuery(params domain.ExpirationYearQuery, org domain.OrgFilter, now time.Time) domain.PermitQuery {
	permitType := params.PermitType
	if permitType == "" {
		permitType = domain.PermitTypePLO
	}
	q := domain.NewPermitQuery(domain.Equals(domain.FieldPermitType, string(permitType)))
	if p, ok := yearPredicate(domain.FieldExpirationDate, params.Year, params.Operator, now); ok {
		q = q.With(p)
	}
	return withOrganization(q, org)
}

func buildAlreadyExpiredQuery(org domain.OrgFilter, today string) domain.PermitQuery {
	q := domain.NewPermitQuery(
		domain.Before(domain.FieldExpirationDate, today),
		domain.LiteralEquals(domain.FieldPermitType, string(domain.PermitTypePLO)),
	)
	return withOrganization(q, org)
}

func buildExpirationIntervalQuery(params domain.ExpirationIntervalQuery, org domain.OrgFilter) domain.PermitQuery {
	months := params.MonthsAhead
	if months <= 0 {
		months = domain.DefaultMonthsAhead
	}
	permitType := params.PermitType
	if permitType == "" {
		permitType = domain.PermitTypePLO
	}
	q := domain.NewPermitQuery(
		domain.WithinMonths(domain.FieldExpirationDate, months),
		domain.Equals(domain.FieldPermitType, string(permitType)),
	)
	return withOrganization(q, org)
}

func buildOrganizationDocumentsQuery(params domain.OrganizationDocumentsQuery, org domain.OrgFilter) domain.PermitQuery {
	q := domain.NewPermitQuery()
	if params.PermitType != "" {
		q = q.With(domain.Equals(domain.FieldPermitType, string(params.PermitType)))
	}
	return withOrganization(q, org)
}
