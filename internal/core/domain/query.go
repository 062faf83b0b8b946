package domain

import (
	"fmt"
	"strings"
)

// PermitField names a logical column of a permit row. Serializers map it to
// their own storage layout.
type PermitField string

const (
	FieldDocumentTitle  PermitField = "documentTitle"
	FieldOrganization   PermitField = "organization"
	FieldPermitType     PermitField = "permitType"
	FieldIssueDate      PermitField = "issueDate"
	FieldExpirationDate PermitField = "expirationDate"
)

type PredicateKind int

const (
	PredicateNotEmpty PredicateKind = iota + 1
	PredicateEquals
	PredicateLiteralEquals
	PredicateIn
	PredicateYear
	PredicateMonth
	PredicateBefore
	PredicateWithinMonths
	PredicateNever
)

func (k PredicateKind) String() string {
	switch k {
	case PredicateNotEmpty:
		return "not_empty"
	case PredicateEquals:
		return "equals"
	case PredicateLiteralEquals:
		return "literal_equals"
	case PredicateIn:
		return "in"
	case PredicateYear:
		return "year"
	case PredicateMonth:
		return "month"
	case PredicateBefore:
		return "before"
	case PredicateWithinMonths:
		return "within_months"
	case PredicateNever:
		return "never"
	default:
		return "unknown"
	}
}

type Comparison string

const (
	CompareEqual   Comparison = "="
	CompareAtLeast Comparison = ">="
	CompareAtMost  Comparison = "<="
)

type YearOperator string

const (
	YearEqual   YearOperator = "equal"
	YearGreater YearOperator = "greater"
	YearLess    YearOperator = "less"
)

func ParseYearOperator(raw string) (YearOperator, error) {
	switch op := YearOperator(strings.ToLower(strings.TrimSpace(raw))); op {
	case YearEqual, YearGreater, YearLess:
		return op, nil
	}
	return "", InvalidInput("parse operator", "operator must be one of equal, greater, less; got %q", raw)
}

// Comparison maps the operator to an inclusive comparison: greater means
// "in or after", less means "in or before".
func (o YearOperator) Comparison() Comparison {
	switch o {
	case YearGreater:
		return CompareAtLeast
	case YearLess:
		return CompareAtMost
	default:
		return CompareEqual
	}
}

type OrderBy string

const (
	OrderLatest   OrderBy = "latest"
	OrderEarliest OrderBy = "earliest"
)

func ParseOrderBy(raw string) (OrderBy, error) {
	switch order := OrderBy(strings.ToLower(strings.TrimSpace(raw))); order {
	case "":
		return OrderLatest, nil
	case OrderLatest, OrderEarliest:
		return order, nil
	}
	return "", InvalidInput("parse order_by", "order_by must be latest or earliest; got %q", raw)
}

// Binding is one named parameter value referenced by a predicate.
type Binding struct {
	Name  string
	Value any
}

// Predicate is a single filter fragment. Its fields are only reachable
// through constructors, so a fragment always carries the bindings it refers to.
type Predicate struct {
	kind       PredicateKind
	field      PermitField
	comparison Comparison
	literal    string
	bindings   []Binding
}

func (p Predicate) Kind() PredicateKind    { return p.kind }
func (p Predicate) Field() PermitField     { return p.field }
func (p Predicate) Comparison() Comparison { return p.comparison }

// Literal returns the inline value of a literal equality predicate.
func (p Predicate) Literal() (string, bool) {
	return p.literal, p.kind == PredicateLiteralEquals
}

func (p Predicate) Bindings() []Binding {
	out := make([]Binding, len(p.bindings))
	copy(out, p.bindings)
	return out
}

// IsLiteral reports whether the fragment is complete without bindings.
func (p Predicate) IsLiteral() bool {
	switch p.kind {
	case PredicateNotEmpty, PredicateLiteralEquals, PredicateNever:
		return true
	default:
		return false
	}
}

func (p Predicate) String() string {
	switch p.kind {
	case PredicateNever:
		return "never"
	case PredicateLiteralEquals:
		return fmt.Sprintf("%s = '%s'", p.field, p.literal)
	case PredicateNotEmpty:
		return fmt.Sprintf("%s <> ''", p.field)
	}
	names := make([]string, 0, len(p.bindings))
	for _, b := range p.bindings {
		names = append(names, "@"+b.Name)
	}
	return fmt.Sprintf("%s %s(%s) %s", p.kind, p.field, p.comparison, strings.Join(names, ","))
}

func NotEmpty(field PermitField) Predicate {
	return Predicate{kind: PredicateNotEmpty, field: field}
}

func Equals(field PermitField, value string) Predicate {
	return Predicate{
		kind:       PredicateEquals,
		field:      field,
		comparison: CompareEqual,
		bindings:   []Binding{{Name: string(field), Value: value}},
	}
}

// LiteralEquals inlines a constant value. Use only for values fixed in code.
func LiteralEquals(field PermitField, value string) Predicate {
	return Predicate{kind: PredicateLiteralEquals, field: field, comparison: CompareEqual, literal: value}
}

// In matches any of values. An empty list matches nothing.
func In(field PermitField, values []string) Predicate {
	if len(values) == 0 {
		return Never()
	}
	bindings := make([]Binding, 0, len(values))
	for i, v := range values {
		bindings = append(bindings, Binding{Name: fmt.Sprintf("%s%d", field, i), Value: v})
	}
	return Predicate{kind: PredicateIn, field: field, bindings: bindings}
}

func YearCompare(field PermitField, comparison Comparison, year int) Predicate {
	return Predicate{
		kind:       PredicateYear,
		field:      field,
		comparison: comparison,
		bindings:   []Binding{{Name: "year", Value: year}},
	}
}

func MonthEquals(field PermitField, month int) Predicate {
	return Predicate{
		kind:       PredicateMonth,
		field:      field,
		comparison: CompareEqual,
		bindings:   []Binding{{Name: "month", Value: month}},
	}
}

// Before matches non-empty dates strictly earlier than date (YYYY-MM-DD).
func Before(field PermitField, date string) Predicate {
	return Predicate{
		kind:     PredicateBefore,
		field:    field,
		bindings: []Binding{{Name: "currentDate", Value: date}},
	}
}

// WithinMonths matches dates between the store's current date and the same
// date shifted by months, both inclusive.
func WithinMonths(field PermitField, months int) Predicate {
	return Predicate{
		kind:     PredicateWithinMonths,
		field:    field,
		bindings: []Binding{{Name: "monthsAhead", Value: months}},
	}
}

func Never() Predicate {
	return Predicate{kind: PredicateNever}
}

// PermitQuery is a conjunction of predicates over joined permit rows.
type PermitQuery struct {
	predicates []Predicate
}

func NewPermitQuery(predicates ...Predicate) PermitQuery {
	q := PermitQuery{}
	for _, p := range predicates {
		q = q.With(p)
	}
	return q
}

// With returns a copy of q extended with p. The receiver is never mutated.
func (q PermitQuery) With(p Predicate) PermitQuery {
	next := make([]Predicate, 0, len(q.predicates)+1)
	next = append(next, q.predicates...)
	next = append(next, p)
	return PermitQuery{predicates: next}
}

func (q PermitQuery) Predicates() []Predicate {
	out := make([]Predicate, len(q.predicates))
	copy(out, q.predicates)
	return out
}

// Bindings returns every binding in predicate order.
func (q PermitQuery) Bindings() []Binding {
	var out []Binding
	for _, p := range q.predicates {
		out = append(out, p.bindings...)
	}
	return out
}

func (q PermitQuery) MatchesNothing() bool {
	for _, p := range q.predicates {
		if p.kind == PredicateNever {
			return true
		}
	}
	return false
}

func (q PermitQuery) Validate() error {
	for i, p := range q.predicates {
		if p.kind == 0 {
			return fmt.Errorf("predicate %d: zero value", i)
		}
		if p.IsLiteral() {
			if len(p.bindings) != 0 {
				return fmt.Errorf("predicate %d (%s): literal fragment carries bindings", i, p.kind)
			}
			continue
		}
		if len(p.bindings) == 0 {
			return fmt.Errorf("predicate %d (%s): missing binding", i, p.kind)
		}
		if p.kind != PredicateIn && len(p.bindings) != 1 {
			return fmt.Errorf("predicate %d (%s): expected one binding, got %d", i, p.kind, len(p.bindings))
		}
	}
	return nil
}

func (q PermitQuery) String() string {
	parts := make([]string, 0, len(q.predicates))
	for _, p := range q.predicates {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " AND ")
}

type OrgFilterKind int

const (
	OrgFilterNone OrgFilterKind = iota
	OrgFilterExact
	OrgFilterTitles
)

func (k OrgFilterKind) String() string {
	switch k {
	case OrgFilterExact:
		return "exact"
	case OrgFilterTitles:
		return "title_allow_list"
	default:
		return "none"
	}
}

// OrgFilter is the resolved form of a caller-supplied organization name.
type OrgFilter struct {
	Kind         OrgFilterKind
	Organization string
	Titles       []string
}

func ExactOrganization(name string) OrgFilter {
	return OrgFilter{Kind: OrgFilterExact, Organization: name}
}

func TitleAllowList(organization string, titles []string) OrgFilter {
	return OrgFilter{Kind: OrgFilterTitles, Organization: organization, Titles: titles}
}

// Predicate returns the filter fragment, or false when no organization was given.
func (f OrgFilter) Predicate() (Predicate, bool) {
	switch f.Kind {
	case OrgFilterExact:
		return Equals(FieldOrganization, f.Organization), true
	case OrgFilterTitles:
		return In(FieldDocumentTitle, f.Titles), true
	default:
		return Predicate{}, false
	}
}
