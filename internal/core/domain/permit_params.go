package domain

// IssueYearQuery lists documents by issue year.
type IssueYearQuery struct {
	PermitType   PermitType
	Year         *int
	Month        *int
	Organization string
	Operator     YearOperator
	OrderBy      OrderBy
}

// ExpirationYearQuery lists documents by expiration year.
type ExpirationYearQuery struct {
	PermitType   PermitType
	Year         *int
	Organization string
	Operator     YearOperator
	OrderBy      OrderBy
}

type AlreadyExpiredQuery struct {
	Organization string
	OrderBy      OrderBy
}

type ExpirationIntervalQuery struct {
	MonthsAhead  int
	Organization string
	PermitType   PermitType
}

type OrganizationDocumentsQuery struct {
	Organization string
	PermitType   PermitType
	Keyword      string
}

const DefaultMonthsAhead = 6
