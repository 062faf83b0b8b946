package tools

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
)

// Param declares one tool argument.
type Param struct {
	Name        string
	Description string
	Type        ParamType
	Enum        []string
	Default     any
	Required    bool
	Min         *float64
	Max         *float64
}

// Definition declares a tool: its name, the description shown to planners
// and clients, and its arguments.
type Definition struct {
	Name        string
	Description string
	Params      []Param
}

func bound(v float64) *float64 { return &v }

func permitTypeNames() []string {
	out := make([]string, 0, len(domain.PermitTypes()))
	for _, t := range domain.PermitTypes() {
		out = append(out, string(t))
	}
	return out
}

var (
	orgParam = Param{
		Name:        "organization",
		Description: "Organization that holds the permit, e.g. PGN. Fuzzy names are matched against document titles.",
		Type:        TypeString,
	}
	operatorParam = Param{
		Name:        "operator",
		Description: "Year comparison: equal, greater (in or after), less (in or before).",
		Type:        TypeString,
		Enum:        []string{string(domain.YearEqual), string(domain.YearGreater), string(domain.YearLess)},
	}
	orderParam = Param{
		Name:        "order_by",
		Description: "latest or earliest first.",
		Type:        TypeString,
		Enum:        []string{string(domain.OrderLatest), string(domain.OrderEarliest)},
		Default:     string(domain.OrderLatest),
	}
	yearParam = Param{Name: "year", Description: "Four digit year.", Type: TypeInteger, Min: bound(1900), Max: bound(2200)}
	ploParam  = Param{
		Name:        "permit_type",
		Description: "Permit type. Only PLO permits carry expiration dates.",
		Type:        TypeString,
		Enum:        []string{string(domain.PermitTypePLO)},
		Default:     string(domain.PermitTypePLO),
	}
)

// Definitions returns the six permit tools in a stable order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        domain.ToolDocumentsByIssueYear,
			Description: "List permit documents by issue year, optionally filtered by month, permit type and organization.",
			Params: []Param{
				{Name: "permit_type", Description: "PLO, KKPR, KKPRL or Ijin Lingkungan.", Type: TypeString, Enum: permitTypeNames()},
				yearParam,
				{Name: "month", Description: "Month 1-12, only applied together with year.", Type: TypeInteger, Min: bound(1), Max: bound(12)},
				orgParam,
				operatorParam,
				orderParam,
			},
		},
		{
			Name:        domain.ToolDocumentsByExpirationYear,
			Description: "List PLO permit documents by expiration year.",
			Params:      []Param{ploParam, yearParam, orgParam, operatorParam, orderParam},
		},
		{
			Name:        domain.ToolDocumentsAlreadyExpired,
			Description: "List PLO permit documents whose expiration date has passed.",
			Params:      []Param{orgParam, orderParam},
		},
		{
			Name:        domain.ToolDocumentsByExpirationInterval,
			Description: "List PLO permit documents expiring between today and the given number of months ahead.",
			Params: []Param{
				{Name: "months_ahead", Description: "Months from today, 1-120.", Type: TypeInteger, Default: domain.DefaultMonthsAhead, Min: bound(1), Max: bound(120)},
				orgParam,
				ploParam,
			},
		},
		{
			Name:        domain.ToolAllDocumentsByOrganization,
			Description: "List every permit document of an organization and search their content for a keyword.",
			Params: []Param{
				{Name: "organization", Description: orgParam.Description, Type: TypeString, Required: true},
				{Name: "permit_type", Description: "PLO, KKPR, KKPRL or Ijin Lingkungan.", Type: TypeString, Enum: permitTypeNames(), Required: true},
				{Name: "keyword", Description: "Content search keyword.", Type: TypeString, Required: true},
			},
		},
		{
			Name:        domain.ToolDocumentContent,
			Description: "Search the text of permit documents and return matching excerpts with page references.",
			Params: []Param{
				{Name: "keyword", Description: "Question or keywords to search for.", Type: TypeString, Required: true},
			},
		},
	}
}

// Schema builds the JSON schema used to validate arguments.
func (d Definition) Schema() *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Description = d.Description
	required := make([]string, 0)
	for _, p := range d.Params {
		schema.WithProperty(p.Name, p.schema())
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema.Required = required
	return schema
}

func (p Param) schema() *openapi3.Schema {
	var s *openapi3.Schema
	switch p.Type {
	case TypeInteger:
		s = openapi3.NewIntegerSchema()
	default:
		s = openapi3.NewStringSchema()
	}
	s.Description = p.Description
	if len(p.Enum) > 0 {
		values := make([]any, 0, len(p.Enum))
		for _, v := range p.Enum {
			values = append(values, v)
		}
		s.WithEnum(values...)
	}
	if p.Min != nil {
		s.WithMin(*p.Min)
	}
	if p.Max != nil {
		s.WithMax(*p.Max)
	}
	if p.Default != nil {
		s.WithDefault(p.Default)
	}
	return s
}

// PlannerCatalog renders the definitions for the agent planner prompt.
func PlannerCatalog(defs []Definition) string {
	var sb strings.Builder
	for i, d := range defs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		for _, p := range d.Params {
			flags := string(p.Type)
			if p.Required {
				flags += ", required"
			}
			if len(p.Enum) > 0 {
				flags += ", one of " + strings.Join(p.Enum, "|")
			}
			if p.Default != nil {
				flags += fmt.Sprintf(", default %v", p.Default)
			}
			fmt.Fprintf(&sb, "    %s (%s): %s\n", p.Name, flags, p.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
