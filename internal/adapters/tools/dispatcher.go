package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

// Recorder observes tool calls; status is "ok" or the failing error kind.
type Recorder interface {
	RecordToolCall(tool, status string, duration time.Duration)
}

type tool struct {
	def    Definition
	schema *openapi3.Schema
	run    func(ctx context.Context, args map[string]any) (string, error)
}

// Dispatcher validates loosely typed arguments and routes calls to the
// permit tool service.
type Dispatcher struct {
	tools    map[string]tool
	order    []string
	recorder Recorder
}

func NewDispatcher(svc ports.PermitToolService, recorder Recorder) *Dispatcher {
	runners := map[string]func(context.Context, map[string]any) (string, error){
		domain.ToolDocumentsByIssueYear: func(ctx context.Context, args map[string]any) (string, error) {
			operator, order, err := yearArgs(args)
			if err != nil {
				return "", err
			}
			return svc.DocumentsByIssueYear(ctx, domain.IssueYearQuery{
				PermitType:   domain.PermitType(stringArg(args, "permit_type")),
				Year:         intArg(args, "year"),
				Month:        intArg(args, "month"),
				Organization: stringArg(args, "organization"),
				Operator:     operator,
				OrderBy:      order,
			})
		},
		domain.ToolDocumentsByExpirationYear: func(ctx context.Context, args map[string]any) (string, error) {
			operator, order, err := yearArgs(args)
			if err != nil {
				return "", err
			}
			return svc.DocumentsByExpirationYear(ctx, domain.ExpirationYearQuery{
				PermitType:   domain.PermitType(stringArg(args, "permit_type")),
				Year:         intArg(args, "year"),
				Organization: stringArg(args, "organization"),
				Operator:     operator,
				OrderBy:      order,
			})
		},
		domain.ToolDocumentsAlreadyExpired: func(ctx context.Context, args map[string]any) (string, error) {
			order, err := domain.ParseOrderBy(stringArg(args, "order_by"))
			if err != nil {
				return "", err
			}
			return svc.DocumentsAlreadyExpired(ctx, domain.AlreadyExpiredQuery{
				Organization: stringArg(args, "organization"),
				OrderBy:      order,
			})
		},
		domain.ToolDocumentsByExpirationInterval: func(ctx context.Context, args map[string]any) (string, error) {
			months := domain.DefaultMonthsAhead
			if v := intArg(args, "months_ahead"); v != nil {
				months = *v
			}
			return svc.DocumentsByExpirationInterval(ctx, domain.ExpirationIntervalQuery{
				MonthsAhead:  months,
				Organization: stringArg(args, "organization"),
				PermitType:   domain.PermitType(stringArg(args, "permit_type")),
			})
		},
		domain.ToolAllDocumentsByOrganization: func(ctx context.Context, args map[string]any) (string, error) {
			return svc.AllDocumentsByOrganization(ctx, domain.OrganizationDocumentsQuery{
				Organization: stringArg(args, "organization"),
				PermitType:   domain.PermitType(stringArg(args, "permit_type")),
				Keyword:      stringArg(args, "keyword"),
			})
		},
		domain.ToolDocumentContent: func(ctx context.Context, args map[string]any) (string, error) {
			return svc.DocumentContent(ctx, stringArg(args, "keyword"))
		},
	}

	d := &Dispatcher{tools: make(map[string]tool, len(runners)), recorder: recorder}
	for _, def := range Definitions() {
		d.tools[def.Name] = tool{def: def, schema: def.Schema(), run: runners[def.Name]}
		d.order = append(d.order, def.Name)
	}
	return d
}

func (d *Dispatcher) Definitions() []Definition {
	out := make([]Definition, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tools[name].def)
	}
	return out
}

func (d *Dispatcher) Schema(name string) (*openapi3.Schema, bool) {
	t, ok := d.tools[name]
	if !ok {
		return nil, false
	}
	return t.schema, true
}

func (d *Dispatcher) PlannerCatalog() string {
	return PlannerCatalog(d.Definitions())
}

// Invoke validates args against the tool schema and runs the tool.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	started := time.Now()
	output, err := d.invoke(ctx, name, args)
	status := "ok"
	if err != nil {
		status = errorStatus(err)
	}
	if d.recorder != nil {
		d.recorder.RecordToolCall(name, status, time.Since(started))
	}
	slog.Info("tool_call",
		"tool", name,
		"status", status,
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return output, err
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := d.tools[strings.TrimSpace(name)]
	if !ok {
		return "", domain.WrapError(domain.ErrToolNotFound, "invoke tool", fmt.Errorf("unknown tool %q", name))
	}
	args = coerce(t.def, args)
	if err := t.schema.VisitJSON(args); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate "+t.def.Name, errors.New(describeSchemaError(err)))
	}
	return t.run(ctx, args)
}

// Call is Invoke for planners: failures become text the model can read.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (string, bool) {
	output, err := d.Invoke(ctx, name, args)
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %v", name, err), false
	}
	return output, true
}

func describeSchemaError(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field := strings.Join(schemaErr.JSONPointer(), ".")
		if field == "" {
			return schemaErr.Reason
		}
		return field + ": " + schemaErr.Reason
	}
	return err.Error()
}

func errorStatus(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrToolNotFound):
		return "unknown_tool"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrRetrieval):
		return "retrieval"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func yearArgs(args map[string]any) (domain.YearOperator, domain.OrderBy, error) {
	var operator domain.YearOperator
	if raw := stringArg(args, "operator"); raw != "" {
		op, err := domain.ParseYearOperator(raw)
		if err != nil {
			return "", "", err
		}
		operator = op
	}
	order, err := domain.ParseOrderBy(stringArg(args, "order_by"))
	if err != nil {
		return "", "", err
	}
	return operator, order, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string) *int {
	f, ok := args[key].(float64)
	if !ok {
		return nil
	}
	v := int(f)
	return &v
}
