package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// PermitStore keeps permit documents in process and evaluates permit
// queries against them. It backs tests and the memory metadata backend.
type PermitStore struct {
	mu    sync.RWMutex
	docs  map[string]domain.PermitDocument
	order []string
	now   func() time.Time
}

func NewPermitStore(docs ...domain.PermitDocument) *PermitStore {
	s := &PermitStore{
		docs: make(map[string]domain.PermitDocument),
		now:  time.Now,
	}
	for i := range docs {
		doc := docs[i]
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc-%d", i+1)
		}
		s.put(doc)
	}
	return s
}

// WithClock sets the clock used as the store's current date.
func (s *PermitStore) WithClock(now func() time.Time) *PermitStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *PermitStore) UpsertPermitDocument(_ context.Context, doc *domain.PermitDocument) error {
	if doc == nil || doc.ID == "" {
		return domain.InvalidInput("memory upsert permit document", "document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(*doc)
	return nil
}

func (s *PermitStore) put(doc domain.PermitDocument) {
	if _, exists := s.docs[doc.ID]; !exists {
		s.order = append(s.order, doc.ID)
	}
	doc.Permits = append([]domain.PermitRecord(nil), doc.Permits...)
	s.docs[doc.ID] = doc
}

func (s *PermitStore) ListOrganizations(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, id := range s.order {
		org := s.docs[id].Organization
		if org == "" {
			continue
		}
		if _, ok := seen[org]; ok {
			continue
		}
		seen[org] = struct{}{}
		out = append(out, org)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PermitStore) QueryPermits(ctx context.Context, query domain.PermitQuery) ([]domain.PermitRow, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	today := truncateDay(s.now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PermitRow, 0)
	for _, id := range s.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, row := range s.docs[id].Rows() {
			ok, err := matchesAll(row, query.Predicates(), today)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func matchesAll(row domain.PermitRow, predicates []domain.Predicate, today time.Time) (bool, error) {
	for _, p := range predicates {
		ok, err := matches(row, p, today)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matches(row domain.PermitRow, p domain.Predicate, today time.Time) (bool, error) {
	value := fieldValue(row, p.Field())
	bindings := p.Bindings()

	switch p.Kind() {
	case domain.PredicateNever:
		return false, nil
	case domain.PredicateNotEmpty:
		return strings.TrimSpace(value) != "", nil
	case domain.PredicateLiteralEquals:
		literal, _ := p.Literal()
		return value == literal, nil
	case domain.PredicateEquals:
		return value == fmt.Sprint(bindings[0].Value), nil
	case domain.PredicateIn:
		for _, b := range bindings {
			if value == fmt.Sprint(b.Value) {
				return true, nil
			}
		}
		return false, nil
	case domain.PredicateYear, domain.PredicateMonth:
		date, ok := parseDate(value)
		if !ok {
			return false, nil
		}
		want, err := intBinding(bindings[0])
		if err != nil {
			return false, err
		}
		got := date.Year()
		if p.Kind() == domain.PredicateMonth {
			got = int(date.Month())
		}
		return compare(got, want, p.Comparison()), nil
	case domain.PredicateBefore:
		if strings.TrimSpace(value) == "" {
			return false, nil
		}
		return domain.DateOnly(value) < fmt.Sprint(bindings[0].Value), nil
	case domain.PredicateWithinMonths:
		date, ok := parseDate(value)
		if !ok {
			return false, nil
		}
		months, err := intBinding(bindings[0])
		if err != nil {
			return false, err
		}
		end := addMonths(today, months)
		return !date.Before(today) && !date.After(end), nil
	default:
		return false, fmt.Errorf("memory store: unsupported predicate %s", p.Kind())
	}
}

// addMonths moves t by whole months and clamps the day to the end of the
// target month, the way Postgres interval arithmetic does.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(t.Day(), lastDay), 0, 0, 0, 0, t.Location())
}

func fieldValue(row domain.PermitRow, field domain.PermitField) string {
	switch field {
	case domain.FieldDocumentTitle:
		return row.DocumentTitle
	case domain.FieldOrganization:
		return row.Organization
	case domain.FieldPermitType:
		return string(row.PermitType)
	case domain.FieldIssueDate:
		return row.IssueDate
	case domain.FieldExpirationDate:
		return row.ExpirationDate
	default:
		return ""
	}
}

func compare(got, want int, cmp domain.Comparison) bool {
	switch cmp {
	case domain.CompareAtLeast:
		return got >= want
	case domain.CompareAtMost:
		return got <= want
	default:
		return got == want
	}
}

func intBinding(b domain.Binding) (int, error) {
	switch v := b.Value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("memory store: binding %s is %T, want int", b.Name, b.Value)
	}
}

func parseDate(value string) (time.Time, bool) {
	value = domain.DateOnly(value)
	if value == "" {
		return time.Time{}, false
	}
	date, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
