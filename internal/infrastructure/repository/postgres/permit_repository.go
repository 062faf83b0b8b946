package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

// PermitRepository is the Postgres permit metadata store. It also serves
// the organization catalog and the ingestion writer.
type PermitRepository struct {
	db *sql.DB
}

func NewPermitRepository(db *sql.DB) *PermitRepository {
	return &PermitRepository{db: db}
}

func (r *PermitRepository) QueryPermits(ctx context.Context, q domain.PermitQuery) ([]domain.PermitRow, error) {
	if q.MatchesNothing() {
		return []domain.PermitRow{}, nil
	}
	query, args, err := renderPermitQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query permits: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PermitRow, 0)
	for rows.Next() {
		var row domain.PermitRow
		var permitType string
		if err := rows.Scan(
			&row.DocumentTitle, &permitType, &row.Organization, &row.Filepath,
			&row.IssueDate, &row.ExpirationDate, &row.PermitSummary, &row.PermitNumber, &row.Installation,
		); err != nil {
			return nil, fmt.Errorf("scan permit row: %w", err)
		}
		row.PermitType = domain.PermitType(permitType)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permit rows: %w", err)
	}
	return out, nil
}

func (r *PermitRepository) ListOrganizations(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT organization
FROM permit_documents
WHERE organization <> ''
ORDER BY organization
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	return out, nil
}

// UpsertPermitDocument replaces the document and all of its permit records
// in one transaction.
func (r *PermitRepository) UpsertPermitDocument(ctx context.Context, doc *domain.PermitDocument) error {
	if doc == nil || doc.ID == "" {
		return domain.InvalidInput("upsert permit document", "document id is required")
	}
	keywords := doc.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO permit_documents (id, filepath, document_title, organization, permit_type, keywords, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	filepath = EXCLUDED.filepath,
	document_title = EXCLUDED.document_title,
	organization = EXCLUDED.organization,
	permit_type = EXCLUDED.permit_type,
	keywords = EXCLUDED.keywords,
	updated_at = EXCLUDED.updated_at
`, doc.ID, doc.Filepath, doc.DocumentTitle, doc.Organization, string(doc.PermitType), keywordsJSON, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert permit document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM permits WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("clear permit records: %w", err)
	}
	for i, record := range doc.Permits {
		_, err := tx.ExecContext(ctx, `
INSERT INTO permits (document_id, position, issue_date, expiration_date, permit_number, permit_summary, installation)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, doc.ID, i, record.IssueDate, record.ExpirationDate, record.PermitNumber, record.PermitSummary, record.Installation)
		if err != nil {
			return fmt.Errorf("insert permit record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}
