package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

const schemaLockID int64 = 2026101901

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "open postgres", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, domain.WrapError(domain.ErrConfiguration, "ping postgres", err)
	}
	return db, nil
}

// EnsureSchema creates the permit tables. Concurrent api/worker startups
// serialize on an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS permit_documents (
	id TEXT PRIMARY KEY,
	filepath TEXT NOT NULL DEFAULT '',
	document_title TEXT NOT NULL,
	organization TEXT NOT NULL,
	permit_type TEXT NOT NULL,
	keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS permits (
	document_id TEXT NOT NULL REFERENCES permit_documents(id) ON DELETE CASCADE,
	position INT NOT NULL,
	issue_date TEXT NOT NULL DEFAULT '',
	expiration_date TEXT NOT NULL DEFAULT '',
	permit_number TEXT NOT NULL DEFAULT '',
	permit_summary TEXT NOT NULL DEFAULT '',
	installation TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (document_id, position)
);

CREATE INDEX IF NOT EXISTS idx_permit_documents_organization ON permit_documents(organization);
CREATE INDEX IF NOT EXISTS idx_permit_documents_title ON permit_documents(document_title);
CREATE INDEX IF NOT EXISTS idx_permits_expiration ON permits(expiration_date);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
