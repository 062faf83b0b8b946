package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/usecase"
)

func TestImportDocumentsContinuesPastFailures(t *testing.T) {
	docs := []domain.PermitDocument{
		{DocumentTitle: "A.pdf", Permits: []domain.PermitRecord{{PermitNumber: "A-1"}, {PermitNumber: "A-2"}}},
		{DocumentTitle: "B.pdf"},
		{DocumentTitle: "C.pdf", Permits: []domain.PermitRecord{{PermitNumber: "C-1"}}},
	}
	var seen []string
	ingest := func(_ context.Context, doc *domain.PermitDocument) error {
		seen = append(seen, doc.DocumentTitle)
		if doc.DocumentTitle == "B.pdf" {
			return errors.New("db down")
		}
		return nil
	}

	summary, err := importDocuments(context.Background(), docs, ingest)
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Fatalf("expected partial failure error, got %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected every document attempted, got %v", seen)
	}
	if summary.Documents != 2 || summary.Records != 3 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestImportDocumentsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := importDocuments(ctx, []domain.PermitDocument{{DocumentTitle: "A.pdf"}}, func(context.Context, *domain.PermitDocument) error {
		t.Fatalf("ingest must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDryRunValidatesWithoutBackends(t *testing.T) {
	uc := usecase.NewIngestPermitUseCase(discardWriter{}, nil)
	docs := []domain.PermitDocument{
		{DocumentTitle: "PLO Pipa.pdf", Organization: "PGN", PermitType: "PLO", Permits: []domain.PermitRecord{{IssueDate: "2020-01-01"}}},
	}

	summary, err := importDocuments(context.Background(), docs, uc.Ingest)
	if !strings.Contains(summary.String(), "1 failed") || err == nil {
		t.Fatalf("expected PLO without expiration to fail validation, summary=%s err=%v", summary, err)
	}
}

func TestRootCommandRequiresOneFile(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestRootCommandRejectsConflictingFlags(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"register.xlsx", "--publish", "--dry-run"})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected mutually exclusive flag error")
	}
}
