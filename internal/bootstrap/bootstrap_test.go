package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/permit-assistant/internal/config"
	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/usecase"
)

func writeRegister(t *testing.T, rows ...[]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error = %v", err)
		}
		row := row
		if err := f.SetSheetRow("Sheet1", cellRef, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "register.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func TestNewWiresMemoryBackendAndTools(t *testing.T) {
	var probes atomic.Int32
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			probes.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer search.Close()

	register := writeRegister(t,
		[]any{"Document Title", "Organization", "Permit Type", "Issue Date", "Expiration Date", "Permit Number", "Filepath"},
		[]any{"PLO Pipa.pdf", "PGN", "PLO", "2015-01-01", "2020-01-01", "PLO-1", "plo/PLO Pipa.pdf"},
		[]any{"KKPR Depot.pdf", "PGN", "KKPR", "2021-05-01", "", "KKPR-9", "kkpr/KKPR Depot.pdf"},
	)

	cfg := config.Config{
		MetadataBackend:    "memory",
		MetadataSeedXLSX:   register,
		SearchEndpoint:     search.URL,
		SearchTitleIndex:   "titles",
		SearchContentIndex: "content",
		OrgCatalogSize:     20,
	}
	app, err := New(context.Background(), cfg, Options{Metadata: true, Search: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if got := probes.Load(); got != 2 {
		t.Fatalf("expected both indexes probed, got %d", got)
	}
	if got := len(app.Dispatcher.Definitions()); got != 6 {
		t.Fatalf("expected 6 tools, got %d", got)
	}

	out, err := app.Dispatcher.Invoke(context.Background(), domain.ToolDocumentsAlreadyExpired, map[string]any{"organization": "PGN"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(out, "PLO Pipa.pdf - Permit Number: PLO-1") {
		t.Fatalf("expected seeded expired permit, got %q", out)
	}
	if strings.Contains(out, "KKPR Depot.pdf") {
		t.Fatalf("non-PLO permit must not be listed as expired: %q", out)
	}
	if app.Catalog.State() != usecase.CatalogReady {
		t.Fatalf("expected catalog loaded, got %s", app.Catalog.State())
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.Config{MetadataBackend: "sqlite"}, Options{Metadata: true})
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewSearchNeedsMetadata(t *testing.T) {
	_, err := New(context.Background(), config.Config{SearchSkipStartupProbe: true}, Options{Search: true})
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewFailsWhenIndexProbeFails(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"index not found"}}`, http.StatusNotFound)
	}))
	defer search.Close()

	cfg := config.Config{
		MetadataBackend:    "memory",
		SearchEndpoint:     search.URL,
		SearchTitleIndex:   "missing",
		SearchContentIndex: "content",
	}
	_, err := New(context.Background(), cfg, Options{Metadata: true, Search: true})
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for a missing index, got %v", err)
	}
}
