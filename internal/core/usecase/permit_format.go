package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

const (
	emptyIssuedByYear      = "No documents found issued in this year."
	emptyExpiringByYear    = "No documents found expiring in this year."
	emptyAlreadyExpired    = "No documents have expired."
	emptyAllByOrganization = "No documents found for the specified organization."
)

// resultLayout describes how one operation renders its rows. Citation
// parsing relies on the "- {title} - " prefix and the "Document path:" line.
type resultLayout struct {
	header func(total int) string
	item   func(row domain.PermitRow) string
	empty  string
}

// renderRows prints rows under the layout. total is the number of matches
// before truncation.
func renderRows(rows []domain.PermitRow, total int, layout resultLayout) string {
	if len(rows) == 0 {
		return layout.empty
	}
	lines := make([]string, 0, len(rows)+1)
	if layout.header != nil {
		lines = append(lines, layout.header(total))
	}
	for _, row := range rows {
		lines = append(lines, layout.item(row))
	}
	return strings.Join(lines, "\n")
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}

func issuedByYearLayout() resultLayout {
	return resultLayout{
		header: func(total int) string {
			return fmt.Sprintf("List of documents issued is %d items:", total)
		},
		item: func(r domain.PermitRow) string {
			return fmt.Sprintf("- %s - %s \n  (Org: %s, Issue Date: %s)\n  Document path: %s \n  Summary: %s",
				r.DocumentTitle, r.PermitNumber, r.Organization, r.IssueDate, orNA(r.Filepath), r.PermitSummary)
		},
		empty: emptyIssuedByYear,
	}
}

func expiringItem(r domain.PermitRow) string {
	return fmt.Sprintf("- %s - %s \n  (Org: %s, Expires: %s)\n  Document path: %s \n  Summary: %s",
		r.DocumentTitle, r.PermitNumber, r.Organization, r.ExpirationDate, orNA(r.Filepath), r.PermitSummary)
}

func expiringByYearLayout() resultLayout {
	return resultLayout{item: expiringItem, empty: emptyExpiringByYear}
}

func alreadyExpiredLayout(today string) resultLayout {
	return resultLayout{
		header: func(int) string {
			return fmt.Sprintf("Now is %s. The following documents have already expired:", today)
		},
		item: func(r domain.PermitRow) string {
			return fmt.Sprintf("- %s - Permit Number: %s \n  (Org: %s, Installation %s, Expired: %s)\n  Document path: %s \n  Summary: %s",
				r.DocumentTitle, r.PermitNumber, r.Organization, orNA(r.Installation), r.ExpirationDate, orNA(r.Filepath), r.PermitSummary)
		},
		empty: emptyAlreadyExpired,
	}
}

func expirationIntervalLayout(months int) resultLayout {
	return resultLayout{
		item:  expiringItem,
		empty: fmt.Sprintf("No documents found expiring in the next %d months.", months),
	}
}

func allByOrganizationLayout(organization string) resultLayout {
	return resultLayout{
		header: func(total int) string {
			return fmt.Sprintf("List of documents for organization %s is %d items:", organization, total)
		},
		item: func(r domain.PermitRow) string {
			return fmt.Sprintf("- %s - %s \n  (Org: %s, Issue Date: %s, Expiration Date: %s)\n  Document path: %s \nSummary: %s",
				r.DocumentTitle, r.PermitNumber, r.Organization, r.IssueDate, r.ExpirationDate, orNA(r.Filepath), r.PermitSummary)
		},
		empty: emptyAllByOrganization,
	}
}

func noContentFound(keyword string) string {
	return "No relevant content found for: " + keyword
}

// formatContentHits renders chunks as "[path, Page n]: content" blocks.
func formatContentHits(keyword string, hits []domain.ContentHit) string {
	if len(hits) == 0 {
		return noContentFound(keyword)
	}
	blocks := make([]string, 0, len(hits))
	for _, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("[%s, Page %s]: %s", orNA(hit.Filepath), orNA(hit.ChunkID), hit.Content))
	}
	return strings.Join(blocks, "\n\n")
}

const (
	compositeContentLabel  = "Content Search Results:\n"
	compositeMetadataLabel = "Metadata DB Results:\n"
)

func contentUnavailable(keyword string) string {
	return "Content search is unavailable for: " + keyword
}

// compositeContent renders chunks as "title: content" lines.
func compositeContent(keyword string, hits []domain.ContentHit) string {
	if len(hits) == 0 {
		return noContentFound(keyword)
	}
	blocks := make([]string, 0, len(hits))
	for _, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("%s: %s", hit.Title, hit.Content))
	}
	return strings.Join(blocks, "\n")
}

// formatCompositeResult joins the content and metadata sections. Citation
// parsing reads only what follows the metadata label.
func formatCompositeResult(content, metadata string) string {
	return compositeContentLabel + content + "\n\n" + compositeMetadataLabel + metadata
}
