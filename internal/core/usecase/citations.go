package usecase

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

var contentChunkPattern = regexp.MustCompile(`(?m)^\[(.+?), Page ([^\]]+)\]: `)

// extractCitations collects the documents referenced by successful tool
// outputs, in order of first appearance.
func extractCitations(events []domain.AgentToolEvent) []domain.Citation {
	out := make([]domain.Citation, 0)
	seen := make(map[string]struct{})
	add := func(c domain.Citation) {
		key := c.Title + "|" + c.Filepath
		if _, ok := seen[key]; ok || c.Title == "" {
			return
		}
		seen[key] = struct{}{}
		c.Marker = fmt.Sprintf("[doc%d]", len(out)+1)
		out = append(out, c)
	}

	for _, event := range events {
		if event.Status != "ok" {
			continue
		}
		switch {
		case event.Tool == domain.ToolDocumentContent:
			for _, c := range contentCitations(event.Output) {
				add(c)
			}
		case domain.IsMetadataTool(event.Tool):
			for _, c := range metadataCitations(event.Output) {
				add(c)
			}
		}
	}
	return out
}

// metadataCitations reads "- {title} - ..." item lines and keeps those
// followed by their "Document path:" line. For composite outputs only the
// metadata section is read.
func metadataCitations(output string) []domain.Citation {
	if idx := strings.LastIndex(output, "\n\n"+compositeMetadataLabel); idx >= 0 {
		output = output[idx+len(compositeMetadataLabel)+2:]
	}

	var out []domain.Citation
	var pending *domain.Citation
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- "):
			title := strings.TrimPrefix(line, "- ")
			if idx := strings.Index(title, " - "); idx >= 0 {
				title = title[:idx]
			}
			pending = &domain.Citation{Title: strings.TrimSpace(title)}
		case pending != nil && strings.HasPrefix(trimmed, "Document path:"):
			filepath := strings.TrimSpace(strings.TrimPrefix(trimmed, "Document path:"))
			if filepath != "N/A" {
				pending.Filepath = filepath
			}
			out = append(out, *pending)
			pending = nil
		}
	}
	return out
}

func contentCitations(output string) []domain.Citation {
	matches := contentChunkPattern.FindAllStringSubmatch(output, -1)
	out := make([]domain.Citation, 0, len(matches))
	for _, m := range matches {
		filepath := strings.TrimSpace(m[1])
		if filepath == "N/A" {
			continue
		}
		c := domain.Citation{
			Title:    path.Base(filepath),
			Filepath: filepath,
		}
		if page := strings.TrimSpace(m[2]); page != "N/A" {
			c.Page = page
		}
		out = append(out, c)
	}
	return out
}

// appendCitationMarkers adds the "[docN]" markers after the answer text.
func appendCitationMarkers(answer string, citations []domain.Citation) string {
	if len(citations) == 0 {
		return answer
	}
	markers := make([]string, 0, len(citations))
	for _, c := range citations {
		markers = append(markers, c.Marker)
	}
	return strings.TrimRight(answer, "\n ") + "\n\n" + strings.Join(markers, " ")
}
