package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
)

type fakeGenerator struct {
	plans     []string
	planErr   error
	answer    string
	prompts   []string
	answerReq []string
}

func (f *fakeGenerator) GenerateJSONFromPrompt(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.planErr != nil {
		return "", f.planErr
	}
	if len(f.plans) == 0 {
		return `{"type":"final","answer":"done"}`, nil
	}
	out := f.plans[0]
	f.plans = f.plans[1:]
	return out, nil
}

func (f *fakeGenerator) GenerateFromPrompt(_ context.Context, prompt string) (string, error) {
	f.answerReq = append(f.answerReq, prompt)
	return f.answer, nil
}

type toolCall struct {
	name string
	args map[string]any
}

type fakeToolInvoker struct {
	outputs map[string]string
	failing map[string]bool
	calls   []toolCall
}

func (f *fakeToolInvoker) Call(_ context.Context, name string, args map[string]any) (string, bool) {
	f.calls = append(f.calls, toolCall{name: name, args: args})
	if f.failing[name] {
		return "Tool " + name + " failed: boom", false
	}
	return f.outputs[name], true
}

const expiredOutput = "Now is 2024-01-01. The following documents have already expired:\n" +
	"- PLO Pipa.pdf - Permit Number: PLO-1 \n" +
	"  (Org: PGN, Installation N/A, Expired: 2023-05-01)\n" +
	"  Document path: plo/PLO Pipa.pdf \n" +
	"  Summary: Pipa"

func TestAgentRunsToolThenAnswersWithCitations(t *testing.T) {
	generator := &fakeGenerator{plans: []string{
		`{"type":"tool","tool":"get_list_documents_already_expired","input":{"organization":"PGN"}}`,
		`{"type":"final","answer":"PLO-1 for PGN expired on 2023-05-01."}`,
	}}
	tools := &fakeToolInvoker{outputs: map[string]string{domain.ToolDocumentsAlreadyExpired: expiredOutput}}
	uc := NewAgentChatUseCase(generator, tools, "catalog", domain.AgentLimits{}).
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })

	result, err := uc.Complete(context.Background(), domain.AgentChatRequest{Messages: []domain.AgentInputMessage{
		{Role: "user", Content: "Dokumen PLO PGN mana yang sudah expired?"},
	}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if result.Iterations != 2 {
		t.Fatalf("expected 2 iterations, got %d", result.Iterations)
	}
	if result.Answer != "PLO-1 for PGN expired on 2023-05-01.\n\n[doc1]" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Citations) != 1 || result.Citations[0].Filepath != "plo/PLO Pipa.pdf" {
		t.Fatalf("unexpected citations %+v", result.Citations)
	}
	if tools.calls[0].args["organization"] != "PGN" {
		t.Fatalf("expected tool input to be forwarded, got %v", tools.calls[0].args)
	}
	if !strings.Contains(generator.prompts[0], "Today is 2024-01-01.") {
		t.Fatalf("planner prompt must carry the current date")
	}
	if !strings.Contains(generator.prompts[1], "Permit Number: PLO-1") {
		t.Fatalf("second planner prompt must include the tool output")
	}
}

func TestAgentFallsBackToContentOnPlannerError(t *testing.T) {
	generator := &fakeGenerator{planErr: errors.New("llm down"), answer: "From the document: 16 bar."}
	tools := &fakeToolInvoker{outputs: map[string]string{
		domain.ToolDocumentContent: "[docs/A.pdf, Page 4]: tekanan operasi 16 bar",
	}}
	uc := NewAgentChatUseCase(generator, tools, "catalog", domain.AgentLimits{})

	result, err := uc.Complete(context.Background(), domain.AgentChatRequest{Messages: []domain.AgentInputMessage{
		{Role: "user", Content: "Berapa tekanan operasi?"},
	}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if result.FallbackReason != "planner_error" {
		t.Fatalf("expected planner_error fallback, got %q", result.FallbackReason)
	}
	if result.Answer != "From the document: 16 bar.\n\n[doc1]" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if result.Citations[0].Page != "4" || result.Citations[0].Title != "A.pdf" {
		t.Fatalf("unexpected citation %+v", result.Citations[0])
	}
	if tools.calls[0].args["keyword"] != "Berapa tekanan operasi?" {
		t.Fatalf("expected question as keyword, got %v", tools.calls[0].args)
	}
}

func TestAgentToolFailureIsNotCited(t *testing.T) {
	generator := &fakeGenerator{plans: []string{
		`{"type":"tool","tool":"get_permit_document_content","input":{"keyword":"x"}}`,
		`{"type":"final","answer":"No data."}`,
	}}
	tools := &fakeToolInvoker{failing: map[string]bool{domain.ToolDocumentContent: true}}
	uc := NewAgentChatUseCase(generator, tools, "catalog", domain.AgentLimits{})

	result, err := uc.Complete(context.Background(), domain.AgentChatRequest{Messages: []domain.AgentInputMessage{
		{Role: "user", Content: "x"},
	}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if result.Answer != "No data." || len(result.Citations) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ToolEvents[0].Status != "error" {
		t.Fatalf("expected error tool event, got %+v", result.ToolEvents[0])
	}
}

func TestAgentRequiresUserMessage(t *testing.T) {
	uc := NewAgentChatUseCase(&fakeGenerator{}, &fakeToolInvoker{}, "", domain.AgentLimits{})
	_, err := uc.Complete(context.Background(), domain.AgentChatRequest{Messages: []domain.AgentInputMessage{{Role: "assistant", Content: "hi"}}})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractCitationsFromMetadataAndContent(t *testing.T) {
	events := []domain.AgentToolEvent{
		{Tool: domain.ToolDocumentsAlreadyExpired, Status: "ok", Output: expiredOutput},
		{Tool: domain.ToolDocumentContent, Status: "ok", Output: "[plo/PLO Pipa.pdf, Page 1]: a\n\n[other/B.pdf, Page 2]: b"},
		{Tool: domain.ToolDocumentsByIssueYear, Status: "ok", Output: emptyIssuedByYear},
	}
	citations := extractCitations(events)
	if len(citations) != 2 {
		t.Fatalf("expected 2 distinct citations, got %+v", citations)
	}
	if citations[0].Title != "PLO Pipa.pdf" || citations[0].Marker != "[doc1]" {
		t.Fatalf("unexpected first citation %+v", citations[0])
	}
	if citations[1].Title != "B.pdf" || citations[1].Page != "2" || citations[1].Marker != "[doc2]" {
		t.Fatalf("unexpected last citation %+v", citations[1])
	}
}

func TestCompositeCitationsIgnoreContentBullets(t *testing.T) {
	metadata := renderRows([]domain.PermitRow{{
		DocumentTitle: "PLO Pipa.pdf",
		PermitNumber:  "PLO-1",
		Organization:  "PGN",
		IssueDate:     "2019-05-01",
		Filepath:      "plo/PLO Pipa.pdf",
	}}, 1, allByOrganizationLayout("PGN"))
	content := compositeContent("tekanan", []domain.ContentHit{{
		Title:   "PLO Pipa.pdf",
		Content: "Ketentuan:\n- Tekanan operasi 16 bar\n- Diameter 12 inch",
	}})
	output := formatCompositeResult(content, metadata)

	citations := extractCitations([]domain.AgentToolEvent{
		{Tool: domain.ToolAllDocumentsByOrganization, Status: "ok", Output: output},
	})
	if len(citations) != 1 {
		t.Fatalf("expected only the metadata row to be cited, got %+v", citations)
	}
	if citations[0].Title != "PLO Pipa.pdf" || citations[0].Filepath != "plo/PLO Pipa.pdf" || citations[0].Marker != "[doc1]" {
		t.Fatalf("unexpected citation %+v", citations[0])
	}
}

func TestMetadataCitationsNeedDocumentPath(t *testing.T) {
	output := "- Orphan line without a path\n" +
		"- KKPR Depo.pdf - KKPR-9 \n" +
		"  (Org: PGN, Expires: 2022-08-10)\n" +
		"  Document path: N/A \n" +
		"  Summary: Depo"

	citations := metadataCitations(output)
	if len(citations) != 1 {
		t.Fatalf("expected one citation, got %+v", citations)
	}
	if citations[0].Title != "KKPR Depo.pdf" || citations[0].Filepath != "" {
		t.Fatalf("unexpected citation %+v", citations[0])
	}
}
