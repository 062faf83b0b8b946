package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/permit-assistant/internal/core/domain"
	"github.com/kirillkom/permit-assistant/internal/core/ports"
)

const maxHistoryMessages = 8

// AgentChatUseCase plans one tool call at a time with the LLM until it
// produces a final answer, then appends citation markers.
type AgentChatUseCase struct {
	generator   ports.AnswerGenerator
	tools       ports.ToolInvoker
	toolCatalog string
	limits      domain.AgentLimits
	now         func() time.Time
}

func NewAgentChatUseCase(
	generator ports.AnswerGenerator,
	tools ports.ToolInvoker,
	toolCatalog string,
	limits domain.AgentLimits,
) *AgentChatUseCase {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 6
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 120 * time.Second
	}
	if limits.PlannerTimeout <= 0 {
		limits.PlannerTimeout = 60 * time.Second
	}
	if limits.ToolTimeout <= 0 {
		limits.ToolTimeout = 60 * time.Second
	}

	return &AgentChatUseCase{
		generator:   generator,
		tools:       tools,
		toolCatalog: toolCatalog,
		limits:      limits,
		now:         time.Now,
	}
}

func (uc *AgentChatUseCase) WithClock(now func() time.Time) *AgentChatUseCase {
	if now != nil {
		uc.now = now
	}
	return uc
}

func (uc *AgentChatUseCase) Complete(ctx context.Context, req domain.AgentChatRequest) (*domain.AgentRunResult, error) {
	lastUserMessage, ok := latestUserInput(req.Messages)
	if !ok {
		return nil, domain.InvalidInput("agent complete", "at least one user message is required")
	}
	history := recentHistory(req.Messages, maxHistoryMessages)
	today := uc.now().Format(domain.DateLayout)

	loopCtx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	scratchpad := make([]string, 0, uc.limits.MaxIterations)
	toolEvents := make([]domain.AgentToolEvent, 0, uc.limits.MaxIterations)
	toolsInvoked := make([]string, 0, uc.limits.MaxIterations)
	toolSet := make(map[string]struct{})
	finalAnswer := ""
	fallbackReason := ""
	iterations := 0

	for i := 1; i <= uc.limits.MaxIterations; i++ {
		if loopCtx.Err() != nil {
			fallbackReason = "timeout"
			break
		}

		iterations = i
		prompt := buildPlannerPrompt(uc.toolCatalog, today, history, scratchpad, lastUserMessage)
		step, reason := uc.plan(loopCtx, prompt)
		if reason != "" {
			fallbackReason = reason
			break
		}

		switch step.Type {
		case "final":
			finalAnswer = strings.TrimSpace(step.Answer)
			if finalAnswer == "" {
				finalAnswer = "I could not produce a final answer from the current context."
				fallbackReason = "empty_final_answer"
			}
		case "tool":
			toolCtx, toolCancel := context.WithTimeout(loopCtx, uc.limits.ToolTimeout)
			output, ok := uc.tools.Call(toolCtx, step.Tool, step.Input)
			toolCancel()

			event := domain.AgentToolEvent{Tool: step.Tool, Status: "ok", Output: output}
			if !ok {
				event.Status = "error"
			}
			toolEvents = append(toolEvents, event)
			if _, seen := toolSet[step.Tool]; !seen && step.Tool != "" {
				toolSet[step.Tool] = struct{}{}
				toolsInvoked = append(toolsInvoked, step.Tool)
			}
			scratchpad = append(scratchpad, fmt.Sprintf("%s:\n%s", step.Tool, output))
		default:
			fallbackReason = "unsupported_step_type"
		}

		if finalAnswer != "" || fallbackReason != "" {
			break
		}
	}

	if fallbackReason == "" && finalAnswer == "" {
		fallbackReason = "max_iterations"
	}
	if finalAnswer == "" && shouldFallbackToContent(fallbackReason) {
		event, answer, err := uc.answerFromContentFallback(ctx, lastUserMessage)
		if event.Tool != "" {
			toolEvents = append(toolEvents, event)
			if _, seen := toolSet[event.Tool]; !seen {
				toolsInvoked = append(toolsInvoked, event.Tool)
			}
		}
		if err == nil {
			finalAnswer = answer
		}
	}
	if finalAnswer == "" {
		finalAnswer = "I reached the current execution limits. Please refine the request and try again."
	}

	citations := extractCitations(toolEvents)
	return &domain.AgentRunResult{
		Answer:         appendCitationMarkers(finalAnswer, citations),
		Citations:      citations,
		Iterations:     iterations,
		ToolsInvoked:   toolsInvoked,
		FallbackReason: fallbackReason,
		ToolEvents:     toolEvents,
	}, nil
}

// plan asks the planner for the next step, repairing malformed JSON once.
// A non-empty reason means the loop must stop.
func (uc *AgentChatUseCase) plan(ctx context.Context, prompt string) (domain.AgentPlanStep, string) {
	plannerCtx, cancel := context.WithTimeout(ctx, uc.limits.PlannerTimeout)
	raw, err := uc.generator.GenerateJSONFromPrompt(plannerCtx, prompt)
	cancel()
	if err != nil {
		if isAgentTimeoutError(err) {
			return domain.AgentPlanStep{}, "timeout"
		}
		return domain.AgentPlanStep{}, "planner_error"
	}

	step, err := parseAgentStep(raw)
	if err == nil {
		return step, ""
	}

	repairCtx, repairCancel := context.WithTimeout(ctx, uc.limits.PlannerTimeout)
	repaired, err := uc.generator.GenerateJSONFromPrompt(repairCtx, buildPlannerRepairPrompt(raw))
	repairCancel()
	if err != nil {
		if isAgentTimeoutError(err) {
			return domain.AgentPlanStep{}, "timeout"
		}
		return domain.AgentPlanStep{}, "planner_invalid_json"
	}
	step, err = parseAgentStep(repaired)
	if err != nil {
		return domain.AgentPlanStep{}, "planner_invalid_json"
	}
	return step, ""
}

func shouldFallbackToContent(reason string) bool {
	switch reason {
	case "planner_invalid_json", "planner_error", "timeout":
		return true
	default:
		return false
	}
}

func isAgentTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (uc *AgentChatUseCase) answerFromContentFallback(ctx context.Context, question string) (domain.AgentToolEvent, string, error) {
	fallbackCtx, cancel := context.WithTimeout(ctx, uc.limits.ToolTimeout)
	defer cancel()

	output, ok := uc.tools.Call(fallbackCtx, domain.ToolDocumentContent, map[string]any{"keyword": question})
	event := domain.AgentToolEvent{Tool: domain.ToolDocumentContent, Status: "ok", Output: output}
	if !ok {
		event.Status = "error"
		return event, "", fmt.Errorf("content fallback: %s", output)
	}

	answer, err := uc.generator.GenerateFromPrompt(fallbackCtx, buildAnswerPrompt(question, output))
	if err != nil {
		return event, "", fmt.Errorf("content fallback answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return event, "", fmt.Errorf("content fallback answer is empty")
	}
	return event, answer, nil
}

func latestUserInput(messages []domain.AgentInputMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(strings.TrimSpace(messages[i].Role), "user") {
			content := strings.TrimSpace(messages[i].Content)
			if content != "" {
				return content, true
			}
		}
	}
	return "", false
}

func recentHistory(messages []domain.AgentInputMessage, limit int) []domain.AgentInputMessage {
	if len(messages) <= 1 {
		return nil
	}
	history := messages[:len(messages)-1]
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func parseAgentStep(raw string) (domain.AgentPlanStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.AgentPlanStep{}, fmt.Errorf("empty planner response")
	}
	var step domain.AgentPlanStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return domain.AgentPlanStep{}, fmt.Errorf("unmarshal planner json: %w", err)
	}
	step.Type = strings.ToLower(strings.TrimSpace(step.Type))
	step.Tool = strings.ToLower(strings.TrimSpace(step.Tool))
	return step, nil
}

func buildPlannerPrompt(toolCatalog, today string, history []domain.AgentInputMessage, scratchpad []string, userMessage string) string {
	historyLines := make([]string, 0, len(history))
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		historyLines = append(historyLines, fmt.Sprintf("%s: %s", strings.TrimSpace(msg.Role), content))
	}
	if len(historyLines) == 0 {
		historyLines = append(historyLines, "(empty)")
	}
	if len(scratchpad) == 0 {
		scratchpad = []string{"(no tool outputs yet)"}
	}

	return fmt.Sprintf(`You are the planning component of an assistant for regulatory permit documents
(PLO, KKPR, KKPRL, Ijin Lingkungan). Today is %s.
Use metadata tools for questions about dates, expiry, counts and organizations.
Use get_permit_document_content for questions about what a document says.
Return ONLY a valid JSON object with one step.
Schema:
{"type":"tool","tool":"<tool name>","input":{...}}
or
{"type":"final","answer":"..."}

Available tools:
%s

Conversation so far:
%s

Scratchpad with previous tool outputs:
%s

Current user request:
%s
`, today, toolCatalog, strings.Join(historyLines, "\n"), strings.Join(scratchpad, "\n\n"), userMessage)
}

func buildPlannerRepairPrompt(raw string) string {
	return fmt.Sprintf(`Convert the following text into a valid JSON object for this schema:
{"type":"tool","tool":"<tool name>","input":{...}}
or {"type":"final","answer":"..."}
Return only JSON.
Text:
%s`, raw)
}

func buildAnswerPrompt(question, excerpts string) string {
	return fmt.Sprintf(`Answer the user question only from the document excerpts below.
If the excerpts are insufficient, say it directly.

Question:
%s

Excerpts:
%s
`, question, excerpts)
}
