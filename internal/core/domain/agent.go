package domain

import "time"

type AgentLimits struct {
	MaxIterations  int           `json:"max_iterations"`
	Timeout        time.Duration `json:"timeout"`
	PlannerTimeout time.Duration `json:"planner_timeout"`
	ToolTimeout    time.Duration `json:"tool_timeout"`
}

type AgentInputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AgentChatRequest struct {
	Messages []AgentInputMessage `json:"messages"`
}

// AgentPlanStep is one planner decision: Type is "tool" or "final".
type AgentPlanStep struct {
	Type   string         `json:"type"`
	Tool   string         `json:"tool,omitempty"`
	Answer string         `json:"answer,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
}

type AgentToolEvent struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
	Output string `json:"output"`
}

// AgentRunResult is returned to chat callers. FallbackReason names why the
// planner loop stopped without a final answer.
type AgentRunResult struct {
	Answer         string           `json:"answer"`
	Citations      []Citation       `json:"citations,omitempty"`
	Iterations     int              `json:"iterations"`
	ToolsInvoked   []string         `json:"tools_invoked"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	ToolEvents     []AgentToolEvent `json:"tool_events,omitempty"`
}
